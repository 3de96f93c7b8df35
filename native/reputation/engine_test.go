package reputation

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"gigchain/core/events"
)

type memoryStore struct {
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *memoryStore) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func TestCompleteJobAccumulates(t *testing.T) {
	engine := NewEngine(newMemoryStore())
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	buf := &events.Buffer{}
	engine.SetEmitter(buf)

	freelancer := common.Address{0x42}
	if err := engine.CompleteJob(freelancer, uint256.NewInt(250)); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if err := engine.CompleteJob(freelancer, uint256.NewInt(50)); err != nil {
		t.Fatalf("second completion: %v", err)
	}
	record, err := engine.Record(freelancer)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if record.CompletedJobs != 2 {
		t.Fatalf("expected 2 completed jobs, got %d", record.CompletedJobs)
	}
	if record.TotalEarned.Uint64() != 300 {
		t.Fatalf("expected 300 earned, got %s", record.TotalEarned.Dec())
	}
	if record.LastCompletedAt != 1_700_000_000 {
		t.Fatalf("unexpected completion time %d", record.LastCompletedAt)
	}
	drained := buf.Drain()
	if len(drained) != 2 || drained[1].Attributes["totalEarned"] != "300" {
		t.Fatalf("unexpected events: %+v", drained)
	}
}

func TestCompleteJobRejectsInvalidInput(t *testing.T) {
	engine := NewEngine(newMemoryStore())
	if err := engine.CompleteJob(common.Address{}, uint256.NewInt(1)); err != ErrInvalidFreelancer {
		t.Fatalf("expected ErrInvalidFreelancer, got %v", err)
	}
	if err := engine.CompleteJob(common.Address{0x01}, uint256.NewInt(0)); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	var nilEngine *Engine
	if err := nilEngine.CompleteJob(common.Address{0x01}, uint256.NewInt(1)); err != ErrLedgerUnavailable {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
}

func TestUnknownFreelancerHasEmptyRecord(t *testing.T) {
	engine := NewEngine(newMemoryStore())
	record, err := engine.Record(common.Address{0x99})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if record.CompletedJobs != 0 || !record.TotalEarned.IsZero() {
		t.Fatalf("expected empty record, got %+v", record)
	}
}
