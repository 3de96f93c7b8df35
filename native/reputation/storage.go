package reputation

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// storage abstracts the subset of state manager functionality required by the
// reputation ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var freelancerRecordPrefix = []byte("reputation/freelancer/")

func freelancerRecordKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", freelancerRecordPrefix, addr[:]))
}

type storedRecord struct {
	CompletedJobs   uint64
	TotalEarned     *big.Int
	LastCompletedAt uint64
}

// Ledger persists completed-payment tallies per freelancer.
type Ledger struct {
	store storage
	nowFn func() int64
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{
		store: store,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the wall clock. Primarily leveraged in tests to
// provide deterministic timestamps.
func (l *Ledger) SetNowFunc(now func() int64) {
	if l == nil {
		return
	}
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// Get loads the record for freelancer. Unknown freelancers yield an empty
// record.
func (l *Ledger) Get(freelancer common.Address) (*Record, error) {
	if l == nil || l.store == nil {
		return nil, ErrLedgerUnavailable
	}
	var stored storedRecord
	ok, err := l.store.KVGet(freelancerRecordKey(freelancer), &stored)
	if err != nil {
		return nil, err
	}
	record := &Record{Freelancer: freelancer, TotalEarned: uint256.NewInt(0)}
	if !ok {
		return record, nil
	}
	record.CompletedJobs = stored.CompletedJobs
	record.LastCompletedAt = int64(stored.LastCompletedAt)
	if stored.TotalEarned != nil {
		earned, overflow := uint256.FromBig(stored.TotalEarned)
		if overflow {
			return nil, fmt.Errorf("reputation: stored earnings overflow")
		}
		record.TotalEarned = earned
	}
	return record, nil
}

// Credit adds one completed payment of amount to the freelancer's record.
func (l *Ledger) Credit(freelancer common.Address, amount *uint256.Int) (*Record, error) {
	if freelancer == (common.Address{}) {
		return nil, ErrInvalidFreelancer
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	record, err := l.Get(freelancer)
	if err != nil {
		return nil, err
	}
	earned, overflow := new(uint256.Int).AddOverflow(record.TotalEarned, amount)
	if overflow {
		return nil, fmt.Errorf("reputation: earnings overflow")
	}
	record.CompletedJobs++
	record.TotalEarned = earned
	record.LastCompletedAt = l.nowFn()
	stored := &storedRecord{
		CompletedJobs:   record.CompletedJobs,
		TotalEarned:     earned.ToBig(),
		LastCompletedAt: uint64(record.LastCompletedAt),
	}
	if err := l.store.KVPut(freelancerRecordKey(freelancer), stored); err != nil {
		return nil, err
	}
	return record, nil
}
