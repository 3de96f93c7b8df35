package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"gigchain/native/escrow"
)

var (
	escrowRecordPrefix = []byte("escrow/record/")
	escrowCustodyKey   = []byte("escrow/custody")
)

type storedEscrow struct {
	JobID      uint64
	Client     common.Address
	Freelancer common.Address
	Balance    *big.Int
	Released   bool
	Status     uint8
	CreatedAt  uint64
	UpdatedAt  uint64
}

func newStoredEscrow(e *escrow.Escrow) *storedEscrow {
	balance := big.NewInt(0)
	if e.Balance != nil {
		balance = e.Balance.ToBig()
	}
	return &storedEscrow{
		JobID:      e.JobID,
		Client:     e.Client,
		Freelancer: e.Freelancer,
		Balance:    balance,
		Released:   e.Released,
		Status:     uint8(e.Status),
		CreatedAt:  unixToStored(e.CreatedAt),
		UpdatedAt:  unixToStored(e.UpdatedAt),
	}
}

func (s *storedEscrow) toEscrow() (*escrow.Escrow, error) {
	status := escrow.EscrowStatus(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("state: escrow %d has invalid status %d", s.JobID, s.Status)
	}
	balance := uint256.NewInt(0)
	if s.Balance != nil {
		var overflow bool
		balance, overflow = uint256.FromBig(s.Balance)
		if overflow {
			return nil, fmt.Errorf("state: escrow %d balance overflows 256 bits", s.JobID)
		}
	}
	return &escrow.Escrow{
		JobID:      s.JobID,
		Client:     s.Client,
		Freelancer: s.Freelancer,
		Balance:    balance,
		Released:   s.Released,
		Status:     status,
		CreatedAt:  int64(s.CreatedAt),
		UpdatedAt:  int64(s.UpdatedAt),
	}, nil
}

// EscrowGet loads the vault record for jobID.
func (m *Manager) EscrowGet(jobID uint64) (*escrow.Escrow, bool, error) {
	var stored storedEscrow
	ok, err := m.KVGet(jobKey(escrowRecordPrefix, jobID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	esc, err := stored.toEscrow()
	if err != nil {
		return nil, false, err
	}
	return esc, true, nil
}

// EscrowPut persists the vault record after validating it.
func (m *Manager) EscrowPut(esc *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	return m.KVPut(jobKey(escrowRecordPrefix, sanitized.JobID), newStoredEscrow(sanitized))
}

func (m *Manager) EscrowTotalCustody() (*uint256.Int, error) {
	return m.loadAmount(escrowCustodyKey)
}

func (m *Manager) EscrowSetTotalCustody(amount *uint256.Int) error {
	return m.storeAmount(escrowCustodyKey, amount)
}
