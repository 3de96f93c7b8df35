package escrow

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ModuleName is the pause key of the escrow vault.
const ModuleName = "escrow"

// EscrowStatus represents the lifecycle states of a vault record.
type EscrowStatus uint8

const (
	EscrowActive EscrowStatus = iota
	EscrowReleased
	EscrowRefunded
	EscrowDisputed
)

// Valid reports whether the status value is within the supported range.
func (s EscrowStatus) Valid() bool {
	switch s {
	case EscrowActive, EscrowReleased, EscrowRefunded, EscrowDisputed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the record has been paid out.
func (s EscrowStatus) Terminal() bool {
	return s == EscrowReleased || s == EscrowRefunded
}

func (s EscrowStatus) String() string {
	switch s {
	case EscrowActive:
		return "active"
	case EscrowReleased:
		return "released"
	case EscrowRefunded:
		return "refunded"
	case EscrowDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Escrow is the vault record held for one job id. Balance is zero once the
// status is terminal and Released is true only for EscrowReleased.
type Escrow struct {
	JobID      uint64
	Client     common.Address
	Freelancer common.Address
	Balance    *uint256.Int
	Released   bool
	Status     EscrowStatus
	CreatedAt  int64
	UpdatedAt  int64
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Balance != nil {
		clone.Balance = e.Balance.Clone()
	} else {
		clone.Balance = uint256.NewInt(0)
	}
	return &clone
}

// IsParty reports whether addr is the client or the freelancer.
func (e *Escrow) IsParty(addr common.Address) bool {
	return addr != (common.Address{}) && (addr == e.Client || addr == e.Freelancer)
}

// SanitizeEscrow validates a record before it is persisted. The returned copy
// always carries a non-nil balance.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow")
	}
	clone := e.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid escrow status: %d", clone.Status)
	}
	if clone.Status.Terminal() && !clone.Balance.IsZero() {
		return nil, fmt.Errorf("escrow %d: terminal record holds %s", clone.JobID, clone.Balance.Dec())
	}
	if clone.Released != (clone.Status == EscrowReleased) {
		return nil, fmt.Errorf("escrow %d: released flag disagrees with status %s", clone.JobID, clone.Status)
	}
	return clone, nil
}
