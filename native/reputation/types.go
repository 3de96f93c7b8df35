package reputation

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInvalidFreelancer marks notifications without a payee.
	ErrInvalidFreelancer = errors.New("reputation: freelancer required")
	// ErrInvalidAmount marks notifications without a positive payout.
	ErrInvalidAmount = errors.New("reputation: payout must be positive")
	// ErrLedgerUnavailable is returned when no storage backend is configured.
	ErrLedgerUnavailable = errors.New("reputation: ledger unavailable")
)

// Record summarises the paid work a freelancer has completed.
type Record struct {
	Freelancer      common.Address
	CompletedJobs   uint64
	TotalEarned     *uint256.Int
	LastCompletedAt int64
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.TotalEarned != nil {
		clone.TotalEarned = r.TotalEarned.Clone()
	} else {
		clone.TotalEarned = uint256.NewInt(0)
	}
	return &clone
}
