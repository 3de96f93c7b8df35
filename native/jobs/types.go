package jobs

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ModuleName is the pause key of the job ledger.
const ModuleName = "jobs"

// JobStatus represents the lifecycle states of a job.
type JobStatus uint8

const (
	JobPosted JobStatus = iota
	JobInProgress
	JobCompleted
	JobCancelled
	JobDisputed
)

// Valid reports whether the status value is within the supported range.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPosted, JobInProgress, JobCompleted, JobCancelled, JobDisputed:
		return true
	default:
		return false
	}
}

// Active reports whether the job can still be worked on.
func (s JobStatus) Active() bool {
	return s == JobPosted || s == JobInProgress
}

// Terminal reports whether no transition may leave the status.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled
}

func (s JobStatus) String() string {
	switch s {
	case JobPosted:
		return "posted"
	case JobInProgress:
		return "in_progress"
	case JobCompleted:
		return "completed"
	case JobCancelled:
		return "cancelled"
	case JobDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Job is a funded work order custodied by the ledger.
type Job struct {
	ID          uint64
	Client      common.Address
	IPFSRef     string
	Budget      *uint256.Int
	Deadline    int64
	Freelancer  common.Address
	Status      JobStatus
	CreatedAt   int64
	CompletedAt int64
	DisputedBy  common.Address
}

// Clone returns a deep copy of the job so callers can mutate it freely.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	if j.Budget != nil {
		clone.Budget = j.Budget.Clone()
	} else {
		clone.Budget = uint256.NewInt(0)
	}
	return &clone
}

// HasFreelancer reports whether a freelancer was hired.
func (j *Job) HasFreelancer() bool {
	return j.Freelancer != (common.Address{})
}

// IsParty reports whether addr is the client or the hired freelancer.
func (j *Job) IsParty(addr common.Address) bool {
	if addr == (common.Address{}) {
		return false
	}
	return addr == j.Client || (j.HasFreelancer() && addr == j.Freelancer)
}

// Custody returns the amount the ledger still holds for the job. Budget stays
// as the historical figure once the job is paid out or refunded.
func (j *Job) Custody() *uint256.Int {
	if j == nil || j.Status.Terminal() || j.Budget == nil {
		return uint256.NewInt(0)
	}
	return j.Budget.Clone()
}

// Params bounds job creation.
type Params struct {
	MinBudget   *uint256.Int
	MaxDuration int64
}

const maxIPFSRefLength = 256

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		MinBudget:   uint256.NewInt(100),
		MaxDuration: 365 * 24 * 60 * 60,
	}
}

// Validate checks the parameter bounds.
func (p Params) Validate() error {
	if p.MinBudget == nil || p.MinBudget.IsZero() {
		return fmt.Errorf("jobs: minimum budget must be positive")
	}
	if p.MaxDuration <= 0 {
		return fmt.Errorf("jobs: maximum duration must be positive")
	}
	return nil
}

func normalizeRef(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", ErrInvalidRef
	}
	if len(trimmed) > maxIPFSRefLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidRef, maxIPFSRefLength)
	}
	return trimmed, nil
}
