package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"gigchain/native/jobs"
)

var (
	jobRecordPrefix    = []byte("jobs/record/")
	jobProposalPrefix  = []byte("jobs/proposal/")
	jobProposersPrefix = []byte("jobs/proposers/")
	jobNextIDKey       = []byte("jobs/next-id")
	jobActiveCountKey  = []byte("jobs/active-count")
	jobCustodyKey      = []byte("jobs/custody")
)

func jobKey(prefix []byte, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], id)
	return buf
}

func jobProposalKey(id uint64, freelancer common.Address) []byte {
	return append(jobKey(jobProposalPrefix, id), freelancer[:]...)
}

type storedJob struct {
	ID          uint64
	Client      common.Address
	IPFSRef     string
	Budget      *big.Int
	Deadline    uint64
	Freelancer  common.Address
	Status      uint8
	CreatedAt   uint64
	CompletedAt uint64
	DisputedBy  common.Address
}

func unixToStored(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func newStoredJob(j *jobs.Job) *storedJob {
	budget := big.NewInt(0)
	if j.Budget != nil {
		budget = j.Budget.ToBig()
	}
	return &storedJob{
		ID:          j.ID,
		Client:      j.Client,
		IPFSRef:     j.IPFSRef,
		Budget:      budget,
		Deadline:    unixToStored(j.Deadline),
		Freelancer:  j.Freelancer,
		Status:      uint8(j.Status),
		CreatedAt:   unixToStored(j.CreatedAt),
		CompletedAt: unixToStored(j.CompletedAt),
		DisputedBy:  j.DisputedBy,
	}
}

func (s *storedJob) toJob() (*jobs.Job, error) {
	status := jobs.JobStatus(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("state: job %d has invalid status %d", s.ID, s.Status)
	}
	budget := uint256.NewInt(0)
	if s.Budget != nil {
		var overflow bool
		budget, overflow = uint256.FromBig(s.Budget)
		if overflow {
			return nil, fmt.Errorf("state: job %d budget overflows 256 bits", s.ID)
		}
	}
	return &jobs.Job{
		ID:          s.ID,
		Client:      s.Client,
		IPFSRef:     s.IPFSRef,
		Budget:      budget,
		Deadline:    int64(s.Deadline),
		Freelancer:  s.Freelancer,
		Status:      status,
		CreatedAt:   int64(s.CreatedAt),
		CompletedAt: int64(s.CompletedAt),
		DisputedBy:  s.DisputedBy,
	}, nil
}

// JobGet loads a job by id.
func (m *Manager) JobGet(id uint64) (*jobs.Job, bool, error) {
	var stored storedJob
	ok, err := m.KVGet(jobKey(jobRecordPrefix, id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	job, err := stored.toJob()
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// JobPut persists the job record.
func (m *Manager) JobPut(job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("state: nil job")
	}
	if !job.Status.Valid() {
		return fmt.Errorf("state: job %d has invalid status", job.ID)
	}
	return m.KVPut(jobKey(jobRecordPrefix, job.ID), newStoredJob(job))
}

// JobNextID returns the id the next job will receive, which is also the
// number of jobs created so far.
func (m *Manager) JobNextID() (uint64, error) {
	var next uint64
	if _, err := m.KVGet(jobNextIDKey, &next); err != nil {
		return 0, err
	}
	return next, nil
}

func (m *Manager) JobSetNextID(next uint64) error {
	return m.KVPut(jobNextIDKey, next)
}

// JobHasProposal reports whether freelancer flagged interest in the job.
func (m *Manager) JobHasProposal(id uint64, freelancer common.Address) (bool, error) {
	var flagged bool
	ok, err := m.KVGet(jobProposalKey(id, freelancer), &flagged)
	if err != nil || !ok {
		return false, err
	}
	return flagged, nil
}

// JobAddProposal sets the proposal flag and appends freelancer to the job's
// proposer index.
func (m *Manager) JobAddProposal(id uint64, freelancer common.Address) error {
	if freelancer == (common.Address{}) {
		return fmt.Errorf("address must not be empty")
	}
	if err := m.KVPut(jobProposalKey(id, freelancer), true); err != nil {
		return err
	}
	return m.KVAppend(jobKey(jobProposersPrefix, id), freelancer.Bytes())
}

// JobProposers lists the freelancers that proposed, in submission order.
func (m *Manager) JobProposers(id uint64) ([]common.Address, error) {
	var raw [][]byte
	if err := m.KVGetList(jobKey(jobProposersPrefix, id), &raw); err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(raw))
	for _, b := range raw {
		out = append(out, common.BytesToAddress(b))
	}
	return out, nil
}

func (m *Manager) JobActiveCount() (uint64, error) {
	var count uint64
	if _, err := m.KVGet(jobActiveCountKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (m *Manager) JobSetActiveCount(count uint64) error {
	return m.KVPut(jobActiveCountKey, count)
}

// JobTotalCustody returns the sum of budgets the job ledger still holds.
func (m *Manager) JobTotalCustody() (*uint256.Int, error) {
	return m.loadAmount(jobCustodyKey)
}

func (m *Manager) JobSetTotalCustody(amount *uint256.Int) error {
	return m.storeAmount(jobCustodyKey, amount)
}
