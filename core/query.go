package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"gigchain/native/escrow"
	"gigchain/native/identity"
	"gigchain/native/jobs"
	"gigchain/native/reputation"
)

// JobStats aggregates the ledger-wide counters.
type JobStats struct {
	JobCount     uint64
	ActiveJobs   uint64
	TotalCustody *uint256.Int
}

// AccountView is the token position of an identity.
type AccountView struct {
	Address         common.Address
	Kind            identity.Kind
	Balance         *uint256.Int
	JobsAllowance   *uint256.Int
	EscrowAllowance *uint256.Int
}

func (n *Node) Job(jobID uint64) (*jobs.Job, error) {
	var job *jobs.Job
	err := n.read(func() (err error) {
		job, err = n.jobs.Job(jobID)
		return err
	})
	return job, err
}

// Proposers lists the identities that proposed on jobID in submission order.
func (n *Node) Proposers(jobID uint64) ([]common.Address, error) {
	var out []common.Address
	err := n.read(func() (err error) {
		out, err = n.jobs.Proposers(jobID)
		return err
	})
	return out, err
}

func (n *Node) HasProposed(jobID uint64, freelancer common.Address) (bool, error) {
	var ok bool
	err := n.read(func() (err error) {
		ok, err = n.jobs.HasProposed(jobID, freelancer)
		return err
	})
	return ok, err
}

func (n *Node) JobStats() (*JobStats, error) {
	stats := &JobStats{}
	err := n.read(func() (err error) {
		if stats.JobCount, err = n.jobs.JobCount(); err != nil {
			return err
		}
		if stats.ActiveJobs, err = n.jobs.ActiveJobCount(); err != nil {
			return err
		}
		stats.TotalCustody, err = n.jobs.TotalCustody()
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (n *Node) JobParams() jobs.Params { return n.jobs.Params() }

func (n *Node) Escrow(jobID uint64) (*escrow.Escrow, error) {
	var esc *escrow.Escrow
	err := n.read(func() (err error) {
		esc, err = n.escrow.Escrow(jobID)
		return err
	})
	return esc, err
}

func (n *Node) EscrowBalance(jobID uint64) (*uint256.Int, error) {
	var bal *uint256.Int
	err := n.read(func() (err error) {
		bal, err = n.escrow.Balance(jobID)
		return err
	})
	return bal, err
}

func (n *Node) EscrowTotalCustody() (*uint256.Int, error) {
	var total *uint256.Int
	err := n.read(func() (err error) {
		total, err = n.escrow.TotalCustody()
		return err
	})
	return total, err
}

// Account returns the balance, identity kind and custody allowances of addr.
func (n *Node) Account(addr common.Address) (*AccountView, error) {
	view := &AccountView{Address: addr}
	err := n.read(func() (err error) {
		view.Kind = n.registry.KindOf(addr)
		if view.Balance, err = n.ledger.BalanceOf(addr); err != nil {
			return err
		}
		if view.JobsAllowance, err = n.ledger.Allowance(addr, n.jobs.CustodyAccount()); err != nil {
			return err
		}
		view.EscrowAllowance, err = n.ledger.Allowance(addr, n.escrow.CustodyAccount())
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (n *Node) Allowance(owner, spender common.Address) (*uint256.Int, error) {
	var amount *uint256.Int
	err := n.read(func() (err error) {
		amount, err = n.ledger.Allowance(owner, spender)
		return err
	})
	return amount, err
}

func (n *Node) Reputation(freelancer common.Address) (*reputation.Record, error) {
	var record *reputation.Record
	err := n.read(func() (err error) {
		record, err = n.reputation.Record(freelancer)
		return err
	})
	return record, err
}

func (n *Node) RoleMembers(role string) ([]common.Address, error) {
	var members []common.Address
	err := n.read(func() (err error) {
		members, err = n.roles.Members(role)
		return err
	})
	return members, err
}

// Paused reports the flag of module. It does not fold in the global flag.
func (n *Node) Paused(module string) bool {
	var paused bool
	_ = n.read(func() error {
		paused = n.roles.IsPaused(module)
		return nil
	})
	return paused
}
