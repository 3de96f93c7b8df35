package jobs

import (
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"gigchain/core/events"
	"gigchain/core/types"
	"gigchain/crypto"
	"gigchain/native/access"
	nativecommon "gigchain/native/common"
)

type engineState interface {
	JobGet(id uint64) (*Job, bool, error)
	JobPut(job *Job) error
	JobNextID() (uint64, error)
	JobSetNextID(next uint64) error
	JobHasProposal(id uint64, freelancer common.Address) (bool, error)
	JobAddProposal(id uint64, freelancer common.Address) error
	JobProposers(id uint64) ([]common.Address, error)
	JobActiveCount() (uint64, error)
	JobSetActiveCount(count uint64) error
	JobTotalCustody() (*uint256.Int, error)
	JobSetTotalCustody(amount *uint256.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// IdentityRegistry answers whether an address registered as a client or a
// freelancer.
type IdentityRegistry interface {
	IsRegistered(addr common.Address) bool
	IsFreelancer(addr common.Address) bool
}

// TokenMover moves value in and out of the ledger's custody account.
type TokenMover interface {
	TransferFrom(from, to common.Address, amount *uint256.Int) error
	Transfer(to common.Address, amount *uint256.Int) error
}

// RoleChecker resolves role membership.
type RoleChecker interface {
	HasRole(role string, addr common.Address) bool
}

// CompletionNotifier is told about every payout that reaches a freelancer.
type CompletionNotifier interface {
	CompleteJob(freelancer common.Address, amount *uint256.Int) error
}

// Engine is the job ledger. It custodies each job budget from posting until
// the budget is paid to the freelancer or refunded to the client.
type Engine struct {
	state    engineState
	registry IdentityRegistry
	mover    TokenMover
	custody  common.Address
	roles    RoleChecker
	pauses   nativecommon.PauseView
	notifier CompletionNotifier
	emitter  events.Emitter
	logger   *slog.Logger
	params   Params
	nowFn    func() int64
	lock     nativecommon.ExecLock
}

// NewEngine creates a job engine with default parameters and a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		params:  DefaultParams(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetRegistry(registry IdentityRegistry) { e.registry = registry }

// SetTokenMover configures the value mover and the custody account budgets are
// pulled into.
func (e *Engine) SetTokenMover(mover TokenMover, custody common.Address) {
	e.mover = mover
	e.custody = custody
}

func (e *Engine) SetRoles(roles RoleChecker) { e.roles = roles }

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNotifier wires the reputation hook. Nil disables notifications.
func (e *Engine) SetNotifier(n CompletionNotifier) { e.notifier = n }

// SetParams replaces the creation bounds. Invalid parameters are ignored.
func (e *Engine) SetParams(p Params) {
	if p.Validate() != nil {
		return
	}
	e.params = Params{MinBudget: p.MinBudget.Clone(), MaxDuration: p.MaxDuration}
}

func (e *Engine) Params() Params {
	return Params{MinBudget: e.params.MinBudget.Clone(), MaxDuration: e.params.MaxDuration}
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// CustodyAccount returns the account holding every live job budget.
func (e *Engine) CustodyAccount() common.Address { return e.custody }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(jobEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// execute runs a state-changing operation behind the pause guard and the
// execution lock. Every write made by fn is rolled back when it fails.
func (e *Engine) execute(fn func() error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.lock.Enter(); err != nil {
		return err
	}
	defer e.lock.Exit()
	snap := e.state.Snapshot()
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	return nil
}

func (e *Engine) loadJob(id uint64) (*Job, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	job, ok, err := e.state.JobGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (e *Engine) loadClientJob(caller common.Address, id uint64) (*Job, error) {
	job, err := e.loadJob(id)
	if err != nil {
		return nil, err
	}
	if caller != job.Client {
		return nil, ErrNotJobClient
	}
	if !job.Status.Active() {
		return nil, ErrJobNotActive
	}
	return job, nil
}

func (e *Engine) isFreelancer(addr common.Address) bool {
	return e.registry != nil && e.registry.IsFreelancer(addr)
}

func (e *Engine) deadlinePassed(job *Job) bool {
	return e.now() > job.Deadline
}

func (e *Engine) adjustActive(delta int) error {
	count, err := e.state.JobActiveCount()
	if err != nil {
		return err
	}
	if delta < 0 {
		if count == 0 {
			return ErrActiveCountUnderflow
		}
		count--
	} else {
		count++
	}
	return e.state.JobSetActiveCount(count)
}

func (e *Engine) addCustody(amount *uint256.Int) error {
	total, err := e.state.JobTotalCustody()
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(total, amount)
	if overflow {
		return ErrBudgetOverflow
	}
	return e.state.JobSetTotalCustody(next)
}

func (e *Engine) releaseCustody(amount *uint256.Int) error {
	total, err := e.state.JobTotalCustody()
	if err != nil {
		return err
	}
	if total.Lt(amount) {
		return custodyError(errUnderflow)
	}
	return e.state.JobSetTotalCustody(new(uint256.Int).Sub(total, amount))
}

func (e *Engine) pull(from common.Address, amount *uint256.Int) error {
	if e.mover == nil {
		return custodyError(errNoMover)
	}
	return custodyError(e.mover.TransferFrom(from, e.custody, amount))
}

func (e *Engine) pay(to common.Address, amount *uint256.Int) error {
	if e.mover == nil {
		return custodyError(errNoMover)
	}
	return custodyError(e.mover.Transfer(to, amount))
}

func (e *Engine) notifyCompletion(job *Job, amount *uint256.Int) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.CompleteJob(job.Freelancer, amount.Clone()); err != nil {
		e.logger.Warn("reputation update failed",
			slog.Uint64("job_id", job.ID),
			slog.String("freelancer", crypto.FormatIdentity(job.Freelancer)),
			slog.Any("error", err))
	}
}

// CreateJob posts a new job and pulls its budget into custody. The caller
// must be a registered client that approved the custody account.
func (e *Engine) CreateJob(caller common.Address, ipfsRef string, budget *uint256.Int, deadline int64) (*Job, error) {
	var created *Job
	err := e.execute(func() error {
		if e.registry == nil || !e.registry.IsRegistered(caller) || e.registry.IsFreelancer(caller) {
			return ErrNotClientIdentity
		}
		ref, err := normalizeRef(ipfsRef)
		if err != nil {
			return err
		}
		now := e.now()
		if deadline <= now {
			return ErrDeadlineNotFuture
		}
		if deadline-now > e.params.MaxDuration {
			return ErrDeadlineTooFar
		}
		if budget == nil || budget.Lt(e.params.MinBudget) {
			return ErrBudgetTooLow
		}
		id, err := e.state.JobNextID()
		if err != nil {
			return err
		}
		job := &Job{
			ID:        id,
			Client:    caller,
			IPFSRef:   ref,
			Budget:    budget.Clone(),
			Deadline:  deadline,
			Status:    JobPosted,
			CreatedAt: now,
		}
		if err := e.state.JobSetNextID(id + 1); err != nil {
			return err
		}
		if err := e.state.JobPut(job); err != nil {
			return err
		}
		if err := e.adjustActive(1); err != nil {
			return err
		}
		if err := e.addCustody(job.Budget); err != nil {
			return err
		}
		if err := e.pull(caller, job.Budget); err != nil {
			return err
		}
		e.emit(NewJobCreatedEvent(job))
		created = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

// SubmitProposal records that a freelancer wants to be hired for a posted
// job. A freelancer proposes at most once per job.
func (e *Engine) SubmitProposal(caller common.Address, jobID uint64) error {
	return e.execute(func() error {
		if !e.isFreelancer(caller) {
			return ErrNotFreelancer
		}
		job, err := e.loadJob(jobID)
		if err != nil {
			return err
		}
		if job.Status != JobPosted {
			return ErrJobNotOpen
		}
		proposed, err := e.state.JobHasProposal(jobID, caller)
		if err != nil {
			return err
		}
		if proposed {
			return ErrAlreadyProposed
		}
		if e.deadlinePassed(job) {
			return ErrDeadlinePassed
		}
		if err := e.state.JobAddProposal(jobID, caller); err != nil {
			return err
		}
		e.emit(NewProposalSubmittedEvent(job, caller))
		return nil
	})
}

// HireFreelancer assigns a proposing freelancer to the job.
func (e *Engine) HireFreelancer(caller common.Address, jobID uint64, freelancer common.Address) error {
	return e.execute(func() error {
		job, err := e.loadClientJob(caller, jobID)
		if err != nil {
			return err
		}
		if job.HasFreelancer() {
			return ErrFreelancerAlreadyHired
		}
		if !e.isFreelancer(freelancer) {
			return ErrInvalidFreelancer
		}
		proposed, err := e.state.JobHasProposal(jobID, freelancer)
		if err != nil {
			return err
		}
		if !proposed {
			return ErrNoProposal
		}
		if e.deadlinePassed(job) {
			return ErrDeadlinePassed
		}
		job.Freelancer = freelancer
		job.Status = JobInProgress
		if err := e.state.JobPut(job); err != nil {
			return err
		}
		e.emit(NewFreelancerHiredEvent(job))
		return nil
	})
}

// CompleteJob approves the delivered work and pays the full budget to the
// hired freelancer.
func (e *Engine) CompleteJob(caller common.Address, jobID uint64) error {
	return e.execute(func() error {
		job, err := e.loadClientJob(caller, jobID)
		if err != nil {
			return err
		}
		if !job.HasFreelancer() {
			return ErrNoFreelancerHired
		}
		if e.deadlinePassed(job) {
			return ErrDeadlinePassed
		}
		payout := job.Budget.Clone()
		job.Status = JobCompleted
		job.CompletedAt = e.now()
		if err := e.state.JobPut(job); err != nil {
			return err
		}
		if err := e.adjustActive(-1); err != nil {
			return err
		}
		if err := e.releaseCustody(payout); err != nil {
			return err
		}
		if err := e.pay(job.Freelancer, payout); err != nil {
			return err
		}
		e.notifyCompletion(job, payout)
		e.emit(NewJobCompletedEvent(job, payout))
		return nil
	})
}

// CancelJob withdraws a job nobody was hired for and refunds the budget.
func (e *Engine) CancelJob(caller common.Address, jobID uint64) error {
	return e.execute(func() error {
		job, err := e.loadClientJob(caller, jobID)
		if err != nil {
			return err
		}
		if job.HasFreelancer() {
			return ErrFreelancerAlreadyHired
		}
		refund := job.Budget.Clone()
		job.Status = JobCancelled
		job.CompletedAt = e.now()
		if err := e.state.JobPut(job); err != nil {
			return err
		}
		if err := e.adjustActive(-1); err != nil {
			return err
		}
		if err := e.releaseCustody(refund); err != nil {
			return err
		}
		if err := e.pay(job.Client, refund); err != nil {
			return err
		}
		e.emit(NewJobCancelledEvent(job, refund))
		return nil
	})
}

// InitiateDispute freezes an active job until a manager resolves it. Only the
// client or the hired freelancer may dispute.
func (e *Engine) InitiateDispute(caller common.Address, jobID uint64) error {
	return e.execute(func() error {
		job, err := e.loadJob(jobID)
		if err != nil {
			return err
		}
		if !job.IsParty(caller) {
			return ErrNotJobParty
		}
		if !job.Status.Active() {
			return ErrJobNotActive
		}
		job.Status = JobDisputed
		job.DisputedBy = caller
		if err := e.state.JobPut(job); err != nil {
			return err
		}
		if err := e.adjustActive(-1); err != nil {
			return err
		}
		e.emit(NewJobDisputedEvent(job))
		return nil
	})
}

// ResolveDispute pays the whole budget of a disputed job to winner, which
// must be the client or the hired freelancer.
func (e *Engine) ResolveDispute(caller common.Address, jobID uint64, winner common.Address) error {
	return e.execute(func() error {
		if e.roles == nil || !e.roles.HasRole(access.RoleJobManager, caller) {
			return ErrNotManager
		}
		job, err := e.loadJob(jobID)
		if err != nil {
			return err
		}
		if job.Status != JobDisputed {
			return ErrJobNotDisputed
		}
		if !job.IsParty(winner) {
			return ErrInvalidWinner
		}
		payout := job.Budget.Clone()
		job.Status = JobCompleted
		job.CompletedAt = e.now()
		if err := e.state.JobPut(job); err != nil {
			return err
		}
		if err := e.releaseCustody(payout); err != nil {
			return err
		}
		if err := e.pay(winner, payout); err != nil {
			return err
		}
		if winner == job.Freelancer {
			e.notifyCompletion(job, payout)
		}
		e.emit(NewDisputeResolvedEvent(job, winner, payout))
		return nil
	})
}

// ExtendJobDeadline moves the deadline of an active job further out.
func (e *Engine) ExtendJobDeadline(caller common.Address, jobID uint64, newDeadline int64) error {
	return e.execute(func() error {
		job, err := e.loadClientJob(caller, jobID)
		if err != nil {
			return err
		}
		if newDeadline <= job.Deadline {
			return ErrDeadlineNotLater
		}
		if newDeadline-e.now() > e.params.MaxDuration {
			return ErrDeadlineTooFar
		}
		job.Deadline = newDeadline
		if err := e.state.JobPut(job); err != nil {
			return err
		}
		e.emit(NewDeadlineExtendedEvent(job))
		return nil
	})
}

// IncreaseBudget pulls extra funds from the client into the job budget.
func (e *Engine) IncreaseBudget(caller common.Address, jobID uint64, extra *uint256.Int) error {
	return e.execute(func() error {
		job, err := e.loadClientJob(caller, jobID)
		if err != nil {
			return err
		}
		if extra == nil || extra.IsZero() {
			return ErrZeroAmount
		}
		next, overflow := new(uint256.Int).AddOverflow(job.Budget, extra)
		if overflow {
			return ErrBudgetOverflow
		}
		job.Budget = next
		if err := e.state.JobPut(job); err != nil {
			return err
		}
		if err := e.addCustody(extra); err != nil {
			return err
		}
		if err := e.pull(caller, extra); err != nil {
			return err
		}
		e.emit(NewBudgetIncreasedEvent(job, extra))
		return nil
	})
}

// Job returns a copy of the stored job.
func (e *Engine) Job(jobID uint64) (*Job, error) {
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// Proposers lists the freelancers that proposed for the job in submission
// order.
func (e *Engine) Proposers(jobID uint64) ([]common.Address, error) {
	if _, err := e.loadJob(jobID); err != nil {
		return nil, err
	}
	return e.state.JobProposers(jobID)
}

// HasProposed reports whether freelancer proposed for the job.
func (e *Engine) HasProposed(jobID uint64, freelancer common.Address) (bool, error) {
	if _, err := e.loadJob(jobID); err != nil {
		return false, err
	}
	return e.state.JobHasProposal(jobID, freelancer)
}

// ActiveJobCount returns the number of jobs that are posted or in progress.
func (e *Engine) ActiveJobCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.JobActiveCount()
}

// JobCount returns the number of jobs ever created.
func (e *Engine) JobCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.JobNextID()
}

// TotalCustody returns the sum of every budget the ledger still holds.
func (e *Engine) TotalCustody() (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.JobTotalCustody()
}
