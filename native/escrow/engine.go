package escrow

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"gigchain/core/events"
	"gigchain/core/types"
	"gigchain/native/access"
	nativecommon "gigchain/native/common"
)

type engineState interface {
	EscrowGet(jobID uint64) (*Escrow, bool, error)
	EscrowPut(esc *Escrow) error
	EscrowTotalCustody() (*uint256.Int, error)
	EscrowSetTotalCustody(amount *uint256.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// TokenMover moves value in and out of the vault custody account.
type TokenMover interface {
	TransferFrom(from, to common.Address, amount *uint256.Int) error
	Transfer(to common.Address, amount *uint256.Int) error
}

// RoleChecker resolves role membership.
type RoleChecker interface {
	HasRole(role string, addr common.Address) bool
}

// Engine is the escrow vault. Records are keyed by an externally supplied job
// id and are not linked to the job ledger.
type Engine struct {
	state   engineState
	mover   TokenMover
	custody common.Address
	roles   RoleChecker
	pauses  nativecommon.PauseView
	emitter events.Emitter
	nowFn   func() int64
	lock    nativecommon.ExecLock
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenMover configures the value mover and the vault custody account.
func (e *Engine) SetTokenMover(mover TokenMover, custody common.Address) {
	e.mover = mover
	e.custody = custody
}

func (e *Engine) SetRoles(roles RoleChecker) { e.roles = roles }

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

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

// CustodyAccount returns the vault account.
func (e *Engine) CustodyAccount() common.Address { return e.custody }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

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

func (e *Engine) isManager(addr common.Address) bool {
	return e.roles != nil && e.roles.HasRole(access.RoleEscrowManager, addr)
}

func (e *Engine) loadEscrow(jobID uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok, err := e.state.EscrowGet(jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return esc, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	esc.UpdatedAt = e.now()
	sanitized, err := SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	return e.state.EscrowPut(sanitized)
}

func (e *Engine) adjustCustody(amount *uint256.Int, add bool) error {
	total, err := e.state.EscrowTotalCustody()
	if err != nil {
		return err
	}
	if add {
		next, overflow := new(uint256.Int).AddOverflow(total, amount)
		if overflow {
			return ErrBalanceOverflow
		}
		return e.state.EscrowSetTotalCustody(next)
	}
	if total.Lt(amount) {
		return custodyError(errUnderflow)
	}
	return e.state.EscrowSetTotalCustody(new(uint256.Int).Sub(total, amount))
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

// drain zeroes the escrow balance, moves it to the terminal status and
// returns the amount that has to be paid out.
func (e *Engine) drain(esc *Escrow, status EscrowStatus) (*uint256.Int, error) {
	payout := esc.Balance.Clone()
	esc.Balance = uint256.NewInt(0)
	esc.Status = status
	esc.Released = status == EscrowReleased
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	if err := e.adjustCustody(payout, false); err != nil {
		return nil, err
	}
	return payout, nil
}

// CreateEscrow opens the vault record for jobID and pulls amount from the
// client. A job id can be used once.
func (e *Engine) CreateEscrow(caller common.Address, jobID uint64, client, freelancer common.Address, amount *uint256.Int) (*Escrow, error) {
	var created *Escrow
	err := e.execute(func() error {
		if !e.isManager(caller) {
			return ErrNotManager
		}
		if _, ok, err := e.state.EscrowGet(jobID); err != nil {
			return err
		} else if ok {
			return ErrEscrowExists
		}
		if client == (common.Address{}) || freelancer == (common.Address{}) || client == freelancer {
			return ErrInvalidParties
		}
		if amount == nil || amount.IsZero() {
			return ErrZeroAmount
		}
		now := e.now()
		esc := &Escrow{
			JobID:      jobID,
			Client:     client,
			Freelancer: freelancer,
			Balance:    amount.Clone(),
			Status:     EscrowActive,
			CreatedAt:  now,
		}
		if err := e.storeEscrow(esc); err != nil {
			return err
		}
		if err := e.adjustCustody(amount, true); err != nil {
			return err
		}
		if err := e.pull(client, amount); err != nil {
			return err
		}
		e.emit(NewCreatedEvent(esc))
		e.emit(NewFundsDepositedEvent(esc, client, amount))
		created = esc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

// AddFunds tops up an unsettled escrow from the client.
func (e *Engine) AddFunds(caller common.Address, jobID uint64, amount *uint256.Int) error {
	return e.execute(func() error {
		esc, err := e.loadEscrow(jobID)
		if err != nil {
			return err
		}
		if caller != esc.Client {
			return ErrNotClient
		}
		if esc.Status.Terminal() {
			return ErrNotOpen
		}
		if amount == nil || amount.IsZero() {
			return ErrZeroAmount
		}
		next, overflow := new(uint256.Int).AddOverflow(esc.Balance, amount)
		if overflow {
			return ErrBalanceOverflow
		}
		esc.Balance = next
		if err := e.storeEscrow(esc); err != nil {
			return err
		}
		if err := e.adjustCustody(amount, true); err != nil {
			return err
		}
		if err := e.pull(caller, amount); err != nil {
			return err
		}
		e.emit(NewFundsDepositedEvent(esc, caller, amount))
		return nil
	})
}

// ReleaseFunds pays the whole balance to the freelancer.
func (e *Engine) ReleaseFunds(caller common.Address, jobID uint64) error {
	return e.execute(func() error {
		esc, err := e.loadEscrow(jobID)
		if err != nil {
			return err
		}
		if caller != esc.Client {
			return ErrNotClient
		}
		if esc.Status != EscrowActive {
			return ErrNotActive
		}
		payout, err := e.drain(esc, EscrowReleased)
		if err != nil {
			return err
		}
		if err := e.pay(esc.Freelancer, payout); err != nil {
			return err
		}
		e.emit(NewFundsReleasedEvent(esc, payout))
		return nil
	})
}

// RefundClient returns the whole balance to the client.
func (e *Engine) RefundClient(caller common.Address, jobID uint64) error {
	return e.execute(func() error {
		if !e.isManager(caller) {
			return ErrNotManager
		}
		esc, err := e.loadEscrow(jobID)
		if err != nil {
			return err
		}
		if esc.Status.Terminal() {
			return ErrNotOpen
		}
		payout, err := e.drain(esc, EscrowRefunded)
		if err != nil {
			return err
		}
		if err := e.pay(esc.Client, payout); err != nil {
			return err
		}
		e.emit(NewRefundedEvent(esc, payout))
		return nil
	})
}

// InitiateDispute freezes an active escrow. Only the client may dispute.
func (e *Engine) InitiateDispute(caller common.Address, jobID uint64) error {
	return e.execute(func() error {
		esc, err := e.loadEscrow(jobID)
		if err != nil {
			return err
		}
		if caller != esc.Client {
			return ErrNotClient
		}
		if esc.Status != EscrowActive {
			return ErrNotActive
		}
		esc.Status = EscrowDisputed
		if err := e.storeEscrow(esc); err != nil {
			return err
		}
		e.emit(NewDisputedEvent(esc))
		return nil
	})
}

// ResolveDispute pays the whole balance of a disputed escrow to winner. The
// record ends Released whichever party wins.
func (e *Engine) ResolveDispute(caller common.Address, jobID uint64, winner common.Address) error {
	return e.execute(func() error {
		if !e.isManager(caller) {
			return ErrNotManager
		}
		esc, err := e.loadEscrow(jobID)
		if err != nil {
			return err
		}
		if esc.Status != EscrowDisputed {
			return ErrNotDisputed
		}
		if !esc.IsParty(winner) {
			return ErrInvalidWinner
		}
		payout, err := e.drain(esc, EscrowReleased)
		if err != nil {
			return err
		}
		if err := e.pay(winner, payout); err != nil {
			return err
		}
		e.emit(NewDisputeResolvedEvent(esc, winner, payout))
		return nil
	})
}

// Escrow returns a copy of the record for jobID.
func (e *Engine) Escrow(jobID uint64) (*Escrow, error) {
	esc, err := e.loadEscrow(jobID)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// Balance returns the amount the vault holds for jobID.
func (e *Engine) Balance(jobID uint64) (*uint256.Int, error) {
	esc, err := e.loadEscrow(jobID)
	if err != nil {
		return nil, err
	}
	return esc.Balance.Clone(), nil
}

// TotalCustody returns the sum of every live escrow balance.
func (e *Engine) TotalCustody() (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.EscrowTotalCustody()
}
