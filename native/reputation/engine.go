package reputation

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"gigchain/core/events"
)

// Engine receives completion notifications from the job ledger and keeps the
// freelancer tallies.
type Engine struct {
	ledger  *Ledger
	emitter events.Emitter
}

// NewEngine constructs an engine backed by the provided storage backend.
func NewEngine(store storage) *Engine {
	if store == nil {
		return &Engine{ledger: nil, emitter: events.NoopEmitter{}}
	}
	return &Engine{ledger: NewLedger(store), emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the wall clock used by the underlying ledger.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil || e.ledger == nil {
		return
	}
	e.ledger.SetNowFunc(now)
}

// CompleteJob credits a completed payout to the freelancer.
func (e *Engine) CompleteJob(freelancer common.Address, amount *uint256.Int) error {
	if e == nil || e.ledger == nil {
		return ErrLedgerUnavailable
	}
	record, err := e.ledger.Credit(freelancer, amount)
	if err != nil {
		return err
	}
	e.emitter.Emit(paymentRecorded{record: record, amount: amount.Dec()})
	return nil
}

// Record returns the tallies for freelancer.
func (e *Engine) Record(freelancer common.Address) (*Record, error) {
	if e == nil || e.ledger == nil {
		return nil, ErrLedgerUnavailable
	}
	return e.ledger.Get(freelancer)
}
