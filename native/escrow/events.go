package escrow

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"gigchain/core/types"
	"gigchain/crypto"
)

const (
	EventTypeEscrowCreated   = "escrow.created"
	EventTypeFundsDeposited  = "escrow.funds_deposited"
	EventTypeFundsReleased   = "escrow.funds_released"
	EventTypeEscrowRefunded  = "escrow.refunded"
	EventTypeEscrowDisputed  = "escrow.disputed"
	EventTypeDisputeResolved = "escrow.dispute_resolved"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCreated, e) }

// NewFundsDepositedEvent is emitted whenever value is pulled into the vault
// for the escrow.
func NewFundsDepositedEvent(e *Escrow, from common.Address, amount *uint256.Int) *types.Event {
	evt := newEscrowEvent(EventTypeFundsDeposited, e)
	evt.Attributes["from"] = crypto.FormatIdentity(from)
	evt.Attributes["amount"] = amountString(amount)
	return evt
}

// NewFundsReleasedEvent returns the payload for a release of escrow funds to
// the freelancer.
func NewFundsReleasedEvent(e *Escrow, amount *uint256.Int) *types.Event {
	evt := newEscrowEvent(EventTypeFundsReleased, e)
	evt.Attributes["to"] = crypto.FormatIdentity(e.Freelancer)
	evt.Attributes["amount"] = amountString(amount)
	return evt
}

// NewRefundedEvent returns the payload for a refund to the client.
func NewRefundedEvent(e *Escrow, amount *uint256.Int) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowRefunded, e)
	evt.Attributes["to"] = crypto.FormatIdentity(e.Client)
	evt.Attributes["amount"] = amountString(amount)
	return evt
}

// NewDisputedEvent returns the payload emitted when an escrow is marked as
// disputed.
func NewDisputedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowDisputed, e) }

// NewDisputeResolvedEvent returns the payload emitted when a dispute is
// settled in favour of winner.
func NewDisputeResolvedEvent(e *Escrow, winner common.Address, amount *uint256.Int) *types.Event {
	evt := newEscrowEvent(EventTypeDisputeResolved, e)
	evt.Attributes["winner"] = crypto.FormatIdentity(winner)
	evt.Attributes["amount"] = amountString(amount)
	return evt
}

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["jobId"] = strconv.FormatUint(e.JobID, 10)
	attrs["client"] = crypto.FormatIdentity(e.Client)
	attrs["freelancer"] = crypto.FormatIdentity(e.Freelancer)
	attrs["balance"] = amountString(e.Balance)
	attrs["status"] = e.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
