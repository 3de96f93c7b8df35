package reputation

import (
	"strconv"

	"gigchain/core/types"
	"gigchain/crypto"
)

const (
	// EventTypePaymentRecorded is emitted when a completed payout is credited
	// to a freelancer.
	EventTypePaymentRecorded = "reputation.payment_recorded"
)

type paymentRecorded struct {
	record *Record
	amount string
}

func (paymentRecorded) EventType() string { return EventTypePaymentRecorded }

func (e paymentRecorded) Event() *types.Event { return NewPaymentRecordedEvent(e.record, e.amount) }

// NewPaymentRecordedEvent returns the canonical payload for a credited
// payout.
func NewPaymentRecordedEvent(r *Record, amount string) *types.Event {
	attrs := make(map[string]string)
	if r == nil {
		return &types.Event{Type: EventTypePaymentRecorded, Attributes: attrs}
	}
	attrs["freelancer"] = crypto.FormatIdentity(r.Freelancer)
	attrs["amount"] = amount
	attrs["completedJobs"] = strconv.FormatUint(r.CompletedJobs, 10)
	attrs["totalEarned"] = r.TotalEarned.Dec()
	return &types.Event{Type: EventTypePaymentRecorded, Attributes: attrs}
}
