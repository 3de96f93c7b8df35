package jobs

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"gigchain/core/types"
	"gigchain/crypto"
)

const (
	EventTypeJobCreated        = "jobs.created"
	EventTypeProposalSubmitted = "jobs.proposal_submitted"
	EventTypeFreelancerHired   = "jobs.freelancer_hired"
	EventTypeJobCompleted      = "jobs.completed"
	EventTypeJobCancelled      = "jobs.cancelled"
	EventTypeJobDisputed       = "jobs.disputed"
	EventTypeDisputeResolved   = "jobs.dispute_resolved"
	EventTypeDeadlineExtended  = "jobs.deadline_extended"
	EventTypeBudgetIncreased   = "jobs.budget_increased"
)

type jobEvent struct {
	evt *types.Event
}

func (e jobEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e jobEvent) Event() *types.Event { return e.evt }

// NewJobCreatedEvent carries the client, reference, budget and deadline.
func NewJobCreatedEvent(j *Job) *types.Event {
	evt := newJobEvent(EventTypeJobCreated, j)
	evt.Attributes["client"] = crypto.FormatIdentity(j.Client)
	evt.Attributes["ipfsRef"] = j.IPFSRef
	evt.Attributes["budget"] = amountString(j.Budget)
	evt.Attributes["deadline"] = strconv.FormatInt(j.Deadline, 10)
	return evt
}

func NewProposalSubmittedEvent(j *Job, freelancer common.Address) *types.Event {
	evt := newJobEvent(EventTypeProposalSubmitted, j)
	evt.Attributes["freelancer"] = crypto.FormatIdentity(freelancer)
	return evt
}

func NewFreelancerHiredEvent(j *Job) *types.Event {
	evt := newJobEvent(EventTypeFreelancerHired, j)
	evt.Attributes["freelancer"] = crypto.FormatIdentity(j.Freelancer)
	return evt
}

func NewJobCompletedEvent(j *Job, payout *uint256.Int) *types.Event {
	evt := newJobEvent(EventTypeJobCompleted, j)
	evt.Attributes["freelancer"] = crypto.FormatIdentity(j.Freelancer)
	evt.Attributes["amount"] = amountString(payout)
	return evt
}

func NewJobCancelledEvent(j *Job, refund *uint256.Int) *types.Event {
	evt := newJobEvent(EventTypeJobCancelled, j)
	evt.Attributes["client"] = crypto.FormatIdentity(j.Client)
	evt.Attributes["amount"] = amountString(refund)
	return evt
}

func NewJobDisputedEvent(j *Job) *types.Event {
	evt := newJobEvent(EventTypeJobDisputed, j)
	evt.Attributes["initiator"] = crypto.FormatIdentity(j.DisputedBy)
	return evt
}

func NewDisputeResolvedEvent(j *Job, winner common.Address, amount *uint256.Int) *types.Event {
	evt := newJobEvent(EventTypeDisputeResolved, j)
	evt.Attributes["winner"] = crypto.FormatIdentity(winner)
	evt.Attributes["amount"] = amountString(amount)
	return evt
}

func NewDeadlineExtendedEvent(j *Job) *types.Event {
	evt := newJobEvent(EventTypeDeadlineExtended, j)
	evt.Attributes["deadline"] = strconv.FormatInt(j.Deadline, 10)
	return evt
}

func NewBudgetIncreasedEvent(j *Job, added *uint256.Int) *types.Event {
	evt := newJobEvent(EventTypeBudgetIncreased, j)
	evt.Attributes["added"] = amountString(added)
	evt.Attributes["budget"] = amountString(j.Budget)
	return evt
}

func newJobEvent(eventType string, j *Job) *types.Event {
	attrs := make(map[string]string)
	if j != nil {
		attrs["jobId"] = strconv.FormatUint(j.ID, 10)
		attrs["status"] = j.Status.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
