package rpc

import (
	"github.com/ethereum/go-ethereum/common"

	"gigchain/core"
	"gigchain/crypto"
	"gigchain/native/escrow"
	"gigchain/native/jobs"
	"gigchain/native/reputation"
)

// Amounts travel as decimal strings of base units and identities in their
// bech32 form.

type JobResponse struct {
	ID          uint64 `json:"id"`
	Client      string `json:"client"`
	Freelancer  string `json:"freelancer,omitempty"`
	IPFSRef     string `json:"ipfsRef"`
	Budget      string `json:"budget"`
	Custody     string `json:"custody"`
	Deadline    int64  `json:"deadline"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	CompletedAt int64  `json:"completedAt,omitempty"`
	DisputedBy  string `json:"disputedBy,omitempty"`
}

func jobResponse(job *jobs.Job) JobResponse {
	return JobResponse{
		ID:          job.ID,
		Client:      crypto.FormatIdentity(job.Client),
		Freelancer:  formatOptionalIdentity(job.Freelancer),
		IPFSRef:     job.IPFSRef,
		Budget:      formatAmount(job.Budget),
		Custody:     formatAmount(job.Custody()),
		Deadline:    job.Deadline,
		Status:      job.Status.String(),
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
		DisputedBy:  formatOptionalIdentity(job.DisputedBy),
	}
}

type EscrowResponse struct {
	JobID      uint64 `json:"jobId"`
	Client     string `json:"client"`
	Freelancer string `json:"freelancer"`
	Balance    string `json:"balance"`
	Released   bool   `json:"released"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}

func escrowResponse(esc *escrow.Escrow) EscrowResponse {
	return EscrowResponse{
		JobID:      esc.JobID,
		Client:     crypto.FormatIdentity(esc.Client),
		Freelancer: crypto.FormatIdentity(esc.Freelancer),
		Balance:    formatAmount(esc.Balance),
		Released:   esc.Released,
		Status:     esc.Status.String(),
		CreatedAt:  esc.CreatedAt,
		UpdatedAt:  esc.UpdatedAt,
	}
}

type AccountResponse struct {
	Address         string `json:"address"`
	Kind            string `json:"kind"`
	Balance         string `json:"balance"`
	JobsAllowance   string `json:"jobsAllowance"`
	EscrowAllowance string `json:"escrowAllowance"`
}

func accountResponse(view *core.AccountView) AccountResponse {
	return AccountResponse{
		Address:         crypto.FormatIdentity(view.Address),
		Kind:            view.Kind.String(),
		Balance:         formatAmount(view.Balance),
		JobsAllowance:   formatAmount(view.JobsAllowance),
		EscrowAllowance: formatAmount(view.EscrowAllowance),
	}
}

type ReputationResponse struct {
	Freelancer      string `json:"freelancer"`
	CompletedJobs   uint64 `json:"completedJobs"`
	TotalEarned     string `json:"totalEarned"`
	LastCompletedAt int64  `json:"lastCompletedAt,omitempty"`
}

func reputationResponse(addr common.Address, record *reputation.Record) ReputationResponse {
	return ReputationResponse{
		Freelancer:      crypto.FormatIdentity(addr),
		CompletedJobs:   record.CompletedJobs,
		TotalEarned:     formatAmount(record.TotalEarned),
		LastCompletedAt: record.LastCompletedAt,
	}
}

type JobStatsResponse struct {
	JobCount       uint64 `json:"jobCount"`
	ActiveJobs     uint64 `json:"activeJobs"`
	TotalCustody   string `json:"totalCustody"`
	CustodyAccount string `json:"custodyAccount"`
	MinBudget      string `json:"minBudget"`
	MaxDuration    int64  `json:"maxDurationSeconds"`
}

type EscrowStatsResponse struct {
	TotalCustody   string `json:"totalCustody"`
	CustodyAccount string `json:"custodyAccount"`
}

type ProposalsResponse struct {
	JobID     uint64   `json:"jobId"`
	Proposers []string `json:"proposers"`
}

type RoleResponse struct {
	Role    string   `json:"role"`
	Members []string `json:"members"`
}

type PauseResponse struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type AuditEntryResponse struct {
	Sequence    uint64            `json:"sequence"`
	Module      string            `json:"module"`
	Operation   string            `json:"operation"`
	Type        string            `json:"type"`
	Attributes  map[string]string `json:"attributes"`
	CommittedAt int64             `json:"committedAt"`
}

type EventUpdateResponse struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Module     string            `json:"module"`
	Operation  string            `json:"operation"`
	Timestamp  int64             `json:"timestamp"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func eventUpdateResponse(update core.EventUpdate) EventUpdateResponse {
	resp := EventUpdateResponse{
		Sequence:  update.Sequence,
		Cursor:    update.Cursor,
		Module:    update.Module,
		Operation: update.Operation,
		Timestamp: update.Timestamp,
	}
	if update.Event != nil {
		resp.Type = update.Event.Type
		resp.Attributes = update.Event.Attributes
	}
	return resp
}

// Request payloads.

type registerRequest struct {
	Kind string `json:"kind"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type createJobRequest struct {
	IPFSRef  string `json:"ipfsRef"`
	Budget   string `json:"budget"`
	Deadline int64  `json:"deadline"`
}

type identityRequest struct {
	Freelancer string `json:"freelancer,omitempty"`
	Winner     string `json:"winner,omitempty"`
}

type deadlineRequest struct {
	Deadline int64 `json:"deadline"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type createEscrowRequest struct {
	JobID      uint64 `json:"jobId"`
	Client     string `json:"client"`
	Freelancer string `json:"freelancer"`
	Amount     string `json:"amount"`
}

type roleRequest struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}

type moduleRequest struct {
	Module string `json:"module"`
}
