package rpc

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// jobAction runs op for the job named in the URL and answers with the
// resulting record.
func (s *Server) jobAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, caller common.Address, id uint64) error) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := uintParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := op(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}
	job, err := s.node.Job(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createJobRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	budget, err := parseAmount("budget", req.Budget)
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := s.node.CreateJob(r.Context(), caller, req.IPFSRef, budget, req.Deadline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, jobResponse(job))
}

func (s *Server) handleSubmitProposal(w http.ResponseWriter, r *http.Request) {
	s.jobAction(w, r, s.node.SubmitProposal)
}

func (s *Server) handleHire(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	freelancer, err := parseIdentity("freelancer", req.Freelancer)
	if err != nil {
		writeError(w, err)
		return
	}
	s.jobAction(w, r, func(ctx context.Context, caller common.Address, id uint64) error {
		return s.node.HireFreelancer(ctx, caller, id, freelancer)
	})
}

func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	s.jobAction(w, r, s.node.CompleteJob)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	s.jobAction(w, r, s.node.CancelJob)
}

func (s *Server) handleJobDispute(w http.ResponseWriter, r *http.Request) {
	s.jobAction(w, r, s.node.InitiateJobDispute)
}

func (s *Server) handleJobResolve(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	winner, err := parseIdentity("winner", req.Winner)
	if err != nil {
		writeError(w, err)
		return
	}
	s.jobAction(w, r, func(ctx context.Context, caller common.Address, id uint64) error {
		return s.node.ResolveJobDispute(ctx, caller, id, winner)
	})
}

func (s *Server) handleExtendDeadline(w http.ResponseWriter, r *http.Request) {
	var req deadlineRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.jobAction(w, r, func(ctx context.Context, caller common.Address, id uint64) error {
		return s.node.ExtendJobDeadline(ctx, caller, id, req.Deadline)
	})
}

func (s *Server) handleIncreaseBudget(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	extra, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s.jobAction(w, r, func(ctx context.Context, caller common.Address, id uint64) error {
		return s.node.IncreaseJobBudget(ctx, caller, id, extra)
	})
}
