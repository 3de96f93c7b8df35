package rpc

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

func (s *Server) escrowAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, caller common.Address, jobID uint64) error) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	jobID, err := uintParam(r, "jobID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := op(r.Context(), caller, jobID); err != nil {
		writeError(w, err)
		return
	}
	esc, err := s.node.Escrow(jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, escrowResponse(esc))
}

func (s *Server) handleCreateEscrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createEscrowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	client, err := parseIdentity("client", req.Client)
	if err != nil {
		writeError(w, err)
		return
	}
	freelancer, err := parseIdentity("freelancer", req.Freelancer)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	esc, err := s.node.CreateEscrow(r.Context(), caller, req.JobID, client, freelancer, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, escrowResponse(esc))
}

func (s *Server) handleAddFunds(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s.escrowAction(w, r, func(ctx context.Context, caller common.Address, jobID uint64) error {
		return s.node.AddEscrowFunds(ctx, caller, jobID, amount)
	})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	s.escrowAction(w, r, s.node.ReleaseEscrow)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	s.escrowAction(w, r, s.node.RefundEscrow)
}

func (s *Server) handleEscrowDispute(w http.ResponseWriter, r *http.Request) {
	s.escrowAction(w, r, s.node.InitiateEscrowDispute)
}

func (s *Server) handleEscrowResolve(w http.ResponseWriter, r *http.Request) {
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
	s.escrowAction(w, r, func(ctx context.Context, caller common.Address, jobID uint64) error {
		return s.node.ResolveEscrowDispute(ctx, caller, jobID, winner)
	})
}
