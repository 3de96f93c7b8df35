package rpc

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"gigchain/core/genesis"
	"gigchain/crypto"
	"gigchain/native/identity"
	"gigchain/storage/audit"
)

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
	}
	return caller, ok
}

// --- reads ---

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseIdentity("address", chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.node.Account(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse(view))
}

func (s *Server) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	addr, err := parseIdentity("address", chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	record, err := s.node.Reputation(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reputationResponse(addr, record))
}

func (s *Server) handleJobStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.node.JobStats()
	if err != nil {
		writeError(w, err)
		return
	}
	params := s.node.JobParams()
	writeJSON(w, http.StatusOK, JobStatsResponse{
		JobCount:       stats.JobCount,
		ActiveJobs:     stats.ActiveJobs,
		TotalCustody:   formatAmount(stats.TotalCustody),
		CustodyAccount: crypto.FormatIdentity(s.node.JobsCustodyAccount()),
		MinBudget:      formatAmount(params.MinBudget),
		MaxDuration:    params.MaxDuration,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
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

func (s *Server) handleGetProposals(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.node.Job(id); err != nil {
		writeError(w, err)
		return
	}
	proposers, err := s.node.Proposers(id)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := ProposalsResponse{JobID: id, Proposers: make([]string, 0, len(proposers))}
	for _, p := range proposers {
		resp.Proposers = append(resp.Proposers, crypto.FormatIdentity(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEscrowStats(w http.ResponseWriter, _ *http.Request) {
	total, err := s.node.EscrowTotalCustody()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EscrowStatsResponse{
		TotalCustody:   formatAmount(total),
		CustodyAccount: crypto.FormatIdentity(s.node.EscrowCustodyAccount()),
	})
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	jobID, err := uintParam(r, "jobID")
	if err != nil {
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

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	members, err := s.node.RoleMembers(role)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := RoleResponse{Role: strings.ToLower(role), Members: make([]string, 0, len(members))}
	for _, m := range members {
		resp.Members = append(resp.Members, crypto.FormatIdentity(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPause(w http.ResponseWriter, r *http.Request) {
	module := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "module")))
	writeJSON(w, http.StatusOK, PauseResponse{Module: module, Paused: s.node.Paused(module)})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSONError(w, http.StatusNotFound, "audit log not configured")
		return
	}
	q := r.URL.Query()
	filter := audit.Filter{
		Module: q.Get("module"),
		Type:   q.Get("type"),
		JobID:  q.Get("jobId"),
	}
	if raw := q.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, badRequest("invalid after %q", raw))
			return
		}
		filter.AfterSequence = after
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, badRequest("invalid limit %q", raw))
			return
		}
		filter.Limit = limit
	}
	entries, err := s.audit.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		attrs, err := e.Decode()
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, AuditEntryResponse{
			Sequence:    e.Sequence,
			Module:      e.Module,
			Operation:   e.Operation,
			Type:        e.Type,
			Attributes:  attrs,
			CommittedAt: e.CommittedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- identity, tokens and admin ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	kind, err := identity.ParseKind(req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.node.RegisterIdentity(r.Context(), caller, kind); err != nil {
		writeError(w, err)
		return
	}
	s.respondAccount(w, caller, http.StatusCreated)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	to, err := parseIdentity("to", req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.node.Transfer(r.Context(), caller, to, amount); err != nil {
		writeError(w, err)
		return
	}
	s.respondAccount(w, caller, http.StatusOK)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	spender, err := genesis.ResolveAccount(req.Spender)
	if err != nil {
		writeError(w, badRequest("invalid spender: %v", err))
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.node.Approve(r.Context(), caller, spender, amount); err != nil {
		writeError(w, err)
		return
	}
	s.respondAccount(w, caller, http.StatusOK)
}

func (s *Server) respondAccount(w http.ResponseWriter, addr common.Address, status int) {
	view, err := s.node.Account(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, accountResponse(view))
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	s.handleRoleChange(w, r, true)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	s.handleRoleChange(w, r, false)
}

func (s *Server) handleRoleChange(w http.ResponseWriter, r *http.Request, grant bool) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	account, err := parseIdentity("account", req.Account)
	if err != nil {
		writeError(w, err)
		return
	}
	if grant {
		err = s.node.GrantRole(r.Context(), caller, req.Role, account)
	} else {
		err = s.node.RevokeRole(r.Context(), caller, req.Role, account)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handlePauseChange(w, r, true)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.handlePauseChange(w, r, false)
}

func (s *Server) handlePauseChange(w http.ResponseWriter, r *http.Request, pause bool) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req moduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var err error
	if pause {
		err = s.node.Pause(r.Context(), caller, req.Module)
	} else {
		err = s.node.Unpause(r.Context(), caller, req.Module)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	module := strings.ToLower(strings.TrimSpace(req.Module))
	writeJSON(w, http.StatusOK, PauseResponse{Module: module, Paused: s.node.Paused(module)})
}
