package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"gigchain/crypto"
	nativecommon "gigchain/native/common"
	"gigchain/observability"
)

const maxRequestBytes = 1 << 20 // 1 MiB

// errBadRequest marks malformed input rejected before reaching the node.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

var statusByCategory = []struct {
	err    error
	status int
}{
	{errBadRequest, http.StatusBadRequest},
	{nativecommon.ErrModulePaused, http.StatusServiceUnavailable},
	{nativecommon.ErrReentrantCall, http.StatusConflict},
	{nativecommon.ErrUnauthorized, http.StatusForbidden},
	{nativecommon.ErrNotFound, http.StatusNotFound},
	{nativecommon.ErrAlreadyExists, http.StatusConflict},
	{nativecommon.ErrInvalidState, http.StatusConflict},
	{nativecommon.ErrDeadline, http.StatusUnprocessableEntity},
	{nativecommon.ErrInvalidValue, http.StatusUnprocessableEntity},
	{nativecommon.ErrCustody, http.StatusPaymentRequired},
}

// statusFor maps an error onto its HTTP status. Unclassified errors are
// internal.
func statusFor(err error) int {
	for _, c := range statusByCategory {
		if errors.Is(err, c.err) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	switch {
	case status == http.StatusInternalServerError:
		resp.Error = http.StatusText(status)
	case errors.Is(err, errBadRequest):
		resp.Category = "malformed"
	default:
		resp.Category = observability.Outcome(err)
	}
	writeJSON(w, status, resp)
}

func decodeBody(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body required")
		}
		return badRequest("decode body: %v", err)
	}
	return nil
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, badRequest("%s required", field)
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, badRequest("invalid %s %q", field, raw)
	}
	return amount, nil
}

func parseIdentity(field, raw string) (common.Address, error) {
	addr, err := crypto.ParseIdentity(raw)
	if err != nil {
		return common.Address{}, badRequest("invalid %s: %v", field, err)
	}
	return addr, nil
}

func uintParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return value, nil
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func formatOptionalIdentity(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return crypto.FormatIdentity(addr)
}
