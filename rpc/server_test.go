package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"gigchain/core"
	"gigchain/core/genesis"
	"gigchain/crypto"
	"gigchain/native/bank"
	"gigchain/storage"
)

const testNow int64 = 1_800_000_000

const (
	testSecret  = "test-secret"
	testGenesis = `
genesisTime: "2026-01-01T00:00:00Z"
roles:
  admin: ["0x00000000000000000000000000000000000000ad"]
  job-manager: ["0x000000000000000000000000000000000000003a"]
  escrow-manager: ["0x000000000000000000000000000000000000003b"]
identities:
  - address: "0x00000000000000000000000000000000000000c1"
    kind: client
  - address: "0x00000000000000000000000000000000000000f1"
    kind: freelancer
balances:
  "0x00000000000000000000000000000000000000c1": "5000"
`
)

var (
	adminAddr      = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	escrowMgrAddr  = common.HexToAddress("0x000000000000000000000000000000000000003b")
	clientAddr     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	freelancerAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

type harness struct {
	t   *testing.T
	srv *httptest.Server
}

func newHarness(t *testing.T, limit RateLimit) *harness {
	t.Helper()
	spec, err := genesis.ParseSpec([]byte(testGenesis))
	require.NoError(t, err)
	node, err := core.NewNode(storage.NewMemDB(), core.Options{
		Genesis: spec,
		NowFunc: func() int64 { return testNow },
	})
	require.NoError(t, err)
	server, err := NewServer(node, Config{
		Auth:      AuthConfig{HMACSecret: testSecret, Issuer: "gigctl"},
		RateLimit: limit,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv}
}

func token(t *testing.T, subject common.Address, secret string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   crypto.FormatIdentity(subject),
		Issuer:    "gigctl",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(method, path string, as *common.Address, body interface{}) (*http.Response, map[string]interface{}) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, reader)
	require.NoError(h.t, err)
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+token(h.t, *as, testSecret))
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	out := map[string]interface{}{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, RateLimit{})
	resp, err := h.srv.Client().Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))

	resp, err = h.srv.Client().Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWritesRequireBearerToken(t *testing.T) {
	h := newHarness(t, RateLimit{})
	resp, body := h.do(http.MethodPost, "/v1/jobs", nil, map[string]interface{}{"ipfsRef": "x"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "missing bearer token", body["error"])

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/v1/jobs", strings.NewReader("{}"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, clientAddr, "wrong-secret"))
	resp, err = h.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJobFlowOverHTTP(t *testing.T) {
	h := newHarness(t, RateLimit{})

	resp, body := h.do(http.MethodPost, "/v1/tokens/approve", &clientAddr, map[string]string{"spender": "module:jobs", "amount": "1000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1000", body["jobsAllowance"])

	resp, body = h.do(http.MethodPost, "/v1/jobs", &clientAddr, map[string]interface{}{
		"ipfsRef":  "ipfs://brief",
		"budget":   "600",
		"deadline": testNow + 3600,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "posted", body["status"])
	require.Equal(t, "600", body["custody"])

	resp, _ = h.do(http.MethodPost, "/v1/jobs/0/proposals", &freelancerAddr, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.do(http.MethodGet, "/v1/jobs/0/proposals", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []interface{}{crypto.FormatIdentity(freelancerAddr)}, body["proposers"])

	resp, body = h.do(http.MethodPost, "/v1/jobs/0/hire", &clientAddr, map[string]string{"freelancer": crypto.FormatIdentity(freelancerAddr)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "in_progress", body["status"])

	resp, body = h.do(http.MethodPost, "/v1/jobs/0/complete", &freelancerAddr, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "unauthorized", body["category"])

	resp, body = h.do(http.MethodPost, "/v1/jobs/0/complete", &clientAddr, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "completed", body["status"])

	resp, body = h.do(http.MethodGet, "/v1/accounts/"+freelancerAddr.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "600", body["balance"])
	require.Equal(t, "freelancer", body["kind"])

	resp, body = h.do(http.MethodGet, "/v1/accounts/"+freelancerAddr.Hex()+"/reputation", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["completedJobs"])

	resp, body = h.do(http.MethodGet, "/v1/jobs/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["jobCount"])
	require.Equal(t, "0", body["totalCustody"])
}

func TestErrorStatusMapping(t *testing.T) {
	h := newHarness(t, RateLimit{})

	cases := []struct {
		name   string
		method string
		path   string
		as     *common.Address
		body   interface{}
		status int
	}{
		{"unknown job", http.MethodGet, "/v1/jobs/42", nil, nil, http.StatusNotFound},
		{"bad job id", http.MethodGet, "/v1/jobs/abc", nil, nil, http.StatusBadRequest},
		{"bad identity", http.MethodGet, "/v1/accounts/nope", nil, nil, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/v1/jobs", &clientAddr, map[string]string{"bogus": "1"}, http.StatusBadRequest},
		{"budget below minimum", http.MethodPost, "/v1/jobs", &clientAddr, map[string]interface{}{"ipfsRef": "r", "budget": "1", "deadline": testNow + 60}, http.StatusUnprocessableEntity},
		{"past deadline", http.MethodPost, "/v1/jobs", &clientAddr, map[string]interface{}{"ipfsRef": "r", "budget": "500", "deadline": testNow}, http.StatusUnprocessableEntity},
		{"no allowance", http.MethodPost, "/v1/jobs", &clientAddr, map[string]interface{}{"ipfsRef": "r", "budget": "500", "deadline": testNow + 60}, http.StatusPaymentRequired},
		{"already registered", http.MethodPost, "/v1/identities", &clientAddr, map[string]string{"kind": "client"}, http.StatusConflict},
		{"not admin", http.MethodPost, "/v1/admin/pause", &clientAddr, map[string]string{"module": "jobs"}, http.StatusForbidden},
		{"unknown escrow", http.MethodPost, "/v1/escrows/5/release", &clientAddr, nil, http.StatusNotFound},
		{"transfer to custody", http.MethodPost, "/v1/tokens/transfer", &clientAddr, map[string]string{"to": bank.ModuleAccount("jobs").Hex(), "amount": "10"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := h.do(tc.method, tc.path, tc.as, tc.body)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestPausedModuleReturnsServiceUnavailable(t *testing.T) {
	h := newHarness(t, RateLimit{})
	resp, body := h.do(http.MethodPost, "/v1/admin/pause", &adminAddr, map[string]string{"module": "escrow"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["paused"])

	resp, body = h.do(http.MethodPost, "/v1/escrows", &escrowMgrAddr, map[string]interface{}{
		"jobId":      1,
		"client":     clientAddr.Hex(),
		"freelancer": freelancerAddr.Hex(),
		"amount":     "10",
	})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "paused", body["category"])

	resp, body = h.do(http.MethodGet, "/v1/pauses/escrow", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["paused"])
}

func TestEscrowFlowOverHTTP(t *testing.T) {
	h := newHarness(t, RateLimit{})
	resp, _ := h.do(http.MethodPost, "/v1/tokens/approve", &clientAddr, map[string]string{"spender": "module:escrow", "amount": "300"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.do(http.MethodPost, "/v1/escrows", &escrowMgrAddr, map[string]interface{}{
		"jobId":      7,
		"client":     crypto.FormatIdentity(clientAddr),
		"freelancer": crypto.FormatIdentity(freelancerAddr),
		"amount":     "300",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "300", body["balance"])

	resp, body = h.do(http.MethodPost, "/v1/escrows/7/release", &clientAddr, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "released", body["status"])
	require.Equal(t, true, body["released"])

	resp, _ = h.do(http.MethodPost, "/v1/escrows/7/release", &clientAddr, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = h.do(http.MethodGet, "/v1/escrows/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "0", body["totalCustody"])
}

func TestRateLimitThrottlesPerCaller(t *testing.T) {
	h := newHarness(t, RateLimit{RequestsPerSecond: 0.001, Burst: 2})
	for i := 0; i < 2; i++ {
		resp, _ := h.do(http.MethodGet, "/v1/jobs/stats", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, fmt.Sprintf("request %d", i))
	}
	resp, _ := h.do(http.MethodGet, "/v1/jobs/stats", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = h.do(http.MethodPost, "/v1/tokens/transfer", &clientAddr, map[string]string{"to": freelancerAddr.Hex(), "amount": "1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEventStreamOverWebsocket(t *testing.T) {
	h := newHarness(t, RateLimit{})
	resp, _ := h.do(http.MethodPost, "/v1/tokens/transfer", &clientAddr, map[string]string{"to": freelancerAddr.Hex(), "amount": "5"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/v1/events/ws?cursor=0"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var update EventUpdateResponse
	require.NoError(t, json.Unmarshal(data, &update))
	require.Equal(t, uint64(1), update.Sequence)
	require.Equal(t, "bank.transfer", update.Type)
	require.Equal(t, "transfer", update.Operation)
}

func TestEventStreamFiltersByType(t *testing.T) {
	h := newHarness(t, RateLimit{})
	resp, _ := h.do(http.MethodPost, "/v1/tokens/transfer", &clientAddr, map[string]string{"to": freelancerAddr.Hex(), "amount": "5"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(http.MethodPost, "/v1/tokens/approve", &clientAddr, map[string]string{"spender": "module:jobs", "amount": "10"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/v1/events/ws?cursor=0&type=bank.approval"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var update EventUpdateResponse
	require.NoError(t, json.Unmarshal(data, &update))
	require.Equal(t, uint64(2), update.Sequence)
	require.Equal(t, "bank.approval", update.Type)
	require.Equal(t, "10", update.Attributes["amount"])
}
