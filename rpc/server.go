package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gigchain/core"
	"gigchain/storage/audit"
)

// AuditLog is the read side of the event audit store.
type AuditLog interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// Config wires the API surface.
type Config struct {
	Auth      AuthConfig
	RateLimit RateLimit
	Audit     AuditLog
	Logger    *slog.Logger
	// RequestTimeout bounds non-streaming handlers. Zero uses 15s.
	RequestTimeout time.Duration
}

// Server exposes the node over HTTP JSON with a websocket event stream.
type Server struct {
	node    *core.Node
	audit   AuditLog
	logger  *slog.Logger
	auth    *authenticator
	limiter *rateLimiter
	timeout time.Duration
	handler http.Handler
	httpSrv *http.Server
}

func NewServer(node *core.Node, cfg Config) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		audit:   cfg.Audit,
		logger:  logger,
		auth:    newAuthenticator(cfg.Auth, logger),
		limiter: newRateLimiter(cfg.RateLimit),
		timeout: cfg.RequestTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = 15 * time.Second
	}
	s.handler = otelhttp.NewHandler(s.routes(), "gigchain-rpc")
	return s, nil
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		// Reads and the event stream are public.
		v1.Group(func(pub chi.Router) {
			pub.Use(s.limiter.middleware("read"))
			pub.Get("/events/ws", s.handleEventsWS)
			pub.Group(func(rd chi.Router) {
				rd.Use(chimiddleware.Timeout(s.timeout))
				rd.Get("/accounts/{address}", s.handleGetAccount)
				rd.Get("/accounts/{address}/reputation", s.handleGetReputation)
				rd.Get("/jobs/stats", s.handleJobStats)
				rd.Get("/jobs/{id}", s.handleGetJob)
				rd.Get("/jobs/{id}/proposals", s.handleGetProposals)
				rd.Get("/escrows/stats", s.handleEscrowStats)
				rd.Get("/escrows/{jobID}", s.handleGetEscrow)
				rd.Get("/roles/{role}", s.handleGetRole)
				rd.Get("/pauses/{module}", s.handleGetPause)
				rd.Get("/audit", s.handleAudit)
			})
		})

		v1.Group(func(w chi.Router) {
			w.Use(s.auth.middleware)
			w.Use(s.limiter.middleware("write"))
			w.Use(chimiddleware.Timeout(s.timeout))

			w.Post("/identities", s.handleRegister)
			w.Post("/tokens/transfer", s.handleTransfer)
			w.Post("/tokens/approve", s.handleApprove)

			w.Post("/jobs", s.handleCreateJob)
			w.Post("/jobs/{id}/proposals", s.handleSubmitProposal)
			w.Post("/jobs/{id}/hire", s.handleHire)
			w.Post("/jobs/{id}/complete", s.handleCompleteJob)
			w.Post("/jobs/{id}/cancel", s.handleCancelJob)
			w.Post("/jobs/{id}/dispute", s.handleJobDispute)
			w.Post("/jobs/{id}/resolve", s.handleJobResolve)
			w.Post("/jobs/{id}/deadline", s.handleExtendDeadline)
			w.Post("/jobs/{id}/budget", s.handleIncreaseBudget)

			w.Post("/escrows", s.handleCreateEscrow)
			w.Post("/escrows/{jobID}/funds", s.handleAddFunds)
			w.Post("/escrows/{jobID}/release", s.handleRelease)
			w.Post("/escrows/{jobID}/refund", s.handleRefund)
			w.Post("/escrows/{jobID}/dispute", s.handleEscrowDispute)
			w.Post("/escrows/{jobID}/resolve", s.handleEscrowResolve)

			w.Post("/admin/roles/grant", s.handleGrantRole)
			w.Post("/admin/roles/revoke", s.handleRevokeRole)
			w.Post("/admin/pause", s.handlePause)
			w.Post("/admin/unpause", s.handleUnpause)
		})
	})
	return r
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	s.httpSrv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("api listening", slog.String("listen", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Serve(listener)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		return nil
	}
}
