package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/chainsync/service/approvals"
	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/metrics"
	"github.com/brojonat/chainsync/service/syncer"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the subset of the Ledger Store the API reads and writes.
type Store interface {
	AddWallet(ctx context.Context, params db.AddWalletParams) (*db.Wallet, bool, error)
	ListWallets(ctx context.Context, ownerID string) ([]*db.Wallet, error)
	RemoveWallet(ctx context.Context, ownerID string, c chain.Chain, address string) error
	GetSyncRun(ctx context.Context, id uuid.UUID) (*db.SyncRun, error)
	ListSyncRuns(ctx context.Context, params db.ListSyncRunsParams) ([]*db.SyncRun, error)
	ListTransfers(ctx context.Context, params db.ListTransfersParams) ([]*db.Transfer, error)
	CountTransfers(ctx context.Context, ownerID string) (int64, error)
}

// Syncer starts sync runs. *syncer.Orchestrator satisfies it.
type Syncer interface {
	Start(ctx context.Context, req syncer.Request, progress syncer.ProgressFunc) (*syncer.Run, error)
}

// ApprovalService runs approval checks and revocations. *approvals.Service satisfies it.
type ApprovalService interface {
	Check(ctx context.Context, req approvals.CheckRequest) (*db.TokenApproval, error)
	Revoke(ctx context.Context, ownerID string, id uuid.UUID) (*db.TokenApproval, error)
	Reapprove(ctx context.Context, ownerID string, id uuid.UUID, approvedAt time.Time) (*db.TokenApproval, error)
	List(ctx context.Context, filter db.ListTokenApprovalsParams) ([]*db.TokenApproval, error)
}

// AdapterSource resolves chain adapters for balance reads. *chain.Registry satisfies it.
type AdapterSource interface {
	Get(c chain.Chain) (chain.Adapter, error)
}

// Server represents the HTTP API.
type Server struct {
	addr         string
	store        Store
	syncer       Syncer
	approvals    ApprovalService
	adapters     AdapterSource
	ssePublisher *SSEPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The ssePublisher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, store Store, sync Syncer, approvalSvc ApprovalService, adapters AdapterSource, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		store:        store,
		syncer:       sync,
		approvals:    approvalSvc,
		adapters:     adapters,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger.With("component", "server"),
	}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Wallet routes
	route("POST /api/v1/wallets", "/api/v1/wallets", requireOwner(handleAddWallet(s.store, s.logger)))
	route("GET /api/v1/wallets", "/api/v1/wallets", requireOwner(handleListWallets(s.store, s.logger)))
	route("DELETE /api/v1/wallets/{chain}/{address}", "/api/v1/wallets/{chain}/{address}", requireOwner(handleRemoveWallet(s.store, s.logger)))
	route("GET /api/v1/wallets/{chain}/{address}/balances", "/api/v1/wallets/{chain}/{address}/balances", handleGetBalances(s.adapters, s.logger))

	// Sync routes
	route("POST /api/v1/sync", "/api/v1/sync", requireOwner(handleStartSync(s.syncer, s.logger)))
	route("GET /api/v1/sync-runs", "/api/v1/sync-runs", requireOwner(handleListSyncRuns(s.store, s.logger)))
	route("GET /api/v1/sync-runs/{id}", "/api/v1/sync-runs/{id}", requireOwner(handleGetSyncRun(s.store, s.logger)))

	// Ledger routes
	route("GET /api/v1/transfers", "/api/v1/transfers", requireOwner(handleListTransfers(s.store, s.logger)))

	// Approval routes
	route("GET /api/v1/approvals", "/api/v1/approvals", requireOwner(handleListApprovals(s.approvals, s.logger)))
	route("POST /api/v1/approvals/check", "/api/v1/approvals/check", requireOwner(handleCheckApproval(s.approvals, s.logger)))
	route("POST /api/v1/approvals/{id}/revoke", "/api/v1/approvals/{id}/revoke", requireOwner(handleRevokeApproval(s.approvals, s.logger)))
	route("POST /api/v1/approvals/{id}/reapprove", "/api/v1/approvals/{id}/reapprove", requireOwner(handleReapproveApproval(s.approvals, s.logger)))

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		route("GET /api/v1/stream/sync/{id}", "/api/v1/stream/sync/{id}", requireOwner(handleStreamSyncRun(s.ssePublisher, s.store, s.metrics, s.logger)))
		route("GET /api/v1/stream/transfers/{chain}/{address}", "/api/v1/stream/transfers/{chain}/{address}", requireOwner(handleStreamTransfers(s.ssePublisher, s.metrics, s.logger)))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// SSE responses stay open for the length of a run.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+OwnerHeader)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
