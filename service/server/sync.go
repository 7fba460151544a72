package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/syncer"
	"github.com/google/uuid"
)

type startSyncRequest struct {
	Chain     string  `json:"chain"`
	Address   string  `json:"address"`
	FromBlock *uint64 `json:"from_block,omitempty"`
	ToBlock   *uint64 `json:"to_block,omitempty"`
	MaxCount  int     `json:"max_count,omitempty"`
	Wait      bool    `json:"wait,omitempty"`
}

// handleStartSync returns a handler that starts a sync run.
// POST /api/v1/sync[?wait=true]
// wait may also be set in the body. Without it the run continues in the background and 202 is returned
// immediately with its id. With wait the response carries the final result.
func handleStartSync(s Syncer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req startSyncRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		c, err := parseChain(req.Chain)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateAddress(c, req.Address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.FromBlock != nil && req.ToBlock != nil && *req.FromBlock > *req.ToBlock {
			writeError(w, "from_block cannot be greater than to_block", http.StatusBadRequest)
			return
		}
		if req.MaxCount < 0 {
			writeError(w, "max_count cannot be negative", http.StatusBadRequest)
			return
		}

		owner := ownerID(r)
		run, err := s.Start(r.Context(), syncer.Request{
			OwnerID:       owner,
			Chain:         c,
			WalletAddress: chain.CanonicalAddress(c, req.Address),
			FromBlock:     req.FromBlock,
			ToBlock:       req.ToBlock,
			MaxCount:      req.MaxCount,
		}, nil)
		if err != nil {
			logger.Error("failed to start sync", "owner_id", owner, "chain", c, "address", req.Address, "error", err)
			writeError(w, "failed to start sync", http.StatusInternalServerError)
			return
		}

		logger.Info("sync started", "run_id", run.ID, "owner_id", owner, "chain", c, "address", req.Address)

		if !req.Wait && r.URL.Query().Get("wait") != "true" {
			writeJSON(w, map[string]interface{}{
				"run_id": run.ID,
				"status": db.SyncStatusPending,
			}, http.StatusAccepted)
			return
		}

		select {
		case <-run.Done():
		case <-r.Context().Done():
			// The run keeps going; the client can poll for it.
			return
		}

		result, err := run.Wait()
		if err != nil {
			logger.Warn("sync failed", "run_id", run.ID, "error", err)
		}
		writeJSON(w, result, http.StatusOK)
	})
}

// handleGetSyncRun returns a handler that reads one sync run.
// GET /api/v1/sync-runs/{id}
// Runs of other owners are reported as not found.
func handleGetSyncRun(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, "invalid run id", http.StatusBadRequest)
			return
		}

		run, err := store.GetSyncRun(r.Context(), id)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "sync run not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get sync run", "run_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if run.OwnerID != ownerID(r) {
			writeError(w, "sync run not found", http.StatusNotFound)
			return
		}

		writeJSON(w, run, http.StatusOK)
	})
}

// handleListSyncRuns returns a handler that lists the owner's recent runs.
// GET /api/v1/sync-runs?chain=C&address=A&limit=N
func handleListSyncRuns(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, address, err := chainAddressFilter(r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		limit, _, err := parseLimitOffset(r, 50)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		owner := ownerID(r)
		runs, err := store.ListSyncRuns(r.Context(), db.ListSyncRunsParams{
			OwnerID:       owner,
			Chain:         c,
			WalletAddress: address,
			Limit:         limit,
		})
		if err != nil {
			logger.Error("failed to list sync runs", "owner_id", owner, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []*db.SyncRun{}
		}

		writeJSON(w, map[string]interface{}{
			"sync_runs": runs,
			"count":     len(runs),
		}, http.StatusOK)
	})
}
