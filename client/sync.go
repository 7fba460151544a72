package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// SyncRequest starts a sync for one wallet.
type SyncRequest struct {
	Chain     string  `json:"chain"`
	Address   string  `json:"address"`
	FromBlock *uint64 `json:"from_block,omitempty"`
	ToBlock   *uint64 `json:"to_block,omitempty"`
	MaxCount  int     `json:"max_count,omitempty"`
}

// SyncResult is the outcome of a finished run.
type SyncResult struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Imported   int    `json:"imported"`
	Total      int    `json:"total"`
	Failed     int    `json:"failed"`
	Duplicates int    `json:"duplicates"`
	Inserted   int    `json:"inserted"`
	Error      string `json:"error,omitempty"`
}

// SyncRun is a stored sync run.
type SyncRun struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	WalletAddress string     `json:"wallet_address"`
	Chain         string     `json:"chain"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ImportedCount int        `json:"imported_count"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	FromBlock     *uint64    `json:"from_block,omitempty"`
	ToBlock       *uint64    `json:"to_block,omitempty"`
}

// Terminal reports whether the run has finished.
func (r *SyncRun) Terminal() bool {
	return r.Status == "completed" || r.Status == "failed"
}

// RunFilter narrows run and ledger listings. Zero values match everything.
type RunFilter struct {
	Chain   string
	Address string
	Limit   int
	Offset  int
}

func (f RunFilter) query() string {
	q := url.Values{}
	if f.Chain != "" {
		q.Set("chain", f.Chain)
	}
	if f.Address != "" {
		q.Set("address", f.Address)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// StartSync starts a background sync and returns its run id.
func (c *Client) StartSync(ctx context.Context, req SyncRequest) (string, error) {
	var resp struct {
		RunID string `json:"run_id"`
	}
	if _, err := c.do(ctx, "POST", "/api/v1/sync", req, &resp, http.StatusAccepted); err != nil {
		return "", err
	}
	c.logger.Debug("sync started", "run_id", resp.RunID, "chain", req.Chain, "address", req.Address)
	return resp.RunID, nil
}

// Sync starts a sync and blocks until it finishes. The client timeout must
// cover the whole run.
func (c *Client) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	var result SyncResult
	if _, err := c.do(ctx, "POST", "/api/v1/sync?wait=true", req, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSyncRun reads one run.
func (c *Client) GetSyncRun(ctx context.Context, runID string) (*SyncRun, error) {
	var run SyncRun
	if _, err := c.do(ctx, "GET", "/api/v1/sync-runs/"+url.PathEscape(runID), nil, &run, http.StatusOK); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListSyncRuns lists the owner's recent runs, newest first.
func (c *Client) ListSyncRuns(ctx context.Context, filter RunFilter) ([]*SyncRun, error) {
	var resp struct {
		SyncRuns []*SyncRun `json:"sync_runs"`
	}
	filter.Offset = 0
	if _, err := c.do(ctx, "GET", "/api/v1/sync-runs"+filter.query(), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.SyncRuns, nil
}

// WaitForRun polls a run until it is terminal.
func (c *Client) WaitForRun(ctx context.Context, runID string, interval time.Duration) (*SyncRun, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		run, err := c.GetSyncRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run.Terminal() {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for run %s: %w", runID, ctx.Err())
		case <-ticker.C:
		}
	}
}
