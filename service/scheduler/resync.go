// Package scheduler periodically starts a sync run for every active wallet.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/metrics"
	"github.com/brojonat/chainsync/service/syncer"
	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"
)

// ErrPassInProgress is returned by RunOnce while another pass is running.
var ErrPassInProgress = errors.New("resync pass already in progress")

// Store lists the wallets a pass visits.
type Store interface {
	ListActiveWallets(ctx context.Context) ([]*db.Wallet, error)
}

// Syncer starts sync runs.
type Syncer interface {
	Start(ctx context.Context, req syncer.Request, progress syncer.ProgressFunc) (*syncer.Run, error)
}

// Config controls a Resyncer.
type Config struct {
	// Interval between passes.
	Interval time.Duration
	// MinAge skips wallets synced more recently than this.
	MinAge time.Duration
	// Concurrency caps the runs executing at once within a pass.
	Concurrency int
	// MaxCount is passed to every run. Zero means the adapter default.
	MaxCount int
	// Chains with a configured adapter. Wallets on other chains are skipped.
	Chains []chain.Chain
}

// Summary describes one pass.
type Summary struct {
	Wallets   int `json:"wallets"`
	Started   int `json:"started"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Resyncer runs resync passes, either on demand or on a gocron schedule.
type Resyncer struct {
	store     Store
	sync      Syncer
	cfg       Config
	supported map[chain.Chain]bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	running atomic.Bool
	sched   gocron.Scheduler
}

// Option configures a Resyncer.
type Option func(*Resyncer)

// WithMetrics records pass and wallet outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resyncer) { r.metrics = m }
}

// WithClock overrides the clock used for MinAge checks.
func WithClock(now func() time.Time) Option {
	return func(r *Resyncer) { r.now = now }
}

// New creates a Resyncer.
func New(store Store, s Syncer, cfg Config, logger *slog.Logger, opts ...Option) *Resyncer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	supported := make(map[chain.Chain]bool, len(cfg.Chains))
	for _, c := range cfg.Chains {
		supported[c] = true
	}
	r := &Resyncer{
		store:     store,
		sync:      s,
		cfg:       cfg,
		supported: supported,
		logger:    logger.With("component", "resync"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce starts a run for every eligible active wallet and waits for all of
// them to finish. Individual run failures are counted, not returned.
func (r *Resyncer) RunOnce(ctx context.Context) (Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Summary{}, ErrPassInProgress
	}
	defer r.running.Store(false)

	start := r.now()
	wallets, err := r.store.ListActiveWallets(ctx)
	if err != nil {
		r.recordPass("error")
		return Summary{}, fmt.Errorf("failed to list active wallets: %w", err)
	}

	var (
		mu      sync.Mutex
		summary = Summary{Wallets: len(wallets)}
	)
	count := func(c chain.Chain, outcome string) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case "skipped":
			summary.Skipped++
		case "completed":
			summary.Completed++
		case "failed":
			summary.Failed++
		}
		if r.metrics != nil {
			r.metrics.RecordResyncWallet(string(c), outcome)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)

	for _, w := range wallets {
		if ctx.Err() != nil {
			break
		}
		if reason := r.skipReason(w, start); reason != "" {
			r.logger.DebugContext(ctx, "skipping wallet",
				"chain", w.Chain,
				"address", w.Address,
				"reason", reason,
			)
			count(w.Chain, "skipped")
			continue
		}

		g.Go(func() error {
			run, err := r.sync.Start(ctx, syncer.Request{
				OwnerID:       w.OwnerID,
				Chain:         w.Chain,
				WalletAddress: w.Address,
				MaxCount:      r.cfg.MaxCount,
			}, nil)
			if err != nil {
				r.logger.ErrorContext(ctx, "failed to start resync",
					"owner_id", w.OwnerID,
					"chain", w.Chain,
					"address", w.Address,
					"error", err,
				)
				count(w.Chain, "failed")
				return nil
			}

			mu.Lock()
			summary.Started++
			mu.Unlock()

			result, err := run.Wait()
			if err != nil || result.Status == db.SyncStatusFailed {
				r.logger.WarnContext(ctx, "resync run failed",
					"run_id", run.ID,
					"chain", w.Chain,
					"address", w.Address,
					"error", result.Error,
				)
				count(w.Chain, "failed")
				return nil
			}
			count(w.Chain, "completed")
			return nil
		})
	}
	g.Wait()

	status := "success"
	if ctx.Err() != nil {
		status = "cancelled"
	}
	r.recordPass(status)
	r.logger.InfoContext(ctx, "resync pass finished",
		"wallets", summary.Wallets,
		"started", summary.Started,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", r.now().Sub(start),
	)
	return summary, ctx.Err()
}

func (r *Resyncer) skipReason(w *db.Wallet, now time.Time) string {
	if !r.supported[w.Chain] {
		return "no adapter configured"
	}
	if r.cfg.MinAge > 0 && w.LastSyncedAt != nil && now.Sub(*w.LastSyncedAt) < r.cfg.MinAge {
		return "synced recently"
	}
	return ""
}

func (r *Resyncer) recordPass(status string) {
	if r.metrics != nil {
		r.metrics.RecordResyncPass(status)
	}
}

// Start schedules a pass every Interval, the first one immediately. Passes
// never overlap: a pass still running when the next is due delays it.
// Passes run with ctx, so cancelling it stops new runs from being started.
func (r *Resyncer) Start(ctx context.Context) error {
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("resync interval must be positive")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(r.cfg.Interval),
		gocron.NewTask(func() {
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.ErrorContext(ctx, "resync pass failed", "error", err)
			}
		}),
		gocron.WithName("resync-active-wallets"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to schedule resync job: %w", err)
	}

	s.Start()
	r.sched = s
	r.logger.InfoContext(ctx, "resync scheduled",
		"interval", r.cfg.Interval,
		"min_age", r.cfg.MinAge,
		"concurrency", r.cfg.Concurrency,
		"chains", r.cfg.Chains,
	)
	return nil
}

// Shutdown stops the schedule. A running pass is given gocron's stop
// timeout to return; runs it already started still finish on their own.
func (r *Resyncer) Shutdown() error {
	if r.sched == nil {
		return nil
	}
	return r.sched.Shutdown()
}
