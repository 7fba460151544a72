// Package syncer drives wallet sync runs: it records the run, fetches
// transfers through the chain adapter, normalizes them, writes them to the
// ledger and reports progress along the way.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/ingest"
	"github.com/brojonat/chainsync/service/metrics"
	natspkg "github.com/brojonat/chainsync/service/nats"
	"github.com/google/uuid"
)

// Store is the subset of the Ledger Store used by a run.
type Store interface {
	CreateSyncRun(ctx context.Context, params db.CreateSyncRunParams) (*db.SyncRun, error)
	StartSyncRun(ctx context.Context, id uuid.UUID) error
	FinishSyncRun(ctx context.Context, params db.FinishSyncRunParams) error
	InsertTransfer(ctx context.Context, params db.InsertTransferParams) (bool, error)
	UpdateWalletLastSynced(ctx context.Context, ownerID string, c chain.Chain, address string, at time.Time) error
}

// AdapterSource resolves the adapter for a chain. *chain.Registry satisfies it.
type AdapterSource interface {
	Get(c chain.Chain) (chain.Adapter, error)
}

// Orchestrator starts and executes sync runs. Runs are independent; there
// is no lock across runs.
type Orchestrator struct {
	store     Store
	adapters  AdapterSource
	publisher natspkg.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher mirrors progress and imported transfers to NATS.
func WithPublisher(p natspkg.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithMetrics records run and record metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(store Store, adapters AdapterSource, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		adapters: adapters,
		logger:   logger.With("component", "syncer"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start records a new run and executes it in the background. If the run
// record cannot be created, Start returns a *PersistenceError and nothing
// else happens. Cancelling ctx after Start returns does not stop the run;
// its terminal state is always written.
func (o *Orchestrator) Start(ctx context.Context, req Request, progress ProgressFunc) (*Run, error) {
	if req.OwnerID == "" {
		return nil, errors.New("owner id is required")
	}
	if req.WalletAddress == "" {
		return nil, errors.New("wallet address is required")
	}

	rec, err := o.store.CreateSyncRun(ctx, db.CreateSyncRunParams{
		OwnerID:       req.OwnerID,
		WalletAddress: req.WalletAddress,
		Chain:         req.Chain,
		FromBlock:     req.FromBlock,
		ToBlock:       req.ToBlock,
	})
	if err != nil {
		return nil, &PersistenceError{Op: "create sync run", Err: err}
	}

	run := newRun(rec.ID)
	runCtx := context.WithoutCancel(ctx)
	go func() {
		var (
			result Result
			err    error
		)
		defer func() {
			if r := recover(); r != nil {
				result, err = o.recoverRun(runCtx, run.ID, req, r)
			}
			run.finish(result, err)
		}()
		result, err = o.execute(runCtx, run.ID, req, progress)
	}()
	return run, nil
}

// recoverRun fails a run whose goroutine panicked so it still gets its
// terminal write and its waiters are released.
func (o *Orchestrator) recoverRun(ctx context.Context, runID uuid.UUID, req Request, r any) (Result, error) {
	logger := o.logger.With(
		"run_id", runID,
		"chain", req.Chain,
		"wallet", req.WalletAddress,
	)
	err := fmt.Errorf("sync run panicked: %v", r)
	logger.ErrorContext(ctx, "sync run panicked", "panic", r, "stack", string(debug.Stack()))

	result := Result{RunID: runID, Status: db.SyncStatusFailed, Error: err.Error()}
	o.finish(ctx, logger, req, &result, o.now())
	return result, err
}

// Sync runs a sync to completion.
func (o *Orchestrator) Sync(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	run, err := o.Start(ctx, req, progress)
	if err != nil {
		return Result{}, err
	}
	return run.Wait()
}

func (o *Orchestrator) execute(ctx context.Context, runID uuid.UUID, req Request, progress ProgressFunc) (Result, error) {
	logger := o.logger.With(
		"run_id", runID,
		"chain", req.Chain,
		"wallet", req.WalletAddress,
	)
	started := o.now()
	if o.metrics != nil {
		defer o.metrics.SyncRunStarted()()
	}

	if err := o.store.StartSyncRun(ctx, runID); err != nil {
		logger.WarnContext(ctx, "failed to mark sync run in progress", "error", err)
	}

	result := Result{RunID: runID, Status: db.SyncStatusInProgress}
	emit := func() {
		o.report(ctx, logger, req, progress, Progress{
			RunID:    runID,
			Status:   result.Status,
			Imported: result.Imported,
			Total:    result.Total,
			Error:    result.Error,
		})
	}
	emit()

	natives, err := o.fetch(ctx, req)
	if err != nil {
		logger.ErrorContext(ctx, "sync run failed", "error", err)
		result.Status = db.SyncStatusFailed
		result.Error = err.Error()
		o.finish(ctx, logger, req, &result, started)
		emit()
		return result, err
	}

	if len(natives) > 0 {
		o.process(ctx, logger, runID, req, natives, &result, emit)
	}

	result.Status = db.SyncStatusCompleted
	o.finish(ctx, logger, req, &result, started)
	emit()

	logger.InfoContext(ctx, "sync run completed",
		"imported", result.Imported,
		"inserted", result.Inserted,
		"failed", result.Failed,
		"duplicates", result.Duplicates,
	)
	return result, nil
}

// fetch dispatches to the chain's adapter. EVM providers filter by side, so
// outgoing and incoming are queried in turn and concatenated. Solana
// signatures cover both sides in one query.
func (o *Orchestrator) fetch(ctx context.Context, req Request) ([]chain.Native, error) {
	adapter, err := o.adapters.Get(req.Chain)
	if err != nil {
		return nil, err
	}
	opts := chain.FetchOptions{
		MaxCount:  req.MaxCount,
		FromBlock: req.FromBlock,
		ToBlock:   req.ToBlock,
	}

	if req.Chain.Family() != chain.FamilyEVM {
		return adapter.FetchTransfers(ctx, req.WalletAddress, chain.DirectionBoth, opts)
	}

	sent, err := adapter.FetchTransfers(ctx, req.WalletAddress, chain.DirectionOutgoing, opts)
	if err != nil {
		return nil, err
	}
	received, err := adapter.FetchTransfers(ctx, req.WalletAddress, chain.DirectionIncoming, opts)
	if err != nil {
		return nil, err
	}
	return append(sent, received...), nil
}

// process normalizes, deduplicates and writes records one at a time. A
// failing record is logged and skipped.
func (o *Orchestrator) process(ctx context.Context, logger *slog.Logger, runID uuid.UUID, req Request, natives []chain.Native, result *Result, emit func()) {
	records := make([]ingest.TransferRecord, 0, len(natives))
	for _, n := range natives {
		rec, err := ingest.Normalize(req.Chain, n)
		if err != nil {
			o.recordFailure(ctx, logger, req, result, &PerRecordError{Hash: ingest.NativeHash(n), Stage: "normalize", Err: err})
			continue
		}
		records = append(records, rec)
	}

	unique := ingest.Dedupe(records)
	result.Duplicates = len(records) - len(unique)
	result.Total = len(unique)
	if o.metrics != nil && result.Duplicates > 0 {
		o.metrics.RecordDuplicates(string(req.Chain), result.Duplicates)
	}

	for _, rec := range unique {
		direction := rec.Direction(req.WalletAddress)
		inserted, err := o.store.InsertTransfer(ctx, db.InsertTransferParams{
			OwnerID:       req.OwnerID,
			WalletAddress: req.WalletAddress,
			Direction:     direction,
			SyncRunID:     runID,
			Record:        rec,
		})
		if err != nil {
			o.recordFailure(ctx, logger, req, result, &PerRecordError{Hash: rec.Hash, Stage: "store", Err: err})
			continue
		}

		result.Imported++
		if inserted {
			result.Inserted++
		}
		if o.metrics != nil {
			o.metrics.RecordLedgerWrite(string(req.Chain), inserted)
			o.metrics.RecordRecordImported(string(req.Chain), direction)
		}
		if inserted && o.publisher != nil {
			err := o.publisher.PublishTransfer(ctx, &natspkg.TransferEvent{
				RunID:         runID,
				OwnerID:       req.OwnerID,
				WalletAddress: req.WalletAddress,
				Direction:     direction,
				Transfer:      rec,
			})
			if err != nil {
				logger.WarnContext(ctx, "failed to publish transfer event", "hash", rec.Hash, "error", err)
			}
		}
		emit()
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, logger *slog.Logger, req Request, result *Result, err *PerRecordError) {
	result.Failed++
	logger.WarnContext(ctx, "skipping transfer record", "hash", err.Hash, "stage", err.Stage, "error", err.Err)
	if o.metrics != nil {
		o.metrics.RecordRecordFailed(string(req.Chain), err.Stage)
	}
}

// finish writes the terminal state. Failures here are logged only: progress
// already reported is never retracted.
func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, req Request, result *Result, started time.Time) {
	completedAt := o.now()
	params := db.FinishSyncRunParams{
		ID:            result.RunID,
		Status:        result.Status,
		ImportedCount: result.Imported,
		CompletedAt:   completedAt,
	}
	if result.Error != "" {
		msg := result.Error
		params.ErrorMessage = &msg
	}
	if err := o.store.FinishSyncRun(ctx, params); err != nil {
		logger.ErrorContext(ctx, "failed to record sync run terminal state",
			"status", result.Status,
			"error", &PersistenceError{Op: "finish sync run", Err: err},
		)
	}

	if result.Status == db.SyncStatusCompleted {
		if err := o.store.UpdateWalletLastSynced(ctx, req.OwnerID, req.Chain, req.WalletAddress, completedAt); err != nil {
			logger.WarnContext(ctx, "failed to update wallet last synced", "error", err)
		}
	}

	if o.metrics != nil {
		o.metrics.RecordSyncRun(string(req.Chain), string(result.Status), completedAt.Sub(started).Seconds())
	}
}

func (o *Orchestrator) report(ctx context.Context, logger *slog.Logger, req Request, progress ProgressFunc, p Progress) {
	if progress != nil {
		progress(p)
	}
	if o.publisher == nil {
		return
	}
	err := o.publisher.PublishProgress(ctx, &natspkg.SyncProgressEvent{
		RunID:         p.RunID,
		OwnerID:       req.OwnerID,
		WalletAddress: req.WalletAddress,
		Chain:         req.Chain,
		Status:        string(p.Status),
		Imported:      p.Imported,
		Total:         p.Total,
		Error:         p.Error,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to publish progress", "status", p.Status, "error", err)
	}
}
