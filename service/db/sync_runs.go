package db

import (
	"context"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db/dbgen"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// SyncStatus is the lifecycle state of a sync run.
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusCompleted  SyncStatus = "completed"
	SyncStatusFailed     SyncStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s SyncStatus) Terminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed
}

// SyncRun is one invocation of the sync process for a (wallet, chain) pair.
type SyncRun struct {
	ID            uuid.UUID   `json:"id"`
	OwnerID       string      `json:"owner_id"`
	WalletAddress string      `json:"wallet_address"`
	Chain         chain.Chain `json:"chain"`
	Status        SyncStatus  `json:"status"`
	StartedAt     time.Time   `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	ImportedCount int         `json:"imported_count"`
	ErrorMessage  *string     `json:"error_message,omitempty"`
	FromBlock     *uint64     `json:"from_block,omitempty"`
	ToBlock       *uint64     `json:"to_block,omitempty"`
}

// CreateSyncRunParams contains the parameters for creating a sync run.
// A zero ID is replaced with a fresh random one.
type CreateSyncRunParams struct {
	ID            uuid.UUID
	OwnerID       string
	WalletAddress string
	Chain         chain.Chain
	FromBlock     *uint64
	ToBlock       *uint64
}

// FinishSyncRunParams contains the terminal state of a sync run.
type FinishSyncRunParams struct {
	ID            uuid.UUID
	Status        SyncStatus
	ImportedCount int
	ErrorMessage  *string
	CompletedAt   time.Time
}

// ListSyncRunsParams filters sync runs. Nil filters match everything.
type ListSyncRunsParams struct {
	OwnerID       string
	Chain         *chain.Chain
	WalletAddress *string
	Limit         int32
}

// CreateSyncRun inserts a run in the pending state.
func (s *Store) CreateSyncRun(ctx context.Context, params CreateSyncRunParams) (*SyncRun, error) {
	id := params.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	start := time.Now()
	result, err := s.q.CreateSyncRun(ctx, dbgen.CreateSyncRunParams{
		ID:            pguuid(id),
		OwnerID:       params.OwnerID,
		WalletAddress: chain.CanonicalAddress(params.Chain, params.WalletAddress),
		Chain:         string(params.Chain),
		FromBlock:     pgint8FromUint64Ptr(params.FromBlock),
		ToBlock:       pgint8FromUint64Ptr(params.ToBlock),
	})
	s.observe("insert", "sync_runs", start, err)
	if err != nil {
		return nil, err
	}
	return dbSyncRunToDomain(&result), nil
}

// StartSyncRun moves a run from pending to in_progress.
func (s *Store) StartSyncRun(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	n, err := s.q.StartSyncRun(ctx, pguuid(id))
	s.observe("update", "sync_runs", start, err)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// FinishSyncRun writes the run's terminal state. The update only applies to
// a run that is not yet terminal, so a second call returns ErrInvalidTransition.
func (s *Store) FinishSyncRun(ctx context.Context, params FinishSyncRunParams) error {
	if !params.Status.Terminal() {
		return ErrInvalidTransition
	}
	start := time.Now()
	n, err := s.q.FinishSyncRun(ctx, dbgen.FinishSyncRunParams{
		ID:            pguuid(params.ID),
		Status:        string(params.Status),
		ImportedCount: int32(params.ImportedCount),
		ErrorMessage:  pgtextFromStringPtr(params.ErrorMessage),
		CompletedAt:   pgtype.Timestamptz{Time: params.CompletedAt, Valid: true},
	})
	s.observe("update", "sync_runs", start, err)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// GetSyncRun retrieves a run by id.
func (s *Store) GetSyncRun(ctx context.Context, id uuid.UUID) (*SyncRun, error) {
	start := time.Now()
	result, err := s.q.GetSyncRun(ctx, pguuid(id))
	s.observe("select", "sync_runs", start, err)
	if err != nil {
		return nil, notFound(err)
	}
	return dbSyncRunToDomain(&result), nil
}

// ListSyncRuns retrieves an owner's runs, newest first.
func (s *Store) ListSyncRuns(ctx context.Context, params ListSyncRunsParams) ([]*SyncRun, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	arg := dbgen.ListSyncRunsParams{
		OwnerID:       params.OwnerID,
		WalletAddress: pgtextFromStringPtr(params.WalletAddress),
		LimitCount:    limit,
	}
	if params.Chain != nil {
		arg.Chain = pgtype.Text{String: string(*params.Chain), Valid: true}
		if params.WalletAddress != nil {
			addr := chain.CanonicalAddress(*params.Chain, *params.WalletAddress)
			arg.WalletAddress = pgtype.Text{String: addr, Valid: true}
		}
	}

	start := time.Now()
	results, err := s.q.ListSyncRuns(ctx, arg)
	s.observe("select", "sync_runs", start, err)
	if err != nil {
		return nil, err
	}

	runs := make([]*SyncRun, len(results))
	for i := range results {
		runs[i] = dbSyncRunToDomain(&results[i])
	}
	return runs, nil
}

func dbSyncRunToDomain(db *dbgen.SyncRun) *SyncRun {
	return &SyncRun{
		ID:            uuidFromPg(db.ID),
		OwnerID:       db.OwnerID,
		WalletAddress: db.WalletAddress,
		Chain:         chain.Chain(db.Chain),
		Status:        SyncStatus(db.Status),
		StartedAt:     db.StartedAt.Time,
		CompletedAt:   timePtrFromPgTimestamptz(db.CompletedAt),
		ImportedCount: int(db.ImportedCount),
		ErrorMessage:  stringPtrFromPgtext(db.ErrorMessage),
		FromBlock:     uint64PtrFromPgint8(db.FromBlock),
		ToBlock:       uint64PtrFromPgint8(db.ToBlock),
	}
}
