package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db/dbgen"
	"github.com/brojonat/chainsync/service/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a sync run update would move its
	// status backwards or write a second terminal state.
	ErrInvalidTransition = errors.New("invalid sync run status transition")
)

// Store provides database operations for the service.
// It wraps the generated sqlc queries with domain types.
type Store struct {
	pool    *pgxpool.Pool
	q       *dbgen.Queries
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If m is nil, no query metrics are recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		q:       dbgen.New(pool),
		metrics: m,
	}
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) observe(op, table string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	s.metrics.RecordDBQuery(op, table, time.Since(start).Seconds(), err)
}

// notFound maps pgx.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Wallet is a tracked (owner, chain, address) triple.
type Wallet struct {
	ID           uuid.UUID   `json:"id"`
	OwnerID      string      `json:"owner_id"`
	Chain        chain.Chain `json:"chain"`
	Address      string      `json:"address"`
	Label        *string     `json:"label,omitempty"`
	Kind         WalletKind  `json:"kind"`
	Active       bool        `json:"active"`
	LastSyncedAt *time.Time  `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// WalletKind records how a wallet entered the system.
type WalletKind string

const (
	// WalletKindWatch is an address added explicitly for read-only tracking.
	WalletKindWatch WalletKind = "watch"
	// WalletKindConnected is an address linked through a signing wallet.
	WalletKindConnected WalletKind = "connected"
)

// AddWalletParams contains the parameters for registering a wallet.
type AddWalletParams struct {
	OwnerID string
	Chain   chain.Chain
	Address string
	Label   *string
	// Kind defaults to WalletKindWatch.
	Kind WalletKind
}

// AddWallet registers a wallet. Registering an existing (owner, chain,
// address) is not an error: the existing row is reactivated and returned
// with created=false.
func (s *Store) AddWallet(ctx context.Context, params AddWalletParams) (*Wallet, bool, error) {
	address := chain.CanonicalAddress(params.Chain, params.Address)
	kind := params.Kind
	if kind == "" {
		kind = WalletKindWatch
	}
	start := time.Now()
	result, err := s.q.CreateWallet(ctx, dbgen.CreateWalletParams{
		ID:      pguuid(uuid.New()),
		OwnerID: params.OwnerID,
		Chain:   string(params.Chain),
		Address: address,
		Label:   pgtextFromStringPtr(params.Label),
		Kind:    string(kind),
	})
	if err == nil {
		s.observe("insert", "wallets", start, nil)
		return dbWalletToDomain(&result), true, nil
	}
	if !isUniqueViolation(err) {
		s.observe("insert", "wallets", start, err)
		return nil, false, fmt.Errorf("failed to create wallet: %w", err)
	}
	s.observe("insert", "wallets", start, nil)

	start = time.Now()
	existing, err := s.q.ReactivateWallet(ctx, dbgen.ReactivateWalletParams{
		Label:   pgtextFromStringPtr(params.Label),
		OwnerID: params.OwnerID,
		Chain:   string(params.Chain),
		Address: address,
	})
	s.observe("update", "wallets", start, err)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing wallet: %w", notFound(err))
	}
	return dbWalletToDomain(&existing), false, nil
}

// GetWallet retrieves a wallet by owner, chain and address.
func (s *Store) GetWallet(ctx context.Context, ownerID string, c chain.Chain, address string) (*Wallet, error) {
	start := time.Now()
	result, err := s.q.GetWallet(ctx, dbgen.GetWalletParams{
		OwnerID: ownerID,
		Chain:   string(c),
		Address: chain.CanonicalAddress(c, address),
	})
	s.observe("select", "wallets", start, err)
	if err != nil {
		return nil, notFound(err)
	}
	return dbWalletToDomain(&result), nil
}

// ListWallets retrieves an owner's active wallets.
func (s *Store) ListWallets(ctx context.Context, ownerID string) ([]*Wallet, error) {
	start := time.Now()
	results, err := s.q.ListWalletsByOwner(ctx, ownerID)
	s.observe("select", "wallets", start, err)
	if err != nil {
		return nil, err
	}

	wallets := make([]*Wallet, len(results))
	for i := range results {
		wallets[i] = dbWalletToDomain(&results[i])
	}
	return wallets, nil
}

// ListActiveWallets retrieves every active wallet across owners.
func (s *Store) ListActiveWallets(ctx context.Context) ([]*Wallet, error) {
	start := time.Now()
	results, err := s.q.ListActiveWallets(ctx)
	s.observe("select", "wallets", start, err)
	if err != nil {
		return nil, err
	}

	wallets := make([]*Wallet, len(results))
	for i := range results {
		wallets[i] = dbWalletToDomain(&results[i])
	}
	return wallets, nil
}

// RemoveWallet soft-deletes a wallet. Sync history and approvals are kept.
func (s *Store) RemoveWallet(ctx context.Context, ownerID string, c chain.Chain, address string) error {
	start := time.Now()
	n, err := s.q.DeactivateWallet(ctx, dbgen.DeactivateWalletParams{
		OwnerID: ownerID,
		Chain:   string(c),
		Address: chain.CanonicalAddress(c, address),
	})
	s.observe("update", "wallets", start, err)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWalletLastSynced records the completion time of a successful sync.
func (s *Store) UpdateWalletLastSynced(ctx context.Context, ownerID string, c chain.Chain, address string, at time.Time) error {
	start := time.Now()
	n, err := s.q.UpdateWalletLastSynced(ctx, dbgen.UpdateWalletLastSyncedParams{
		OwnerID:      ownerID,
		Chain:        string(c),
		Address:      chain.CanonicalAddress(c, address),
		LastSyncedAt: pgtype.Timestamptz{Time: at, Valid: true},
	})
	s.observe("update", "wallets", start, err)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func dbWalletToDomain(db *dbgen.Wallet) *Wallet {
	return &Wallet{
		ID:           uuidFromPg(db.ID),
		OwnerID:      db.OwnerID,
		Chain:        chain.Chain(db.Chain),
		Address:      db.Address,
		Label:        stringPtrFromPgtext(db.Label),
		Kind:         WalletKind(db.Kind),
		Active:       db.Active,
		LastSyncedAt: timePtrFromPgTimestamptz(db.LastSyncedAt),
		CreatedAt:    db.CreatedAt.Time,
		UpdatedAt:    db.UpdatedAt.Time,
	}
}

// Helper functions to convert between sqlc types and domain types

func pguuid(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func uuidFromPg(u pgtype.UUID) uuid.UUID {
	if !u.Valid {
		return uuid.Nil
	}
	return uuid.UUID(u.Bytes)
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func pgtimestamptzFromTimePtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtrFromPgTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func pgint8FromUint64Ptr(v *uint64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: int64(*v), Valid: true}
}

func uint64PtrFromPgint8(v pgtype.Int8) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}

func pgint4FromIntPtr(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func intPtrFromPgint4(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int32)
	return &i
}
