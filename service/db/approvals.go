package db

import (
	"context"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db/dbgen"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// TokenApproval is a stored allowance snapshot for one (token, spender) pair.
type TokenApproval struct {
	ID             uuid.UUID   `json:"id"`
	OwnerID        string      `json:"owner_id"`
	WalletAddress  string      `json:"wallet_address"`
	Chain          chain.Chain `json:"chain"`
	TokenAddress   string      `json:"token_address"`
	TokenName      *string     `json:"token_name,omitempty"`
	TokenSymbol    *string     `json:"token_symbol,omitempty"`
	SpenderAddress string      `json:"spender_address"`
	SpenderName    *string     `json:"spender_name,omitempty"`
	Allowance      *string     `json:"allowance,omitempty"`
	IsUnlimited    bool        `json:"is_unlimited"`
	RiskLevel      string      `json:"risk_level"`
	ApprovedAt     *time.Time  `json:"approved_at,omitempty"`
	LastCheckedAt  time.Time   `json:"last_checked_at"`
	IsRevoked      bool        `json:"is_revoked"`
	RevokedAt      *time.Time  `json:"revoked_at,omitempty"`
	RevokeTxHash   *string     `json:"revoke_tx_hash,omitempty"`
}

// UpsertTokenApprovalParams is a fresh allowance observation.
type UpsertTokenApprovalParams struct {
	OwnerID        string
	WalletAddress  string
	Chain          chain.Chain
	TokenAddress   string
	TokenName      *string
	TokenSymbol    *string
	SpenderAddress string
	SpenderName    *string
	Allowance      *string
	IsUnlimited    bool
	RiskLevel      string
	ApprovedAt     *time.Time
	CheckedAt      time.Time
}

// ListTokenApprovalsParams filters approvals. Revoked approvals are excluded
// unless IncludeRevoked is set.
type ListTokenApprovalsParams struct {
	OwnerID        string
	IncludeRevoked bool
	Chain          *chain.Chain
	WalletAddress  *string
}

// ReapproveParams describes a new approval observed after a revocation.
type ReapproveParams struct {
	ID          uuid.UUID
	OwnerID     string
	Allowance   *string
	IsUnlimited bool
	ApprovedAt  time.Time
}

// UpsertTokenApproval stores a snapshot. An existing row keeps its id and its
// revocation state; nil metadata does not overwrite known values.
func (s *Store) UpsertTokenApproval(ctx context.Context, params UpsertTokenApprovalParams) (*TokenApproval, error) {
	c := params.Chain
	start := time.Now()
	result, err := s.q.UpsertTokenApproval(ctx, dbgen.UpsertTokenApprovalParams{
		ID:             pguuid(uuid.New()),
		OwnerID:        params.OwnerID,
		WalletAddress:  chain.CanonicalAddress(c, params.WalletAddress),
		Chain:          string(c),
		TokenAddress:   chain.CanonicalAddress(c, params.TokenAddress),
		TokenName:      pgtextFromStringPtr(params.TokenName),
		TokenSymbol:    pgtextFromStringPtr(params.TokenSymbol),
		SpenderAddress: chain.CanonicalAddress(c, params.SpenderAddress),
		SpenderName:    pgtextFromStringPtr(params.SpenderName),
		Allowance:      pgtextFromStringPtr(params.Allowance),
		IsUnlimited:    params.IsUnlimited,
		RiskLevel:      params.RiskLevel,
		ApprovedAt:     pgtimestamptzFromTimePtr(params.ApprovedAt),
		LastCheckedAt:  pgtype.Timestamptz{Time: params.CheckedAt, Valid: true},
	})
	s.observe("upsert", "token_approvals", start, err)
	if err != nil {
		return nil, err
	}
	return dbTokenApprovalToDomain(&result), nil
}

// GetTokenApproval retrieves an owner's approval by id.
func (s *Store) GetTokenApproval(ctx context.Context, ownerID string, id uuid.UUID) (*TokenApproval, error) {
	start := time.Now()
	result, err := s.q.GetTokenApproval(ctx, dbgen.GetTokenApprovalParams{
		ID:      pguuid(id),
		OwnerID: ownerID,
	})
	s.observe("select", "token_approvals", start, err)
	if err != nil {
		return nil, notFound(err)
	}
	return dbTokenApprovalToDomain(&result), nil
}

// ListTokenApprovals retrieves approvals, unlimited ones first.
func (s *Store) ListTokenApprovals(ctx context.Context, params ListTokenApprovalsParams) ([]*TokenApproval, error) {
	arg := dbgen.ListTokenApprovalsParams{
		OwnerID:        params.OwnerID,
		IncludeRevoked: params.IncludeRevoked,
		WalletAddress:  pgtextFromStringPtr(params.WalletAddress),
	}
	if params.Chain != nil {
		arg.Chain = pgtype.Text{String: string(*params.Chain), Valid: true}
		if params.WalletAddress != nil {
			addr := chain.CanonicalAddress(*params.Chain, *params.WalletAddress)
			arg.WalletAddress = pgtype.Text{String: addr, Valid: true}
		}
	}

	start := time.Now()
	results, err := s.q.ListTokenApprovals(ctx, arg)
	s.observe("select", "token_approvals", start, err)
	if err != nil {
		return nil, err
	}

	approvals := make([]*TokenApproval, len(results))
	for i := range results {
		approvals[i] = dbTokenApprovalToDomain(&results[i])
	}
	return approvals, nil
}

// MarkTokenApprovalRevoked records a successful revoke transaction. It
// returns ErrNotFound if the approval does not exist or is already revoked.
func (s *Store) MarkTokenApprovalRevoked(ctx context.Context, ownerID string, id uuid.UUID, txHash string, at time.Time) (*TokenApproval, error) {
	start := time.Now()
	result, err := s.q.MarkTokenApprovalRevoked(ctx, dbgen.MarkTokenApprovalRevokedParams{
		ID:           pguuid(id),
		OwnerID:      ownerID,
		RevokedAt:    pgtype.Timestamptz{Time: at, Valid: true},
		RevokeTxHash: pgtype.Text{String: txHash, Valid: true},
	})
	s.observe("update", "token_approvals", start, err)
	if err != nil {
		return nil, notFound(err)
	}
	return dbTokenApprovalToDomain(&result), nil
}

// ReapproveTokenApproval clears the revocation of an approval that was
// granted again. It is the only write that resets is_revoked.
func (s *Store) ReapproveTokenApproval(ctx context.Context, params ReapproveParams) (*TokenApproval, error) {
	start := time.Now()
	result, err := s.q.ReapproveTokenApproval(ctx, dbgen.ReapproveTokenApprovalParams{
		ID:          pguuid(params.ID),
		OwnerID:     params.OwnerID,
		Allowance:   pgtextFromStringPtr(params.Allowance),
		IsUnlimited: params.IsUnlimited,
		ApprovedAt:  pgtype.Timestamptz{Time: params.ApprovedAt, Valid: true},
	})
	s.observe("update", "token_approvals", start, err)
	if err != nil {
		return nil, notFound(err)
	}
	return dbTokenApprovalToDomain(&result), nil
}

func dbTokenApprovalToDomain(db *dbgen.TokenApproval) *TokenApproval {
	return &TokenApproval{
		ID:             uuidFromPg(db.ID),
		OwnerID:        db.OwnerID,
		WalletAddress:  db.WalletAddress,
		Chain:          chain.Chain(db.Chain),
		TokenAddress:   db.TokenAddress,
		TokenName:      stringPtrFromPgtext(db.TokenName),
		TokenSymbol:    stringPtrFromPgtext(db.TokenSymbol),
		SpenderAddress: db.SpenderAddress,
		SpenderName:    stringPtrFromPgtext(db.SpenderName),
		Allowance:      stringPtrFromPgtext(db.Allowance),
		IsUnlimited:    db.IsUnlimited,
		RiskLevel:      db.RiskLevel,
		ApprovedAt:     timePtrFromPgTimestamptz(db.ApprovedAt),
		LastCheckedAt:  db.LastCheckedAt.Time,
		IsRevoked:      db.IsRevoked,
		RevokedAt:      timePtrFromPgTimestamptz(db.RevokedAt),
		RevokeTxHash:   stringPtrFromPgtext(db.RevokeTxHash),
	}
}
