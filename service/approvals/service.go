package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/evm"
	"github.com/brojonat/chainsync/service/metrics"
	"github.com/brojonat/chainsync/service/signer"
	"github.com/google/uuid"
)

// Store is the subset of the Ledger Store used for approvals.
type Store interface {
	UpsertTokenApproval(ctx context.Context, params db.UpsertTokenApprovalParams) (*db.TokenApproval, error)
	GetTokenApproval(ctx context.Context, ownerID string, id uuid.UUID) (*db.TokenApproval, error)
	ListTokenApprovals(ctx context.Context, params db.ListTokenApprovalsParams) ([]*db.TokenApproval, error)
	MarkTokenApprovalRevoked(ctx context.Context, ownerID string, id uuid.UUID, txHash string, at time.Time) (*db.TokenApproval, error)
	ReapproveTokenApproval(ctx context.Context, params db.ReapproveParams) (*db.TokenApproval, error)
}

// AllowanceReader reads ERC-20 state. *evm.Adapter satisfies it.
type AllowanceReader interface {
	Allowance(ctx context.Context, token, owner, spender string) (string, error)
	TokenMetadata(ctx context.Context, contract string) (evm.TokenMetadata, error)
}

// ReaderFunc resolves the allowance reader for an EVM chain. It returns an
// *chain.UnsupportedChainError for chains without one.
type ReaderFunc func(c chain.Chain) (AllowanceReader, error)

// Service runs approval checks, revocations and re-approvals.
type Service struct {
	store   Store
	readers ReaderFunc
	signer  signer.Signer
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service. sig may be nil, in which case Revoke
// returns a *NoSignerError. m may be nil.
func NewService(store Store, readers ReaderFunc, sig signer.Signer, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		readers: readers,
		signer:  sig,
		metrics: m,
		logger:  logger.With("component", "approvals"),
		now:     time.Now,
	}
}

// CheckRequest identifies one (token, spender) pair of a wallet.
type CheckRequest struct {
	OwnerID        string
	Chain          chain.Chain
	WalletAddress  string
	TokenAddress   string
	SpenderAddress string
	// SpenderName overrides the known-spender directory.
	SpenderName *string
}

// Check reads the current allowance, classifies the spender and stores the
// snapshot. A previously revoked approval stays revoked even if the chain
// shows a new allowance; Reapprove clears it.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*db.TokenApproval, error) {
	if req.Chain.Family() != chain.FamilyEVM {
		return nil, &chain.UnsupportedChainError{Tag: string(req.Chain)}
	}
	for _, f := range []struct{ name, addr string }{
		{"wallet", req.WalletAddress},
		{"token", req.TokenAddress},
		{"spender", req.SpenderAddress},
	} {
		if !evm.ValidAddress(f.addr) {
			return nil, fmt.Errorf("invalid %s address %q", f.name, f.addr)
		}
	}

	reader, err := s.readers(req.Chain)
	if err != nil {
		return nil, err
	}

	allowance, err := reader.Allowance(ctx, req.TokenAddress, req.WalletAddress, req.SpenderAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}

	params := db.UpsertTokenApprovalParams{
		OwnerID:        req.OwnerID,
		WalletAddress:  req.WalletAddress,
		Chain:          req.Chain,
		TokenAddress:   req.TokenAddress,
		SpenderAddress: req.SpenderAddress,
		Allowance:      &allowance,
		IsUnlimited:    IsUnlimited(allowance),
		CheckedAt:      s.now().UTC(),
	}

	meta, err := reader.TokenMetadata(ctx, req.TokenAddress)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to resolve token metadata", "token", req.TokenAddress, "error", err)
	} else {
		params.TokenName = meta.Name
		params.TokenSymbol = meta.Symbol
	}

	spenderName := ""
	if req.SpenderName != nil {
		spenderName = *req.SpenderName
	} else if name, ok := SpenderName(req.Chain, req.SpenderAddress); ok {
		spenderName = name
	}
	if spenderName != "" {
		params.SpenderName = &spenderName
	}
	risk := Classify(req.SpenderAddress, spenderName)
	params.RiskLevel = string(risk)

	approval, err := s.store.UpsertTokenApproval(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to store approval: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordApprovalChecked(string(req.Chain), string(risk), params.IsUnlimited)
	}
	if approval.IsRevoked && allowance != "0" {
		s.logger.InfoContext(ctx, "allowance observed on revoked approval",
			"approval_id", approval.ID,
			"allowance", allowance,
		)
	}
	return approval, nil
}

// Revoke sets the allowance to zero through the signer and, once the
// signer returns a transaction hash, marks the approval revoked.
func (s *Service) Revoke(ctx context.Context, ownerID string, id uuid.UUID) (*db.TokenApproval, error) {
	if s.signer == nil {
		return nil, &NoSignerError{}
	}

	approval, err := s.store.GetTokenApproval(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if approval.IsRevoked {
		return nil, ErrAlreadyRevoked
	}

	data, err := evm.EncodeApprove(approval.SpenderAddress, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("failed to encode revoke call: %w", err)
	}

	logger := s.logger.With("approval_id", id, "chain", approval.Chain)
	txHash, err := s.signer.SendTransaction(ctx, signer.Transaction{
		Chain: approval.Chain,
		From:  approval.WalletAddress,
		To:    approval.TokenAddress,
		Data:  data,
		Value: "0",
	})
	if err != nil {
		s.recordRevocation(approval.Chain, "error")
		logger.WarnContext(ctx, "revoke transaction failed", "error", err)
		return nil, fmt.Errorf("failed to send revoke transaction: %w", err)
	}

	revoked, err := s.store.MarkTokenApprovalRevoked(ctx, ownerID, id, txHash, s.now().UTC())
	if err != nil {
		s.recordRevocation(approval.Chain, "error")
		logger.ErrorContext(ctx, "revoke sent but not recorded", "tx_hash", txHash, "error", err)
		return nil, fmt.Errorf("failed to record revocation %s: %w", txHash, err)
	}
	s.recordRevocation(approval.Chain, "success")
	logger.InfoContext(ctx, "approval revoked", "tx_hash", txHash)
	return revoked, nil
}

// Reapprove clears the revocation of an approval that was granted again,
// refreshing the allowance from chain.
func (s *Service) Reapprove(ctx context.Context, ownerID string, id uuid.UUID, approvedAt time.Time) (*db.TokenApproval, error) {
	approval, err := s.store.GetTokenApproval(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !approval.IsRevoked {
		return nil, ErrNotRevoked
	}

	reader, err := s.readers(approval.Chain)
	if err != nil {
		return nil, err
	}
	allowance, err := reader.Allowance(ctx, approval.TokenAddress, approval.WalletAddress, approval.SpenderAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}

	if approvedAt.IsZero() {
		approvedAt = s.now()
	}
	return s.store.ReapproveTokenApproval(ctx, db.ReapproveParams{
		ID:          id,
		OwnerID:     ownerID,
		Allowance:   &allowance,
		IsUnlimited: IsUnlimited(allowance),
		ApprovedAt:  approvedAt.UTC(),
	})
}

// List returns stored approvals. Revoked approvals are excluded unless
// filter.IncludeRevoked is set.
func (s *Service) List(ctx context.Context, filter db.ListTokenApprovalsParams) ([]*db.TokenApproval, error) {
	return s.store.ListTokenApprovals(ctx, filter)
}

func (s *Service) recordRevocation(c chain.Chain, status string) {
	if s.metrics != nil {
		s.metrics.RecordRevocation(string(c), status)
	}
}
