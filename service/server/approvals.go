package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brojonat/chainsync/service/approvals"
	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/signer"
	"github.com/google/uuid"
)

// handleListApprovals returns a handler that lists the owner's approvals.
// GET /api/v1/approvals?chain=C&address=A&include_revoked=true
func handleListApprovals(svc ApprovalService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, address, err := chainAddressFilter(r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		includeRevoked := false
		if v := r.URL.Query().Get("include_revoked"); v != "" {
			includeRevoked, err = strconv.ParseBool(v)
			if err != nil {
				writeError(w, "invalid include_revoked parameter: must be a boolean", http.StatusBadRequest)
				return
			}
		}

		owner := ownerID(r)
		items, err := svc.List(r.Context(), db.ListTokenApprovalsParams{
			OwnerID:        owner,
			IncludeRevoked: includeRevoked,
			Chain:          c,
			WalletAddress:  address,
		})
		if err != nil {
			logger.Error("failed to list approvals", "owner_id", owner, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []*db.TokenApproval{}
		}

		writeJSON(w, map[string]interface{}{
			"approvals": items,
			"count":     len(items),
		}, http.StatusOK)
	})
}

type checkApprovalRequest struct {
	Chain          string  `json:"chain"`
	WalletAddress  string  `json:"wallet_address"`
	TokenAddress   string  `json:"token_address"`
	SpenderAddress string  `json:"spender_address"`
	SpenderName    *string `json:"spender_name,omitempty"`
}

// handleCheckApproval returns a handler that reads and stores one allowance.
// POST /api/v1/approvals/check
func handleCheckApproval(svc ApprovalService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req checkApprovalRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		c, err := parseChain(req.Chain)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if c.Family() != chain.FamilyEVM {
			writeError(w, "approvals are only supported on EVM chains", http.StatusBadRequest)
			return
		}
		for _, field := range []struct{ name, value string }{
			{"wallet_address", req.WalletAddress},
			{"token_address", req.TokenAddress},
			{"spender_address", req.SpenderAddress},
		} {
			if err := validateAddress(c, field.value); err != nil {
				writeError(w, field.name+": "+err.Error(), http.StatusBadRequest)
				return
			}
		}
		if req.SpenderName != nil && (len(*req.SpenderName) > maxLabelLength || hasControl(*req.SpenderName)) {
			writeError(w, "invalid spender_name", http.StatusBadRequest)
			return
		}

		owner := ownerID(r)
		approval, err := svc.Check(r.Context(), approvals.CheckRequest{
			OwnerID:        owner,
			Chain:          c,
			WalletAddress:  req.WalletAddress,
			TokenAddress:   req.TokenAddress,
			SpenderAddress: req.SpenderAddress,
			SpenderName:    req.SpenderName,
		})
		if err != nil {
			var providerErr *chain.ProviderError
			var unsupported *chain.UnsupportedChainError
			switch {
			case errors.As(err, &unsupported):
				writeError(w, err.Error(), http.StatusBadRequest)
			case errors.As(err, &providerErr):
				logger.Warn("allowance read failed", "owner_id", owner, "chain", c, "error", err)
				writeError(w, "failed to read allowance from provider", http.StatusBadGateway)
			default:
				logger.Error("failed to check approval", "owner_id", owner, "chain", c, "error", err)
				writeError(w, "failed to check approval", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, approval, http.StatusOK)
	})
}

// handleRevokeApproval returns a handler that revokes an approval through
// the configured signer.
// POST /api/v1/approvals/{id}/revoke
func handleRevokeApproval(svc ApprovalService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, "invalid approval id", http.StatusBadRequest)
			return
		}

		owner := ownerID(r)
		approval, err := svc.Revoke(r.Context(), owner, id)
		if err != nil {
			writeApprovalError(w, logger, "revoke", id, err)
			return
		}

		logger.Info("approval revoked", "owner_id", owner, "approval_id", id)
		writeJSON(w, approval, http.StatusOK)
	})
}

type reapproveRequest struct {
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

// handleReapproveApproval returns a handler that clears a revocation after
// the wallet approved the spender again.
// POST /api/v1/approvals/{id}/reapprove
func handleReapproveApproval(svc ApprovalService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, "invalid approval id", http.StatusBadRequest)
			return
		}

		var req reapproveRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		approvedAt := time.Now().UTC()
		if req.ApprovedAt != nil {
			approvedAt = *req.ApprovedAt
		}

		owner := ownerID(r)
		approval, err := svc.Reapprove(r.Context(), owner, id, approvedAt)
		if err != nil {
			writeApprovalError(w, logger, "reapprove", id, err)
			return
		}

		logger.Info("approval reapproved", "owner_id", owner, "approval_id", id)
		writeJSON(w, approval, http.StatusOK)
	})
}

// writeApprovalError maps approval service errors to status codes.
func writeApprovalError(w http.ResponseWriter, logger *slog.Logger, op string, id uuid.UUID, err error) {
	var noSigner *approvals.NoSignerError
	var rejected *signer.RejectedError
	var providerErr *chain.ProviderError
	switch {
	case errors.As(err, &noSigner):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, db.ErrNotFound):
		writeError(w, "approval not found", http.StatusNotFound)
	case errors.Is(err, approvals.ErrAlreadyRevoked), errors.Is(err, approvals.ErrNotRevoked):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.As(err, &rejected):
		logger.Warn("signer rejected transaction", "op", op, "approval_id", id, "error", err)
		writeError(w, "signer rejected transaction: "+rejected.Message, http.StatusBadGateway)
	case errors.As(err, &providerErr):
		logger.Warn("provider call failed", "op", op, "approval_id", id, "error", err)
		writeError(w, "failed to read allowance from provider", http.StatusBadGateway)
	default:
		logger.Error("approval operation failed", "op", op, "approval_id", id, "error", err)
		writeError(w, "failed to "+op+" approval", http.StatusInternalServerError)
	}
}
