package server

import (
	"log/slog"
	"net/http"

	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/ingest"
)

// transferResponse is a ledger row with a human-readable amount when the
// asset's decimals are known.
type transferResponse struct {
	*db.Transfer
	Display *string `json:"display,omitempty"`
}

func transferToResponse(t *db.Transfer) transferResponse {
	resp := transferResponse{Transfer: t}
	decimals := t.Decimals
	if decimals == nil && t.Category == ingest.CategoryNative {
		d := nativeDecimals(t.Chain)
		decimals = &d
	}
	if decimals != nil {
		if display, err := ingest.FormatUnits(t.Value, *decimals); err == nil {
			resp.Display = &display
		}
	}
	return resp
}

// handleListTransfers returns a handler that pages through the owner's ledger.
// GET /api/v1/transfers?chain=C&address=A&limit=N&offset=N
func handleListTransfers(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, address, err := chainAddressFilter(r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		limit, offset, err := parseLimitOffset(r, 100)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		owner := ownerID(r)
		transfers, err := store.ListTransfers(r.Context(), db.ListTransfersParams{
			OwnerID:       owner,
			Chain:         c,
			WalletAddress: address,
			Limit:         limit,
			Offset:        offset,
		})
		if err != nil {
			logger.Error("failed to list transfers", "owner_id", owner, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		total, err := store.CountTransfers(r.Context(), owner)
		if err != nil {
			logger.Error("failed to count transfers", "owner_id", owner, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Debug("transfers listed", "owner_id", owner, "count", len(transfers))

		resp := make([]transferResponse, len(transfers))
		for i := range transfers {
			resp[i] = transferToResponse(transfers[i])
		}

		writeJSON(w, map[string]interface{}{
			"transfers": resp,
			"count":     len(resp),
			"total":     total,
			"limit":     limit,
			"offset":    offset,
		}, http.StatusOK)
	})
}
