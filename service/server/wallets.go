package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/ingest"
)

type addWalletRequest struct {
	Chain   string  `json:"chain"`
	Address string  `json:"address"`
	Label   *string `json:"label,omitempty"`
	Kind    string  `json:"kind,omitempty"`
}

// handleAddWallet returns a handler that registers a wallet for the owner.
// POST /api/v1/wallets
// Registering an existing wallet returns 200 with the existing row.
func handleAddWallet(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req addWalletRequest
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
			logger.Debug("invalid address", "address", req.Address, "chain", c, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Label != nil && (len(*req.Label) > maxLabelLength || hasControl(*req.Label)) {
			writeError(w, "invalid label", http.StatusBadRequest)
			return
		}
		kind := db.WalletKind(req.Kind)
		switch kind {
		case "", db.WalletKindWatch, db.WalletKindConnected:
		default:
			writeError(w, "invalid kind: must be 'watch' or 'connected'", http.StatusBadRequest)
			return
		}

		owner := ownerID(r)
		wallet, created, err := store.AddWallet(r.Context(), db.AddWalletParams{
			OwnerID: owner,
			Chain:   c,
			Address: req.Address,
			Label:   req.Label,
			Kind:    kind,
		})
		if err != nil {
			logger.Error("failed to add wallet", "owner_id", owner, "chain", c, "address", req.Address, "error", err)
			writeError(w, "failed to add wallet", http.StatusInternalServerError)
			return
		}

		if !created {
			logger.Info("wallet already exists", "owner_id", owner, "chain", c, "address", wallet.Address)
			writeJSON(w, map[string]interface{}{
				"message": "wallet already exists",
				"wallet":  wallet,
			}, http.StatusOK)
			return
		}

		logger.Info("wallet added", "owner_id", owner, "chain", c, "address", wallet.Address)
		writeJSON(w, wallet, http.StatusCreated)
	})
}

// handleListWallets returns a handler that lists the owner's active wallets.
// GET /api/v1/wallets
func handleListWallets(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := ownerID(r)
		wallets, err := store.ListWallets(r.Context(), owner)
		if err != nil {
			logger.Error("failed to list wallets", "owner_id", owner, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if wallets == nil {
			wallets = []*db.Wallet{}
		}

		writeJSON(w, map[string]interface{}{
			"wallets": wallets,
			"count":   len(wallets),
		}, http.StatusOK)
	})
}

// handleRemoveWallet returns a handler that deactivates a wallet.
// DELETE /api/v1/wallets/{chain}/{address}
func handleRemoveWallet(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := parseChain(r.PathValue("chain"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		address := r.PathValue("address")
		if err := validateAddress(c, address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		owner := ownerID(r)
		if err := store.RemoveWallet(r.Context(), owner, c, address); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "wallet not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to remove wallet", "owner_id", owner, "chain", c, "address", address, "error", err)
			writeError(w, "failed to remove wallet", http.StatusInternalServerError)
			return
		}

		logger.Info("wallet removed", "owner_id", owner, "chain", c, "address", address)
		w.WriteHeader(http.StatusNoContent)
	})
}

type tokenBalanceResponse struct {
	chain.TokenBalance
	Display *string `json:"display,omitempty"`
}

type balancesResponse struct {
	Chain         chain.Chain            `json:"chain"`
	Address       string                 `json:"address"`
	NativeSymbol  string                 `json:"native_symbol"`
	NativeBalance string                 `json:"native_balance"`
	NativeDisplay string                 `json:"native_display"`
	TokenBalances []tokenBalanceResponse `json:"token_balances"`
	TokenError    string                 `json:"token_error,omitempty"`
}

// handleGetBalances returns a handler that reads live balances for an address.
// GET /api/v1/wallets/{chain}/{address}/balances
// A token balance failure is reported alongside the native balance.
func handleGetBalances(adapters AdapterSource, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := parseChain(r.PathValue("chain"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		address := r.PathValue("address")
		if err := validateAddress(c, address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		adapter, err := adapters.Get(c)
		if err != nil {
			var unsupported *chain.UnsupportedChainError
			if errors.As(err, &unsupported) {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.Error("failed to resolve adapter", "chain", c, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		native, err := adapter.FetchNativeBalance(r.Context(), address)
		if err != nil {
			logger.Warn("failed to fetch native balance", "chain", c, "address", address, "error", err)
			writeError(w, "failed to fetch balance from provider", http.StatusBadGateway)
			return
		}

		resp := balancesResponse{
			Chain:         c,
			Address:       address,
			NativeSymbol:  c.NativeSymbol(),
			NativeBalance: native,
			TokenBalances: []tokenBalanceResponse{},
		}
		if display, err := ingest.FormatUnits(native, nativeDecimals(c)); err == nil {
			resp.NativeDisplay = display
		}

		tokens, err := adapter.FetchTokenBalances(r.Context(), address)
		if err != nil {
			logger.Warn("failed to fetch token balances", "chain", c, "address", address, "error", err)
			resp.TokenError = "failed to fetch token balances"
		}
		for _, tb := range tokens {
			item := tokenBalanceResponse{TokenBalance: tb}
			if tb.Decimals != nil {
				if display, err := ingest.FormatUnits(tb.Balance, *tb.Decimals); err == nil {
					item.Display = &display
				}
			}
			resp.TokenBalances = append(resp.TokenBalances, item)
		}

		writeJSON(w, resp, http.StatusOK)
	})
}

func nativeDecimals(c chain.Chain) int {
	if c.Family() == chain.FamilySolana {
		return 9
	}
	return 18
}
