package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Wallet is a tracked address.
type Wallet struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Chain        string     `json:"chain"`
	Address      string     `json:"address"`
	Label        *string    `json:"label,omitempty"`
	Kind         string     `json:"kind"`
	Active       bool       `json:"active"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AddWalletRequest registers a wallet.
type AddWalletRequest struct {
	Chain   string  `json:"chain"`
	Address string  `json:"address"`
	Label   *string `json:"label,omitempty"`
	// Kind is "watch" (default) or "connected".
	Kind string `json:"kind,omitempty"`
}

// TokenBalance is a fungible token holding.
type TokenBalance struct {
	Contract string  `json:"contract"`
	Balance  string  `json:"balance"`
	Name     *string `json:"name,omitempty"`
	Symbol   *string `json:"symbol,omitempty"`
	Decimals *int    `json:"decimals,omitempty"`
	Display  *string `json:"display,omitempty"`
}

// Balances is a live balance read for one address.
type Balances struct {
	Chain         string         `json:"chain"`
	Address       string         `json:"address"`
	NativeSymbol  string         `json:"native_symbol"`
	NativeBalance string         `json:"native_balance"`
	NativeDisplay string         `json:"native_display"`
	TokenBalances []TokenBalance `json:"token_balances"`
	TokenError    string         `json:"token_error,omitempty"`
}

// AddWallet registers a wallet. created is false when the wallet was
// already registered.
func (c *Client) AddWallet(ctx context.Context, req AddWalletRequest) (*Wallet, bool, error) {
	var raw struct {
		Wallet
		Existing *Wallet `json:"wallet"`
	}
	status, err := c.do(ctx, "POST", "/api/v1/wallets", req, &raw, http.StatusCreated, http.StatusOK)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusOK && raw.Existing != nil {
		c.logger.Debug("wallet already registered", "chain", req.Chain, "address", req.Address)
		return raw.Existing, false, nil
	}
	c.logger.Debug("wallet registered", "chain", req.Chain, "address", req.Address)
	w := raw.Wallet
	return &w, true, nil
}

// ListWallets returns the owner's active wallets.
func (c *Client) ListWallets(ctx context.Context) ([]*Wallet, error) {
	var response struct {
		Wallets []*Wallet `json:"wallets"`
	}
	if _, err := c.do(ctx, "GET", "/api/v1/wallets", nil, &response, http.StatusOK); err != nil {
		return nil, err
	}
	return response.Wallets, nil
}

// RemoveWallet stops tracking a wallet.
func (c *Client) RemoveWallet(ctx context.Context, chain, address string) error {
	path := fmt.Sprintf("/api/v1/wallets/%s/%s", url.PathEscape(chain), url.PathEscape(address))
	if _, err := c.do(ctx, "DELETE", path, nil, nil, http.StatusNoContent); err != nil {
		return err
	}
	c.logger.Debug("wallet removed", "chain", chain, "address", address)
	return nil
}

// Balances reads live native and token balances for an address.
func (c *Client) Balances(ctx context.Context, chain, address string) (*Balances, error) {
	path := fmt.Sprintf("/api/v1/wallets/%s/%s/balances", url.PathEscape(chain), url.PathEscape(address))
	var out Balances
	if _, err := c.do(ctx, "GET", path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
