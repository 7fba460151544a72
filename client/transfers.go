package client

import (
	"context"
	"net/http"
	"time"
)

// Transfer is a ledger row.
type Transfer struct {
	Hash            string    `json:"hash"`
	Chain           string    `json:"chain"`
	From            string    `json:"from"`
	To              *string   `json:"to"`
	Asset           *string   `json:"asset"`
	Value           string    `json:"value"`
	Category        string    `json:"category"`
	Block           string    `json:"block"`
	Timestamp       string    `json:"timestamp"`
	ContractAddress *string   `json:"contract_address,omitempty"`
	Decimals        *int      `json:"decimals,omitempty"`
	OwnerID         string    `json:"owner_id"`
	WalletAddress   string    `json:"wallet_address"`
	Direction       string    `json:"direction"`
	SyncRunID       string    `json:"sync_run_id"`
	CreatedAt       time.Time `json:"created_at"`
	Display         *string   `json:"display,omitempty"`
}

// TransferPage is one page of the ledger.
type TransferPage struct {
	Transfers []*Transfer `json:"transfers"`
	Count     int         `json:"count"`
	Total     int64       `json:"total"`
	Limit     int         `json:"limit"`
	Offset    int         `json:"offset"`
}

// ListTransfers pages through the owner's ledger.
func (c *Client) ListTransfers(ctx context.Context, filter RunFilter) (*TransferPage, error) {
	var page TransferPage
	if _, err := c.do(ctx, "GET", "/api/v1/transfers"+filter.query(), nil, &page, http.StatusOK); err != nil {
		return nil, err
	}
	return &page, nil
}
