// Package signer talks to the external wallet-signing service. Signing
// keys never enter this process; the service receives unsigned calls and
// returns the hash of the broadcast transaction.
package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/chainsync/service/chain"
)

// Transaction is an unsigned contract call.
type Transaction struct {
	Chain chain.Chain `json:"chain"`
	From  string      `json:"from"`
	To    string      `json:"to"`
	Data  string      `json:"data"`
	// Value is the native amount in wei as a base-10 string.
	Value string `json:"value"`
}

// Signer signs and broadcasts a transaction, returning its hash.
type Signer interface {
	SendTransaction(ctx context.Context, tx Transaction) (string, error)
}

// RejectedError is returned when the signing service refuses a request,
// for example because the user declined it.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("signer rejected transaction (status %d): %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the signing service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a signing service client. A zero timeout defaults to
// 60 seconds; signing may wait on a human.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type sendResponse struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error"`
}

// SendTransaction posts tx to the signing service.
func (c *Client) SendTransaction(ctx context.Context, tx Transaction) (string, error) {
	if tx.Value == "" {
		tx.Value = "0"
	}
	body, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", &RejectedError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &RejectedError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out.TxHash == "" {
		return "", errors.New("signer returned no transaction hash")
	}

	c.logger.DebugContext(ctx, "transaction sent", "chain", tx.Chain, "to", tx.To, "tx_hash", out.TxHash)
	return out.TxHash, nil
}
