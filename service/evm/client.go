package evm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// Caller is the JSON-RPC surface the adapter needs. *rpc.Client satisfies it,
// and tests substitute a fake that serves canned responses.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Dial connects to an EVM JSON-RPC endpoint. For Alchemy the API key is part
// of the URL, e.g. https://eth-mainnet.g.alchemy.com/v2/KEY.
func Dial(ctx context.Context, url string, timeout time.Duration) (*rpc.Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to dial evm rpc: %w", err)
	}
	return c, nil
}
