package solana

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	defaultSignatureLimit = 100
	maxSignatureLimit     = 1000
)

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - Alchemy: https://solana-mainnet.g.alchemy.com/v2/YOUR-KEY
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	return r.client.GetSignaturesForAddressWithOpts(ctx, address, opts)
}

func (r *realRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	return r.client.GetTransaction(ctx, signature, opts)
}

func (r *realRPCClient) GetBalance(
	ctx context.Context,
	address solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetBalanceResult, error) {
	return r.client.GetBalance(ctx, address, commitment)
}

func (r *realRPCClient) GetTokenAccountsByOwner(
	ctx context.Context,
	owner solana.PublicKey,
	conf *rpc.GetTokenAccountsConfig,
	opts *rpc.GetTokenAccountsOpts,
) (*rpc.GetTokenAccountsResult, error) {
	return r.client.GetTokenAccountsByOwner(ctx, owner, conf, opts)
}

// SelectRandomEndpoint picks one endpoint from a configured pool so load is
// spread across providers between process restarts.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", fmt.Errorf("no RPC endpoints configured")
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

// Adapter implements chain.Adapter for Solana mainnet.
type Adapter struct {
	client         *Client
	signatureLimit int
	logger         *slog.Logger
}

// NewAdapter wires a Client into the chain.Adapter contract. signatureLimit
// bounds how many signatures a fetch resolves when the caller gives no MaxCount.
func NewAdapter(client *Client, signatureLimit int, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if signatureLimit <= 0 {
		signatureLimit = defaultSignatureLimit
	}
	return &Adapter{
		client:         client,
		signatureLimit: min(signatureLimit, maxSignatureLimit),
		logger:         logger.With("component", "solana_adapter"),
	}
}

// NewAdapterFromURL dials rpcURL and builds an adapter around it.
func NewAdapterFromURL(rpcURL string, opts ClientOptions, signatureLimit int, m *metrics.Metrics, logger *slog.Logger) *Adapter {
	if opts.Endpoint == "" {
		opts.Endpoint = endpointLabel(rpcURL)
	}
	return NewAdapter(NewClient(NewRPCClient(rpcURL), opts, m, logger), signatureLimit, logger)
}

// Chain implements chain.Adapter.
func (a *Adapter) Chain() chain.Chain {
	return chain.Solana
}

// FetchTransfers implements chain.Adapter. The provider lists every
// signature touching the address, so DirectionBoth is the natural query;
// a one-sided direction is served by filtering the parsed result.
func (a *Adapter) FetchTransfers(ctx context.Context, address string, dir chain.Direction, opts chain.FetchOptions) ([]chain.Native, error) {
	wallet, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid solana address %q: %w", address, err)
	}

	limit := a.signatureLimit
	if opts.MaxCount > 0 {
		limit = min(opts.MaxCount, maxSignatureLimit)
	}

	txns, err := a.client.FetchTransactions(ctx, FetchTransactionsParams{
		Wallet:  wallet,
		Limit:   limit,
		MinSlot: opts.FromBlock,
		MaxSlot: opts.ToBlock,
	})
	if err != nil {
		return nil, err
	}

	out := make([]chain.Native, 0, len(txns))
	for _, txn := range txns {
		sent := txn.FromAddress != nil && *txn.FromAddress == address
		switch {
		case dir == chain.DirectionOutgoing && !sent:
			continue
		case dir == chain.DirectionIncoming && sent:
			continue
		}
		out = append(out, txn)
	}
	return out, nil
}

// FetchNativeBalance implements chain.Adapter. The balance is in lamports.
func (a *Adapter) FetchNativeBalance(ctx context.Context, address string) (string, error) {
	wallet, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("invalid solana address %q: %w", address, err)
	}
	lamports, err := a.client.GetBalance(ctx, wallet)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(lamports, 10), nil
}

// FetchTokenBalances implements chain.Adapter. Empty token accounts are
// omitted. Token names are not resolved on Solana.
func (a *Adapter) FetchTokenBalances(ctx context.Context, address string) ([]chain.TokenBalance, error) {
	wallet, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid solana address %q: %w", address, err)
	}
	accounts, err := a.client.GetTokenAccounts(ctx, wallet)
	if err != nil {
		return nil, err
	}

	balances := make([]chain.TokenBalance, 0, len(accounts))
	for _, acct := range accounts {
		if acct.Amount == "" || acct.Amount == "0" {
			continue
		}
		decimals := acct.Decimals
		balances = append(balances, chain.TokenBalance{
			Contract: acct.Mint,
			Balance:  acct.Amount,
			Decimals: &decimals,
		})
	}
	return balances, nil
}

// endpointLabel strips the scheme and any path or query (which may carry an
// API key) from an RPC URL.
func endpointLabel(rpcURL string) string {
	host := rpcURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?"); i >= 0 {
		host = host[:i]
	}
	return host
}
