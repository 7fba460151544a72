package evm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/metrics"
	"github.com/ethereum/go-ethereum/common/hexutil"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Options tunes an Adapter.
type Options struct {
	// MaxCount caps transfers returned per direction when the caller does not.
	MaxCount int
	// RequestsPerSecond throttles calls to the provider. Zero uses the default.
	RequestsPerSecond float64
}

// Adapter fetches transfers, balances and allowances for one EVM chain
// through an Alchemy-compatible JSON-RPC endpoint.
type Adapter struct {
	chain    chain.Chain
	rpc      Caller
	limiter  *rate.Limiter
	tokens   *lru.Cache[string, TokenMetadata]
	maxCount int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAdapter creates an adapter for c. If metrics is nil, no metrics will be recorded.
func NewAdapter(c chain.Chain, caller Caller, opts Options, m *metrics.Metrics, logger *slog.Logger) (*Adapter, error) {
	if c.Family() != chain.FamilyEVM {
		return nil, &chain.UnsupportedChainError{Tag: string(c)}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = defaultMaxCount
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerS
	}
	cache, err := lru.New[string, TokenMetadata](metadataCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create token metadata cache: %w", err)
	}
	return &Adapter{
		chain:    c,
		rpc:      caller,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)+1),
		tokens:   cache,
		maxCount: opts.MaxCount,
		metrics:  m,
		logger:   logger.With("component", "evm_adapter", "chain", string(c)),
	}, nil
}

// Chain implements chain.Adapter.
func (a *Adapter) Chain() chain.Chain {
	return a.chain
}

// categories returns the transfer categories the provider supports on this chain.
// Internal (trace-derived) transfers are only indexed on Ethereum and Polygon.
func (a *Adapter) categories() []string {
	cats := []string{CategoryExternal, CategoryERC20, CategoryERC721, CategoryERC1155}
	if a.chain == chain.Ethereum || a.chain == chain.Polygon {
		cats = append(cats, CategoryInternal)
	}
	return cats
}

// FetchTransfers implements chain.Adapter. Outgoing queries filter on
// fromAddress and incoming ones on toAddress; DirectionBoth runs both
// sequentially and concatenates them without deduplication.
func (a *Adapter) FetchTransfers(ctx context.Context, address string, dir chain.Direction, opts chain.FetchOptions) ([]chain.Native, error) {
	if !ValidAddress(address) {
		return nil, fmt.Errorf("invalid %s address %q", a.chain, address)
	}

	if dir == chain.DirectionBoth {
		out, err := a.FetchTransfers(ctx, address, chain.DirectionOutgoing, opts)
		if err != nil {
			return nil, err
		}
		in, err := a.FetchTransfers(ctx, address, chain.DirectionIncoming, opts)
		if err != nil {
			return nil, err
		}
		return append(out, in...), nil
	}

	limit := opts.MaxCount
	if limit <= 0 {
		limit = a.maxCount
	}

	params := assetTransfersParams{
		FromBlock:    genesisBlock,
		ToBlock:      latestBlock,
		Category:     a.categories(),
		WithMetadata: true,
	}
	if opts.FromBlock != nil {
		params.FromBlock = hexutil.EncodeUint64(*opts.FromBlock)
	}
	if opts.ToBlock != nil {
		params.ToBlock = hexutil.EncodeUint64(*opts.ToBlock)
	}
	if dir == chain.DirectionOutgoing {
		params.FromAddress = address
	} else {
		params.ToAddress = address
	}

	var transfers []chain.Native
	for len(transfers) < limit {
		params.MaxCount = hexutil.EncodeUint64(uint64(min(limit-len(transfers), maxCountPerPage)))

		var result assetTransfersResult
		if err := a.call(ctx, &result, "alchemy_getAssetTransfers", params); err != nil {
			return nil, err
		}
		for _, t := range result.Transfers {
			if len(transfers) == limit {
				break
			}
			transfers = append(transfers, t)
		}
		if result.PageKey == "" {
			break
		}
		params.PageKey = result.PageKey
	}

	a.logger.DebugContext(ctx, "fetched asset transfers",
		"address", address,
		"direction", dir.String(),
		"count", len(transfers),
	)
	return transfers, nil
}

// FetchNativeBalance implements chain.Adapter.
func (a *Adapter) FetchNativeBalance(ctx context.Context, address string) (string, error) {
	if !ValidAddress(address) {
		return "", fmt.Errorf("invalid %s address %q", a.chain, address)
	}
	var balance hexutil.Big
	if err := a.call(ctx, &balance, "eth_getBalance", address, latestBlock); err != nil {
		return "", err
	}
	return balance.ToInt().String(), nil
}

// FetchTokenBalances implements chain.Adapter. Zero balances are omitted and
// metadata is resolved per contract through the cache.
func (a *Adapter) FetchTokenBalances(ctx context.Context, address string) ([]chain.TokenBalance, error) {
	if !ValidAddress(address) {
		return nil, fmt.Errorf("invalid %s address %q", a.chain, address)
	}
	var result tokenBalancesResult
	if err := a.call(ctx, &result, "alchemy_getTokenBalances", address, "erc20"); err != nil {
		return nil, err
	}

	balances := make([]chain.TokenBalance, 0, len(result.TokenBalances))
	for _, tb := range result.TokenBalances {
		if tb.Error != nil || tb.TokenBalance == nil {
			continue
		}
		amount, err := HexToDecimal(*tb.TokenBalance)
		if err != nil {
			a.logger.WarnContext(ctx, "skipping malformed token balance",
				"contract", tb.ContractAddress,
				"error", err,
			)
			continue
		}
		if amount == "0" {
			continue
		}
		bal := chain.TokenBalance{
			Contract: chain.CanonicalAddress(a.chain, tb.ContractAddress),
			Balance:  amount,
		}
		meta, err := a.TokenMetadata(ctx, tb.ContractAddress)
		if err != nil {
			a.logger.WarnContext(ctx, "failed to resolve token metadata",
				"contract", tb.ContractAddress,
				"error", err,
			)
		} else {
			bal.Name, bal.Symbol, bal.Decimals = meta.Name, meta.Symbol, meta.Decimals
		}
		balances = append(balances, bal)
	}
	return balances, nil
}

// TokenMetadata returns name, symbol and decimals for an ERC-20 contract.
func (a *Adapter) TokenMetadata(ctx context.Context, contract string) (TokenMetadata, error) {
	key := chain.CanonicalAddress(a.chain, contract)
	if meta, ok := a.tokens.Get(key); ok {
		return meta, nil
	}
	var meta TokenMetadata
	if err := a.call(ctx, &meta, "alchemy_getTokenMetadata", contract); err != nil {
		return TokenMetadata{}, err
	}
	a.tokens.Add(key, meta)
	return meta, nil
}

// Allowance reads allowance(owner, spender) on a token contract and returns
// it as a base-10 string.
func (a *Adapter) Allowance(ctx context.Context, token, owner, spender string) (string, error) {
	if !ValidAddress(token) {
		return "", fmt.Errorf("invalid token address %q", token)
	}
	data, err := EncodeAllowance(owner, spender)
	if err != nil {
		return "", err
	}
	var out string
	if err := a.call(ctx, &out, "eth_call", callMsg{To: token, Data: data}, latestBlock); err != nil {
		return "", err
	}
	return HexToDecimal(out)
}

// call throttles, times and wraps a provider call.
func (a *Adapter) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if !a.limiter.Allow() {
		if a.metrics != nil {
			a.metrics.RecordRateLimitWait(string(a.chain))
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return chain.NewProviderError(a.chain, method, err)
		}
	}

	start := time.Now()
	err := a.rpc.CallContext(ctx, result, method, args...)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		a.logger.ErrorContext(ctx, "provider call failed",
			"method", method,
			"error", err,
		)
	}
	if a.metrics != nil {
		a.metrics.RecordProviderCall(string(a.chain), method, status, duration)
	}
	return chain.NewProviderError(a.chain, method, err)
}
