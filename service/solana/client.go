package solana

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultDetailConcurrency = 10
	defaultRequestsPerSecond = 10
	// maxSignaturePages caps how far back a slot-bounded listing walks.
	maxSignaturePages = 20
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	GetBalance(
		ctx context.Context,
		address solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetTokenAccountsByOwner(
		ctx context.Context,
		owner solana.PublicKey,
		conf *rpc.GetTokenAccountsConfig,
		opts *rpc.GetTokenAccountsOpts,
	) (*rpc.GetTokenAccountsResult, error)
}

// ClientOptions tunes a Client.
type ClientOptions struct {
	// Endpoint identifies the RPC endpoint in logs (e.g. "mainnet" or a host name).
	Endpoint string
	// Concurrency caps in-flight GetTransaction calls during a fetch.
	Concurrency int
	// RequestsPerSecond throttles every call made through this client.
	RequestsPerSecond float64
}

// Client provides methods for reading Solana wallet activity.
// It wraps the RPC client with domain-specific operations.
type Client struct {
	rpc         RPCClient
	logger      *slog.Logger
	metrics     *metrics.Metrics
	limiter     *rate.Limiter
	endpoint    string
	concurrency int
}

// NewClient creates a new Solana client.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, opts ClientOptions, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultDetailConcurrency
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerSecond
	}
	return &Client{
		rpc:         rpcClient,
		logger:      logger.With("component", "solana_client", "endpoint", opts.Endpoint),
		metrics:     m,
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Concurrency),
		endpoint:    opts.Endpoint,
		concurrency: opts.Concurrency,
	}
}

// FetchTransactionsParams contains parameters for fetching transactions.
type FetchTransactionsParams struct {
	Wallet solana.PublicKey
	Limit  int
	// MinSlot and MaxSlot bound the result by slot, inclusive. Nil means unbounded.
	MinSlot *uint64
	MaxSlot *uint64
}

// FetchTransactions resolves the wallet's most recent signatures and then
// fetches every transaction's details with at most c.concurrency requests in
// flight. A detail fetch or parse failure drops that record; only the
// signature listing can fail the call. Results keep the provider's order
// (newest first).
func (c *Client) FetchTransactions(ctx context.Context, params FetchTransactionsParams) ([]*Transaction, error) {
	c.logger.DebugContext(ctx, "calling GetSignaturesForAddress",
		"wallet", params.Wallet.String(),
		"limit", params.Limit,
	)

	selected, listed, err := c.listSignatures(ctx, params)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"wallet", params.Wallet.String(),
			"error", err,
		)
		return nil, chain.NewProviderError(chain.Solana, "getSignaturesForAddress", err)
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"wallet", params.Wallet.String(),
		"count", listed,
		"in_range", len(selected),
	)

	results := make([]*Transaction, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, sig := range selected {
		g.Go(func() error {
			txn, err := c.fetchDetail(gctx, sig)
			if err != nil {
				c.logger.WarnContext(ctx, "dropping transaction after failed detail fetch",
					"signature", sig.Signature.String(),
					"error", err,
				)
				if c.metrics != nil {
					c.metrics.RecordDetailFetchDropped(string(chain.Solana))
				}
				return nil
			}
			results[i] = txn
			return nil
		})
	}
	// Workers never return errors; a dropped record is not a failed fetch.
	_ = g.Wait()

	transactions := make([]*Transaction, 0, len(results))
	for _, txn := range results {
		if txn != nil {
			transactions = append(transactions, txn)
		}
	}

	c.logger.InfoContext(ctx, "fetched and parsed transactions",
		"wallet", params.Wallet.String(),
		"signatures", len(selected),
		"count", len(transactions),
	)
	return transactions, nil
}

// listSignatures returns up to params.Limit successful signatures inside the
// slot range, newest first, along with how many signatures were listed.
// Without a range only the newest page is read. With one, older pages are
// walked with Before until the range is filled, history ends, the listing
// passes MinSlot, or maxSignaturePages is reached.
func (c *Client) listSignatures(ctx context.Context, params FetchTransactionsParams) ([]*rpc.TransactionSignature, int, error) {
	limit := params.Limit
	bounded := params.MinSlot != nil || params.MaxSlot != nil

	var (
		selected []*rpc.TransactionSignature
		before   solana.Signature
		listed   int
	)
	for page := 0; page < maxSignaturePages; page++ {
		opts := &rpc.GetSignaturesForAddressOpts{Limit: &limit, Before: before}
		var signatures []*rpc.TransactionSignature
		err := c.observe(ctx, "getSignaturesForAddress", func() error {
			var err error
			signatures, err = c.rpc.GetSignaturesForAddress(ctx, params.Wallet, opts)
			return err
		})
		if err != nil {
			return nil, listed, err
		}
		listed += len(signatures)

		for _, sig := range signatures {
			// Failed transactions moved no value.
			if sig.Err != nil {
				continue
			}
			if params.MinSlot != nil && sig.Slot < *params.MinSlot {
				continue
			}
			if params.MaxSlot != nil && sig.Slot > *params.MaxSlot {
				continue
			}
			selected = append(selected, sig)
			if len(selected) == limit {
				return selected, listed, nil
			}
		}

		if !bounded || len(signatures) < limit {
			return selected, listed, nil
		}
		oldest := signatures[len(signatures)-1]
		if params.MinSlot != nil && oldest.Slot < *params.MinSlot {
			return selected, listed, nil
		}
		before = oldest.Signature
	}

	c.logger.WarnContext(ctx, "slot range not fully covered by signature listing",
		"wallet", params.Wallet.String(),
		"pages", maxSignaturePages,
		"in_range", len(selected),
	)
	return selected, listed, nil
}

// fetchDetail fetches and parses one transaction.
func (c *Client) fetchDetail(ctx context.Context, sig *rpc.TransactionSignature) (*Transaction, error) {
	txnOpts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}
	var result *rpc.GetTransactionResult
	err := c.observe(ctx, "getTransaction", func() error {
		var err error
		result, err = c.rpc.GetTransaction(ctx, sig.Signature, txnOpts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return parseTransactionFromResult(sig, result)
}

// GetBalance returns the wallet's SOL balance in lamports.
func (c *Client) GetBalance(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
	var out *rpc.GetBalanceResult
	err := c.observe(ctx, "getBalance", func() error {
		var err error
		out, err = c.rpc.GetBalance(ctx, wallet, rpc.CommitmentFinalized)
		return err
	})
	if err != nil {
		return 0, chain.NewProviderError(chain.Solana, "getBalance", err)
	}
	if out == nil {
		return 0, nil
	}
	return out.Value, nil
}

// GetTokenAccounts lists SPL token accounts owned by the wallet.
// Accounts that cannot be decoded are skipped.
func (c *Client) GetTokenAccounts(ctx context.Context, wallet solana.PublicKey) ([]*TokenAccount, error) {
	programID := TokenProgramID
	var out *rpc.GetTokenAccountsResult
	err := c.observe(ctx, "getTokenAccountsByOwner", func() error {
		var err error
		out, err = c.rpc.GetTokenAccountsByOwner(ctx, wallet,
			&rpc.GetTokenAccountsConfig{ProgramId: &programID},
			&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
		)
		return err
	})
	if err != nil {
		return nil, chain.NewProviderError(chain.Solana, "getTokenAccountsByOwner", err)
	}
	if out == nil {
		return nil, nil
	}

	accounts := make([]*TokenAccount, 0, len(out.Value))
	for _, ta := range out.Value {
		if ta == nil || ta.Account.Data == nil {
			continue
		}
		acct, err := parseTokenAccount(ta.Pubkey.String(), ta.Account.Data.GetRawJSON())
		if err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable token account", "error", err)
			continue
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// observe waits on the rate limiter, runs fn and records the call.
func (c *Client) observe(ctx context.Context, method string, fn func() error) error {
	if !c.limiter.Allow() {
		if c.metrics != nil {
			c.metrics.RecordRateLimitWait(string(chain.Solana))
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	err := fn()
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordProviderCall(string(chain.Solana), method, status, duration)
	}
	return err
}
