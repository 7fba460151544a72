// Package adapters builds the chain adapter registry from provider
// configuration. Every adapter is constructed explicitly here and handed to
// its consumers; nothing holds a package-level client.
package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/evm"
	"github.com/brojonat/chainsync/service/metrics"
	"github.com/brojonat/chainsync/service/solana"
	"github.com/ethereum/go-ethereum/rpc"
)

// alchemyNetworks maps chains to Alchemy's mainnet subdomains.
var alchemyNetworks = map[chain.Chain]string{
	chain.Ethereum: "eth-mainnet",
	chain.Polygon:  "polygon-mainnet",
	chain.Arbitrum: "arb-mainnet",
	chain.Optimism: "opt-mainnet",
	chain.Base:     "base-mainnet",
	chain.Solana:   "solana-mainnet",
}

// Config enumerates provider credentials and endpoints per chain.
type Config struct {
	AlchemyAPIKey string
	// EVMChains selects which EVM chains get an adapter.
	EVMChains []chain.Chain
	// RPCURLs overrides the Alchemy URL for a chain.
	RPCURLs map[chain.Chain]string
	// SolanaRPCURLs is a pool of Solana endpoints; one is picked at startup.
	SolanaRPCURLs []string

	SolanaSignatureLimit    int
	SolanaDetailConcurrency int
	EVMMaxCount             int
	RequestsPerSecond       float64
	HTTPTimeout             time.Duration
}

// AlchemyURL returns the Alchemy JSON-RPC URL for c, or "" if Alchemy does not serve it.
func AlchemyURL(c chain.Chain, apiKey string) string {
	network, ok := alchemyNetworks[c]
	if !ok || apiKey == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.g.alchemy.com/v2/%s", network, apiKey)
}

// Set is the result of Build: the registry plus typed access to the EVM
// adapters, which the approvals service needs for allowance reads.
type Set struct {
	Registry *chain.Registry
	evm      map[chain.Chain]*evm.Adapter
	clients  []*rpc.Client
}

// EVM returns the EVM adapter for c.
func (s *Set) EVM(c chain.Chain) (*evm.Adapter, error) {
	a, ok := s.evm[c]
	if !ok {
		return nil, &chain.UnsupportedChainError{Tag: string(c)}
	}
	return a, nil
}

// Close releases RPC connections.
func (s *Set) Close() {
	for _, c := range s.clients {
		c.Close()
	}
}

// Build constructs one adapter per configured chain. A chain without an
// endpoint is skipped, so lookups for it fail with UnsupportedChainError.
func Build(ctx context.Context, cfg Config, m *metrics.Metrics, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	set := &Set{evm: make(map[chain.Chain]*evm.Adapter)}
	var registered []chain.Adapter

	for _, c := range cfg.EVMChains {
		if c.Family() != chain.FamilyEVM {
			set.Close()
			return nil, &chain.UnsupportedChainError{Tag: string(c)}
		}
		url := cfg.RPCURLs[c]
		if url == "" {
			url = AlchemyURL(c, cfg.AlchemyAPIKey)
		}
		if url == "" {
			logger.Warn("no provider configured, chain disabled", "chain", string(c))
			continue
		}

		client, err := evm.Dial(ctx, url, cfg.HTTPTimeout)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to build %s adapter: %w", c, err)
		}
		set.clients = append(set.clients, client)

		a, err := evm.NewAdapter(c, client, evm.Options{
			MaxCount:          cfg.EVMMaxCount,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, m, logger)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to build %s adapter: %w", c, err)
		}
		set.evm[c] = a
		registered = append(registered, a)
	}

	solanaURLs := cfg.SolanaRPCURLs
	if len(solanaURLs) == 0 {
		if url := cfg.RPCURLs[chain.Solana]; url != "" {
			solanaURLs = []string{url}
		} else if url := AlchemyURL(chain.Solana, cfg.AlchemyAPIKey); url != "" {
			solanaURLs = []string{url}
		}
	}
	if len(solanaURLs) > 0 {
		url, err := solana.SelectRandomEndpoint(solanaURLs)
		if err != nil {
			set.Close()
			return nil, err
		}
		registered = append(registered, solana.NewAdapterFromURL(url, solana.ClientOptions{
			Concurrency:       cfg.SolanaDetailConcurrency,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, cfg.SolanaSignatureLimit, m, logger))
	} else {
		logger.Warn("no provider configured, chain disabled", "chain", string(chain.Solana))
	}

	reg, err := chain.NewRegistry(registered...)
	if err != nil {
		set.Close()
		return nil, err
	}
	set.Registry = reg

	names := make([]string, 0, len(registered))
	for _, c := range reg.Chains() {
		names = append(names, string(c))
	}
	logger.Info("chain adapters ready", "chains", strings.Join(names, ","))
	return set, nil
}
