package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/chainsync/service/adapters"
	"github.com/brojonat/chainsync/service/chain"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Database configuration
	DatabaseURL string

	// NATS configuration. Empty disables event publishing and SSE streams.
	NATSURL string

	// Chain providers
	AlchemyAPIKey string
	EVMChains     []chain.Chain
	RPCURLs       map[chain.Chain]string
	SolanaRPCURLs []string

	// Provider limits
	SolanaSignatureLimit    int
	SolanaDetailConcurrency int
	EVMMaxCount             int
	ProviderRPS             float64
	ProviderTimeout         time.Duration

	// Signer configuration. Empty SignerURL disables revocation.
	SignerURL     string
	SignerTimeout time.Duration

	// Resync worker configuration
	MetricsAddr       string
	ResyncInterval    time.Duration
	ResyncMinAge      time.Duration
	ResyncConcurrency int
	ResyncMaxCount    int
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	cfg.NATSURL = os.Getenv("NATS_URL")

	// Chain providers
	cfg.AlchemyAPIKey = os.Getenv("ALCHEMY_API_KEY")

	evmChains, err := parseChains("EVM_CHAINS", chain.EVM())
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.EVMChains = evmChains
	}

	cfg.RPCURLs = make(map[chain.Chain]string)
	for _, c := range chain.EVM() {
		if u := os.Getenv(rpcURLKey(c)); u != "" {
			cfg.RPCURLs[c] = u
		}
	}
	cfg.SolanaRPCURLs = splitList(os.Getenv("SOLANA_RPC_URL"))

	if cfg.AlchemyAPIKey == "" && len(cfg.RPCURLs) == 0 && len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("no chain provider configured: set ALCHEMY_API_KEY, a <CHAIN>_RPC_URL or SOLANA_RPC_URL"))
	}

	// Provider limits
	if cfg.SolanaSignatureLimit, err = parseInt("SOLANA_SIGNATURE_LIMIT", 100); err != nil {
		errs = append(errs, err)
	}
	if cfg.SolanaDetailConcurrency, err = parseInt("SOLANA_DETAIL_CONCURRENCY", 10); err != nil {
		errs = append(errs, err)
	}
	if cfg.EVMMaxCount, err = parseInt("EVM_MAX_COUNT", 1000); err != nil {
		errs = append(errs, err)
	}
	if cfg.ProviderRPS, err = parseFloat("PROVIDER_RPS", 10); err != nil {
		errs = append(errs, err)
	}
	if cfg.ProviderTimeout, err = parseDuration("PROVIDER_TIMEOUT", "30s"); err != nil {
		errs = append(errs, err)
	}

	// Signer configuration
	cfg.SignerURL = os.Getenv("SIGNER_URL")
	if cfg.SignerTimeout, err = parseDuration("SIGNER_TIMEOUT", "60s"); err != nil {
		errs = append(errs, err)
	}

	// Resync worker configuration
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	if cfg.ResyncInterval, err = parseDuration("RESYNC_INTERVAL", "15m"); err != nil {
		errs = append(errs, err)
	}
	if cfg.ResyncMinAge, err = parseDuration("RESYNC_MIN_AGE", "5m"); err != nil {
		errs = append(errs, err)
	}
	if cfg.ResyncConcurrency, err = parseInt("RESYNC_CONCURRENCY", 4); err != nil {
		errs = append(errs, err)
	}
	if cfg.ResyncMaxCount, err = parseInt("RESYNC_MAX_COUNT", 0); err != nil {
		errs = append(errs, err)
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	for _, ch := range c.EVMChains {
		if ch.Family() != chain.FamilyEVM {
			errs = append(errs, fmt.Errorf("EVMChains: %s is not an EVM chain", ch))
		}
	}

	if c.SolanaSignatureLimit < 1 || c.SolanaSignatureLimit > 1000 {
		errs = append(errs, fmt.Errorf("SolanaSignatureLimit must be between 1 and 1000"))
	}

	if c.SolanaDetailConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SolanaDetailConcurrency must be at least 1"))
	}

	if c.EVMMaxCount < 1 {
		errs = append(errs, fmt.Errorf("EVMMaxCount must be at least 1"))
	}

	if c.ProviderRPS <= 0 {
		errs = append(errs, fmt.Errorf("ProviderRPS must be positive"))
	}

	if c.ProviderTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ProviderTimeout must be at least 1 second"))
	}

	if c.ResyncInterval < time.Minute {
		errs = append(errs, fmt.Errorf("ResyncInterval must be at least 1 minute"))
	}

	if c.ResyncConcurrency < 1 {
		errs = append(errs, fmt.Errorf("ResyncConcurrency must be at least 1"))
	}

	if c.ResyncMaxCount < 0 {
		errs = append(errs, fmt.Errorf("ResyncMaxCount must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// Adapters returns the chain adapter factory configuration.
func (c *Config) Adapters() adapters.Config {
	return adapters.Config{
		AlchemyAPIKey:           c.AlchemyAPIKey,
		EVMChains:               c.EVMChains,
		RPCURLs:                 c.RPCURLs,
		SolanaRPCURLs:           c.SolanaRPCURLs,
		SolanaSignatureLimit:    c.SolanaSignatureLimit,
		SolanaDetailConcurrency: c.SolanaDetailConcurrency,
		EVMMaxCount:             c.EVMMaxCount,
		RequestsPerSecond:       c.ProviderRPS,
		HTTPTimeout:             c.ProviderTimeout,
	}
}

// rpcURLKey returns the override variable for c, e.g. ETHEREUM_RPC_URL.
func rpcURLKey(c chain.Chain) string {
	return strings.ToUpper(string(c)) + "_RPC_URL"
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseChains parses a comma-separated list of chain tags or uses a default.
func parseChains(key string, defaultValue []chain.Chain) ([]chain.Chain, error) {
	tags := splitList(os.Getenv(key))
	if len(tags) == 0 {
		return defaultValue, nil
	}
	out := make([]chain.Chain, 0, len(tags))
	for _, tag := range tags {
		c, err := chain.Parse(tag)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}
