package chain

import (
	"fmt"
)

// UnsupportedChainError is returned when a chain tag has no adapter.
// It is fatal to the calling operation and never retried.
type UnsupportedChainError struct {
	Tag string
}

func (e *UnsupportedChainError) Error() string {
	return fmt.Sprintf("unsupported chain: %q", e.Tag)
}

// ProviderError wraps a failure from an upstream RPC or indexing provider.
// Adapters do not retry; the error is surfaced to the caller as-is.
type ProviderError struct {
	Chain  Chain
	Method string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider call %s failed: %v", e.Chain, e.Method, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err unless it is nil.
func NewProviderError(c Chain, method string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Chain: c, Method: method, Err: err}
}
