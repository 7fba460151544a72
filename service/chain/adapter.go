package chain

import (
	"context"
	"fmt"
	"sort"
)

// Direction selects which side of a transfer the queried address is on.
type Direction int

const (
	// DirectionBoth asks for every transfer touching the address. Adapters whose
	// provider cannot filter by side (Solana) only support this direction.
	DirectionBoth Direction = iota
	DirectionOutgoing
	DirectionIncoming
)

func (d Direction) String() string {
	switch d {
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	default:
		return "both"
	}
}

// FetchOptions bounds a transfer query.
type FetchOptions struct {
	// MaxCount caps the number of records returned per query. Zero means the adapter default.
	MaxCount int
	// FromBlock is the first block (or slot) to include. Nil means genesis.
	FromBlock *uint64
	// ToBlock is the last block to include. Nil means latest.
	ToBlock *uint64
}

// Native is a transfer in the provider's own shape. Each adapter returns
// its own concrete type; the ingest package maps them to a canonical record.
type Native interface {
	NativeHash() string
}

// TokenBalance is a fungible token holding reported by an adapter.
type TokenBalance struct {
	Contract string  `json:"contract"`
	Balance  string  `json:"balance"`
	Name     *string `json:"name,omitempty"`
	Symbol   *string `json:"symbol,omitempty"`
	Decimals *int    `json:"decimals,omitempty"`
}

// Adapter is the normalized fetch contract every chain family implements.
type Adapter interface {
	Chain() Chain
	FetchTransfers(ctx context.Context, address string, dir Direction, opts FetchOptions) ([]Native, error)
	FetchNativeBalance(ctx context.Context, address string) (string, error)
	FetchTokenBalances(ctx context.Context, address string) ([]TokenBalance, error)
}

// Registry maps each configured chain to its adapter.
type Registry struct {
	adapters map[Chain]Adapter
}

// NewRegistry builds a registry from the given adapters. Registering two
// adapters for the same chain or an adapter for an unknown chain is an error.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[Chain]Adapter, len(adapters))}
	for _, a := range adapters {
		c := a.Chain()
		if !c.Valid() {
			return nil, &UnsupportedChainError{Tag: string(c)}
		}
		if _, dup := r.adapters[c]; dup {
			return nil, fmt.Errorf("duplicate adapter for chain %s", c)
		}
		r.adapters[c] = a
	}
	return r, nil
}

// Get returns the adapter for c or an *UnsupportedChainError.
func (r *Registry) Get(c Chain) (Adapter, error) {
	if r == nil {
		return nil, &UnsupportedChainError{Tag: string(c)}
	}
	a, ok := r.adapters[c]
	if !ok {
		return nil, &UnsupportedChainError{Tag: string(c)}
	}
	return a, nil
}

// Chains lists the chains that have an adapter, sorted by tag.
func (r *Registry) Chains() []Chain {
	out := make([]Chain, 0, len(r.adapters))
	for c := range r.adapters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
