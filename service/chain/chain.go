package chain

import (
	"strings"
)

// Chain identifies a supported network. The set is closed: adding a chain
// means adding a constant here and an adapter for its family.
type Chain string

const (
	Ethereum Chain = "ethereum"
	Polygon  Chain = "polygon"
	Arbitrum Chain = "arbitrum"
	Optimism Chain = "optimism"
	Base     Chain = "base"
	Solana   Chain = "solana"
)

// Family groups chains that share an account and transaction model.
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
)

var all = []Chain{Ethereum, Polygon, Arbitrum, Optimism, Base, Solana}

// All returns every supported chain in a stable order.
func All() []Chain {
	out := make([]Chain, len(all))
	copy(out, all)
	return out
}

// EVM returns the supported EVM chains.
func EVM() []Chain {
	out := make([]Chain, 0, len(all))
	for _, c := range all {
		if c.Family() == FamilyEVM {
			out = append(out, c)
		}
	}
	return out
}

// Parse converts a chain tag into a Chain. Tags are matched case-insensitively.
// An unknown tag yields an *UnsupportedChainError.
func Parse(tag string) (Chain, error) {
	c := Chain(strings.ToLower(strings.TrimSpace(tag)))
	if !c.Valid() {
		return "", &UnsupportedChainError{Tag: tag}
	}
	return c, nil
}

// Valid reports whether c is one of the supported chains.
func (c Chain) Valid() bool {
	for _, known := range all {
		if c == known {
			return true
		}
	}
	return false
}

// Family returns the chain family. Unknown chains report an empty family.
func (c Chain) Family() Family {
	switch c {
	case Ethereum, Polygon, Arbitrum, Optimism, Base:
		return FamilyEVM
	case Solana:
		return FamilySolana
	default:
		return ""
	}
}

// NativeSymbol returns the ticker of the chain's native asset.
func (c Chain) NativeSymbol() string {
	switch c {
	case Polygon:
		return "POL"
	case Solana:
		return "SOL"
	case Ethereum, Arbitrum, Optimism, Base:
		return "ETH"
	default:
		return ""
	}
}

func (c Chain) String() string {
	return string(c)
}
