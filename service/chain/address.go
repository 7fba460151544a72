package chain

import "strings"

// CanonicalAddress returns the stored form of an address on the given chain.
// EVM addresses are hex and case-insensitive, so they are lower-cased.
// Solana addresses are base58 and case-sensitive, so they are only trimmed.
func CanonicalAddress(c Chain, address string) string {
	address = strings.TrimSpace(address)
	if c.Family() == FamilyEVM {
		return strings.ToLower(address)
	}
	return address
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
