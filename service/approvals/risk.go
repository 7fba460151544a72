// Package approvals snapshots ERC-20 allowances, classifies spender risk and
// runs the revoke and re-approve flows.
package approvals

import (
	"math/big"
	"strings"
)

// RiskLevel is the tier assigned to an approval.
type RiskLevel string

// Classify only ever assigns RiskLow or RiskUnknown. Medium and high are set
// manually or by an external source.
const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// MaxUint256 is the largest allowance representable on chain, the value
// wallets use for "unlimited" approvals.
const MaxUint256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

var maxUint256 = func() *big.Int {
	n, _ := new(big.Int).SetString(MaxUint256, 10)
	return n
}()

// wellKnownProtocols are matched case-insensitively as substrings of the
// spender's display name.
var wellKnownProtocols = []string{
	"uniswap",
	"sushiswap",
	"pancakeswap",
	"1inch",
	"0x protocol",
	"0x exchange",
	"paraswap",
	"cow protocol",
	"curve",
	"balancer",
	"aave",
	"compound",
	"lido",
	"opensea",
	"seaport",
	"blur",
	"permit2",
	"metamask swap",
}

// Classify returns RiskLow when spenderName names a well-known protocol and
// RiskUnknown otherwise. The address is not consulted.
func Classify(spenderAddress, spenderName string) RiskLevel {
	name := strings.ToLower(strings.TrimSpace(spenderName))
	if name == "" {
		return RiskUnknown
	}
	for _, p := range wellKnownProtocols {
		if strings.Contains(name, p) {
			return RiskLow
		}
	}
	return RiskUnknown
}

// IsUnlimited reports whether allowance is the max uint256 value or a
// provider "infinite"/"unlimited" sentinel.
func IsUnlimited(allowance string) bool {
	s := strings.TrimSpace(allowance)
	switch strings.ToLower(s) {
	case "infinite", "unlimited":
		return true
	}
	if s == MaxUint256 {
		return true
	}
	n, ok := new(big.Int).SetString(s, 10)
	return ok && n.Cmp(maxUint256) == 0
}
