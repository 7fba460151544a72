package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ERC-20 function selectors.
var (
	selectorAllowance = hexutil.MustDecode("0xdd62ed3e") // allowance(address,address)
	selectorApprove   = hexutil.MustDecode("0x095ea7b3") // approve(address,uint256)
)

// EncodeAllowance builds calldata for allowance(owner, spender).
func EncodeAllowance(owner, spender string) (string, error) {
	o, err := parseAddress(owner)
	if err != nil {
		return "", err
	}
	s, err := parseAddress(spender)
	if err != nil {
		return "", err
	}
	data := make([]byte, 0, 4+64)
	data = append(data, selectorAllowance...)
	data = append(data, common.LeftPadBytes(o.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(s.Bytes(), 32)...)
	return hexutil.Encode(data), nil
}

// EncodeApprove builds calldata for approve(spender, amount).
// Revocation is approve(spender, 0).
func EncodeApprove(spender string, amount *big.Int) (string, error) {
	s, err := parseAddress(spender)
	if err != nil {
		return "", err
	}
	if amount == nil || amount.Sign() < 0 {
		return "", fmt.Errorf("approve amount must be a non-negative integer")
	}
	if amount.BitLen() > 256 {
		return "", fmt.Errorf("approve amount exceeds uint256")
	}
	data := make([]byte, 0, 4+64)
	data = append(data, selectorApprove...)
	data = append(data, common.LeftPadBytes(s.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return hexutil.Encode(data), nil
}

// HexToDecimal converts a 0x-prefixed quantity into a base-10 string.
// Leading zeros are accepted because providers return zero-padded words.
// An empty quantity ("0x") is zero.
func HexToDecimal(s string) (string, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if digits == "" {
		return "0", nil
	}
	n, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return "", fmt.Errorf("invalid hex quantity %q", s)
	}
	return n.String(), nil
}

// ValidAddress reports whether s is a 20-byte hex address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
