package ingest

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/evm"
	"github.com/brojonat/chainsync/service/solana"
)

const lamportsDecimals = 9

var (
	// ErrUnknownShape is returned for a native transfer type no normalizer handles.
	ErrUnknownShape = errors.New("unknown native transfer shape")
	// ErrNilRecord is returned when an adapter hands over a nil record.
	ErrNilRecord = errors.New("nil native transfer")
)

// Normalize maps one adapter-native transfer into a TransferRecord.
// It is pure: the same input always yields the same record.
func Normalize(c chain.Chain, native chain.Native) (TransferRecord, error) {
	switch t := native.(type) {
	case nil:
		return TransferRecord{}, ErrNilRecord
	case *evm.AssetTransfer:
		if t == nil {
			return TransferRecord{}, ErrNilRecord
		}
		if c.Family() != chain.FamilyEVM {
			return TransferRecord{}, fmt.Errorf("evm transfer on %s chain", c)
		}
		return normalizeEVM(c, t)
	case *solana.Transaction:
		if t == nil {
			return TransferRecord{}, ErrNilRecord
		}
		if c != chain.Solana {
			return TransferRecord{}, fmt.Errorf("solana transaction on %s chain", c)
		}
		return normalizeSolana(t)
	default:
		return TransferRecord{}, fmt.Errorf("%w: %T", ErrUnknownShape, native)
	}
}

// NormalizeAll normalizes a batch, returning successes and per-item errors
// separately so one bad record never hides the others.
func NormalizeAll(c chain.Chain, natives []chain.Native) ([]TransferRecord, []error) {
	records := make([]TransferRecord, 0, len(natives))
	var errs []error
	for _, n := range natives {
		rec, err := Normalize(c, n)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to normalize %s: %w", NativeHash(n), err))
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

// NativeHash returns the record's hash, or "" for a nil record.
func NativeHash(n chain.Native) string {
	if n == nil {
		return ""
	}
	return n.NativeHash()
}

func normalizeEVM(c chain.Chain, t *evm.AssetTransfer) (TransferRecord, error) {
	if t.Hash == "" {
		return TransferRecord{}, errors.New("transfer has no hash")
	}

	category, err := evmCategory(t.Category)
	if err != nil {
		return TransferRecord{}, err
	}

	value, err := evmValue(t)
	if err != nil {
		return TransferRecord{}, err
	}

	block, err := canonicalInteger(t.BlockNum)
	if err != nil {
		return TransferRecord{}, fmt.Errorf("invalid block number: %w", err)
	}

	rec := TransferRecord{
		Hash:     strings.ToLower(t.Hash),
		Chain:    c,
		From:     chain.CanonicalAddress(c, t.From),
		Asset:    cloneString(t.Asset),
		Value:    value,
		Category: category,
		Block:    block,
	}
	if t.To != nil {
		to := chain.CanonicalAddress(c, *t.To)
		rec.To = &to
	}
	if t.Metadata != nil {
		rec.Timestamp = t.Metadata.BlockTimestamp
	}
	if t.RawContract.Address != nil && *t.RawContract.Address != "" {
		addr := chain.CanonicalAddress(c, *t.RawContract.Address)
		rec.ContractAddress = &addr
	}
	if t.RawContract.Decimal != nil && *t.RawContract.Decimal != "" {
		d, err := canonicalInteger(*t.RawContract.Decimal)
		if err != nil {
			return TransferRecord{}, fmt.Errorf("invalid decimals: %w", err)
		}
		n, err := strconv.Atoi(d)
		if err != nil {
			return TransferRecord{}, fmt.Errorf("invalid decimals: %w", err)
		}
		rec.Decimals = &n
	}
	return rec, nil
}

func evmCategory(category string) (string, error) {
	switch category {
	case evm.CategoryExternal, evm.CategoryInternal:
		return CategoryNative, nil
	case evm.CategoryERC20:
		return CategoryFungible, nil
	case evm.CategoryERC721, evm.CategoryERC1155, evm.CategorySpecialNFT:
		return CategoryNFT, nil
	default:
		return "", fmt.Errorf("unknown transfer category %q", category)
	}
}

// evmValue reads the exact integer amount. The provider's float value is
// never consulted.
func evmValue(t *evm.AssetTransfer) (string, error) {
	if t.RawContract.Value != nil && *t.RawContract.Value != "" {
		return canonicalInteger(*t.RawContract.Value)
	}
	switch t.Category {
	case evm.CategoryERC721, evm.CategorySpecialNFT:
		return "1", nil
	case evm.CategoryERC1155:
		if len(t.ERC1155Metadata) > 0 {
			return canonicalInteger(t.ERC1155Metadata[0].Value)
		}
	}
	return "", errors.New("transfer has no raw value")
}

func normalizeSolana(t *solana.Transaction) (TransferRecord, error) {
	if t.Signature == "" {
		return TransferRecord{}, errors.New("transaction has no signature")
	}
	if t.FromAddress == nil {
		return TransferRecord{}, errors.New("transaction has no sender")
	}

	rec := TransferRecord{
		Hash:     t.Signature,
		Chain:    chain.Solana,
		From:     *t.FromAddress,
		To:       cloneString(t.ToAddress),
		Value:    strconv.FormatUint(t.Amount, 10),
		Category: CategoryTransfer,
		Block:    strconv.FormatUint(t.Slot, 10),
	}
	if t.BlockTime != nil {
		rec.Timestamp = t.BlockTime.UTC().Format(time.RFC3339)
	}
	if t.TokenMint != nil {
		rec.Asset = cloneString(t.TokenMint)
		rec.ContractAddress = cloneString(t.TokenMint)
		if t.Decimals != nil {
			d := *t.Decimals
			rec.Decimals = &d
		}
	} else {
		sol := chain.Solana.NativeSymbol()
		d := lamportsDecimals
		rec.Asset = &sol
		rec.Decimals = &d
	}
	return rec, nil
}

// canonicalInteger converts a hex (0x-prefixed) or decimal integer string
// into canonical base-10 form.
func canonicalInteger(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return evm.HexToDecimal(s)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("invalid integer %q", s)
	}
	return n.String(), nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
