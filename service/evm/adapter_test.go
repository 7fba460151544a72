package evm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWallet  = "0x1111111111111111111111111111111111111111"
	testSpender = "0x2222222222222222222222222222222222222222"
	testToken   = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
)

type recordedCall struct {
	method string
	args   []interface{}
}

// fakeCaller serves canned JSON responses per method. A handler may inspect
// the call arguments to vary its answer.
type fakeCaller struct {
	mu       sync.Mutex
	calls    []recordedCall
	handlers map[string]func(args []interface{}) (interface{}, error)
}

func (f *fakeCaller) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{method: method, args: args})
	h, ok := f.handlers[method]
	f.mu.Unlock()
	if !ok {
		return errors.New("method not found: " + method)
	}
	resp, err := h(args)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

func (f *fakeCaller) callsTo(method string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newTestAdapter(t *testing.T, c chain.Chain, caller Caller) *Adapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := NewAdapter(c, caller, Options{RequestsPerSecond: 1000}, nil, logger)
	require.NoError(t, err)
	return a
}

func transfer(hash, from, to string) map[string]interface{} {
	return map[string]interface{}{
		"blockNum": "0x10",
		"hash":     hash,
		"from":     from,
		"to":       to,
		"category": "external",
		"asset":    "ETH",
		"rawContract": map[string]interface{}{
			"value":   "0xde0b6b3a7640000",
			"address": nil,
			"decimal": "0x12",
		},
		"metadata": map[string]interface{}{
			"blockTimestamp": "2024-01-01T00:00:00.000Z",
		},
	}
}

func TestNewAdapter_RejectsNonEVMChain(t *testing.T) {
	_, err := NewAdapter(chain.Solana, &fakeCaller{}, Options{}, nil, nil)
	var unsupported *chain.UnsupportedChainError
	assert.ErrorAs(t, err, &unsupported)
}

func TestFetchTransfers_OutgoingUsesFromAddress(t *testing.T) {
	fake := &fakeCaller{handlers: map[string]func([]interface{}) (interface{}, error){
		"alchemy_getAssetTransfers": func(args []interface{}) (interface{}, error) {
			return map[string]interface{}{
				"transfers": []interface{}{transfer("0xaa", testWallet, testSpender)},
			}, nil
		},
	}}
	a := newTestAdapter(t, chain.Ethereum, fake)

	got, err := a.FetchTransfers(context.Background(), testWallet, chain.DirectionOutgoing, chain.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0xaa", got[0].NativeHash())

	calls := fake.callsTo("alchemy_getAssetTransfers")
	require.Len(t, calls, 1)
	params := calls[0].args[0].(assetTransfersParams)
	assert.Equal(t, testWallet, params.FromAddress)
	assert.Empty(t, params.ToAddress)
	assert.Equal(t, "0x0", params.FromBlock)
	assert.Equal(t, "latest", params.ToBlock)
	assert.True(t, params.WithMetadata)
	assert.Contains(t, params.Category, CategoryInternal)
}

func TestFetchTransfers_BothRunsTwoQueries(t *testing.T) {
	fake := &fakeCaller{handlers: map[string]func([]interface{}) (interface{}, error){
		"alchemy_getAssetTransfers": func(args []interface{}) (interface{}, error) {
			p := args[0].(assetTransfersParams)
			if p.FromAddress != "" {
				return map[string]interface{}{"transfers": []interface{}{transfer("0xout", testWallet, testSpender)}}, nil
			}
			return map[string]interface{}{"transfers": []interface{}{transfer("0xin", testSpender, testWallet)}}, nil
		},
	}}
	a := newTestAdapter(t, chain.Base, fake)

	got, err := a.FetchTransfers(context.Background(), testWallet, chain.DirectionBoth, chain.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0xout", got[0].NativeHash())
	assert.Equal(t, "0xin", got[1].NativeHash())

	calls := fake.callsTo("alchemy_getAssetTransfers")
	require.Len(t, calls, 2)
	// Base has no internal transfer index.
	assert.NotContains(t, calls[0].args[0].(assetTransfersParams).Category, CategoryInternal)
	assert.Equal(t, testWallet, calls[1].args[0].(assetTransfersParams).ToAddress)
}

func TestFetchTransfers_PaginatesUntilMaxCount(t *testing.T) {
	page := 0
	fake := &fakeCaller{handlers: map[string]func([]interface{}) (interface{}, error){
		"alchemy_getAssetTransfers": func(args []interface{}) (interface{}, error) {
			page++
			return map[string]interface{}{
				"transfers": []interface{}{
					transfer("0x01", testWallet, testSpender),
					transfer("0x02", testWallet, testSpender),
				},
				"pageKey": "next",
			}, nil
		},
	}}
	a := newTestAdapter(t, chain.Ethereum, fake)

	got, err := a.FetchTransfers(context.Background(), testWallet, chain.DirectionOutgoing, chain.FetchOptions{MaxCount: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 2, page)

	calls := fake.callsTo("alchemy_getAssetTransfers")
	assert.Equal(t, "0x3", calls[0].args[0].(assetTransfersParams).MaxCount)
	assert.Equal(t, "0x1", calls[1].args[0].(assetTransfersParams).MaxCount)
	assert.Equal(t, "next", calls[1].args[0].(assetTransfersParams).PageKey)
}

func TestFetchTransfers_ProviderErrorIsWrapped(t *testing.T) {
	fake := &fakeCaller{handlers: map[string]func([]interface{}) (interface{}, error){
		"alchemy_getAssetTransfers": func(args []interface{}) (interface{}, error) {
			return nil, errors.New("429 too many requests")
		},
	}}
	a := newTestAdapter(t, chain.Ethereum, fake)

	_, err := a.FetchTransfers(context.Background(), testWallet, chain.DirectionOutgoing, chain.FetchOptions{})
	var perr *chain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, chain.Ethereum, perr.Chain)
	assert.Equal(t, "alchemy_getAssetTransfers", perr.Method)
}

func TestFetchTransfers_InvalidAddress(t *testing.T) {
	a := newTestAdapter(t, chain.Ethereum, &fakeCaller{})
	_, err := a.FetchTransfers(context.Background(), "not-an-address", chain.DirectionOutgoing, chain.FetchOptions{})
	require.Error(t, err)
	var perr *chain.ProviderError
	assert.False(t, errors.As(err, &perr))
}

func TestFetchNativeBalance(t *testing.T) {
	fake := &fakeCaller{handlers: map[string]func([]interface{}) (interface{}, error){
		"eth_getBalance": func(args []interface{}) (interface{}, error) {
			return "0xde0b6b3a7640000", nil
		},
	}}
	a := newTestAdapter(t, chain.Ethereum, fake)

	bal, err := a.FetchNativeBalance(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", bal)
}

func TestFetchTokenBalances_SkipsZeroAndCachesMetadata(t *testing.T) {
	fake := &fakeCaller{handlers: map[string]func([]interface{}) (interface{}, error){
		"alchemy_getTokenBalances": func(args []interface{}) (interface{}, error) {
			return map[string]interface{}{
				"address": testWallet,
				"tokenBalances": []interface{}{
					map[string]interface{}{"contractAddress": testToken, "tokenBalance": "0x00000000000000000000000000000000000000000000000000000000000f4240"},
					map[string]interface{}{"contractAddress": testSpender, "tokenBalance": "0x0"},
				},
			}, nil
		},
		"alchemy_getTokenMetadata": func(args []interface{}) (interface{}, error) {
			return map[string]interface{}{"name": "USD Coin", "symbol": "USDC", "decimals": 6}, nil
		},
	}}
	a := newTestAdapter(t, chain.Ethereum, fake)

	for i := 0; i < 2; i++ {
		balances, err := a.FetchTokenBalances(context.Background(), testWallet)
		require.NoError(t, err)
		require.Len(t, balances, 1)
		assert.Equal(t, "1000000", balances[0].Balance)
		require.NotNil(t, balances[0].Symbol)
		assert.Equal(t, "USDC", *balances[0].Symbol)
		require.NotNil(t, balances[0].Decimals)
		assert.Equal(t, 6, *balances[0].Decimals)
	}
	assert.Len(t, fake.callsTo("alchemy_getTokenMetadata"), 1)
}

func TestAllowance(t *testing.T) {
	fake := &fakeCaller{handlers: map[string]func([]interface{}) (interface{}, error){
		"eth_call": func(args []interface{}) (interface{}, error) {
			return "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", nil
		},
	}}
	a := newTestAdapter(t, chain.Ethereum, fake)

	got, err := a.Allowance(context.Background(), testToken, testWallet, testSpender)
	require.NoError(t, err)
	assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935", got)

	calls := fake.callsTo("eth_call")
	require.Len(t, calls, 1)
	msg := calls[0].args[0].(callMsg)
	assert.Equal(t, testToken, msg.To)
	assert.Equal(t, "0xdd62ed3e", msg.Data[:10])
}
