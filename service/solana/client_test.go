package solana

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	signatures    []*rpc.TransactionSignature
	transactions  map[string]*rpc.GetTransactionResult
	txErrors      map[string]error
	balance       uint64
	tokenAccounts *rpc.GetTokenAccountsResult
	err           error
	delay         time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	mu             sync.Mutex
	detailCalls    int
	signatureCalls int
}

func (m *mockRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	m.signatureCalls++
	m.mu.Unlock()

	sigs := m.signatures
	if opts != nil && !opts.Before.IsZero() {
		for i, s := range sigs {
			if s.Signature == opts.Before {
				sigs = sigs[i+1:]
				break
			}
		}
	}
	if opts != nil && opts.Limit != nil && len(sigs) > *opts.Limit {
		sigs = sigs[:*opts.Limit]
	}
	return sigs, nil
}

func (m *mockRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	m.mu.Lock()
	m.detailCalls++
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err, ok := m.txErrors[signature.String()]; ok {
		return nil, err
	}
	if m.transactions == nil {
		return nil, nil
	}
	return m.transactions[signature.String()], nil
}

func (m *mockRPCClient) GetBalance(
	ctx context.Context,
	address solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetBalanceResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &rpc.GetBalanceResult{Value: m.balance}, nil
}

func (m *mockRPCClient) GetTokenAccountsByOwner(
	ctx context.Context,
	owner solana.PublicKey,
	conf *rpc.GetTokenAccountsConfig,
	opts *rpc.GetTokenAccountsOpts,
) (*rpc.GetTokenAccountsResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tokenAccounts, nil
}

func newTestClient(mock *mockRPCClient, concurrency int) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, ClientOptions{
		Endpoint:          "test",
		Concurrency:       concurrency,
		RequestsPerSecond: 100000,
	}, nil, logger)
}

// testSignature builds a distinct signature from a small integer.
func testSignature(i int) solana.Signature {
	var s solana.Signature
	s[0] = byte(i)
	s[1] = byte(i >> 8)
	s[63] = 1
	return s
}

func makeSignatures(n int) []*rpc.TransactionSignature {
	sigs := make([]*rpc.TransactionSignature, n)
	for i := range sigs {
		bt := solana.UnixTimeSeconds(time.Now().Unix() - int64(i))
		sigs[i] = &rpc.TransactionSignature{
			Signature: testSignature(i),
			Slot:      uint64(1000 - i),
			BlockTime: &bt,
		}
	}
	return sigs
}

func TestFetchTransactions_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	mock := &mockRPCClient{signatures: makeSignatures(3)}
	client := newTestClient(mock, 10)

	txns, err := client.FetchTransactions(ctx, FetchTransactionsParams{
		Wallet: solana.NewWallet().PublicKey(),
		Limit:  10,
	})

	require.NoError(t, err)
	require.Len(t, txns, 3)
	// Transactions should be in descending order (newest first)
	assert.Equal(t, testSignature(0).String(), txns[0].Signature)
	assert.Equal(t, uint64(1000), txns[0].Slot)
	assert.Equal(t, testSignature(2).String(), txns[2].Signature)
	assert.NotNil(t, txns[0].BlockTime)
}

func TestFetchTransactions_BoundsConcurrency(t *testing.T) {
	ctx := context.Background()
	mock := &mockRPCClient{
		signatures: makeSignatures(30),
		delay:      5 * time.Millisecond,
	}
	client := newTestClient(mock, 3)

	txns, err := client.FetchTransactions(ctx, FetchTransactionsParams{
		Wallet: solana.NewWallet().PublicKey(),
		Limit:  30,
	})

	require.NoError(t, err)
	assert.Len(t, txns, 30)
	assert.Equal(t, 30, mock.detailCalls)
	assert.LessOrEqual(t, mock.maxInFlight.Load(), int32(3))
}

func TestFetchTransactions_DropsFailedDetailFetch(t *testing.T) {
	ctx := context.Background()
	sigs := makeSignatures(4)
	mock := &mockRPCClient{
		signatures: sigs,
		txErrors: map[string]error{
			sigs[1].Signature.String(): errors.New("429 Too Many Requests"),
		},
	}
	client := newTestClient(mock, 2)

	txns, err := client.FetchTransactions(ctx, FetchTransactionsParams{
		Wallet: solana.NewWallet().PublicKey(),
		Limit:  10,
	})

	require.NoError(t, err)
	require.Len(t, txns, 3)
	for _, txn := range txns {
		assert.NotEqual(t, sigs[1].Signature.String(), txn.Signature)
	}
}

func TestFetchTransactions_SkipsFailedTransactions(t *testing.T) {
	ctx := context.Background()
	sigs := makeSignatures(2)
	sigs[1].Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom error"}}
	mock := &mockRPCClient{signatures: sigs}
	client := newTestClient(mock, 2)

	txns, err := client.FetchTransactions(ctx, FetchTransactionsParams{
		Wallet: solana.NewWallet().PublicKey(),
		Limit:  10,
	})

	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, sigs[0].Signature.String(), txns[0].Signature)
	assert.Equal(t, 1, mock.detailCalls)
}

func TestFetchTransactions_SlotRange(t *testing.T) {
	ctx := context.Background()
	mock := &mockRPCClient{signatures: makeSignatures(5)} // slots 1000..996
	client := newTestClient(mock, 2)

	minSlot, maxSlot := uint64(997), uint64(999)
	txns, err := client.FetchTransactions(ctx, FetchTransactionsParams{
		Wallet:  solana.NewWallet().PublicKey(),
		Limit:   10,
		MinSlot: &minSlot,
		MaxSlot: &maxSlot,
	})

	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, uint64(999), txns[0].Slot)
	assert.Equal(t, uint64(997), txns[2].Slot)
}

func TestFetchTransactions_SlotRangeBelowNewestPage(t *testing.T) {
	ctx := context.Background()
	mock := &mockRPCClient{signatures: makeSignatures(30)} // slots 1000..971
	client := newTestClient(mock, 2)

	minSlot, maxSlot := uint64(976), uint64(980)
	txns, err := client.FetchTransactions(ctx, FetchTransactionsParams{
		Wallet:  solana.NewWallet().PublicKey(),
		Limit:   5,
		MinSlot: &minSlot,
		MaxSlot: &maxSlot,
	})

	require.NoError(t, err)
	require.Len(t, txns, 5)
	assert.Equal(t, uint64(980), txns[0].Slot)
	assert.Equal(t, uint64(976), txns[4].Slot)
	assert.Equal(t, 5, mock.signatureCalls)
}

func TestFetchTransactions_StopsPagingPastMinSlot(t *testing.T) {
	ctx := context.Background()
	mock := &mockRPCClient{signatures: makeSignatures(30)}
	client := newTestClient(mock, 2)

	minSlot, maxSlot := uint64(996), uint64(997)
	txns, err := client.FetchTransactions(ctx, FetchTransactionsParams{
		Wallet:  solana.NewWallet().PublicKey(),
		Limit:   3,
		MinSlot: &minSlot,
		MaxSlot: &maxSlot,
	})

	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, uint64(997), txns[0].Slot)
	assert.Equal(t, uint64(996), txns[1].Slot)
	assert.Equal(t, 2, mock.signatureCalls)
}

func TestFetchTransactions_UnboundedReadsOnePage(t *testing.T) {
	ctx := context.Background()
	mock := &mockRPCClient{signatures: makeSignatures(30)}
	client := newTestClient(mock, 2)

	txns, err := client.FetchTransactions(ctx, FetchTransactionsParams{
		Wallet: solana.NewWallet().PublicKey(),
		Limit:  5,
	})

	require.NoError(t, err)
	require.Len(t, txns, 5)
	assert.Equal(t, uint64(1000), txns[0].Slot)
	assert.Equal(t, 1, mock.signatureCalls)
}

func TestFetchTransactions_ErrorFromRPC(t *testing.T) {
	ctx := context.Background()
	mock := &mockRPCClient{err: assert.AnError}
	client := newTestClient(mock, 2)

	txns, err := client.FetchTransactions(ctx, FetchTransactionsParams{
		Wallet: solana.NewWallet().PublicKey(),
		Limit:  10,
	})

	require.Error(t, err)
	assert.Nil(t, txns)
	var perr *chain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "getSignaturesForAddress", perr.Method)
}

func TestGetTokenAccounts_ParsesJSON(t *testing.T) {
	ctx := context.Background()
	mint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	var result rpc.GetTokenAccountsResult
	raw := `{
		"context": {"slot": 1},
		"value": [{
			"pubkey": "` + solana.NewWallet().PublicKey().String() + `",
			"account": {
				"lamports": 2039280,
				"owner": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"executable": false,
				"rentEpoch": 0,
				"data": {
					"program": "spl-token",
					"parsed": {
						"type": "account",
						"info": {
							"mint": "` + mint.String() + `",
							"owner": "` + solana.NewWallet().PublicKey().String() + `",
							"tokenAmount": {"amount": "2500000", "decimals": 6, "uiAmountString": "2.5"}
						}
					},
					"space": 165
				}
			}
		}, {
			"pubkey": "` + solana.NewWallet().PublicKey().String() + `",
			"account": {
				"lamports": 1,
				"owner": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"executable": false,
				"rentEpoch": 0
			}
		}]
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &result))

	mock := &mockRPCClient{tokenAccounts: &result}
	client := newTestClient(mock, 2)

	accounts, err := client.GetTokenAccounts(ctx, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, mint.String(), accounts[0].Mint)
	assert.Equal(t, "2500000", accounts[0].Amount)
	assert.Equal(t, 6, accounts[0].Decimals)
}
