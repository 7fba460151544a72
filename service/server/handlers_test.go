package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/chainsync/service/approvals"
	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/evm"
	"github.com/brojonat/chainsync/service/signer"
	"github.com/brojonat/chainsync/service/syncer"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	evmWallet  = "0x" + strings.Repeat("ab", 20)
	evmOther   = "0x" + strings.Repeat("cd", 20)
	evmToken   = "0x" + strings.Repeat("11", 20)
	evmSpender = "0x" + strings.Repeat("22", 20)
	solWallet  = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memStore is an in-memory Store that also backs the sync orchestrator.
type memStore struct {
	mu        sync.Mutex
	wallets   map[string]*db.Wallet
	runs      map[uuid.UUID]*db.SyncRun
	transfers []*db.Transfer
}

func newMemStore() *memStore {
	return &memStore{
		wallets: make(map[string]*db.Wallet),
		runs:    make(map[uuid.UUID]*db.SyncRun),
	}
}

func walletKey(owner string, c chain.Chain, address string) string {
	return owner + "|" + string(c) + "|" + chain.CanonicalAddress(c, address)
}

func (s *memStore) AddWallet(ctx context.Context, params db.AddWalletParams) (*db.Wallet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := walletKey(params.OwnerID, params.Chain, params.Address)
	if w, ok := s.wallets[key]; ok {
		w.Active = true
		cp := *w
		return &cp, false, nil
	}
	kind := params.Kind
	if kind == "" {
		kind = db.WalletKindWatch
	}
	w := &db.Wallet{
		ID:        uuid.New(),
		OwnerID:   params.OwnerID,
		Chain:     params.Chain,
		Address:   chain.CanonicalAddress(params.Chain, params.Address),
		Label:     params.Label,
		Kind:      kind,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.wallets[key] = w
	cp := *w
	return &cp, true, nil
}

func (s *memStore) ListWallets(ctx context.Context, ownerID string) ([]*db.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.Wallet
	for _, w := range s.wallets {
		if w.OwnerID == ownerID && w.Active {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) RemoveWallet(ctx context.Context, ownerID string, c chain.Chain, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletKey(ownerID, c, address)]
	if !ok || !w.Active {
		return db.ErrNotFound
	}
	w.Active = false
	return nil
}

func (s *memStore) UpdateWalletLastSynced(ctx context.Context, ownerID string, c chain.Chain, address string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[walletKey(ownerID, c, address)]; ok {
		w.LastSyncedAt = &at
	}
	return nil
}

func (s *memStore) CreateSyncRun(ctx context.Context, params db.CreateSyncRunParams) (*db.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := params.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	run := &db.SyncRun{
		ID:            id,
		OwnerID:       params.OwnerID,
		WalletAddress: params.WalletAddress,
		Chain:         params.Chain,
		Status:        db.SyncStatusPending,
		StartedAt:     time.Now(),
		FromBlock:     params.FromBlock,
		ToBlock:       params.ToBlock,
	}
	s.runs[id] = run
	cp := *run
	return &cp, nil
}

func (s *memStore) StartSyncRun(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.Status != db.SyncStatusPending {
		return db.ErrInvalidTransition
	}
	run.Status = db.SyncStatusInProgress
	return nil
}

func (s *memStore) FinishSyncRun(ctx context.Context, params db.FinishSyncRunParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[params.ID]
	if !ok || run.Status.Terminal() {
		return db.ErrInvalidTransition
	}
	run.Status = params.Status
	run.ImportedCount = params.ImportedCount
	run.ErrorMessage = params.ErrorMessage
	run.CompletedAt = &params.CompletedAt
	return nil
}

func (s *memStore) GetSyncRun(ctx context.Context, id uuid.UUID) (*db.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *memStore) ListSyncRuns(ctx context.Context, params db.ListSyncRunsParams) ([]*db.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.SyncRun
	for _, run := range s.runs {
		if run.OwnerID != params.OwnerID {
			continue
		}
		if params.Chain != nil && run.Chain != *params.Chain {
			continue
		}
		cp := *run
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) InsertTransfer(ctx context.Context, params db.InsertTransferParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transfers {
		if t.OwnerID == params.OwnerID && t.Key() == params.Record.Key() {
			return false, nil
		}
	}
	s.transfers = append(s.transfers, &db.Transfer{
		TransferRecord: params.Record,
		OwnerID:        params.OwnerID,
		WalletAddress:  params.WalletAddress,
		Direction:      params.Direction,
		SyncRunID:      params.SyncRunID,
		CreatedAt:      time.Now(),
	})
	return true, nil
}

func (s *memStore) ListTransfers(ctx context.Context, params db.ListTransfersParams) ([]*db.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.Transfer
	for _, t := range s.transfers {
		if t.OwnerID == params.OwnerID {
			out = append(out, t)
		}
	}
	start := int(params.Offset)
	if start > len(out) {
		start = len(out)
	}
	end := start + int(params.Limit)
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (s *memStore) CountTransfers(ctx context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.transfers {
		if t.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// stubAdapter returns fixed data for every call.
type stubAdapter struct {
	chain     chain.Chain
	outgoing  []chain.Native
	incoming  []chain.Native
	native    string
	tokens    []chain.TokenBalance
	tokenErr  error
	nativeErr error
}

func (a *stubAdapter) Chain() chain.Chain { return a.chain }

func (a *stubAdapter) FetchTransfers(ctx context.Context, address string, dir chain.Direction, opts chain.FetchOptions) ([]chain.Native, error) {
	if dir == chain.DirectionIncoming {
		return a.incoming, nil
	}
	return a.outgoing, nil
}

func (a *stubAdapter) FetchNativeBalance(ctx context.Context, address string) (string, error) {
	return a.native, a.nativeErr
}

func (a *stubAdapter) FetchTokenBalances(ctx context.Context, address string) ([]chain.TokenBalance, error) {
	return a.tokens, a.tokenErr
}

type adapterMap map[chain.Chain]chain.Adapter

func (m adapterMap) Get(c chain.Chain) (chain.Adapter, error) {
	a, ok := m[c]
	if !ok {
		return nil, &chain.UnsupportedChainError{Tag: string(c)}
	}
	return a, nil
}

// fakeApprovals records calls and returns canned results.
type fakeApprovals struct {
	checkReq   approvals.CheckRequest
	listFilter db.ListTokenApprovalsParams
	approval   *db.TokenApproval
	err        error
}

func (f *fakeApprovals) Check(ctx context.Context, req approvals.CheckRequest) (*db.TokenApproval, error) {
	f.checkReq = req
	return f.approval, f.err
}

func (f *fakeApprovals) Revoke(ctx context.Context, ownerID string, id uuid.UUID) (*db.TokenApproval, error) {
	return f.approval, f.err
}

func (f *fakeApprovals) Reapprove(ctx context.Context, ownerID string, id uuid.UUID, approvedAt time.Time) (*db.TokenApproval, error) {
	return f.approval, f.err
}

func (f *fakeApprovals) List(ctx context.Context, filter db.ListTokenApprovalsParams) ([]*db.TokenApproval, error) {
	f.listFilter = filter
	if f.approval == nil {
		return nil, f.err
	}
	return []*db.TokenApproval{f.approval}, f.err
}

func strPtr(s string) *string { return &s }

func ethTransfer(hash, from, to string) *evm.AssetTransfer {
	return &evm.AssetTransfer{
		BlockNum: "0x10",
		Hash:     hash,
		From:     from,
		To:       strPtr(to),
		Asset:    strPtr("ETH"),
		Category: evm.CategoryExternal,
		RawContract: evm.RawContract{
			Value: strPtr("0xde0b6b3a7640000"),
		},
		Metadata: &evm.TransferMetadata{BlockTimestamp: "2024-01-01T00:00:00.000Z"},
	}
}

type testEnv struct {
	store     *memStore
	adapter   *stubAdapter
	approvals *fakeApprovals
	handler   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	adapter := &stubAdapter{chain: chain.Ethereum, native: "1500000000000000000"}
	adapters := adapterMap{chain.Ethereum: adapter}
	approvalSvc := &fakeApprovals{}
	orchestrator := syncer.New(store, adapters, testLogger())
	srv := New(":0", store, orchestrator, approvalSvc, adapters, nil, nil, testLogger())
	return &testEnv{
		store:     store,
		adapter:   adapter,
		approvals: approvalSvc,
		handler:   srv.Handler(),
	}
}

func (e *testEnv) do(t *testing.T, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodOptions, "/api/v1/wallets", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), OwnerHeader)
}

func TestMissingOwnerIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/v1/wallets", "/api/v1/sync-runs", "/api/v1/transfers", "/api/v1/approvals"} {
		rec := env.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, rec.Body.String(), OwnerHeader)
	}
}

func TestAddWallet(t *testing.T) {
	env := newTestEnv(t)

	body := `{"chain":"ethereum","address":"` + strings.ToUpper(evmWallet[:2]) + evmWallet[2:] + `","label":"main"}`
	rec := env.do(t, http.MethodPost, "/api/v1/wallets", "u1", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created db.Wallet
	decodeBody(t, rec, &created)
	assert.Equal(t, evmWallet, created.Address)
	assert.Equal(t, db.WalletKindWatch, created.Kind)

	rec = env.do(t, http.MethodPost, "/api/v1/wallets", "u1", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wallet already exists")

	// Same address for another owner is a separate wallet.
	rec = env.do(t, http.MethodPost, "/api/v1/wallets", "u2", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAddWallet_PathologicalInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     string
		contains string
	}{
		{
			name:     "extremely large request body",
			body:     `{"chain":"ethereum","address":"` + strings.Repeat("A", 2*1024*1024) + `"}`,
			contains: "request body too large",
		},
		{
			name:     "malformed JSON",
			body:     `{"chain":"ethereum","address":`,
			contains: "invalid request body",
		},
		{
			name:     "unknown field",
			body:     `{"chain":"ethereum","address":"` + evmWallet + `","network":"mainnet"}`,
			contains: "invalid request body",
		},
		{
			name:     "missing chain",
			body:     `{"address":"` + evmWallet + `"}`,
			contains: "chain is required",
		},
		{
			name:     "unknown chain",
			body:     `{"chain":"dogecoin","address":"` + evmWallet + `"}`,
			contains: "dogecoin",
		},
		{
			name:     "missing address",
			body:     `{"chain":"ethereum"}`,
			contains: "address is required",
		},
		{
			name:     "short evm address",
			body:     `{"chain":"polygon","address":"0x1234"}`,
			contains: "invalid address format",
		},
		{
			name:     "solana address on evm chain",
			body:     `{"chain":"base","address":"` + solWallet + `"}`,
			contains: "invalid address format",
		},
		{
			name:     "evm address on solana",
			body:     `{"chain":"solana","address":"` + evmWallet + `"}`,
			contains: "invalid address format",
		},
		{
			name:     "control characters",
			body:     `{"chain":"ethereum","address":"0xab\u0000cd"}`,
			contains: "control characters",
		},
		{
			name:     "address too long",
			body:     `{"chain":"ethereum","address":"0x` + strings.Repeat("a", 200) + `"}`,
			contains: "address too long",
		},
		{
			name:     "invalid kind",
			body:     `{"chain":"ethereum","address":"` + evmWallet + `","kind":"cold"}`,
			contains: "invalid kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/wallets", "u1", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}

	wallets, err := env.store.ListWallets(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestAddWallet_SolanaKeepsCase(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/wallets", "u1", `{"chain":"solana","address":"`+solWallet+`","kind":"connected"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created db.Wallet
	decodeBody(t, rec, &created)
	assert.Equal(t, solWallet, created.Address)
	assert.Equal(t, db.WalletKindConnected, created.Kind)
}

func TestListAndRemoveWallets(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/wallets", "u1", `{"chain":"ethereum","address":"`+evmWallet+`"}`)
	env.do(t, http.MethodPost, "/api/v1/wallets", "u2", `{"chain":"ethereum","address":"`+evmOther+`"}`)

	rec := env.do(t, http.MethodGet, "/api/v1/wallets", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Wallets []db.Wallet `json:"wallets"`
		Count   int         `json:"count"`
	}
	decodeBody(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, evmWallet, list.Wallets[0].Address)

	rec = env.do(t, http.MethodDelete, "/api/v1/wallets/ethereum/"+evmOther, "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/wallets/ethereum/"+evmWallet, "u1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/wallets", "u1", "")
	decodeBody(t, rec, &list)
	assert.Equal(t, 0, list.Count)
	assert.NotNil(t, list.Wallets)
}

func TestGetBalances(t *testing.T) {
	env := newTestEnv(t)
	decimals := 6
	env.adapter.tokens = []chain.TokenBalance{
		{Contract: evmToken, Balance: "2500000", Symbol: strPtr("USDC"), Decimals: &decimals},
		{Contract: evmOther, Balance: "7"},
	}

	rec := env.do(t, http.MethodGet, "/api/v1/wallets/ethereum/"+evmWallet+"/balances", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp balancesResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "ETH", resp.NativeSymbol)
	assert.Equal(t, "1500000000000000000", resp.NativeBalance)
	assert.Equal(t, "1.5", resp.NativeDisplay)
	require.Len(t, resp.TokenBalances, 2)
	require.NotNil(t, resp.TokenBalances[0].Display)
	assert.Equal(t, "2.5", *resp.TokenBalances[0].Display)
	assert.Nil(t, resp.TokenBalances[1].Display)
	assert.Empty(t, resp.TokenError)
}

func TestGetBalances_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/wallets/solana/"+solWallet+"/balances", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported chain")

	env.adapter.tokenErr = errors.New("rate limited")
	rec = env.do(t, http.MethodGet, "/api/v1/wallets/ethereum/"+evmWallet+"/balances", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to fetch token balances")

	env.adapter.nativeErr = &chain.ProviderError{Chain: chain.Ethereum, Method: "eth_getBalance", Err: errors.New("timeout")}
	rec = env.do(t, http.MethodGet, "/api/v1/wallets/ethereum/"+evmWallet+"/balances", "", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStartSync_WaitInBody(t *testing.T) {
	env := newTestEnv(t)
	env.adapter.outgoing = []chain.Native{ethTransfer("0xaaa", evmWallet, evmOther)}

	rec := env.do(t, http.MethodPost, "/api/v1/sync", "u1", `{"chain":"ethereum","address":"`+evmWallet+`","wait":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result syncer.Result
	decodeBody(t, rec, &result)
	assert.Equal(t, db.SyncStatusCompleted, result.Status)
	assert.Equal(t, 1, result.Imported)
}

func TestStartSync_Wait(t *testing.T) {
	env := newTestEnv(t)
	env.adapter.outgoing = []chain.Native{ethTransfer("0xaaa", evmWallet, evmOther)}
	env.adapter.incoming = []chain.Native{
		ethTransfer("0xbbb", evmOther, evmWallet),
		ethTransfer("0xaaa", evmWallet, evmOther),
	}

	rec := env.do(t, http.MethodPost, "/api/v1/sync?wait=true", "u1", `{"chain":"ethereum","address":"`+evmWallet+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result syncer.Result
	decodeBody(t, rec, &result)
	assert.Equal(t, db.SyncStatusCompleted, result.Status)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Total)

	rec = env.do(t, http.MethodGet, "/api/v1/sync-runs/"+result.RunID.String(), "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run db.SyncRun
	decodeBody(t, rec, &run)
	assert.Equal(t, db.SyncStatusCompleted, run.Status)
	assert.Equal(t, 2, run.ImportedCount)
	assert.NotNil(t, run.CompletedAt)

	rec = env.do(t, http.MethodGet, "/api/v1/sync-runs/"+result.RunID.String(), "u2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/transfers", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Transfers []map[string]interface{} `json:"transfers"`
		Count     int                      `json:"count"`
		Total     int64                    `json:"total"`
	}
	decodeBody(t, rec, &page)
	assert.Equal(t, 2, page.Count)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, "1", page.Transfers[0]["display"])
	assert.Equal(t, "1000000000000000000", page.Transfers[0]["value"])
}

func TestStartSync_Async(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sync", "u1", `{"chain":"ethereum","address":"`+evmWallet+`","from_block":10,"to_block":20}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp struct {
		RunID  uuid.UUID     `json:"run_id"`
		Status db.SyncStatus `json:"status"`
	}
	decodeBody(t, rec, &resp)
	assert.NotEqual(t, uuid.Nil, resp.RunID)
	assert.Equal(t, db.SyncStatusPending, resp.Status)

	require.Eventually(t, func() bool {
		run, err := env.store.GetSyncRun(context.Background(), resp.RunID)
		return err == nil && run.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	run, err := env.store.GetSyncRun(context.Background(), resp.RunID)
	require.NoError(t, err)
	require.NotNil(t, run.FromBlock)
	assert.Equal(t, uint64(10), *run.FromBlock)

	rec = env.do(t, http.MethodGet, "/api/v1/sync-runs", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), resp.RunID.String())
}

func TestStartSync_UnsupportedChainFailsRun(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sync?wait=true", "u1", `{"chain":"arbitrum","address":"`+evmWallet+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result syncer.Result
	decodeBody(t, rec, &result)
	assert.Equal(t, db.SyncStatusFailed, result.Status)
	assert.Contains(t, result.Error, "unsupported chain")
}

func TestStartSync_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     string
		contains string
	}{
		{"missing chain", `{"address":"` + evmWallet + `"}`, "chain is required"},
		{"bad address", `{"chain":"ethereum","address":"nope"}`, "invalid address format"},
		{"inverted range", `{"chain":"ethereum","address":"` + evmWallet + `","from_block":5,"to_block":1}`, "from_block"},
		{"negative max count", `{"chain":"ethereum","address":"` + evmWallet + `","max_count":-1}`, "max_count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/sync", "u1", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestGetSyncRun_InvalidID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/sync-runs/not-a-uuid", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sync-runs/"+uuid.NewString(), "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransfers_Pagination(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query    string
		contains string
	}{
		{"limit=abc", "invalid limit"},
		{"limit=0", "limit must be at least 1"},
		{"limit=5000", "limit cannot exceed 1000"},
		{"offset=-1", "offset cannot be negative"},
		{"address=" + evmWallet, "address filter requires chain"},
		{"chain=ethereum&address=xyz", "invalid address format"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/transfers?"+tt.query, "u1", "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/v1/transfers?limit=10&offset=5", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Transfers []interface{} `json:"transfers"`
		Limit     int           `json:"limit"`
		Offset    int           `json:"offset"`
	}
	decodeBody(t, rec, &page)
	assert.Empty(t, page.Transfers)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 5, page.Offset)
}

func TestCheckApproval(t *testing.T) {
	env := newTestEnv(t)
	env.approvals.approval = &db.TokenApproval{ID: uuid.New(), RiskLevel: "high", IsUnlimited: true}

	body := `{"chain":"ethereum","wallet_address":"` + evmWallet + `","token_address":"` + evmToken + `","spender_address":"` + evmSpender + `"}`
	rec := env.do(t, http.MethodPost, "/api/v1/approvals/check", "u1", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "u1", env.approvals.checkReq.OwnerID)
	assert.Equal(t, chain.Ethereum, env.approvals.checkReq.Chain)
	assert.Contains(t, rec.Body.String(), `"is_unlimited":true`)

	rec = env.do(t, http.MethodPost, "/api/v1/approvals/check", "u1",
		`{"chain":"solana","wallet_address":"`+solWallet+`","token_address":"`+solWallet+`","spender_address":"`+solWallet+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "EVM")

	rec = env.do(t, http.MethodPost, "/api/v1/approvals/check", "u1",
		`{"chain":"ethereum","wallet_address":"`+evmWallet+`","token_address":"0x12","spender_address":"`+evmSpender+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "token_address")

	env.approvals.err = &chain.ProviderError{Chain: chain.Ethereum, Method: "eth_call", Err: errors.New("boom")}
	rec = env.do(t, http.MethodPost, "/api/v1/approvals/check", "u1", body)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListApprovals(t *testing.T) {
	env := newTestEnv(t)
	env.approvals.approval = &db.TokenApproval{ID: uuid.New()}

	rec := env.do(t, http.MethodGet, "/api/v1/approvals?include_revoked=true&chain=polygon", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.approvals.listFilter.IncludeRevoked)
	require.NotNil(t, env.approvals.listFilter.Chain)
	assert.Equal(t, chain.Polygon, *env.approvals.listFilter.Chain)
	assert.Equal(t, "u1", env.approvals.listFilter.OwnerID)

	rec = env.do(t, http.MethodGet, "/api/v1/approvals?include_revoked=maybe", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevokeApproval_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"no signer", &approvals.NoSignerError{}, http.StatusServiceUnavailable},
		{"not found", db.ErrNotFound, http.StatusNotFound},
		{"already revoked", approvals.ErrAlreadyRevoked, http.StatusConflict},
		{"signer rejected", &signer.RejectedError{StatusCode: 400, Message: "user declined"}, http.StatusBadGateway},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.approvals.err = tt.err
			rec := env.do(t, http.MethodPost, "/api/v1/approvals/"+uuid.NewString()+"/revoke", "u1", "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRevokeApproval(t *testing.T) {
	env := newTestEnv(t)
	env.approvals.approval = &db.TokenApproval{ID: uuid.New(), IsRevoked: true, RevokeTxHash: strPtr("0xfeed")}

	rec := env.do(t, http.MethodPost, "/api/v1/approvals/"+env.approvals.approval.ID.String()+"/revoke", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0xfeed")

	rec = env.do(t, http.MethodPost, "/api/v1/approvals/zzz/revoke", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReapproveApproval(t *testing.T) {
	env := newTestEnv(t)
	env.approvals.approval = &db.TokenApproval{ID: uuid.New()}

	rec := env.do(t, http.MethodPost, "/api/v1/approvals/"+uuid.NewString()+"/reapprove", "u1", `{"approved_at":"2024-05-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/approvals/"+uuid.NewString()+"/reapprove", "u1", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env.approvals.err = approvals.ErrNotRevoked
	rec = env.do(t, http.MethodPost, "/api/v1/approvals/"+uuid.NewString()+"/reapprove", "u1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStreamRoutesDisabledWithoutNATS(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/stream/sync/"+uuid.NewString(), "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunToProgressEvent(t *testing.T) {
	done := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	run := &db.SyncRun{
		ID:            uuid.New(),
		OwnerID:       "u1",
		Chain:         chain.Base,
		Status:        db.SyncStatusFailed,
		ImportedCount: 3,
		CompletedAt:   &done,
		ErrorMessage:  strPtr("provider down"),
	}
	event := runToProgressEvent(run)
	assert.True(t, event.Terminal())
	assert.Equal(t, "provider down", event.Error)
	assert.Equal(t, done, event.PublishedAt)
	assert.Equal(t, 3, event.Imported)
}
