package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "0xabababababababababababababababababababab"

func TestAddWallet_Created(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/wallets", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "u1", r.Header.Get(OwnerHeader))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ethereum", body["chain"])
		assert.Equal(t, wallet, body["address"])
		assert.NotContains(t, body, "kind")

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "w1", "chain": "ethereum", "address": wallet, "kind": "watch", "active": true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	got, created, err := client.AddWallet(context.Background(), AddWalletRequest{Chain: "ethereum", Address: wallet})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "w1", got.ID)
	assert.Equal(t, "watch", got.Kind)
}

func TestAddWallet_Existing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "wallet already exists",
			"wallet":  map[string]interface{}{"id": "w1", "address": wallet},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	got, created, err := client.AddWallet(context.Background(), AddWalletRequest{Chain: "ethereum", Address: wallet})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "w1", got.ID)
}

func TestAddWallet_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid address format",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	_, _, err := client.AddWallet(context.Background(), AddWalletRequest{Chain: "ethereum", Address: "bad"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid address format", apiErr.Message)
}

func TestNonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	_, err := client.ListWallets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestRemoveWallet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		assert.Equal(t, "/api/v1/wallets/solana/9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	assert.NoError(t, client.RemoveWallet(context.Background(), "solana", "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"))
}

func TestStartSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sync", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("wait"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 100, body["from_block"])
		assert.NotContains(t, body, "to_block")

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"run_id": "r1", "status": "pending"})
	}))
	defer server.Close()

	from := uint64(100)
	client := NewClient(server.URL, "u1", nil, nil)
	runID, err := client.StartSync(context.Background(), SyncRequest{Chain: "base", Address: wallet, FromBlock: &from})
	require.NoError(t, err)
	assert.Equal(t, "r1", runID)
}

func TestSync_Wait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		json.NewEncoder(w).Encode(SyncResult{RunID: "r1", Status: "completed", Imported: 4, Total: 4})
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	result, err := client.Sync(context.Background(), SyncRequest{Chain: "base", Address: wallet})
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 4, result.Imported)
}

func TestWaitForRun(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		status := "in_progress"
		if calls >= 3 {
			status = "completed"
		}
		json.NewEncoder(w).Encode(SyncRun{ID: "r1", Status: status})
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	run, err := client.WaitForRun(context.Background(), "r1", 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 3, calls)
}

func TestListTransfers_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "polygon", q.Get("chain"))
		assert.Equal(t, wallet, q.Get("address"))
		assert.Equal(t, "25", q.Get("limit"))
		assert.Equal(t, "50", q.Get("offset"))
		fmt.Fprint(w, `{"transfers":[{"hash":"0x1","chain":"polygon","value":"5","display":"0.000005"}],"count":1,"total":51,"limit":25,"offset":50}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	page, err := client.ListTransfers(context.Background(), RunFilter{Chain: "polygon", Address: wallet, Limit: 25, Offset: 50})
	require.NoError(t, err)
	require.Len(t, page.Transfers, 1)
	assert.Equal(t, int64(51), page.Total)
	require.NotNil(t, page.Transfers[0].Display)
	assert.Equal(t, "0.000005", *page.Transfers[0].Display)
}

func TestApprovals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/api/v1/approvals":
			assert.Equal(t, "true", r.URL.Query().Get("include_revoked"))
			fmt.Fprint(w, `{"approvals":[{"id":"a1","risk_level":"high","is_unlimited":true}],"count":1}`)
		case r.URL.Path == "/api/v1/approvals/a1/revoke":
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":"no wallet signer is configured"}`)
		case r.URL.Path == "/api/v1/approvals/a1/reapprove":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "2024-05-01T00:00:00Z", body["approved_at"])
			fmt.Fprint(w, `{"id":"a1","is_revoked":false}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	items, err := client.ListApprovals(context.Background(), ApprovalFilter{IncludeRevoked: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsUnlimited)

	_, err = client.RevokeApproval(context.Background(), "a1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)

	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	got, err := client.ReapproveApproval(context.Background(), "a1", &at)
	require.NoError(t, err)
	assert.False(t, got.IsRevoked)
}

func TestReadEvents(t *testing.T) {
	body := strings.Join([]string{
		"event: connected",
		`data: {"run_id":"r1"}`,
		"",
		": keepalive",
		"",
		"event: progress",
		`data: {"status":"in_progress"}`,
		"",
		"data: line one",
		"data: line two",
		"",
		"",
	}, "\n")

	var events []Event
	err := ReadEvents(strings.NewReader(body), func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "connected", events[0].Name)
	assert.Equal(t, "progress", events[1].Name)
	assert.Equal(t, "message", events[2].Name)
	assert.Equal(t, "line one\nline two", events[2].Data)
}

func TestStreamSync_StopsOnTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/sync/r1", r.URL.Path)
		assert.Equal(t, "u1", r.Header.Get(OwnerHeader))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: connected\ndata: {}\n\n")
		fmt.Fprint(w, "event: progress\ndata: {\"run_id\":\"r1\",\"status\":\"in_progress\",\"imported\":1,\"total\":2}\n\n")
		fmt.Fprint(w, "event: progress\ndata: {\"run_id\":\"r1\",\"status\":\"completed\",\"imported\":2,\"total\":2}\n\n")
		fmt.Fprint(w, "event: progress\ndata: {\"run_id\":\"r1\",\"status\":\"bogus\"}\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	var seen []ProgressEvent
	err := client.StreamSync(context.Background(), "r1", func(p ProgressEvent) error {
		seen = append(seen, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, "completed", seen[1].Status)
}

func TestStreamSync_ServerErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: error\ndata: {\"error\":\"failed to subscribe\"}\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	err := client.StreamSync(context.Background(), "r1", func(ProgressEvent) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to subscribe")
}

func TestStreamSync_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"sync run not found"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "u1", nil, nil)
	err := client.StreamSync(context.Background(), "r1", func(ProgressEvent) error { return nil })
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestReadEvents_DropsUnterminatedEvent(t *testing.T) {
	body := "event: progress\ndata: {}\n\ndata: partial\n"

	var events []Event
	err := ReadEvents(strings.NewReader(body), func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "progress", events[0].Name)
}
