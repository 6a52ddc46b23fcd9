package helius

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/dustwatch/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(serverURL, "test-key", nil, metrics.NewMetrics(prometheus.NewRegistry()), logger)
}

func TestLookupTransaction_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v0/transactions/", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"sig123"}, body["transactions"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"signature": "sig123",
			"feePayer": "W1",
			"type": "TRANSFER",
			"source": "SYSTEM_PROGRAM",
			"description": "W1 transferred 5 USDC to W2.",
			"timestamp": 1700000000,
			"tokenTransfers": [{"fromUserAccount": "W1", "toUserAccount": "W2", "tokenAmount": 5, "mint": "USDC"}],
			"instructions": [{"programId": "Tokenkeg", "accounts": ["A0", "A1"]}],
			"nativeTransfers": [],
			"events": {}
		}]`))
	}))
	defer server.Close()

	raw, err := newTestClient(server.URL).LookupTransaction(context.Background(), "sig123")
	require.NoError(t, err)
	require.NotNil(t, raw)

	assert.Equal(t, "sig123", raw.Signature)
	require.NotNil(t, raw.FeePayer)
	assert.Equal(t, "W1", *raw.FeePayer)
	require.Len(t, raw.TokenTransfers, 1)
	assert.Equal(t, "W2", *raw.TokenTransfers[0].ToUserAccount)
	amount, ok := raw.TokenTransfers[0].TokenAmount.Get()
	assert.True(t, ok)
	assert.Equal(t, 5.0, amount)
	require.Len(t, raw.Instructions, 1)
	assert.Equal(t, []string{"A0", "A1"}, raw.Instructions[0].Accounts)
	ts, ok := raw.Timestamp.Get()
	assert.True(t, ok)
	assert.Equal(t, 1700000000.0, ts)
}

func TestLookupTransaction_EmptyArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	raw, err := newTestClient(server.URL).LookupTransaction(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestLookupTransaction_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key provided"})
	}))
	defer server.Close()

	raw, err := newTestClient(server.URL).LookupTransaction(context.Background(), "sig")
	require.Error(t, err)
	assert.Nil(t, raw)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid api key provided")
}

func TestLookupTransaction_RateLimitedPlainBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).LookupTransaction(context.Background(), "sig")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "slow down")
}

func TestLookupTransaction_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "an array"`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).LookupTransaction(context.Background(), "sig")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestLookupTransaction_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).LookupTransaction(context.Background(), "sig")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", "k", nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, DefaultBaseURL+"/v0/transactions/?api-key=k", c.endpoint())

	c = NewClient("http://localhost:9999/", "a b", nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "http://localhost:9999/v0/transactions/?api-key=a+b", c.endpoint())
}
