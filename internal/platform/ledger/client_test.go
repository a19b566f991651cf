package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tunehaus/backstage/pkg/config"
)

func newTestClient(baseURL string) *HTTPClient {
	cfg := &config.Config{
		Ledger: config.LedgerConfig{BaseURL: baseURL, APIKey: "secret", TimeoutSeconds: 2},
	}
	return NewHTTPClient(cfg, zap.NewNop().Sugar())
}

func TestMint(t *testing.T) {
	var gotReq MintRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/tokens/mint", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(MintResult{TokenID: "token-9", TxHash: "0xabc"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res, err := c.Mint(context.Background(), &MintRequest{
		RequestID:       "req-1",
		WalletAddress:   "0xwallet",
		ContractAddress: "0xcontract",
	})
	require.NoError(t, err)
	require.Equal(t, "token-9", res.TokenID)
	require.Equal(t, "0xabc", res.TxHash)
	require.Equal(t, "req-1", gotReq.RequestID)
}

func TestRenew_UpstreamErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "token not renewable"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Renew(context.Background(), &RenewRequest{RequestID: "req-2", TokenID: "token-9"})
	require.ErrorIs(t, err, ErrRenewFailed)
	require.Contains(t, err.Error(), "token not renewable")
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/tokens/token-9", r.URL.Path)
		_ = json.NewEncoder(w).Encode(TokenStatus{TokenID: "token-9", Owner: "0xwallet", Valid: true})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	status, err := c.Verify(context.Background(), "token-9")
	require.NoError(t, err)
	require.True(t, status.Valid)
	require.Equal(t, "0xwallet", status.Owner)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 5; i++ {
		_, err := c.Verify(context.Background(), "token-9")
		require.Error(t, err)
	}
	require.Equal(t, 5, calls)

	// Breaker is open now; the upstream is no longer hit.
	_, err := c.Verify(context.Background(), "token-9")
	require.Error(t, err)
	require.Equal(t, 5, calls)
}
