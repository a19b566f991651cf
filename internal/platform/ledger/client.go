package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/tunehaus/backstage/pkg/config"
	"github.com/tunehaus/backstage/pkg/metrics"
)

// The ledger is the external blockchain service of record for mint and
// renewal events. Calls are not guaranteed retry-safe on the chain side, so
// every request carries a caller-generated RequestID as the dedup key and
// the client never retries on its own.

var (
	ErrMintFailed   = errors.New("ledger mint failed")
	ErrRenewFailed  = errors.New("ledger renewal failed")
	ErrVerifyFailed = errors.New("ledger verify failed")
)

type MintRequest struct {
	// RequestID dedups the call on the ledger side.
	RequestID       string `json:"request_id"`
	WalletAddress   string `json:"wallet_address"`
	ContractAddress string `json:"contract_address"`
}

type MintResult struct {
	TokenID string `json:"token_id"`
	TxHash  string `json:"tx_hash"`
}

type RenewRequest struct {
	RequestID string `json:"request_id"`
	TokenID   string `json:"token_id"`
}

type RenewResult struct {
	TxHash string `json:"tx_hash"`
}

type TokenStatus struct {
	TokenID string `json:"token_id"`
	Owner   string `json:"owner"`
	Valid   bool   `json:"valid"`
}

// Client is the capability interface the subscription engine depends on.
type Client interface {
	Mint(ctx context.Context, req *MintRequest) (*MintResult, error)
	Renew(ctx context.Context, req *RenewRequest) (*RenewResult, error)
	Verify(ctx context.Context, tokenID string) (*TokenStatus, error)
}

// HTTPClient talks JSON over HTTP to the ledger service, with a per-call
// timeout and a circuit breaker so a down chain service fails fast instead
// of stacking up blocked handlers.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *zap.SugaredLogger
}

func NewHTTPClient(cfg *config.Config, log *zap.SugaredLogger) *HTTPClient {
	settings := gobreaker.Settings{
		Name:    "ledger",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &HTTPClient{
		baseURL: cfg.Ledger.BaseURL,
		apiKey:  cfg.Ledger.APIKey,
		http:    &http.Client{Timeout: cfg.Ledger.Timeout()},
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		log:     log,
	}
}

type ledgerError struct {
	Error string `json:"error"`
}

func (c *HTTPClient) Mint(ctx context.Context, req *MintRequest) (*MintResult, error) {
	var res MintResult
	if err := c.call(ctx, http.MethodPost, "/v1/tokens/mint", req, &res); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMintFailed, err)
	}
	return &res, nil
}

func (c *HTTPClient) Renew(ctx context.Context, req *RenewRequest) (*RenewResult, error) {
	var res RenewResult
	if err := c.call(ctx, http.MethodPost, "/v1/tokens/renew", req, &res); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRenewFailed, err)
	}
	return &res, nil
}

func (c *HTTPClient) Verify(ctx context.Context, tokenID string) (*TokenStatus, error) {
	var res TokenStatus
	if err := c.call(ctx, http.MethodGet, "/v1/tokens/"+tokenID, nil, &res); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVerifyFailed, err)
	}
	return &res, nil
}

func (c *HTTPClient) call(ctx context.Context, method, path string, in, out any) error {
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, method, path, in)
	})
	metrics.Ledger().ObserveCall(path, time.Since(start), err)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var le ledgerError
		if json.Unmarshal(body, &le) == nil && le.Error != "" {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, le.Error)
		}
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, nil
}
