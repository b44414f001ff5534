package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// maxAccountsPerCall is the RPC node's getMultipleAccounts limit.
	maxAccountsPerCall = 100
)

// HTTPClient implements Reader using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	commitment  string
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithCommitment sets the commitment level for account reads.
func WithCommitment(commitment string) ClientOption {
	return func(c *HTTPClient) {
		c.commitment = commitment
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		commitment:  "confirmed",
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetAccount retrieves a single account's state via getAccountInfo.
// Returns (nil, nil) if the account does not exist.
func (c *HTTPClient) GetAccount(ctx context.Context, address string) (*AccountInfo, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	params := []interface{}{
		address,
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": c.commitment,
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	return result.Value.toAccountInfo(address, result.Context.Slot)
}

// GetAccounts retrieves multiple accounts via getMultipleAccounts,
// chunked to the node's per-call limit. Missing accounts are omitted
// from the result map.
func (c *HTTPClient) GetAccounts(ctx context.Context, addresses []string) (map[string]*AccountInfo, error) {
	for _, addr := range addresses {
		if err := ValidateAddress(addr); err != nil {
			return nil, err
		}
	}

	out := make(map[string]*AccountInfo, len(addresses))

	for start := 0; start < len(addresses); start += maxAccountsPerCall {
		end := start + maxAccountsPerCall
		if end > len(addresses) {
			end = len(addresses)
		}
		chunk := addresses[start:end]

		params := []interface{}{
			chunk,
			map[string]interface{}{
				"encoding":   "base64",
				"commitment": c.commitment,
			},
		}

		var result getMultipleAccountsResult
		if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
			return nil, err
		}

		for i, raw := range result.Value {
			if raw == nil {
				continue
			}
			info, err := raw.toAccountInfo(chunk[i], result.Context.Slot)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", chunk[i], err)
			}
			out[chunk[i]] = info
		}
	}

	return out, nil
}

// rpcContext carries the slot an RPC result was produced at.
type rpcContext struct {
	Slot int64 `json:"slot"`
}

// rawAccount is the wire form of an account with base64 data.
type rawAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [payload, encoding]
	Executable bool     `json:"executable"`
}

func (a *rawAccount) toAccountInfo(address string, slot int64) (*AccountInfo, error) {
	info := &AccountInfo{
		Address:    address,
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		Slot:       slot,
	}

	if len(a.Data) >= 1 && a.Data[0] != "" {
		data, err := base64.StdEncoding.DecodeString(a.Data[0])
		if err != nil {
			return nil, fmt.Errorf("decode account data: %w", err)
		}
		info.Data = data
	}

	return info, nil
}

// getAccountInfoResult is the raw RPC response for getAccountInfo.
type getAccountInfoResult struct {
	Context rpcContext  `json:"context"`
	Value   *rawAccount `json:"value"`
}

// getMultipleAccountsResult is the raw RPC response for getMultipleAccounts.
type getMultipleAccountsResult struct {
	Context rpcContext    `json:"context"`
	Value   []*rawAccount `json:"value"`
}
