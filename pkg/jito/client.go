// Package jito submits transaction bundles to an MEV-protected block-engine
// endpoint and polls their inclusion status.
package jito

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Tip bounds in lamports.
const (
	MinTipLamports = 5_000
	MaxTipLamports = 50_000_000
)

// BundleStatus is the relay-side confirmation state.
type BundleStatus string

const (
	StatusPending   BundleStatus = "pending"
	StatusConfirmed BundleStatus = "confirmed"
	StatusFinalized BundleStatus = "finalized"
	StatusFailed    BundleStatus = "failed"
	StatusDropped   BundleStatus = "dropped"
)

// Landed reports whether the bundle made it on chain.
func (s BundleStatus) Landed() bool {
	return s == StatusConfirmed || s == StatusFinalized
}

// Terminal reports whether polling can stop.
func (s BundleStatus) Terminal() bool {
	return s.Landed() || s == StatusFailed || s == StatusDropped
}

// Client talks JSON-RPC to the bundle endpoint.
type Client struct {
	apiURL      string
	tipAccounts []string
	client      *http.Client
	nextTip     int
}

// NewClient creates a bundle client. tipAccounts must be non-empty.
func NewClient(apiURL string, tipAccounts []string, opts ...Option) (*Client, error) {
	if len(tipAccounts) == 0 {
		return nil, fmt.Errorf("at least one tip account is required")
	}
	c := &Client{
		apiURL:      apiURL,
		tipAccounts: tipAccounts,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NextTipAccount rotates across the configured tip accounts.
func (c *Client) NextTipAccount() string {
	acct := c.tipAccounts[c.nextTip%len(c.tipAccounts)]
	c.nextTip++
	return acct
}

type bundleRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type bundleResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *bundleRPCError `json:"error,omitempty"`
}

type bundleRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *bundleRPCError) Error() string {
	return fmt.Sprintf("bundle RPC error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(bundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/bundles", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s http %d: %s", method, resp.StatusCode, string(data))
	}

	var rpcResp bundleResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// SendBundle submits base64-encoded signed transactions as one atomic
// bundle and returns the bundle ID.
func (c *Client) SendBundle(ctx context.Context, txsBase64 []string) (string, error) {
	var bundleID string
	if err := c.call(ctx, "sendBundle", []any{txsBase64}, &bundleID); err != nil {
		return "", err
	}
	if bundleID == "" {
		return "", fmt.Errorf("no bundle ID returned")
	}
	return bundleID, nil
}

// GetBundleStatus queries one bundle's confirmation status. Unknown bundles
// report pending.
func (c *Client) GetBundleStatus(ctx context.Context, bundleID string) (BundleStatus, error) {
	var result struct {
		Value []struct {
			BundleID           string `json:"bundle_id"`
			ConfirmationStatus string `json:"confirmation_status"`
			Err                any    `json:"err"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getBundleStatuses", []any{[]string{bundleID}}, &result); err != nil {
		return "", err
	}
	if len(result.Value) == 0 {
		return StatusPending, nil
	}
	switch BundleStatus(result.Value[0].ConfirmationStatus) {
	case StatusConfirmed:
		return StatusConfirmed, nil
	case StatusFinalized:
		return StatusFinalized, nil
	case StatusFailed:
		return StatusFailed, nil
	case StatusDropped:
		return StatusDropped, nil
	default:
		return StatusPending, nil
	}
}

// CalculateTip derives the bundle tip from order value and urgency:
// 0.01% of order value, urgency-scaled, converted at a nominal SOL price,
// clamped to [MinTipLamports, MaxTipLamports].
func CalculateTip(orderValueUSD, urgency float64) uint64 {
	if urgency < 1.0 {
		urgency = 1.0
	}
	if urgency > 3.0 {
		urgency = 3.0
	}

	const solPriceUSD = 100.0
	tipSOL := (orderValueUSD * 0.0001 * urgency) / solPriceUSD
	tip := uint64(tipSOL * 1_000_000_000)

	if tip < MinTipLamports {
		return MinTipLamports
	}
	if tip > MaxTipLamports {
		return MaxTipLamports
	}
	return tip
}
