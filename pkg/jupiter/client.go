// Package jupiter talks to the external quote aggregator: price quotes and
// swap transaction assembly per its HTTP API.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Client wraps the aggregator HTTP API with client-side rate limiting.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a quote-aggregator client. The limiter defaults to
// 10 req/s with a burst of 20, below the public API ceiling.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit overrides the request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// QuoteRequest asks for the best route between two mints.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // raw units of the input mint
	SlippageBps int
}

// QuoteResponse is the aggregator's route answer. RoutePlan is kept opaque
// and echoed back on the swap request.
type QuoteResponse struct {
	InputMint            string          `json:"inputMint"`
	InAmount             string          `json:"inAmount"`
	OutputMint           string          `json:"outputMint"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          int             `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            json.RawMessage `json:"routePlan"`
}

// PriceImpact parses the quoted price impact percentage.
func (q *QuoteResponse) PriceImpact() float64 {
	v, err := strconv.ParseFloat(q.PriceImpactPct, 64)
	if err != nil {
		return 0
	}
	return v
}

// OutAmountUint parses the raw output amount.
func (q *QuoteResponse) OutAmountUint() uint64 {
	v, err := strconv.ParseUint(q.OutAmount, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// GetQuote fetches the best quote for an exact-in swap.
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	q.Set("swapMode", "ExactIn")

	u := fmt.Sprintf("%s/quote?%s", c.baseURL, q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote http %d: %s", resp.StatusCode, string(data))
	}

	var quote QuoteResponse
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	return &quote, nil
}

// swapRequest is the JSON body of the swap assembly call.
type swapRequest struct {
	QuoteResponse                 *QuoteResponse `json:"quoteResponse"`
	UserPublicKey                 string         `json:"userPublicKey"`
	WrapAndUnwrapSol              bool           `json:"wrapAndUnwrapSol"`
	UseSharedAccounts             bool           `json:"useSharedAccounts"`
	ComputeUnitPriceMicroLamports uint64         `json:"computeUnitPriceMicroLamports,omitempty"`
}

// SwapResponse carries the assembled, unsigned transaction.
type SwapResponse struct {
	SwapTransaction string `json:"swapTransaction"` // base64
}

// BuildSwapTransaction asks the aggregator to assemble the swap transaction
// for a previously fetched quote.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *QuoteResponse, userPublicKey string, computeUnitPrice uint64) (*SwapResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(swapRequest{
		QuoteResponse:                 quote,
		UserPublicKey:                 userPublicKey,
		WrapAndUnwrapSol:              true,
		UseSharedAccounts:             true,
		ComputeUnitPriceMicroLamports: computeUnitPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build swap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("swap request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap http %d: %s", resp.StatusCode, string(data))
	}

	var swap SwapResponse
	if err := json.Unmarshal(data, &swap); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}
	return &swap, nil
}

// GetPrice returns the output price of one unit of the token in terms of
// the quote mint, derived from a small reference quote.
func (c *Client) GetPrice(ctx context.Context, mint, vsMint string, referenceAmount uint64) (float64, error) {
	quote, err := c.GetQuote(ctx, QuoteRequest{
		InputMint:   mint,
		OutputMint:  vsMint,
		Amount:      referenceAmount,
		SlippageBps: 100,
	})
	if err != nil {
		return 0, err
	}
	out := quote.OutAmountUint()
	if out == 0 || referenceAmount == 0 {
		return 0, fmt.Errorf("empty quote for %s", mint)
	}
	return float64(out) / float64(referenceAmount), nil
}
