package exec

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sniper-core/internal/models"
	"sniper-core/pkg/clock"
	"sniper-core/pkg/jito"
	"sniper-core/pkg/jupiter"
	"sniper-core/pkg/solana"
)

// MaxPriceImpactPct rejects quotes whose impact exceeds this percentage.
const MaxPriceImpactPct = 3.0

// Bundle polling parameters.
const (
	DefaultBundleTimeout = 60 * time.Second
	DefaultBundlePoll    = 2 * time.Second
)

// baseUnitScale converts SOL-denominated sizes into raw lamport-scale
// units for quoting. Token decimals are normalised upstream.
const baseUnitScale = 1_000_000_000

// QuoteService is the aggregator surface the executor consumes;
// *jupiter.Client satisfies it.
type QuoteService interface {
	GetQuote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
	BuildSwapTransaction(ctx context.Context, quote *jupiter.QuoteResponse, userPublicKey string, computeUnitPrice uint64) (*jupiter.SwapResponse, error)
}

// ChainService submits and tracks transactions; *solana.Client satisfies it.
type ChainService interface {
	SendTransaction(ctx context.Context, txBase64 string) (string, error)
	GetSignatureStatus(ctx context.Context, signature string) (solana.SignatureStatus, error)
}

// BundleService submits protection bundles; *jito.Client satisfies it.
type BundleService interface {
	SendBundle(ctx context.Context, txsBase64 []string) (string, error)
	GetBundleStatus(ctx context.Context, bundleID string) (jito.BundleStatus, error)
	NextTipAccount() string
}

// Signer signs tip transfers; *solana.Wallet satisfies it.
type Signer interface {
	Address() string
	Sign(message []byte) string
}

// Executor carries an order through one of the two execution paths.
type Executor struct {
	quotes  QuoteService
	chain   ChainService
	bundles BundleService
	signer  Signer
	clk     clock.Clock

	dryRun bool

	bundleTimeout time.Duration
	bundlePoll    time.Duration
	txPoll        time.Duration
}

// Option configures the executor.
type Option func(*Executor)

// WithDryRun makes every execution synthetic: no external calls, no
// balance mutation.
func WithDryRun(enabled bool) Option {
	return func(e *Executor) { e.dryRun = enabled }
}

// WithBundleTiming overrides the bundle polling schedule (tests).
func WithBundleTiming(timeout, poll time.Duration) Option {
	return func(e *Executor) {
		e.bundleTimeout = timeout
		e.bundlePoll = poll
	}
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) { e.clk = c }
}

// NewExecutor wires the execution dependencies.
func NewExecutor(quotes QuoteService, chain ChainService, bundles BundleService, signer Signer, opts ...Option) *Executor {
	e := &Executor{
		quotes:        quotes,
		chain:         chain,
		bundles:       bundles,
		signer:        signer,
		clk:           clock.System{},
		bundleTimeout: DefaultBundleTimeout,
		bundlePoll:    DefaultBundlePoll,
		txPoll:        500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a planned order to a terminal result. Locks are always
// released before returning, on every path.
func (e *Executor) Execute(ctx context.Context, planned *PlannedOrder) models.ExecutionResult {
	start := e.clk.Now()
	order := planned.Order

	defer planned.Release()

	if e.dryRun {
		return e.dryRunResult(order, planned.UseMEV, start)
	}

	var result models.ExecutionResult
	var err error
	if planned.UseMEV {
		result, err = e.executeBundle(ctx, planned)
		var bundleErr *models.BundleError
		if err != nil && errors.As(err, &bundleErr) {
			// Bundle submission failed or the relay lost it: retry once on
			// the direct path.
			log.Printf("executor: bundle path failed for order %s (%v), falling back to direct", order.ID, err)
			result, err = e.executeDirect(ctx, planned)
		}
	} else {
		result, err = e.executeDirect(ctx, planned)
	}

	result.OrderID = order.ID
	result.ExecutionTimeMs = e.clk.Now().Sub(start).Milliseconds()
	result.Timestamp = e.clk.Now()
	if err != nil {
		result.Success = false
		result.Error = err.Error()
	}
	return result
}

// executeDirect quotes, assembles, signs and submits a swap, then polls
// the signature until confirmed or timed out.
func (e *Executor) executeDirect(ctx context.Context, planned *PlannedOrder) (models.ExecutionResult, error) {
	order := planned.Order

	quote, swap, err := e.prepareSwap(ctx, planned)
	if err != nil {
		return models.ExecutionResult{}, err
	}

	var signature string
	var lastErr error
	attempts := order.ExecParams.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return models.ExecutionResult{}, ctx.Err()
			case <-time.After(time.Duration(order.ExecParams.RetryDelayMs) * time.Millisecond):
			}
		}
		signature, lastErr = e.chain.SendTransaction(ctx, swap.SwapTransaction)
		if lastErr == nil {
			break
		}
		log.Printf("executor: submit attempt %d for order %s failed: %v", attempt+1, order.ID, lastErr)
	}
	if lastErr != nil {
		return models.ExecutionResult{}, &models.TransactionFailedError{Reason: lastErr.Error()}
	}

	if err := e.awaitSignature(ctx, signature, order.ExecParams.TimeoutMs); err != nil {
		return models.ExecutionResult{TransactionRef: signature}, err
	}

	filledPrice := fillPrice(order, quote)
	return models.ExecutionResult{
		Success:        true,
		TransactionRef: signature,
		FilledSize:     order.Size,
		FilledPrice:    filledPrice,
		FeesPaid:       FeeReserveSOL / 2,
		SlippageBps:    quote.SlippageBps,
	}, nil
}

// executeBundle assembles the swap without submitting it, wraps it with a
// tip transfer and sends both as one bundle, then polls bundle status.
func (e *Executor) executeBundle(ctx context.Context, planned *PlannedOrder) (models.ExecutionResult, error) {
	order := planned.Order

	quote, swap, err := e.prepareSwap(ctx, planned)
	if err != nil {
		return models.ExecutionResult{}, err
	}

	tipLamports := jito.CalculateTip(orderValueUSD(order), order.ExecParams.TipUrgency)
	tipTx := e.buildTipTransfer(tipLamports)

	bundleID, err := e.bundles.SendBundle(ctx, []string{tipTx, swap.SwapTransaction})
	if err != nil {
		return models.ExecutionResult{}, &models.BundleError{Reason: err.Error()}
	}
	log.Printf("executor: bundle %s submitted for order %s, tip %d lamports", bundleID, order.ID, tipLamports)

	status, err := e.awaitBundle(ctx, bundleID)
	if err != nil {
		return models.ExecutionResult{BundleRef: bundleID}, err
	}
	if !status.Landed() {
		return models.ExecutionResult{BundleRef: bundleID}, &models.BundleError{
			BundleRef: bundleID,
			Dropped:   status == jito.StatusDropped,
			Reason:    string(status),
		}
	}

	return models.ExecutionResult{
		Success:     true,
		BundleRef:   bundleID,
		FilledSize:  order.Size,
		FilledPrice: fillPrice(order, quote),
		FeesPaid:    FeeReserveSOL/2 + float64(tipLamports)/baseUnitScale,
		SlippageBps: quote.SlippageBps,
	}, nil
}

// prepareSwap fetches the quote, enforces the impact cap and assembles the
// unsigned swap transaction.
func (e *Executor) prepareSwap(ctx context.Context, planned *PlannedOrder) (*jupiter.QuoteResponse, *jupiter.SwapResponse, error) {
	order := planned.Order

	quote, err := e.quotes.GetQuote(ctx, jupiter.QuoteRequest{
		InputMint:   planned.InputMint,
		OutputMint:  planned.OutputMint,
		Amount:      uint64(order.Size * baseUnitScale),
		SlippageBps: order.MaxSlippageBps,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("quote: %w", err)
	}
	if impact := quote.PriceImpact(); impact > MaxPriceImpactPct {
		return nil, nil, &models.PriceImpactError{ImpactPct: impact}
	}

	swap, err := e.quotes.BuildSwapTransaction(ctx, quote, e.signer.Address(), order.ExecParams.PriorityFeeLamports)
	if err != nil {
		return nil, nil, fmt.Errorf("build swap: %w", err)
	}
	return quote, swap, nil
}

// awaitSignature polls transaction status until confirmation, failure or
// the order's timeout.
func (e *Executor) awaitSignature(ctx context.Context, signature string, timeoutMs int64) error {
	if timeoutMs <= 0 {
		timeoutMs = 30_000
	}
	deadline := e.clk.Now().Add(time.Duration(timeoutMs) * time.Millisecond)

	for e.clk.Now().Before(deadline) {
		status, err := e.chain.GetSignatureStatus(ctx, signature)
		if err != nil {
			log.Printf("executor: status poll for %s failed: %v", signature, err)
		} else {
			if status.Failed {
				return &models.TransactionFailedError{Reason: status.Err}
			}
			if status.Confirmed {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.txPoll):
		}
	}
	return &models.TransactionTimeoutError{TimeoutMs: timeoutMs}
}

// awaitBundle polls bundle status on a fixed cadence under the overall
// bundle timeout.
func (e *Executor) awaitBundle(ctx context.Context, bundleID string) (jito.BundleStatus, error) {
	deadline := e.clk.Now().Add(e.bundleTimeout)

	for {
		status, err := e.bundles.GetBundleStatus(ctx, bundleID)
		if err != nil {
			log.Printf("executor: bundle status poll for %s failed: %v", bundleID, err)
		} else if status.Terminal() {
			return status, nil
		}

		if !e.clk.Now().Before(deadline) {
			return jito.StatusFailed, &models.BundleError{
				BundleRef: bundleID,
				Reason:    fmt.Sprintf("no confirmation within %s", e.bundleTimeout),
			}
		}

		select {
		case <-ctx.Done():
			return jito.StatusFailed, ctx.Err()
		case <-time.After(e.bundlePoll):
		}
	}
}

// buildTipTransfer produces the signed tip payment placed ahead of the
// swap inside the bundle.
func (e *Executor) buildTipTransfer(tipLamports uint64) string {
	payload := fmt.Sprintf("tip:%s:%s:%d", e.signer.Address(), e.bundles.NextTipAccount(), tipLamports)
	return e.signer.Sign([]byte(payload))
}

// dryRunResult fabricates a plausible success without touching anything.
func (e *Executor) dryRunResult(order models.Order, useMEV bool, start time.Time) models.ExecutionResult {
	result := models.ExecutionResult{
		OrderID:         order.ID,
		Success:         true,
		TransactionRef:  "dry_run",
		FilledSize:      order.Size,
		FilledPrice:     order.Price,
		FeesPaid:        0.005,
		SlippageBps:     100,
		ExecutionTimeMs: e.clk.Now().Sub(start).Milliseconds(),
		Timestamp:       e.clk.Now(),
	}
	if useMEV {
		result.BundleRef = "dry_run_bundle"
		result.FeesPaid = 0.01
		result.SlippageBps = 50
	}
	log.Printf("executor: DRY RUN %s %s %.4f of %s", order.Side, order.Kind, order.Size, order.Symbol)
	return result
}

// fillPrice derives the realised price from the quote, falling back to the
// order's reference price.
func fillPrice(order models.Order, quote *jupiter.QuoteResponse) float64 {
	out := quote.OutAmountUint()
	if out == 0 {
		return order.Price
	}
	in := order.Size * baseUnitScale
	if in <= 0 {
		return order.Price
	}
	if order.Side == models.SideBuy {
		// Price of one token in SOL.
		return in / float64(out)
	}
	return float64(out) / in
}
