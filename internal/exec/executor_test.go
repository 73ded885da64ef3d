package exec

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"sniper-core/internal/models"
	"sniper-core/pkg/jito"
	"sniper-core/pkg/jupiter"
	"sniper-core/pkg/solana"
)

type fakeQuotes struct {
	impactPct float64
	outAmount uint64
	quoteErr  error
}

func (f *fakeQuotes) GetQuote(_ context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	out := f.outAmount
	if out == 0 {
		out = req.Amount * 1000 // 1000 tokens per SOL
	}
	return &jupiter.QuoteResponse{
		InputMint:      req.InputMint,
		OutputMint:     req.OutputMint,
		InAmount:       strconv.FormatUint(req.Amount, 10),
		OutAmount:      strconv.FormatUint(out, 10),
		SlippageBps:    req.SlippageBps,
		PriceImpactPct: strconv.FormatFloat(f.impactPct, 'f', -1, 64),
	}, nil
}

func (f *fakeQuotes) BuildSwapTransaction(context.Context, *jupiter.QuoteResponse, string, uint64) (*jupiter.SwapResponse, error) {
	return &jupiter.SwapResponse{SwapTransaction: "c2lnbmVkLXR4"}, nil
}

type fakeChain struct {
	sendErr    error
	failSends  int
	sends      int
	confirmed  bool
	failed     bool
}

func (f *fakeChain) SendTransaction(context.Context, string) (string, error) {
	f.sends++
	if f.sendErr != nil && f.sends <= f.failSends {
		return "", f.sendErr
	}
	return "sig-" + strconv.Itoa(f.sends), nil
}

func (f *fakeChain) GetSignatureStatus(context.Context, string) (solana.SignatureStatus, error) {
	return solana.SignatureStatus{Confirmed: f.confirmed, Failed: f.failed, Err: "program error"}, nil
}

type fakeBundles struct {
	sendErr  error
	statuses []jito.BundleStatus
	polls    int
	sent     int
}

func (f *fakeBundles) SendBundle(context.Context, []string) (string, error) {
	f.sent++
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "bundle-1", nil
}

func (f *fakeBundles) GetBundleStatus(context.Context, string) (jito.BundleStatus, error) {
	if f.polls < len(f.statuses) {
		s := f.statuses[f.polls]
		f.polls++
		return s, nil
	}
	return jito.StatusPending, nil
}

func (f *fakeBundles) NextTipAccount() string { return "tipAcct" }

type fakeSigner struct{}

func (fakeSigner) Address() string          { return "walletAddr" }
func (fakeSigner) Sign(msg []byte) string   { return "signed:" + string(msg) }

func plannedBuy(t *testing.T, useMEV bool, sol float64) (*PlannedOrder, *Planner) {
	t.Helper()
	pf := testPortfolio(sol, nil)
	p := NewPlanner(pf, useMEV, nil)
	order := pendingOrder(0.05)
	order.ExecParams.UseMEVProtection = useMEV
	planned, err := p.Plan(order)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return planned, p
}

func TestDirectPathSuccess(t *testing.T) {
	chain := &fakeChain{confirmed: true}
	e := NewExecutor(&fakeQuotes{impactPct: 0.5}, chain, &fakeBundles{}, fakeSigner{})

	planned, p := plannedBuy(t, false, 1)
	result := e.Execute(context.Background(), planned)

	if !result.Success {
		t.Fatalf("result=%+v", result)
	}
	if result.TransactionRef == "" || result.BundleRef != "" {
		t.Fatalf("refs=%q/%q", result.TransactionRef, result.BundleRef)
	}
	if result.FilledSize != 0.05 {
		t.Fatalf("filled=%v", result.FilledSize)
	}
	// Locks fully released after terminal status.
	if got := p.portfolio.Locks().Locked(models.WrappedSOLMint); got != 0 {
		t.Fatalf("locked=%v after execution, expected 0", got)
	}
}

func TestDirectPathPriceImpactRejected(t *testing.T) {
	e := NewExecutor(&fakeQuotes{impactPct: 4.2}, &fakeChain{}, &fakeBundles{}, fakeSigner{})

	planned, p := plannedBuy(t, false, 1)
	result := e.Execute(context.Background(), planned)

	if result.Success {
		t.Fatal("high-impact quote must be rejected")
	}
	if result.Error == "" {
		t.Fatal("error should be populated")
	}
	if got := p.portfolio.Locks().Locked(models.WrappedSOLMint); got != 0 {
		t.Fatalf("locks leaked on error path: %v", got)
	}
}

func TestDirectPathRetriesSubmission(t *testing.T) {
	chain := &fakeChain{confirmed: true, sendErr: errors.New("blockhash expired"), failSends: 2}
	e := NewExecutor(&fakeQuotes{}, chain, &fakeBundles{}, fakeSigner{})

	planned, _ := plannedBuy(t, false, 1)
	planned.Order.ExecParams.RetryDelayMs = 1
	result := e.Execute(context.Background(), planned)

	if !result.Success {
		t.Fatalf("result=%+v", result)
	}
	if chain.sends != 3 {
		t.Fatalf("sends=%d, expected 3 (two failures then success)", chain.sends)
	}
}

func TestDirectPathTransactionFailure(t *testing.T) {
	chain := &fakeChain{failed: true}
	e := NewExecutor(&fakeQuotes{}, chain, &fakeBundles{}, fakeSigner{})

	planned, _ := plannedBuy(t, false, 1)
	result := e.Execute(context.Background(), planned)

	if result.Success {
		t.Fatal("failed transaction must not report success")
	}
}

func TestBundlePathSuccess(t *testing.T) {
	bundles := &fakeBundles{statuses: []jito.BundleStatus{jito.StatusPending, jito.StatusConfirmed}}
	e := NewExecutor(&fakeQuotes{}, &fakeChain{}, bundles, fakeSigner{},
		WithBundleTiming(time.Second, time.Millisecond))

	planned, _ := plannedBuy(t, true, 1)
	result := e.Execute(context.Background(), planned)

	if !result.Success {
		t.Fatalf("result=%+v", result)
	}
	if result.BundleRef != "bundle-1" {
		t.Fatalf("bundle ref=%q", result.BundleRef)
	}
	// Bundle path fees include the tip.
	if result.FeesPaid <= FeeReserveSOL/2 {
		t.Fatalf("fees=%v, expected tip included", result.FeesPaid)
	}
}

func TestBundleSubmissionFailureFallsBackToDirect(t *testing.T) {
	bundles := &fakeBundles{sendErr: errors.New("RPC error -32000: rejected")}
	chain := &fakeChain{confirmed: true}
	e := NewExecutor(&fakeQuotes{}, chain, bundles, fakeSigner{},
		WithBundleTiming(time.Second, time.Millisecond))

	planned, _ := plannedBuy(t, true, 1)
	result := e.Execute(context.Background(), planned)

	if !result.Success {
		t.Fatalf("fallback should succeed: %+v", result)
	}
	if result.BundleRef != "" {
		t.Fatalf("fallback result must not carry a bundle ref, got %q", result.BundleRef)
	}
	if result.TransactionRef == "" {
		t.Fatal("fallback result should carry the direct signature")
	}
	if chain.sends != 1 {
		t.Fatalf("direct sends=%d, expected exactly one fallback", chain.sends)
	}
}

func TestBundleDroppedFallsBackOnce(t *testing.T) {
	bundles := &fakeBundles{statuses: []jito.BundleStatus{jito.StatusDropped}}
	chain := &fakeChain{confirmed: true}
	e := NewExecutor(&fakeQuotes{}, chain, bundles, fakeSigner{},
		WithBundleTiming(time.Second, time.Millisecond))

	planned, _ := plannedBuy(t, true, 1)
	result := e.Execute(context.Background(), planned)

	if !result.Success || result.BundleRef != "" {
		t.Fatalf("result=%+v", result)
	}
	if bundles.sent != 1 || chain.sends != 1 {
		t.Fatalf("bundle sends=%d direct sends=%d, expected 1/1", bundles.sent, chain.sends)
	}
}

func TestBundleTimeoutTriggersFallback(t *testing.T) {
	// Status never leaves pending; the overall bundle timeout must trip
	// and route to the direct path.
	bundles := &fakeBundles{}
	chain := &fakeChain{confirmed: true}
	e := NewExecutor(&fakeQuotes{}, chain, bundles, fakeSigner{},
		WithBundleTiming(30*time.Millisecond, 5*time.Millisecond))

	planned, _ := plannedBuy(t, true, 1)
	result := e.Execute(context.Background(), planned)

	if !result.Success {
		t.Fatalf("result=%+v", result)
	}
	if result.TransactionRef == "" || result.BundleRef != "" {
		t.Fatalf("refs=%q/%q, expected direct fallback", result.TransactionRef, result.BundleRef)
	}
}

func TestDryRunLeavesEverythingUntouched(t *testing.T) {
	quotes := &fakeQuotes{quoteErr: errors.New("must not be called")}
	chain := &fakeChain{sendErr: errors.New("must not be called"), failSends: 99}
	bundles := &fakeBundles{sendErr: errors.New("must not be called")}
	e := NewExecutor(quotes, chain, bundles, fakeSigner{}, WithDryRun(true))

	pf := testPortfolio(1, nil)
	before := pf.Snapshot()
	p := NewPlanner(pf, true, nil)
	planned, err := p.Plan(pendingOrder(0.05))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	result := e.Execute(context.Background(), planned)
	if !result.Success || result.TransactionRef != "dry_run" {
		t.Fatalf("result=%+v", result)
	}
	if chain.sends != 0 || bundles.sent != 0 {
		t.Fatal("dry run performed external calls")
	}

	after := pf.Snapshot()
	if before.SOLBalance != after.SOLBalance || len(before.Tokens) != len(after.Tokens) {
		t.Fatalf("balances changed: before=%+v after=%+v", before, after)
	}
	if got := pf.Locks().Locked(models.WrappedSOLMint); got != 0 {
		t.Fatalf("locks remain after dry run: %v", got)
	}
}
