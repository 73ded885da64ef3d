package exec

import (
	"errors"
	"testing"

	"sniper-core/internal/models"
	"sniper-core/internal/portfolio"
)

func testPortfolio(sol float64, tokens map[string]float64) *portfolio.Manager {
	pf := portfolio.NewManager(nil, "wallet", nil, nil)
	pf.SetBalances(sol, tokens)
	return pf
}

func pendingOrder(size float64) models.Order {
	return models.Order{
		ID:             "order-1",
		Symbol:         "TKNmint111111111111111111111111111111111111/SOL",
		Side:           models.SideBuy,
		Kind:           models.OrderMarket,
		Size:           size,
		Status:         models.OrderPending,
		StrategyName:   "momentum_trader",
		MaxSlippageBps: 300,
		ExecParams:     models.DefaultExecutionParams(),
	}
}

func TestPlanLocksInputAndFees(t *testing.T) {
	pf := testPortfolio(2.0, nil)
	p := NewPlanner(pf, true, nil)

	order := pendingOrder(0.5)
	order.ExecParams.UseMEVProtection = false

	planned, err := p.Plan(order)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if got := pf.Locks().Locked(models.WrappedSOLMint); got != 0.5+FeeReserveSOL {
		t.Fatalf("locked SOL=%v, expected %v", got, 0.5+FeeReserveSOL)
	}

	planned.Release()
	if got := pf.Locks().Locked(models.WrappedSOLMint); got != 0 {
		t.Fatalf("locked SOL after release=%v, expected 0", got)
	}

	// A second release is a no-op, not a double unlock.
	pf.Locks().Lock(models.WrappedSOLMint, 1.0)
	planned.Release()
	if got := pf.Locks().Locked(models.WrappedSOLMint); got != 1.0 {
		t.Fatalf("double release mutated ledger: %v", got)
	}
}

func TestPlanInsufficientBalance(t *testing.T) {
	// Order for 2 SOL against balance 1.5, nothing locked.
	pf := testPortfolio(1.5, nil)
	p := NewPlanner(pf, true, nil)

	_, err := p.Plan(pendingOrder(2.0))
	var insufficientErr *models.InsufficientBalanceError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("err=%v, expected InsufficientBalanceError", err)
	}
	if insufficientErr.Required != 2.0 || insufficientErr.Available != 1.5 {
		t.Fatalf("err=%+v", insufficientErr)
	}
	// No lock mutation on rejection.
	if got := pf.Locks().Locked(models.WrappedSOLMint); got != 0 {
		t.Fatalf("locked=%v after rejection, expected 0", got)
	}
}

func TestPlanCountsExistingLocks(t *testing.T) {
	pf := testPortfolio(1.0, nil)
	pf.Locks().Lock(models.WrappedSOLMint, 0.8)
	p := NewPlanner(pf, true, nil)

	_, err := p.Plan(pendingOrder(0.5))
	var insufficientErr *models.InsufficientBalanceError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("err=%v, expected InsufficientBalanceError (0.2 available)", err)
	}
}

func TestPlanInsufficientFees(t *testing.T) {
	// Exactly the size available but nothing left for the fee reserve.
	pf := testPortfolio(0.5, nil)
	p := NewPlanner(pf, true, nil)

	_, err := p.Plan(pendingOrder(0.5))
	var feesErr *models.InsufficientFeesError
	if !errors.As(err, &feesErr) {
		t.Fatalf("err=%v, expected InsufficientFeesError", err)
	}
}

func TestPlanGateValidation(t *testing.T) {
	pf := testPortfolio(10, nil)
	p := NewPlanner(pf, true, nil)

	tests := []struct {
		name   string
		mutate func(*models.Order)
	}{
		{"non-pending", func(o *models.Order) { o.Status = models.OrderOpen }},
		{"zero size", func(o *models.Order) { o.Size = 0 }},
		{"slippage above cap", func(o *models.Order) { o.MaxSlippageBps = 1500 }},
		{"malformed symbol", func(o *models.Order) { o.Symbol = "TKN" }},
		{"unknown token", func(o *models.Order) { o.Symbol = "SHORT/SOL" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := pendingOrder(0.5)
			tt.mutate(&order)
			if _, err := p.Plan(order); err == nil {
				t.Fatal("expected gate rejection")
			}
			if got := pf.Locks().Locked(models.WrappedSOLMint); got != 0 {
				t.Fatalf("locks leaked: %v", got)
			}
		})
	}
}

func TestMEVDecision(t *testing.T) {
	pf := testPortfolio(100, nil)
	p := NewPlanner(pf, true, []string{"pure_sniper"})

	// Small order, plain strategy: no MEV.
	small := pendingOrder(0.5)
	small.ExecParams.UseMEVProtection = false
	planned, err := p.Plan(small)
	if err != nil {
		t.Fatalf("plan small: %v", err)
	}
	planned.Release()
	if planned.UseMEV {
		t.Fatal("small plain order should not use MEV")
	}

	// Value above $1000 (>10 SOL at the nominal price): MEV.
	large := pendingOrder(20)
	large.ExecParams.UseMEVProtection = false
	planned, err = p.Plan(large)
	if err != nil {
		t.Fatalf("plan large: %v", err)
	}
	planned.Release()
	if !planned.UseMEV {
		t.Fatal("large order should use MEV")
	}

	// Sniper strategy always protected.
	sniper := pendingOrder(0.05)
	sniper.ExecParams.UseMEVProtection = false
	sniper.StrategyName = "pure_sniper"
	planned, err = p.Plan(sniper)
	if err != nil {
		t.Fatalf("plan sniper: %v", err)
	}
	planned.Release()
	if !planned.UseMEV {
		t.Fatal("sniper orders must use MEV")
	}

	// Global MEV switch off overrides everything.
	off := NewPlanner(pf, false, []string{"pure_sniper"})
	planned, err = off.Plan(sniper)
	if err != nil {
		t.Fatalf("plan with MEV off: %v", err)
	}
	planned.Release()
	if planned.UseMEV {
		t.Fatal("MEV disabled globally")
	}
}

func TestResolveSymbol(t *testing.T) {
	mint := "TKNmint111111111111111111111111111111111111"

	in, out, err := ResolveSymbol(mint+"/SOL", models.SideBuy)
	if err != nil {
		t.Fatalf("buy resolve: %v", err)
	}
	if in != models.WrappedSOLMint || out != mint {
		t.Fatalf("buy resolved %s -> %s", in, out)
	}

	in, out, err = ResolveSymbol(mint+"/SOL", models.SideSell)
	if err != nil {
		t.Fatalf("sell resolve: %v", err)
	}
	if in != mint || out != models.WrappedSOLMint {
		t.Fatalf("sell resolved %s -> %s", in, out)
	}

	if _, _, err := ResolveSymbol("SOL/USDC", models.SideBuy); err != nil {
		t.Fatalf("well-known pair: %v", err)
	}
}
