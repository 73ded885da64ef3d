package strategy

import (
	"context"
	"testing"

	"sniper-core/internal/models"
)

func buyTx(mint string, amount float64) models.NewTransaction {
	return models.NewTransaction{
		Signature:    "sig",
		TokenAddress: mint,
		Amount:       amount,
		TxKind:       models.TxBuy,
		Timestamp:    1_700_000_000_000,
	}
}

func liquidity(mint string, sol float64) models.LiquidityUpdate {
	return models.LiquidityUpdate{
		PoolAddress: "pool",
		TokenA:      mint,
		TokenB:      models.WrappedSOLMint,
		LiquidityA:  1_000_000,
		LiquidityB:  sol,
		Price:       0.001,
		Timestamp:   1_700_000_000_000,
	}
}

func TestVolumeSpikeFiresOnAbnormalBuys(t *testing.T) {
	s := NewVolumeSpike("volume_spike")
	ctx := context.Background()
	sctx := models.StrategyContext{Portfolio: models.PortfolioSnapshot{SOLBalance: 1}}

	// Build a calm baseline.
	for i := 0; i < 10; i++ {
		sig, err := s.OnMarketEvent(ctx, buyTx("TKNmint", 10), sctx)
		if err != nil {
			t.Fatalf("baseline event: %v", err)
		}
		if sig != nil {
			t.Fatalf("baseline produced signal: %+v", sig)
		}
	}

	// A 5x buy trips the spike predicate alone.
	sig, err := s.OnMarketEvent(ctx, buyTx("TKNmint", 50), sctx)
	if err != nil {
		t.Fatalf("spike event: %v", err)
	}
	if sig == nil {
		t.Fatal("expected spike signal")
	}
	if sig.Kind != models.SignalBuy || sig.Strength < 0.7 {
		t.Fatalf("signal=%+v", sig)
	}
}

func TestLiquidityMilestoneIsIndependentPredicate(t *testing.T) {
	s := NewVolumeSpike("volume_spike")
	ctx := context.Background()
	sctx := models.StrategyContext{Portfolio: models.PortfolioSnapshot{SOLBalance: 1}}

	// Milestone reached (50 SOL) with NO volume spike: a single ordinary
	// buy afterwards still signals, on the liquidity predicate alone.
	if _, err := s.OnMarketEvent(ctx, liquidity("TKNmint", 60), sctx); err != nil {
		t.Fatalf("liquidity event: %v", err)
	}
	sig, err := s.OnMarketEvent(ctx, buyTx("TKNmint", 10), sctx)
	if err != nil {
		t.Fatalf("buy event: %v", err)
	}
	if sig == nil {
		t.Fatal("milestone alone should gate an entry")
	}
	if sig.MetadataBool("liquidity_milestone") != true {
		t.Fatalf("metadata=%s", sig.Metadata)
	}
}

func TestCurveProgressBoostsButDoesNotGate(t *testing.T) {
	s := NewVolumeSpike("volume_spike")
	ctx := context.Background()
	sctx := models.StrategyContext{Portfolio: models.PortfolioSnapshot{SOLBalance: 1}}

	// Near graduation (90%) but below the milestone, with a spike: fires
	// with boosted strength.
	if _, err := s.OnMarketEvent(ctx, liquidity("TKNmint", 45), sctx); err != nil {
		t.Fatalf("liquidity event: %v", err)
	}
	for i := 0; i < 10; i++ {
		_, _ = s.OnMarketEvent(ctx, buyTx("TKNmint", 10), sctx)
	}
	sig, err := s.OnMarketEvent(ctx, buyTx("TKNmint", 60), sctx)
	if err != nil {
		t.Fatalf("spike event: %v", err)
	}
	if sig == nil {
		t.Fatal("expected signal")
	}
	if sig.Strength != 0.9 {
		t.Fatalf("strength=%v, expected boosted 0.9", sig.Strength)
	}
}

func TestVolumeSpikeIgnoresSells(t *testing.T) {
	s := NewVolumeSpike("volume_spike")
	sctx := models.StrategyContext{Portfolio: models.PortfolioSnapshot{SOLBalance: 1}}

	tx := buyTx("TKNmint", 1000)
	tx.TxKind = models.TxSell
	sig, err := s.OnMarketEvent(context.Background(), tx, sctx)
	if err != nil || sig != nil {
		t.Fatalf("sig=%v err=%v", sig, err)
	}
}
