package position

import (
	"context"
	"testing"
	"time"

	"sniper-core/internal/events"
	"sniper-core/internal/models"
	"sniper-core/pkg/clock"
	"sniper-core/pkg/store"
)

type fixedPrices struct {
	prices map[string]float64
}

func (f fixedPrices) TokenPrice(_ context.Context, mint string) (float64, error) {
	if price, ok := f.prices[mint]; ok {
		return price, nil
	}
	return 0, context.DeadlineExceeded
}

func newTestManager(t *testing.T, prices map[string]float64) (*Manager, *store.Memory, *events.Pipeline[models.StrategySignal], *clock.Fake) {
	t.Helper()
	mem := store.NewMemory()
	pipeline := events.NewPipeline[models.StrategySignal](10)
	clk := clock.NewFake(t0().Add(time.Minute))
	m := NewManager(mem, fixedPrices{prices}, pipeline, WithClock(clk))
	return m, mem, pipeline, clk
}

func takeSignal(t *testing.T, p *events.Pipeline[models.StrategySignal]) *models.StrategySignal {
	t.Helper()
	select {
	case sig := <-p.Receive():
		return &sig
	default:
		return nil
	}
}

func TestTakeProfitEmitsExactlyOnce(t *testing.T) {
	// Entry 0.001, 50 tokens, TP 0.004. A tick at 0.004001 emits one sell
	// for the full holding; the next tick at 0.005 emits nothing.
	m, _, pipeline, _ := newTestManager(t, map[string]float64{"TKNmint": 0.004001})
	ctx := context.Background()

	p := testPosition("pure_sniper")
	if err := m.Add(ctx, p); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := m.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	sig := takeSignal(t, pipeline)
	if sig == nil {
		t.Fatal("expected one exit signal")
	}
	if sig.Kind != models.SignalSell || sig.Size != 50 {
		t.Fatalf("signal=%+v", sig)
	}
	if sig.MetadataString("exit_reason") != "take_profit" {
		t.Fatalf("exit reason=%q", sig.MetadataString("exit_reason"))
	}

	// The store now holds the position as Closing.
	stored, err := m.Get(ctx, p.ID)
	if err != nil || stored == nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusClosing {
		t.Fatalf("status=%s, expected closing", stored.Status)
	}

	// Higher price, second tick: no further signal.
	m.prices = fixedPrices{map[string]float64{"TKNmint": 0.005}}
	if err := m.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if sig := takeSignal(t, pipeline); sig != nil {
		t.Fatalf("unexpected second signal: %+v", sig)
	}
}

func TestReplayOnClosingPositionIsNoOp(t *testing.T) {
	m, mem, pipeline, _ := newTestManager(t, map[string]float64{"TKNmint": 0.004001})
	ctx := context.Background()

	p := testPosition("pure_sniper")
	p.MarkClosing("exit-1", t0())
	if err := m.Add(ctx, p); err != nil {
		t.Fatalf("add: %v", err)
	}
	before, _, _ := mem.Get(ctx, p.StoreKey())

	if err := m.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sig := takeSignal(t, pipeline); sig != nil {
		t.Fatalf("closing position re-emitted: %+v", sig)
	}
	after, _, _ := mem.Get(ctx, p.StoreKey())
	if before != after {
		t.Fatal("replay mutated a closing position")
	}
}

func TestCrashRestartReEmitsForActivePosition(t *testing.T) {
	// If the process dies before a condition fires, a fresh manager over
	// the same store picks the position up and emits exactly one signal.
	m1, mem, pipeline1, _ := newTestManager(t, map[string]float64{"TKNmint": 0.002})
	ctx := context.Background()

	p := testPosition("pure_sniper")
	if err := m1.Add(ctx, p); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m1.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sig := takeSignal(t, pipeline1); sig != nil {
		t.Fatalf("no condition held yet: %+v", sig)
	}

	// "Restart": new manager, same store, price now beyond TP.
	pipeline2 := events.NewPipeline[models.StrategySignal](10)
	clk := clock.NewFake(t0().Add(2 * time.Minute))
	m2 := NewManager(mem, fixedPrices{map[string]float64{"TKNmint": 0.0041}}, pipeline2, WithClock(clk))

	if err := m2.Tick(ctx); err != nil {
		t.Fatalf("restarted tick: %v", err)
	}
	if sig := takeSignal(t, pipeline2); sig == nil {
		t.Fatal("restarted manager should emit the exit signal")
	}
	if err := m2.Tick(ctx); err != nil {
		t.Fatalf("followup tick: %v", err)
	}
	if sig := takeSignal(t, pipeline2); sig != nil {
		t.Fatal("second emission after restart")
	}
}

func TestFailedPositionIsNotMonitored(t *testing.T) {
	// An exit that could not execute sinks the position to Failed; the
	// monitor must neither re-emit nor mutate it afterwards.
	m, mem, pipeline, _ := newTestManager(t, map[string]float64{"TKNmint": 0.004001})
	ctx := context.Background()

	p := testPosition("pure_sniper")
	p.MarkClosing("exit-1", t0())
	p.MarkFailed(t0().Add(time.Second))
	if err := m.Add(ctx, p); err != nil {
		t.Fatalf("add: %v", err)
	}
	if p.Monitorable() {
		t.Fatal("failed position should not be monitorable")
	}
	before, _, _ := mem.Get(ctx, p.StoreKey())

	if err := m.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sig := takeSignal(t, pipeline); sig != nil {
		t.Fatalf("failed position emitted: %+v", sig)
	}
	after, _, _ := mem.Get(ctx, p.StoreKey())
	if before != after {
		t.Fatal("tick mutated a failed position")
	}

	stored, _ := m.Get(ctx, p.ID)
	if stored.Status != StatusFailed || stored.ExitOrderID != "exit-1" {
		t.Fatalf("stored=%+v", stored)
	}
}

func TestTimeExitFires(t *testing.T) {
	m, _, pipeline, clk := newTestManager(t, map[string]float64{"TKNmint": 0.001})
	ctx := context.Background()

	p := testPosition("pure_sniper")
	if err := m.Add(ctx, p); err != nil {
		t.Fatalf("add: %v", err)
	}

	clk.Advance(2 * time.Hour)
	if err := m.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	sig := takeSignal(t, pipeline)
	if sig == nil || sig.MetadataString("exit_reason") != "time_exit" {
		t.Fatalf("signal=%+v", sig)
	}
}

func TestMissingPriceSkipsPosition(t *testing.T) {
	m, _, pipeline, _ := newTestManager(t, map[string]float64{})
	ctx := context.Background()

	p := testPosition("pure_sniper")
	if err := m.Add(ctx, p); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sig := takeSignal(t, pipeline); sig != nil {
		t.Fatalf("signal without price data: %+v", sig)
	}

	stored, _ := m.Get(ctx, p.ID)
	if stored.Status != StatusActive {
		t.Fatalf("status=%s, expected still active", stored.Status)
	}
}

func TestPartialExitThroughMonitor(t *testing.T) {
	m, _, pipeline, _ := newTestManager(t, map[string]float64{"TKNmint": 0.0016})
	ctx := context.Background()

	p := testPosition("momentum_trader")
	tokens := p.TokensHeld
	if err := m.Add(ctx, p); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := m.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	sig := takeSignal(t, pipeline)
	if sig == nil || sig.MetadataString("exit_reason") != "partial_exit" {
		t.Fatalf("signal=%+v", sig)
	}
	if diff := sig.Size - tokens*0.25; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("partial size=%v", sig.Size)
	}

	// Same price again: the level already fired, position stays active.
	if err := m.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if sig := takeSignal(t, pipeline); sig != nil {
		t.Fatalf("partial level fired twice: %+v", sig)
	}

	stored, _ := m.Get(ctx, p.ID)
	if stored.Status != StatusActive {
		t.Fatalf("status=%s", stored.Status)
	}
	if diff := stored.TokensHeld - tokens*0.75; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("held=%v", stored.TokensHeld)
	}
}
