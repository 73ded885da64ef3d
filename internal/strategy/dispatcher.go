package strategy

import (
	"context"
	"log"

	"sniper-core/internal/models"
)

// ContextBuilder assembles the immutable snapshot strategies receive. The
// orchestrator wires it to the aggregator and portfolio.
type ContextBuilder interface {
	BuildContext(ctx context.Context, symbol string) (models.StrategyContext, error)
}

// Dispatcher fans market events and periodic ticks out to the active
// strategies and collects candidate signals in registration order.
type Dispatcher struct {
	registry *Registry
	builder  ContextBuilder
	maxBatch int // signal ceiling per event or cycle; 0 = unlimited
}

// NewDispatcher wires a dispatcher to the registry.
func NewDispatcher(registry *Registry, builder ContextBuilder, maxBatch int) *Dispatcher {
	return &Dispatcher{registry: registry, builder: builder, maxBatch: maxBatch}
}

// DispatchEvent offers one market event to every interested active
// strategy. Signals come back in strategy-registration order, giving
// deterministic tie-breaks downstream.
func (d *Dispatcher) DispatchEvent(ctx context.Context, event models.MarketEvent) []models.StrategySignal {
	entries := d.registry.activeSnapshot()
	if len(entries) == 0 {
		return nil
	}

	var signals []models.StrategySignal
	var sctx models.StrategyContext
	sctxBuilt := false

	for _, e := range entries {
		s := e.strategy
		if !s.IsEnabled() || !s.IsInterestedInEvent(event) {
			continue
		}

		// Build the context once per event, only when a strategy wants it.
		if !sctxBuilt {
			built, err := d.buildContextFor(ctx, event)
			if err != nil {
				log.Printf("dispatcher: context build failed: %v", err)
			}
			sctx = built
			sctxBuilt = true
		}

		if !s.CanOperate(sctx) {
			continue
		}

		e.dispatchMu.Lock()
		signal, err := s.OnMarketEvent(ctx, event, sctx)
		e.dispatchMu.Unlock()
		if err != nil {
			log.Printf("dispatcher: strategy %s event error: %v", s.Name(), err)
			continue
		}
		if signal == nil {
			continue
		}

		d.registry.RecordSignal(s.Name(), signal.Strength)
		signals = append(signals, *signal)
		log.Printf("dispatcher: %s signal %s %s strength=%.2f",
			s.Name(), signal.Kind, signal.Symbol, signal.Strength)

		if d.maxBatch > 0 && len(signals) >= d.maxBatch {
			log.Printf("dispatcher: batch ceiling %d reached", d.maxBatch)
			break
		}
	}
	return signals
}

// RunPeriodicAnalysis builds one context and calls Analyze on each active
// strategy.
func (d *Dispatcher) RunPeriodicAnalysis(ctx context.Context) []models.StrategySignal {
	entries := d.registry.activeSnapshot()
	if len(entries) == 0 {
		return nil
	}

	sctx, err := d.buildContextFor(ctx, nil)
	if err != nil {
		log.Printf("dispatcher: periodic context build failed: %v", err)
	}

	var signals []models.StrategySignal
	for _, e := range entries {
		s := e.strategy
		if !s.IsEnabled() || !s.CanOperate(sctx) {
			continue
		}

		e.dispatchMu.Lock()
		signal, err := s.Analyze(ctx, sctx)
		e.dispatchMu.Unlock()
		if err != nil {
			log.Printf("dispatcher: strategy %s analyze error: %v", s.Name(), err)
			continue
		}
		if signal == nil {
			continue
		}

		d.registry.RecordSignal(s.Name(), signal.Strength)
		signals = append(signals, *signal)

		if d.maxBatch > 0 && len(signals) >= d.maxBatch {
			break
		}
	}
	return signals
}

// buildContextFor derives the context symbol from the event when it has
// one; periodic ticks pass nil.
func (d *Dispatcher) buildContextFor(ctx context.Context, event models.MarketEvent) (models.StrategyContext, error) {
	if d.builder == nil {
		return models.StrategyContext{}, nil
	}
	symbol := ""
	switch e := event.(type) {
	case models.PriceUpdate:
		symbol = e.Symbol
	case models.NewPoolCreated:
		symbol = e.BaseMint + "/SOL"
	case models.NewTokenListing:
		symbol = e.TokenAddress + "/SOL"
	case models.NewTransaction:
		symbol = e.TokenAddress + "/SOL"
	case models.WhaleAlert:
		symbol = e.TokenAddress + "/SOL"
	case models.LiquidityUpdate:
		symbol = e.TokenA + "/" + e.TokenB
	}
	return d.builder.BuildContext(ctx, symbol)
}
