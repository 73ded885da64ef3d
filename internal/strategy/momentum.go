package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sniper-core/internal/indicators"
	"sniper-core/internal/models"
)

// MomentumTrader rides sustained price moves on already-listed tokens. It
// consumes price updates into an indicator engine and signals when
// short-term momentum crosses its entry threshold with RSI headroom.
type MomentumTrader struct {
	name    string
	enabled bool

	positionSizeSOL float64
	entryMomentum   float64 // percent over the short window
	maxRSI          float64
	minSamples      int

	engine *indicators.Engine
}

// NewMomentumTrader builds the strategy with its defaults.
func NewMomentumTrader(name string) *MomentumTrader {
	return &MomentumTrader{
		name:            name,
		enabled:         true,
		positionSizeSOL: 0.2,
		entryMomentum:   8.0,
		maxRSI:          75.0,
		minSamples:      20,
		engine:          indicators.NewEngine(10, 30, 14, 120),
	}
}

func (s *MomentumTrader) Name() string              { return s.name }
func (s *MomentumTrader) StrategyKind() Kind        { return KindMomentum }
func (s *MomentumTrader) IsEnabled() bool           { return s.enabled }
func (s *MomentumTrader) SetEnabled(enabled bool)   { s.enabled = enabled }
func (s *MomentumTrader) RequiredSources() []string { return []string{"binance", "jupiter"} }

func (s *MomentumTrader) MinConfidenceThreshold() float64 { return 0.7 }

func (s *MomentumTrader) CanOperate(sctx models.StrategyContext) bool {
	return s.enabled && sctx.Portfolio.SOLBalance >= s.positionSizeSOL
}

func (s *MomentumTrader) IsInterestedInEvent(event models.MarketEvent) bool {
	return s.enabled && event.Kind() == models.EventPriceUpdate
}

func (s *MomentumTrader) OnMarketEvent(_ context.Context, event models.MarketEvent, _ models.StrategyContext) (*models.StrategySignal, error) {
	update, ok := event.(models.PriceUpdate)
	if !ok || update.Price <= 0 {
		return nil, nil
	}

	vals := s.engine.Update(update.Symbol, update.Price, update.Volume24h)
	if int(vals["samples"]) < s.minSamples {
		return nil, nil
	}
	momentum := vals["momentum_pct"]
	rsi := vals["rsi"]
	if momentum < s.entryMomentum || rsi > s.maxRSI {
		return nil, nil
	}
	// Require the short average above the long one so a single print does
	// not trigger an entry.
	if vals["sma_short"] <= vals["sma_long"] {
		return nil, nil
	}

	strength := 0.7 + min(momentum/100.0, 0.25)

	metadata, _ := json.Marshal(map[string]any{
		"strategy_type":      "momentum_trader",
		"momentum_pct":       momentum,
		"rsi":                rsi,
		"stop_loss_percent":  -20.0,
		"time_exit_hours":    24.0,
		"trailing_stop_pct":  20.0,
		"use_mev_protection": false,
		"priority":           "normal",
	})

	return &models.StrategySignal{
		StrategyName: s.name,
		Symbol:       update.Symbol,
		Kind:         models.SignalBuy,
		Strength:     strength,
		Price:        update.Price,
		Size:         s.positionSizeSOL,
		Metadata:     metadata,
		Timestamp:    time.UnixMilli(update.Timestamp).UTC(),
	}, nil
}

// Analyze returns no signal on the periodic tick; momentum entries come
// only from the per-update event path.
func (s *MomentumTrader) Analyze(_ context.Context, sctx models.StrategyContext) (*models.StrategySignal, error) {
	// Momentum entries come from the event path; the periodic tick is used
	// by slower strategies.
	_ = sctx
	return nil, nil
}

func (s *MomentumTrader) UpdateParameters(params map[string]any) error {
	for key, value := range params {
		switch key {
		case "enabled":
			if v, ok := value.(bool); ok {
				s.enabled = v
			}
		case "position_size_sol":
			if v, ok := toFloat(value); ok {
				s.positionSizeSOL = v
			}
		case "entry_momentum_pct":
			if v, ok := toFloat(value); ok {
				s.entryMomentum = v
			}
		case "max_rsi":
			if v, ok := toFloat(value); ok {
				s.maxRSI = v
			}
		case "min_samples":
			if v, ok := toFloat(value); ok {
				s.minSamples = int(v)
			}
		default:
			return fmt.Errorf("unknown parameter %q", key)
		}
	}
	return nil
}
