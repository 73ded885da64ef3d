package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sniper-core/internal/indicators"
	"sniper-core/internal/models"
)

// VolumeSpike watches launch-platform tokens for abnormal buy volume and
// graduation progress. Liquidity milestone and bonding-curve progress are
// deliberately separate predicates: a volume spike or the liquidity
// milestone can each gate an entry on its own, while curve progress only
// raises the strength of a spike signal.
type VolumeSpike struct {
	name    string
	enabled bool

	positionSizeSOL   float64
	spikeRatio        float64 // last volume vs window average
	liquidityMilestone float64 // SOL liquidity that marks a mature pool
	curveProgressMin  float64 // fraction of the bonding curve traversed

	mu       sync.Mutex
	txCounts map[string][]float64 // token -> per-observation buy volume
	progress map[string]float64   // token -> last seen curve progress
}

// NewVolumeSpike builds the strategy with its defaults.
func NewVolumeSpike(name string) *VolumeSpike {
	return &VolumeSpike{
		name:               name,
		enabled:            true,
		positionSizeSOL:    0.1,
		spikeRatio:         3.0,
		liquidityMilestone: 50.0,
		curveProgressMin:   0.8,
		txCounts:           make(map[string][]float64),
		progress:           make(map[string]float64),
	}
}

func (s *VolumeSpike) Name() string              { return s.name }
func (s *VolumeSpike) StrategyKind() Kind        { return KindVolumeSpike }
func (s *VolumeSpike) IsEnabled() bool           { return s.enabled }
func (s *VolumeSpike) SetEnabled(enabled bool)   { s.enabled = enabled }
func (s *VolumeSpike) RequiredSources() []string { return []string{"helius"} }

func (s *VolumeSpike) MinConfidenceThreshold() float64 { return 0.7 }

func (s *VolumeSpike) CanOperate(sctx models.StrategyContext) bool {
	return s.enabled && sctx.Portfolio.SOLBalance >= s.positionSizeSOL
}

func (s *VolumeSpike) IsInterestedInEvent(event models.MarketEvent) bool {
	if !s.enabled {
		return false
	}
	switch event.Kind() {
	case models.EventNewTransaction, models.EventLiquidityUpdate, models.EventWhaleAlert:
		return true
	}
	return false
}

func (s *VolumeSpike) OnMarketEvent(_ context.Context, event models.MarketEvent, _ models.StrategyContext) (*models.StrategySignal, error) {
	switch e := event.(type) {
	case models.NewTransaction:
		if e.TxKind != models.TxBuy || e.TokenAddress == "" {
			return nil, nil
		}
		return s.observeBuy(e.TokenAddress, e.Amount, e.Price, e.Timestamp), nil

	case models.LiquidityUpdate:
		// Track curve progress toward the liquidity milestone.
		tokenMint, isSOLPair := solPairToken(e.TokenA, e.TokenB)
		if !isSOLPair || tokenMint == "" {
			return nil, nil
		}
		solSide := e.LiquidityB
		if e.TokenA == models.WrappedSOLMint {
			solSide = e.LiquidityA
		}
		s.mu.Lock()
		s.progress[tokenMint] = solSide / s.liquidityMilestone
		s.mu.Unlock()
		return nil, nil

	case models.WhaleAlert:
		if e.TxKind != models.TxBuy || e.TokenAddress == "" {
			return nil, nil
		}
		// A whale buy is recorded as one buy observation of its USD amount.
		return s.observeBuy(e.TokenAddress, e.AmountUSD, 0, e.Timestamp), nil
	}
	return nil, nil
}

// observeBuy records one buy and fires when the spike predicate or the
// graduation predicates line up.
func (s *VolumeSpike) observeBuy(tokenMint string, amount, price float64, tsMs int64) *models.StrategySignal {
	s.mu.Lock()
	window := appendBoundedFloats(s.txCounts[tokenMint], amount, 60)
	s.txCounts[tokenMint] = window
	curveProgress := s.progress[tokenMint]
	s.mu.Unlock()

	ratio := indicators.SpikeRatio(window, 10)
	spiked := ratio >= s.spikeRatio
	liquidityReached := curveProgress >= 1.0
	nearGraduation := curveProgress >= s.curveProgressMin

	if !spiked && !liquidityReached {
		return nil
	}

	strength := 0.7
	if spiked && nearGraduation {
		strength = 0.9
	}

	metadata, _ := json.Marshal(map[string]any{
		"strategy_type":        "volume_spike",
		"token_mint":           tokenMint,
		"spike_ratio":          ratio,
		"curve_progress":       curveProgress,
		"liquidity_milestone":  liquidityReached,
		"take_profit_percent":  200.0,
		"stop_loss_percent":    -60.0,
		"time_exit_hours":      2.0,
		"use_mev_protection":   true,
		"priority":             "high",
	})

	return &models.StrategySignal{
		StrategyName: s.name,
		Symbol:       tokenMint + "/SOL",
		Kind:         models.SignalBuy,
		Strength:     strength,
		Price:        price,
		Size:         s.positionSizeSOL,
		Metadata:     metadata,
		Timestamp:    time.UnixMilli(tsMs).UTC(),
	}
}

func (s *VolumeSpike) Analyze(_ context.Context, _ models.StrategyContext) (*models.StrategySignal, error) {
	return nil, nil
}

func (s *VolumeSpike) UpdateParameters(params map[string]any) error {
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
		case "spike_ratio":
			if v, ok := toFloat(value); ok {
				s.spikeRatio = v
			}
		case "liquidity_milestone_sol":
			if v, ok := toFloat(value); ok {
				s.liquidityMilestone = v
			}
		case "curve_progress_min":
			if v, ok := toFloat(value); ok {
				s.curveProgressMin = v
			}
		default:
			return fmt.Errorf("unknown parameter %q", key)
		}
	}
	return nil
}

func appendBoundedFloats(arr []float64, v float64, window int) []float64 {
	arr = append(arr, v)
	if len(arr) > window {
		arr = arr[len(arr)-window:]
	}
	return arr
}
