package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sniper-core/internal/models"
)

// LiquiditySniping buys tokens whose pools receive a large liquidity
// injection shortly after listing. Unlike the pure sniper it waits for the
// pool to prove it has depth.
type LiquiditySniping struct {
	name    string
	enabled bool

	purchaseAmountSOL float64
	minInjectionSOL   float64
	maxPoolAgeHours   float64
	cooldown          time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time // pool -> last signal time
}

// NewLiquiditySniping builds the strategy with its defaults.
func NewLiquiditySniping(name string) *LiquiditySniping {
	return &LiquiditySniping{
		name:              name,
		enabled:           true,
		purchaseAmountSOL: 0.1,
		minInjectionSOL:   10.0,
		maxPoolAgeHours:   24.0,
		cooldown:          5 * time.Minute,
		lastSeen:          make(map[string]time.Time),
	}
}

func (s *LiquiditySniping) Name() string              { return s.name }
func (s *LiquiditySniping) StrategyKind() Kind        { return KindLiquidity }
func (s *LiquiditySniping) IsEnabled() bool           { return s.enabled }
func (s *LiquiditySniping) SetEnabled(enabled bool)   { s.enabled = enabled }
func (s *LiquiditySniping) RequiredSources() []string { return []string{"helius"} }

func (s *LiquiditySniping) MinConfidenceThreshold() float64 { return 0.75 }

func (s *LiquiditySniping) CanOperate(sctx models.StrategyContext) bool {
	return s.enabled && sctx.Portfolio.SOLBalance >= s.purchaseAmountSOL
}

func (s *LiquiditySniping) IsInterestedInEvent(event models.MarketEvent) bool {
	return s.enabled && event.Kind() == models.EventLiquidityUpdate
}

func (s *LiquiditySniping) Analyze(_ context.Context, _ models.StrategyContext) (*models.StrategySignal, error) {
	return nil, nil
}

func (s *LiquiditySniping) OnMarketEvent(_ context.Context, event models.MarketEvent, sctx models.StrategyContext) (*models.StrategySignal, error) {
	update, ok := event.(models.LiquidityUpdate)
	if !ok {
		return nil, nil
	}

	tokenMint, isSOLPair := solPairToken(update.TokenA, update.TokenB)
	if !isSOLPair || tokenMint == "" {
		return nil, nil
	}

	solSide := update.LiquidityB
	if update.TokenA == models.WrappedSOLMint {
		solSide = update.LiquidityA
	}
	if solSide < s.minInjectionSOL {
		return nil, nil
	}
	if age := sctx.Conditions.AgeHours; age > 0 && age > s.maxPoolAgeHours {
		return nil, nil
	}

	now := time.UnixMilli(update.Timestamp).UTC()
	s.mu.Lock()
	if last, seen := s.lastSeen[update.PoolAddress]; seen && now.Sub(last) < s.cooldown {
		s.mu.Unlock()
		return nil, nil
	}
	s.lastSeen[update.PoolAddress] = now
	s.mu.Unlock()

	strength := 0.75
	if solSide >= 5*s.minInjectionSOL {
		strength = 0.9
	}

	metadata, _ := json.Marshal(map[string]any{
		"strategy_type":       "liquidity_sniping",
		"token_mint":          tokenMint,
		"pool_address":        update.PoolAddress,
		"sol_liquidity":       solSide,
		"take_profit_percent": 200.0,
		"stop_loss_percent":   -60.0,
		"time_exit_hours":     2.0,
		"use_mev_protection":  true,
		"priority":            "high",
	})

	return &models.StrategySignal{
		StrategyName: s.name,
		Symbol:       tokenMint + "/SOL",
		Kind:         models.SignalBuy,
		Strength:     strength,
		Price:        update.Price,
		Size:         s.purchaseAmountSOL,
		Metadata:     metadata,
		Timestamp:    now,
	}, nil
}

func (s *LiquiditySniping) UpdateParameters(params map[string]any) error {
	for key, value := range params {
		switch key {
		case "enabled":
			if v, ok := value.(bool); ok {
				s.enabled = v
			}
		case "purchase_amount_sol":
			if v, ok := toFloat(value); ok {
				s.purchaseAmountSOL = v
			}
		case "min_injection_sol":
			if v, ok := toFloat(value); ok {
				s.minInjectionSOL = v
			}
		case "max_pool_age_hours":
			if v, ok := toFloat(value); ok {
				s.maxPoolAgeHours = v
			}
		case "cooldown_seconds":
			if v, ok := toFloat(value); ok {
				s.cooldown = time.Duration(v * float64(time.Second))
			}
		default:
			return fmt.Errorf("unknown parameter %q", key)
		}
	}
	return nil
}
