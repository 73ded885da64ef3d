package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"sniper-core/internal/models"
)

// sniperParams are the tunables shared by the sniper family.
type sniperParams struct {
	PurchaseAmountSOL float64
	TakeProfitPct     float64
	StopLossPct       float64 // negative
	TimeExitHours     float64
	MinLiquiditySOL   float64
	ValidationBudget  time.Duration
}

// Sniper reacts to brand-new pools: validate the token fast, then buy a
// small fixed amount immediately with MEV protection. Profit comes from
// informational and temporal advantage, not analysis.
type Sniper struct {
	name      string
	enabled   bool
	params    sniperParams
	validator TokenValidator
	threshold float64
}

// NewPureSniper builds the aggressive variant: TP +300%, SL -80%, one-hour
// time exit.
func NewPureSniper(name string, validator TokenValidator) *Sniper {
	return &Sniper{
		name:    name,
		enabled: true,
		params: sniperParams{
			PurchaseAmountSOL: 0.05,
			TakeProfitPct:     300.0,
			StopLossPct:       -80.0,
			TimeExitHours:     1.0,
			MinLiquiditySOL:   1.0,
			ValidationBudget:  100 * time.Millisecond,
		},
		validator: validator,
		threshold: 0.9,
	}
}

// NewCautiousSniper builds the moderate variant: TP +200%, SL -60%,
// two-hour time exit, higher liquidity floor.
func NewCautiousSniper(name string, validator TokenValidator) *Sniper {
	return &Sniper{
		name:    name,
		enabled: true,
		params: sniperParams{
			PurchaseAmountSOL: 0.05,
			TakeProfitPct:     200.0,
			StopLossPct:       -60.0,
			TimeExitHours:     2.0,
			MinLiquiditySOL:   5.0,
			ValidationBudget:  100 * time.Millisecond,
		},
		validator: validator,
		threshold: 0.85,
	}
}

func (s *Sniper) Name() string              { return s.name }
func (s *Sniper) StrategyKind() Kind        { return KindSniping }
func (s *Sniper) IsEnabled() bool           { return s.enabled }
func (s *Sniper) SetEnabled(enabled bool)   { s.enabled = enabled }
func (s *Sniper) RequiredSources() []string { return []string{"helius"} }

func (s *Sniper) MinConfidenceThreshold() float64 { return s.threshold }

func (s *Sniper) CanOperate(sctx models.StrategyContext) bool {
	return s.enabled && sctx.Portfolio.SOLBalance >= s.params.PurchaseAmountSOL
}

// IsInterestedInEvent: snipers only react to new pools.
func (s *Sniper) IsInterestedInEvent(event models.MarketEvent) bool {
	return s.enabled && event.Kind() == models.EventNewPoolCreated
}

// Analyze is a no-op; snipers are purely reactive.
func (s *Sniper) Analyze(_ context.Context, _ models.StrategyContext) (*models.StrategySignal, error) {
	return nil, nil
}

func (s *Sniper) OnMarketEvent(ctx context.Context, event models.MarketEvent, _ models.StrategyContext) (*models.StrategySignal, error) {
	pool, ok := event.(models.NewPoolCreated)
	if !ok {
		return nil, nil
	}

	tokenMint, isSOLPair := solPairToken(pool.BaseMint, pool.QuoteMint)
	if !isSOLPair || tokenMint == "" {
		return nil, nil
	}
	if pool.InitialLiquidity > 0 && pool.InitialLiquidity < s.params.MinLiquiditySOL {
		return nil, nil
	}

	ok, err := s.validateToken(ctx, tokenMint)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", tokenMint, err)
	}
	if !ok {
		log.Printf("%s: token %s failed validation, skipped", s.name, tokenMint)
		return nil, nil
	}

	metadata, _ := json.Marshal(map[string]any{
		"strategy_type":       "sniper",
		"token_mint":          tokenMint,
		"sol_mint":            models.WrappedSOLMint,
		"pool_address":        pool.PoolAddress,
		"take_profit_percent": s.params.TakeProfitPct,
		"stop_loss_percent":   s.params.StopLossPct,
		"time_exit_hours":     s.params.TimeExitHours,
		"use_mev_protection":  true,
		"priority":            "ultra_high",
	})

	return &models.StrategySignal{
		StrategyName: s.name,
		Symbol:       tokenMint + "/SOL",
		Kind:         models.SignalBuy,
		Strength:     0.95,
		Price:        0, // market; the executor quotes it
		Size:         s.params.PurchaseAmountSOL,
		Metadata:     metadata,
		Timestamp:    time.UnixMilli(event.TimestampMs()).UTC(),
	}, nil
}

// validateToken runs the authority checks under the strategy's time budget.
// A missing validator approves (dry runs).
func (s *Sniper) validateToken(ctx context.Context, mint string) (bool, error) {
	if s.validator == nil {
		return true, nil
	}
	vctx, cancel := context.WithTimeout(ctx, s.params.ValidationBudget)
	defer cancel()
	ok, err := s.validator.ValidateToken(vctx, mint)
	if err != nil {
		// A validation that cannot complete inside the budget is a miss,
		// not an engine failure.
		if vctx.Err() != nil {
			log.Printf("%s: validation of %s exceeded %s, rejected", s.name, mint, s.params.ValidationBudget)
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func (s *Sniper) UpdateParameters(params map[string]any) error {
	for key, value := range params {
		switch key {
		case "enabled":
			if v, ok := value.(bool); ok {
				s.enabled = v
			}
		case "purchase_amount_sol":
			if v, ok := toFloat(value); ok {
				s.params.PurchaseAmountSOL = v
			}
		case "take_profit_percent":
			if v, ok := toFloat(value); ok {
				s.params.TakeProfitPct = v
			}
		case "stop_loss_percent":
			if v, ok := toFloat(value); ok {
				s.params.StopLossPct = v
			}
		case "time_exit_hours":
			if v, ok := toFloat(value); ok {
				s.params.TimeExitHours = v
			}
		case "min_liquidity_sol":
			if v, ok := toFloat(value); ok {
				s.params.MinLiquiditySOL = v
			}
		default:
			return fmt.Errorf("unknown parameter %q", key)
		}
	}
	return nil
}

// solPairToken returns the non-SOL side of a pool pair, if any.
func solPairToken(baseMint, quoteMint string) (string, bool) {
	switch models.WrappedSOLMint {
	case quoteMint:
		return baseMint, true
	case baseMint:
		return quoteMint, true
	}
	return "", false
}

// toFloat accepts the numeric types YAML and JSON decoding produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
