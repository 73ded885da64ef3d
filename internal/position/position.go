// Package position tracks open trades against their exit strategies and
// emits exit signals from a polling monitor.
package position

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sniper-core/internal/models"
)

// Status is the position lifecycle state:
// Opening -> Active -> Closing -> Closed, with Failed as a sink.
type Status string

const (
	StatusOpening Status = "opening"
	StatusActive  Status = "active"
	StatusClosing Status = "closing"
	StatusClosed  Status = "closed"
	StatusFailed  Status = "failed"
)

// ExitReason labels which condition closed a position.
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "take_profit"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTimeLimit    ExitReason = "time_exit"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitPartial      ExitReason = "partial_exit"
	ExitManual       ExitReason = "manual_close"
)

// PartialExitLevel scales out part of a position at a profit milestone.
type PartialExitLevel struct {
	PricePct  float64 `json:"price_pct"`  // gain percentage that triggers
	AmountPct float64 `json:"amount_pct"` // share of the position to exit
}

// ExitStrategy configures when a position is closed.
type ExitStrategy struct {
	TakeProfitPct     float64            `json:"take_profit_pct"`
	StopLossPct       float64            `json:"stop_loss_pct"` // negative
	TimeExitHours     float64            `json:"time_exit_hours"`
	TrailingStopPct   float64            `json:"trailing_stop_pct,omitempty"`
	PartialExitLevels []PartialExitLevel `json:"partial_exit_levels,omitempty"`
}

// PureSniperExit is the aggressive preset: +300% / -80% / 1 hour.
func PureSniperExit() ExitStrategy {
	return ExitStrategy{TakeProfitPct: 300, StopLossPct: -80, TimeExitHours: 1}
}

// CautiousSniperExit is the moderate preset: +200% / -60% / 2 hours.
func CautiousSniperExit() ExitStrategy {
	return ExitStrategy{TakeProfitPct: 200, StopLossPct: -60, TimeExitHours: 2}
}

// MomentumExit rides trends: no fixed TP, -20% initial stop, 24 hours,
// 20% trailing stop, scale-outs at +50% and +100%.
func MomentumExit() ExitStrategy {
	return ExitStrategy{
		StopLossPct:     -20,
		TimeExitHours:   24,
		TrailingStopPct: 20,
		PartialExitLevels: []PartialExitLevel{
			{PricePct: 50, AmountPct: 25},
			{PricePct: 100, AmountPct: 25},
		},
	}
}

// LPHarvesterExit is the conservative LP preset: no TP, -30% emergency
// stop, one week.
func LPHarvesterExit() ExitStrategy {
	return ExitStrategy{StopLossPct: -30, TimeExitHours: 168}
}

// defaultExit is handed to strategies without a named preset. The
// orchestrator points it at the configured global TP/SL percentages.
var defaultExit = PureSniperExit()

// SetDefaultExit configures the preset used for unrecognised strategies.
func SetDefaultExit(e ExitStrategy) { defaultExit = e }

// ExitFor maps a strategy name to its preset.
func ExitFor(strategyName string) ExitStrategy {
	switch strategyName {
	case "pure_sniper":
		return PureSniperExit()
	case "cautious_sniper":
		return CautiousSniperExit()
	case "momentum_trader":
		return MomentumExit()
	case "dlmm_fee_harvester":
		return LPHarvesterExit()
	default:
		return defaultExit
	}
}

// ActivePosition is the persistent record of one open trade.
type ActivePosition struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	TokenMint    string `json:"token_mint"`
	StrategyName string `json:"strategy_name"`

	EntryPrice  float64   `json:"entry_price"`
	EntryTime   time.Time `json:"entry_time"`
	SOLInvested float64   `json:"sol_invested"`
	TokensHeld  float64   `json:"tokens_held"`

	ExitStrategy    ExitStrategy `json:"exit_strategy"`
	TakeProfitPrice float64      `json:"take_profit_price,omitempty"`
	StopLossPrice   float64      `json:"stop_loss_price,omitempty"`
	TimeExitAt      time.Time    `json:"time_exit_at"`

	Status         Status  `json:"status"`
	LastPrice      float64 `json:"last_price"`
	MaxProfit      float64 `json:"max_profit"`
	MaxProfitPct   float64 `json:"max_profit_pct"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	EntryOrderID string `json:"entry_order_id"`
	ExitOrderID  string `json:"exit_order_id,omitempty"`
	EntryTxRef   string `json:"entry_tx_ref,omitempty"`
	ExitTxRef    string `json:"exit_tx_ref,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// FromExecution builds a position from a filled entry order.
func FromExecution(order models.Order, signal models.StrategySignal, result models.ExecutionResult, now time.Time) (*ActivePosition, error) {
	tokenMint := signal.MetadataString("token_mint")
	if tokenMint == "" {
		return nil, fmt.Errorf("signal metadata is missing token_mint")
	}

	entryPrice := result.FilledPrice
	if entryPrice <= 0 {
		entryPrice = signal.Price
	}
	if entryPrice <= 0 {
		return nil, fmt.Errorf("cannot derive entry price for %s", signal.Symbol)
	}
	tokens := result.FilledSize / entryPrice

	// The strategy preset is the baseline; signals may override their own
	// exit parameters through metadata.
	exit := ExitFor(signal.StrategyName)
	applyMetadataOverrides(&exit, signal)

	p := &ActivePosition{
		ID:           uuid.NewString(),
		Symbol:       signal.Symbol,
		TokenMint:    tokenMint,
		StrategyName: signal.StrategyName,
		EntryPrice:   entryPrice,
		EntryTime:    now,
		SOLInvested:  result.FilledSize,
		TokensHeld:   tokens,
		ExitStrategy: exit,
		TimeExitAt:   now.Add(time.Duration(exit.TimeExitHours * float64(time.Hour))),
		Status:       StatusActive,
		LastPrice:    entryPrice,
		EntryOrderID: order.ID,
		EntryTxRef:   result.TransactionRef,
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     map[string]any{},
	}

	if exit.TakeProfitPct > 0 {
		p.TakeProfitPrice = entryPrice * (1 + exit.TakeProfitPct/100)
	}
	if exit.StopLossPct < 0 {
		p.StopLossPrice = entryPrice * (100 + exit.StopLossPct) / 100
	}
	return p, nil
}

// applyMetadataOverrides folds per-signal exit parameters into the preset.
func applyMetadataOverrides(exit *ExitStrategy, signal models.StrategySignal) {
	if len(signal.Metadata) == 0 {
		return
	}
	var meta struct {
		TakeProfitPct   *float64 `json:"take_profit_percent"`
		StopLossPct     *float64 `json:"stop_loss_percent"`
		TimeExitHours   *float64 `json:"time_exit_hours"`
		TrailingStopPct *float64 `json:"trailing_stop_pct"`
	}
	if err := json.Unmarshal(signal.Metadata, &meta); err != nil {
		return
	}
	if meta.TakeProfitPct != nil {
		exit.TakeProfitPct = *meta.TakeProfitPct
	}
	if meta.StopLossPct != nil {
		exit.StopLossPct = *meta.StopLossPct
	}
	if meta.TimeExitHours != nil && *meta.TimeExitHours > 0 {
		exit.TimeExitHours = *meta.TimeExitHours
	}
	if meta.TrailingStopPct != nil {
		exit.TrailingStopPct = *meta.TrailingStopPct
	}
}

// UnrealizedPnL in SOL at the given price.
func (p *ActivePosition) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.TokensHeld
}

// UnrealizedPnLPct at the given price.
func (p *ActivePosition) UnrealizedPnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// AgeAt returns the position's age at the given instant.
func (p *ActivePosition) AgeAt(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// Monitorable reports whether the exit engine still evaluates this
// position.
func (p *ActivePosition) Monitorable() bool {
	switch p.Status {
	case StatusClosing, StatusClosed, StatusFailed:
		return false
	}
	return true
}

// UpdateWithPrice folds one observation into the running extremes and
// ratchets the trailing stop. The trailing stop only ever rises.
func (p *ActivePosition) UpdateWithPrice(price float64, now time.Time) {
	p.LastPrice = price
	p.UpdatedAt = now

	pnlPct := p.UnrealizedPnLPct(price)
	if pnlPct > p.MaxProfitPct {
		p.MaxProfitPct = pnlPct
		p.MaxProfit = p.UnrealizedPnL(price)

		if p.ExitStrategy.TrailingStopPct > 0 {
			trailed := price * (1 - p.ExitStrategy.TrailingStopPct/100)
			if trailed > p.StopLossPrice {
				p.StopLossPrice = trailed
			}
		}
	}
	if pnlPct < p.MaxDrawdownPct {
		p.MaxDrawdownPct = pnlPct
		p.MaxDrawdown = p.UnrealizedPnL(price)
	}
}

// ShouldExit evaluates full-exit conditions in the mandated order:
// time exit, take profit, stop loss, trailing stop. First match wins.
func (p *ActivePosition) ShouldExit(price float64, now time.Time) (ExitReason, bool) {
	if !now.Before(p.TimeExitAt) {
		return ExitTimeLimit, true
	}
	if p.TakeProfitPrice > 0 && price >= p.TakeProfitPrice {
		return ExitTakeProfit, true
	}
	if p.StopLossPrice > 0 && price <= p.StopLossPrice {
		// A ratcheted stop above the entry price is the trailing stop
		// firing rather than the protective one.
		if p.ExitStrategy.TrailingStopPct > 0 && p.StopLossPrice > p.EntryPrice {
			return ExitTrailingStop, true
		}
		return ExitStopLoss, true
	}
	return "", false
}

// NextPartialExit returns the first configured scale-out level that the
// price has reached and that has not fired yet.
func (p *ActivePosition) NextPartialExit(price float64) (int, PartialExitLevel, bool) {
	pnlPct := p.UnrealizedPnLPct(price)
	for i, level := range p.ExitStrategy.PartialExitLevels {
		if pnlPct >= level.PricePct && !p.partialLevelHit(i) {
			return i, level, true
		}
	}
	return 0, PartialExitLevel{}, false
}

// ApplyPartialExit marks a level as fired and reduces the held amount.
func (p *ActivePosition) ApplyPartialExit(level int, amountPct float64, now time.Time) float64 {
	exitTokens := p.TokensHeld * amountPct / 100
	p.TokensHeld -= exitTokens
	p.UpdatedAt = now

	hit := p.levelsHit()
	hit = append(hit, level)
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	p.Metadata["levels_hit"] = hit
	return exitTokens
}

// partialLevelHit checks the levels-hit set in the metadata.
func (p *ActivePosition) partialLevelHit(level int) bool {
	for _, hit := range p.levelsHit() {
		if hit == level {
			return true
		}
	}
	return false
}

func (p *ActivePosition) levelsHit() []int {
	raw, ok := p.Metadata["levels_hit"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []int:
		return v
	case []any: // after a JSON round trip
		out := make([]int, 0, len(v))
		for _, item := range v {
			if f, ok := item.(float64); ok {
				out = append(out, int(f))
			}
		}
		return out
	}
	return nil
}

// MarkClosing transitions Active -> Closing once the exit order is placed.
func (p *ActivePosition) MarkClosing(exitOrderID string, now time.Time) {
	p.Status = StatusClosing
	p.ExitOrderID = exitOrderID
	p.UpdatedAt = now
}

// MarkClosed transitions Closing -> Closed after the exit fill.
func (p *ActivePosition) MarkClosed(exitTxRef string, now time.Time) {
	p.Status = StatusClosed
	p.ExitTxRef = exitTxRef
	p.UpdatedAt = now
}

// MarkFailed sinks the position on an unrecoverable executor error.
func (p *ActivePosition) MarkFailed(now time.Time) {
	p.Status = StatusFailed
	p.UpdatedAt = now
}

// StoreKey is the state-store key for this position.
func (p *ActivePosition) StoreKey() string {
	return "active_position:" + p.ID
}

// ToJSON serializes for the state store.
func (p *ActivePosition) ToJSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("%w: serialize position %s: %v", models.ErrStoreFormat, p.ID, err)
	}
	return string(data), nil
}

// FromJSON deserializes a stored position.
func FromJSON(data string) (*ActivePosition, error) {
	var p ActivePosition
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("%w: deserialize position: %v", models.ErrStoreFormat, err)
	}
	return &p, nil
}

// ExitSignal builds the Sell signal emitted when an exit condition fires.
func (p *ActivePosition) ExitSignal(reason ExitReason, size float64, now time.Time) models.StrategySignal {
	metadata, _ := json.Marshal(map[string]any{
		"position_id":        p.ID,
		"exit_reason":        string(reason),
		"entry_price":        p.EntryPrice,
		"token_mint":         p.TokenMint,
		"strategy_type":      "position_exit",
		"use_mev_protection": true,
		"priority":           "high",
	})
	return models.StrategySignal{
		StrategyName: p.StrategyName,
		Symbol:       p.Symbol,
		Kind:         models.SignalSell,
		Strength:     1.0,
		Price:        0, // market
		Size:         size,
		Metadata:     metadata,
		Timestamp:    now,
	}
}
