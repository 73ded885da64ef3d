package strategy

import (
	"context"
	"time"

	"sniper-core/internal/models"
)

// Kind categorises strategies.
type Kind string

const (
	KindSniping     Kind = "sniping"
	KindArbitrage   Kind = "arbitrage"
	KindMomentum    Kind = "momentum"
	KindLiquidity   Kind = "liquidity"
	KindVolumeSpike Kind = "volume_spike"
	KindLP          Kind = "liquidity_provision"
)

// Strategy is the contract every trading strategy implements. Calls arrive
// from a single dispatcher goroutine; implementations may keep private
// state without locking but must not retain the context snapshot.
type Strategy interface {
	// Name returns the unique strategy name.
	Name() string
	// StrategyKind categorises the strategy.
	StrategyKind() Kind
	// IsEnabled reports whether the strategy wants events.
	IsEnabled() bool
	// SetEnabled flips the enabled flag.
	SetEnabled(enabled bool)
	// RequiredSources lists the source tags the strategy depends on.
	RequiredSources() []string
	// CanOperate checks whether current conditions allow the strategy to act.
	CanOperate(ctx models.StrategyContext) bool
	// MinConfidenceThreshold is the strategy's advisor confidence floor. The
	// dispatcher and the advisor do not read it; the advisor applies its own
	// configured floor.
	MinConfidenceThreshold() float64
	// IsInterestedInEvent is a cheap prefilter on the event variant.
	IsInterestedInEvent(event models.MarketEvent) bool
	// OnMarketEvent reacts to one event; nil signal means no action.
	OnMarketEvent(ctx context.Context, event models.MarketEvent, sctx models.StrategyContext) (*models.StrategySignal, error)
	// Analyze runs on the periodic tick; nil signal means no action.
	Analyze(ctx context.Context, sctx models.StrategyContext) (*models.StrategySignal, error)
	// UpdateParameters applies a dynamic reconfiguration.
	UpdateParameters(params map[string]any) error
}

// Performance tracks per-strategy counters. The registry is the single
// writer; snapshots are value copies.
type Performance struct {
	SignalsGenerated  uint64    `json:"signals_generated"`
	SuccessfulSignals uint64    `json:"successful_signals"`
	TotalPnL          float64   `json:"total_pnl"`
	WinRate           float64   `json:"win_rate"`
	AvgSignalStrength float64   `json:"avg_signal_strength"`
	LastSignalTime    time.Time `json:"last_signal_time,omitzero"`
}

// TokenValidator checks a freshly listed token before a sniper commits.
// The chain RPC client satisfies it in production.
type TokenValidator interface {
	// ValidateToken reports whether the mint passes safety checks (mint and
	// freeze authority burned).
	ValidateToken(ctx context.Context, mint string) (bool, error)
}
