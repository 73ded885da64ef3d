package models

import (
	"encoding/json"
	"time"
)

// WrappedSOLMint is the mint address of wrapped SOL, the quote side of
// every pair this engine trades.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// USDCMint is the mint address of USDC on mainnet.
const USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// Quote is a single-source price observation for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Bid       float64   `json:"bid,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	SourceTag string    `json:"source_tag"`
}

// AggregatedMarketData combines quotes from several sources around a
// priority-selected primary.
type AggregatedMarketData struct {
	Primary      Quote   `json:"primary"`
	Secondary    []Quote `json:"secondary"`
	SourcesCount int     `json:"sources_count"`
	Confidence   float64 `json:"confidence"`
	LatencyMs    int64   `json:"latency_ms"`
}

// MarketConditions summarises the trading environment for a symbol.
type MarketConditions struct {
	Volatility     float64 `json:"volatility"`
	LiquidityDepth float64 `json:"liquidity_depth"`
	VolumeTrend    string  `json:"volume_trend"`   // increasing, decreasing, stable
	PriceMomentum  string  `json:"price_momentum"` // bullish, bearish, sideways
	MarketCap      float64 `json:"market_cap,omitempty"`
	AgeHours       float64 `json:"age_hours,omitempty"`
}

// PortfolioSnapshot is a point-in-time view of wallet holdings.
type PortfolioSnapshot struct {
	SOLBalance  float64                 `json:"sol_balance"`
	Tokens      map[string]TokenHolding `json:"tokens"`
	TotalValue  float64                 `json:"total_value"`
	LastUpdated time.Time               `json:"last_updated"`
}

// TokenHolding is one token's balance inside a portfolio snapshot.
type TokenHolding struct {
	Mint         string  `json:"mint"`
	Balance      float64 `json:"balance"`
	LockedAmount float64 `json:"locked_amount"`
}

// StrategyContext is the immutable snapshot handed to strategies. A strategy
// must not retain references to it past the call.
type StrategyContext struct {
	Aggregated AggregatedMarketData `json:"aggregated"`
	Portfolio  PortfolioSnapshot    `json:"portfolio"`
	Conditions MarketConditions     `json:"conditions"`
}

// SignalKind is the intent carried by a strategy signal.
type SignalKind string

const (
	SignalBuy        SignalKind = "BUY"
	SignalSell       SignalKind = "SELL"
	SignalHold       SignalKind = "HOLD"
	SignalStopLoss   SignalKind = "STOP_LOSS"
	SignalTakeProfit SignalKind = "TAKE_PROFIT"
)

// StrategySignal is a candidate trade produced by a strategy.
type StrategySignal struct {
	StrategyName string          `json:"strategy_name"`
	Symbol       string          `json:"symbol"`
	Kind         SignalKind      `json:"kind"`
	Strength     float64         `json:"strength"` // 0.0 - 1.0
	Price        float64         `json:"price"`
	Size         float64         `json:"size"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// MetadataString extracts a string field from the signal metadata.
func (s StrategySignal) MetadataString(key string) string {
	if len(s.Metadata) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(s.Metadata, &m); err != nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

// MetadataBool extracts a bool field from the signal metadata.
func (s StrategySignal) MetadataBool(key string) bool {
	if len(s.Metadata) == 0 {
		return false
	}
	var m map[string]any
	if err := json.Unmarshal(s.Metadata, &m); err != nil {
		return false
	}
	v, _ := m[key].(bool)
	return v
}

// AIAction is the advisor's verdict on a candidate signal.
type AIAction string

const (
	AIBuy      AIAction = "BUY"
	AISell     AIAction = "SELL"
	AIHold     AIAction = "HOLD"
	AINoAction AIAction = "NO_ACTION"
	AIReject   AIAction = "REJECT"
)

// AIRecommendation is the advisor's structured response.
type AIRecommendation struct {
	Action        AIAction          `json:"action"`
	Confidence    float64           `json:"confidence"`
	Rationale     string            `json:"rationale"`
	RiskScore     float64           `json:"risk_score"`
	TargetPrice   float64           `json:"target_price,omitempty"`
	StopLossPrice float64           `json:"stop_loss_price,omitempty"`
	Parameters    map[string]string `json:"parameters,omitempty"`
}

// FinalAction is the planner-facing decision after AI enrichment.
type FinalAction string

const (
	ActionExecute FinalAction = "EXECUTE"
	ActionHold    FinalAction = "HOLD"
	ActionReject  FinalAction = "REJECT"
)

// EnhancedSignal couples a strategy signal with the advisor's view.
type EnhancedSignal struct {
	Original       StrategySignal   `json:"original_signal"`
	Recommendation AIRecommendation `json:"ai_recommendation"`
	FinalAction    FinalAction      `json:"final_action"`
	RiskScore      float64          `json:"risk_score"`
	ProcessedAt    time.Time        `json:"processed_at"`
}

// OrderSide is buy or sell.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderKind is the order type.
type OrderKind string

const (
	OrderMarket     OrderKind = "MARKET"
	OrderLimit      OrderKind = "LIMIT"
	OrderStopLoss   OrderKind = "STOP_LOSS"
	OrderTakeProfit OrderKind = "TAKE_PROFIT"
)

// OrderStatus is the order lifecycle state. Transitions:
// Pending -> Open | Rejected; Open -> PartiallyFilled | Filled | Cancelled |
// Expired. Filled, Cancelled, Rejected and Expired are terminal.
type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderOpen            OrderStatus = "OPEN"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderExpired         OrderStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected, OrderExpired:
		return true
	}
	return false
}

// ExecutionParams tunes how an order is executed on chain.
type ExecutionParams struct {
	UseMEVProtection    bool    `json:"use_mev_protection"`
	PriorityFeeLamports uint64  `json:"priority_fee_lamports"`
	TipUrgency          float64 `json:"tip_urgency"` // 1.0 - 3.0
	MaxRetries          int     `json:"max_retries"`
	RetryDelayMs        int64   `json:"retry_delay_ms"`
	TimeoutMs           int64   `json:"timeout_ms"`
}

// DefaultExecutionParams mirrors the engine-wide execution defaults.
func DefaultExecutionParams() ExecutionParams {
	return ExecutionParams{
		UseMEVProtection:    true,
		PriorityFeeLamports: 10_000,
		TipUrgency:          1.0,
		MaxRetries:          3,
		RetryDelayMs:        1000,
		TimeoutMs:           30_000,
	}
}

// Order is a trade request flowing from planner to executor.
type Order struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Side           OrderSide       `json:"side"`
	Kind           OrderKind       `json:"kind"`
	Size           float64         `json:"size"`
	Price          float64         `json:"price,omitempty"`
	FilledSize     float64         `json:"filled_size"`
	AvgFillPrice   float64         `json:"avg_fill_price,omitempty"`
	Status         OrderStatus     `json:"status"`
	StrategyName   string          `json:"strategy_name"`
	MaxSlippageBps int             `json:"max_slippage_bps"`
	ExecParams     ExecutionParams `json:"exec_params"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	BundleRef      string          `json:"bundle_ref,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ExecutionResult is the terminal outcome of one order execution attempt.
type ExecutionResult struct {
	OrderID         string    `json:"order_id"`
	Success         bool      `json:"success"`
	TransactionRef  string    `json:"transaction_ref,omitempty"`
	BundleRef       string    `json:"bundle_ref,omitempty"`
	FilledSize      float64   `json:"filled_size"`
	FilledPrice     float64   `json:"filled_price,omitempty"`
	FeesPaid        float64   `json:"fees_paid"`
	SlippageBps     int       `json:"slippage_bps,omitempty"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
