package events

// Topic enumerates high-level broadcast topics inside the engine.
type Topic string

const (
	TopicMarketEvent    Topic = "market_event"
	TopicSignal         Topic = "strategy_signal"
	TopicOrderUpdate    Topic = "order_update"
	TopicExecution      Topic = "execution_result"
	TopicPositionChange Topic = "position_change"
	TopicRiskAlert      Topic = "risk_alert"
)

// DefaultCapacity is the buffer applied to pipeline and broadcast channels
// when the caller does not specify one.
const DefaultCapacity = 1000
