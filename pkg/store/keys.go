package store

import "time"

// Key layout shared across the engine. All values are JSON.
const (
	// KeyActivePositionPrefix + position ID holds a serialized position.
	// No TTL: positions survive restarts.
	KeyActivePositionPrefix = "active_position:"
	// KeyActivePositionPattern matches every active position key.
	KeyActivePositionPattern = KeyActivePositionPrefix + "*"

	KeyDashboardStats   = "dashboard:stats"
	KeyActivityFeed     = "dashboard:activity_feed"
	KeyRealtimeMetrics  = "realtime:metrics"
	KeyBotStatus        = "bot:status"
	KeyProcessedTokens  = "processed_tokens"
	KeyNewTokenQueue    = "new_token_queue"
	KeyDecisionQueue    = "trading_decisions_queue"
	KeyRecentSignals    = "signals:recent"
	KeySignalPrefix     = "signal:"
)

// TTLs for the snapshot keys.
const (
	TTLDashboardStats  = time.Hour
	TTLRealtimeMetrics = 5 * time.Minute
	TTLBotStatus       = time.Hour
	TTLSignal          = 5 * time.Minute
	TTLRecentSignals   = time.Hour
)

// ActivityFeedLimit bounds dashboard:activity_feed (newest first).
const ActivityFeedLimit = 100

// RecentSignalsLimit bounds signals:recent.
const RecentSignalsLimit = 100

// ActivePositionKey builds the store key for a position ID.
func ActivePositionKey(id string) string {
	return KeyActivePositionPrefix + id
}

// SignalKey builds the per-strategy/per-symbol cached signal key.
func SignalKey(strategy, symbol string) string {
	return KeySignalPrefix + strategy + ":" + symbol
}
