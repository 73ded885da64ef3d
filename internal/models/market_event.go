package models

// EventKind discriminates MarketEvent variants.
type EventKind string

const (
	EventPriceUpdate      EventKind = "price_update"
	EventNewTransaction   EventKind = "new_transaction"
	EventLiquidityUpdate  EventKind = "liquidity_update"
	EventNewPoolCreated   EventKind = "new_pool_created"
	EventNewTokenListing  EventKind = "new_token_listing"
	EventWhaleAlert       EventKind = "whale_alert"
	EventConnectionStatus EventKind = "connection_status"
	EventRawMessage       EventKind = "raw_message"
)

// TransactionKind classifies on-chain transactions.
type TransactionKind string

const (
	TxBuy             TransactionKind = "buy"
	TxSell            TransactionKind = "sell"
	TxSwap            TransactionKind = "swap"
	TxAddLiquidity    TransactionKind = "add_liquidity"
	TxRemoveLiquidity TransactionKind = "remove_liquidity"
	TxTransfer        TransactionKind = "transfer"
	TxUnknown         TransactionKind = "unknown"
)

// MarketEvent is the unified real-time event produced by source adapters.
// Events are immutable once emitted; every variant carries a producer-time
// timestamp in milliseconds (the source manager stamps it when absent).
type MarketEvent interface {
	Kind() EventKind
	TimestampMs() int64
}

// PriceUpdate reports a fresh price for a symbol from one source.
type PriceUpdate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume24h float64 `json:"volume_24h,omitempty"`
	Timestamp int64   `json:"timestamp_ms"`
	SourceTag string  `json:"source_tag"`
}

func (e PriceUpdate) Kind() EventKind    { return EventPriceUpdate }
func (e PriceUpdate) TimestampMs() int64 { return e.Timestamp }

// NewTransaction reports an observed on-chain transaction for a token.
type NewTransaction struct {
	Signature    string          `json:"signature"`
	TokenAddress string          `json:"token_address"`
	Amount       float64         `json:"amount"`
	Price        float64         `json:"price,omitempty"`
	TxKind       TransactionKind `json:"tx_kind"`
	Timestamp    int64           `json:"timestamp_ms"`
}

func (e NewTransaction) Kind() EventKind    { return EventNewTransaction }
func (e NewTransaction) TimestampMs() int64 { return e.Timestamp }

// LiquidityUpdate reports pool reserve changes.
type LiquidityUpdate struct {
	PoolAddress string  `json:"pool_address"`
	TokenA      string  `json:"token_a"`
	TokenB      string  `json:"token_b"`
	LiquidityA  float64 `json:"liquidity_a"`
	LiquidityB  float64 `json:"liquidity_b"`
	Price       float64 `json:"price"`
	Timestamp   int64   `json:"timestamp_ms"`
}

func (e LiquidityUpdate) Kind() EventKind    { return EventLiquidityUpdate }
func (e LiquidityUpdate) TimestampMs() int64 { return e.Timestamp }

// NewPoolCreated reports creation of a liquidity pool for a token pair.
type NewPoolCreated struct {
	PoolAddress      string  `json:"pool_address"`
	BaseMint         string  `json:"base_mint"`
	QuoteMint        string  `json:"quote_mint"`
	InitialLiquidity float64 `json:"initial_liquidity,omitempty"`
	Creator          string  `json:"creator,omitempty"`
	Timestamp        int64   `json:"timestamp_ms"`
}

func (e NewPoolCreated) Kind() EventKind    { return EventNewPoolCreated }
func (e NewPoolCreated) TimestampMs() int64 { return e.Timestamp }

// NewTokenListing reports a token appearing on a launch platform.
type NewTokenListing struct {
	TokenAddress     string  `json:"token_address"`
	Symbol           string  `json:"symbol,omitempty"`
	Name             string  `json:"name,omitempty"`
	InitialPrice     float64 `json:"initial_price,omitempty"`
	InitialLiquidity float64 `json:"initial_liquidity,omitempty"`
	Creator          string  `json:"creator,omitempty"`
	Timestamp        int64   `json:"timestamp_ms"`
}

func (e NewTokenListing) Kind() EventKind    { return EventNewTokenListing }
func (e NewTokenListing) TimestampMs() int64 { return e.Timestamp }

// WhaleAlert reports a large transaction by USD value.
type WhaleAlert struct {
	Signature    string          `json:"signature"`
	TokenAddress string          `json:"token_address"`
	AmountUSD    float64         `json:"amount_usd"`
	TxKind       TransactionKind `json:"tx_kind"`
	Wallet       string          `json:"wallet"`
	Timestamp    int64           `json:"timestamp_ms"`
}

func (e WhaleAlert) Kind() EventKind    { return EventWhaleAlert }
func (e WhaleAlert) TimestampMs() int64 { return e.Timestamp }

// ConnectionStatus reports a source connecting or dropping.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	SourceTag string `json:"source_tag"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp_ms"`
}

func (e ConnectionStatus) Kind() EventKind    { return EventConnectionStatus }
func (e ConnectionStatus) TimestampMs() int64 { return e.Timestamp }

// RawMessage carries frames no parser recognised. Kept instead of dropped so
// downstream consumers can log or inspect them.
type RawMessage struct {
	SourceTag string `json:"source_tag"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp_ms"`
}

func (e RawMessage) Kind() EventKind    { return EventRawMessage }
func (e RawMessage) TimestampMs() int64 { return e.Timestamp }
