package source

import (
	"encoding/json"
	"strconv"
	"strings"

	"sniper-core/internal/models"
)

// ExchangeAdapter streams 24h ticker updates for configured symbols from a
// centralized exchange websocket (<ws_base>/<symbol>@ticker).
type ExchangeAdapter struct {
	name    string
	baseURL string
	symbols []string
}

// NewExchangeAdapter creates an exchange ticker source. Symbols use the
// exchange's notation (e.g. SOLUSDT).
func NewExchangeAdapter(name, baseURL string, symbols []string) *ExchangeAdapter {
	return &ExchangeAdapter{name: name, baseURL: baseURL, symbols: symbols}
}

func (a *ExchangeAdapter) Name() string { return a.name }

// URL joins the ticker streams for all symbols on one connection.
func (a *ExchangeAdapter) URL() string {
	streams := make([]string, 0, len(a.symbols))
	for _, s := range a.symbols {
		streams = append(streams, strings.ToLower(s)+"@ticker")
	}
	return strings.TrimSuffix(a.baseURL, "/") + "/" + strings.Join(streams, "/")
}

// SubscribeFrames is empty: the stream path carries the subscription.
func (a *ExchangeAdapter) SubscribeFrames() [][]byte { return nil }

// Parse decodes 24hrTicker frames into price updates.
func (a *ExchangeAdapter) Parse(frame []byte, nowMs int64) ([]models.MarketEvent, bool) {
	var raw struct {
		EventType string `json:"e"`
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		LastPrice string `json:"c"`
		Volume    string `json:"v"`
	}
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, false
	}
	if raw.EventType != "24hrTicker" || raw.Symbol == "" {
		return nil, false
	}

	price, err := strconv.ParseFloat(raw.LastPrice, 64)
	if err != nil || price <= 0 {
		return nil, false
	}
	volume, _ := strconv.ParseFloat(raw.Volume, 64)

	ts := raw.EventTime
	if ts == 0 {
		ts = nowMs
	}

	return []models.MarketEvent{models.PriceUpdate{
		Symbol:    raw.Symbol,
		Price:     price,
		Volume24h: volume,
		Timestamp: ts,
		SourceTag: a.name,
	}}, true
}
