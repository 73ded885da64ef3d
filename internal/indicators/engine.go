package indicators

import "sync"

// Engine maintains per-symbol price and volume windows and computes the
// values the strategies read.
type Engine struct {
	mu      sync.Mutex
	prices  map[string][]float64
	volumes map[string][]float64
	window  int
	shortMA int
	longMA  int
	rsi     int
}

// NewEngine builds an indicator engine. The window is raised to at least
// the long MA period.
func NewEngine(shortMA, longMA, rsiPeriod, window int) *Engine {
	if window < longMA {
		window = longMA
	}
	return &Engine{
		prices:  make(map[string][]float64),
		volumes: make(map[string][]float64),
		window:  window,
		shortMA: shortMA,
		longMA:  longMA,
		rsi:     rsiPeriod,
	}
}

// Update ingests one observation and returns the latest computed values.
func (e *Engine) Update(symbol string, price, volume float64) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	prices := appendBounded(e.prices[symbol], price, e.window)
	e.prices[symbol] = prices
	volumes := appendBounded(e.volumes[symbol], volume, e.window)
	e.volumes[symbol] = volumes

	return map[string]float64{
		"sma_short":    SMA(prices, e.shortMA),
		"sma_long":     SMA(prices, e.longMA),
		"rsi":          RSI(prices, e.rsi),
		"momentum_pct": MomentumPct(prices, e.shortMA),
		"volume_spike": SpikeRatio(volumes, e.shortMA),
		"samples":      float64(len(prices)),
	}
}

// Reset clears the windows for a symbol.
func (e *Engine) Reset(symbol string) {
	e.mu.Lock()
	delete(e.prices, symbol)
	delete(e.volumes, symbol)
	e.mu.Unlock()
}

func appendBounded(arr []float64, v float64, window int) []float64 {
	arr = append(arr, v)
	if len(arr) > window {
		arr = arr[len(arr)-window:]
	}
	return arr
}
