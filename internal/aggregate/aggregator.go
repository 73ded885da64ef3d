// Package aggregate fetches quotes from every enabled venue, selects a
// primary by source priority and scores agreement into a confidence value.
package aggregate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sniper-core/internal/models"
	"sniper-core/pkg/cache"
	"sniper-core/pkg/clock"
)

// VenueClient fetches a quote for a symbol from one venue.
type VenueClient interface {
	Tag() string
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
}

// priorityOrder ranks sources: centralized exchanges first, then
// established AMMs, then new/meme venues.
var priorityOrder = []string{"binance", "raydium", "meteora", "jupiter", "helius", "pumpfun"}

// DefaultCacheTTL is how long a cached primary quote stays fresh.
const DefaultCacheTTL = 5 * time.Second

// FetchTimeout is the shared deadline for one fan-out round.
const FetchTimeout = 5 * time.Second

// Aggregator is the on-demand multi-source quote service.
type Aggregator struct {
	mu       sync.RWMutex
	clients  map[string]VenueClient
	cache    *cache.ShardedQuoteCache
	cacheTTL time.Duration
	clk      clock.Clock
}

// Option configures the aggregator.
type Option func(*Aggregator)

// WithCacheTTL overrides the cache freshness window.
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Aggregator) { a.cacheTTL = ttl }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(a *Aggregator) { a.clk = c }
}

// New creates an aggregator over the given venue clients.
func New(clients []VenueClient, opts ...Option) *Aggregator {
	a := &Aggregator{
		clients:  make(map[string]VenueClient, len(clients)),
		cache:    cache.NewShardedQuoteCache(),
		cacheTTL: DefaultCacheTTL,
		clk:      clock.System{},
	}
	for _, c := range clients {
		a.clients[c.Tag()] = c
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddClient registers another venue at runtime.
func (a *Aggregator) AddClient(c VenueClient) {
	a.mu.Lock()
	a.clients[c.Tag()] = c
	a.mu.Unlock()
}

// Sources lists the registered venue tags.
func (a *Aggregator) Sources() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.clients))
	for tag := range a.clients {
		out = append(out, tag)
	}
	return out
}

// GetAggregated returns aggregated market data for a symbol. Cached primary
// quotes fresher than the TTL short-circuit with a fixed 0.8 confidence.
func (a *Aggregator) GetAggregated(ctx context.Context, symbol string) (models.AggregatedMarketData, error) {
	start := a.clk.Now()

	if q, age, ok := a.cache.GetWithAge(symbol); ok && age < a.cacheTTL {
		return models.AggregatedMarketData{
			Primary:      q,
			SourcesCount: 1,
			Confidence:   0.8,
			LatencyMs:    a.clk.Now().Sub(start).Milliseconds(),
		}, nil
	}

	results := a.fetchAll(ctx, symbol)
	if len(results) == 0 {
		return models.AggregatedMarketData{}, fmt.Errorf("%w for symbol %s", models.ErrNoData, symbol)
	}

	primary, secondary := selectPrimary(results)
	confidence := confidenceScore(primary, secondary)

	a.cache.Set(symbol, primary)

	return models.AggregatedMarketData{
		Primary:      primary,
		Secondary:    secondary,
		SourcesCount: 1 + len(secondary),
		Confidence:   confidence,
		LatencyMs:    a.clk.Now().Sub(start).Milliseconds(),
	}, nil
}

// fetchAll fans out to every venue under a shared deadline and keeps the
// quotes that arrive in time.
func (a *Aggregator) fetchAll(ctx context.Context, symbol string) []models.Quote {
	a.mu.RLock()
	clients := make([]VenueClient, 0, len(a.clients))
	for _, c := range a.clients {
		clients = append(clients, c)
	}
	a.mu.RUnlock()

	fetchCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	var mu sync.Mutex
	var results []models.Quote

	g, fetchCtx := errgroup.WithContext(fetchCtx)
	for _, c := range clients {
		c := c
		g.Go(func() error {
			q, err := c.GetQuote(fetchCtx, symbol)
			if err != nil {
				log.Printf("aggregator: %s quote for %s failed: %v", c.Tag(), symbol, err)
				return nil // one venue failing must not cancel the others
			}
			q.SourceTag = c.Tag()
			mu.Lock()
			results = append(results, q)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// selectPrimary picks the highest-priority source present; everything else
// becomes secondary.
func selectPrimary(quotes []models.Quote) (models.Quote, []models.Quote) {
	byTag := make(map[string]int, len(quotes))
	for i, q := range quotes {
		byTag[q.SourceTag] = i
	}

	primaryIdx := 0
	for _, tag := range priorityOrder {
		if i, ok := byTag[tag]; ok {
			primaryIdx = i
			break
		}
	}

	primary := quotes[primaryIdx]
	secondary := make([]models.Quote, 0, len(quotes)-1)
	for i, q := range quotes {
		if i != primaryIdx {
			secondary = append(secondary, q)
		}
	}
	return primary, secondary
}

// confidenceScore maps inter-source price dispersion to [0.1, 1.0]. A lone
// primary scores 0.7.
func confidenceScore(primary models.Quote, secondary []models.Quote) float64 {
	if len(secondary) == 0 {
		return 0.7
	}

	totalDeviation := 0.0
	valid := 0
	for _, q := range secondary {
		if q.Price > 0 && primary.Price > 0 {
			totalDeviation += abs(q.Price-primary.Price) / primary.Price
			valid++
		}
	}
	if valid == 0 {
		return 0.7
	}

	meanDeviation := totalDeviation / float64(valid)
	confidence := 1.0 - meanDeviation*10.0
	if confidence < 0.1 {
		return 0.1
	}
	if confidence > 1.0 {
		return 1.0
	}
	return confidence
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
