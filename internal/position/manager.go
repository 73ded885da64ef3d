package position

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"sniper-core/internal/events"
	"sniper-core/internal/models"
	"sniper-core/pkg/clock"
	"sniper-core/pkg/store"
)

// DefaultMonitorInterval is the exit-engine polling cadence.
const DefaultMonitorInterval = 2 * time.Second

// priceFetchConcurrency bounds parallel price lookups per tick.
const priceFetchConcurrency = 4

// PriceSource fetches the current price of a token mint in SOL.
type PriceSource interface {
	TokenPrice(ctx context.Context, mint string) (float64, error)
}

// Manager persists positions in the state store and runs the monitoring
// loop that turns exit conditions into sell signals. All writes go through
// the store; in-memory copies are advisory.
type Manager struct {
	store    store.Store
	prices   PriceSource
	signals  *events.Pipeline[models.StrategySignal]
	clk      clock.Clock
	interval time.Duration
}

// Option configures the manager.
type Option func(*Manager)

// WithInterval overrides the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) { m.interval = d }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clk = c }
}

// NewManager wires the exit engine.
func NewManager(st store.Store, prices PriceSource, signals *events.Pipeline[models.StrategySignal], opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		prices:   prices,
		signals:  signals,
		clk:      clock.System{},
		interval: DefaultMonitorInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add persists a freshly opened position.
func (m *Manager) Add(ctx context.Context, p *ActivePosition) error {
	data, err := p.ToJSON()
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, p.StoreKey(), data, 0); err != nil {
		return err
	}
	log.Printf("position manager: tracking %s (%s, %s)", p.ID, p.StrategyName, p.Symbol)
	return nil
}

// Get loads one position by ID.
func (m *Manager) Get(ctx context.Context, id string) (*ActivePosition, error) {
	data, ok, err := m.store.Get(ctx, store.ActivePositionKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return FromJSON(data)
}

// Update persists a modified position.
func (m *Manager) Update(ctx context.Context, p *ActivePosition) error {
	data, err := p.ToJSON()
	if err != nil {
		return err
	}
	return m.store.Set(ctx, p.StoreKey(), data, 0)
}

// Remove deletes a position record (after close-out accounting).
func (m *Manager) Remove(ctx context.Context, id string) error {
	_, err := m.store.Del(ctx, store.ActivePositionKey(id))
	return err
}

// All loads every stored position.
func (m *Manager) All(ctx context.Context) ([]*ActivePosition, error) {
	keys, err := m.store.Keys(ctx, store.KeyActivePositionPattern)
	if err != nil {
		return nil, err
	}

	positions := make([]*ActivePosition, 0, len(keys))
	for _, key := range keys {
		data, ok, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		p, err := FromJSON(data)
		if err != nil {
			log.Printf("position manager: skipping corrupt record %s: %v", key, err)
			continue
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// Run drives the monitoring loop until the context ends.
func (m *Manager) Run(ctx context.Context) {
	log.Printf("position manager: monitoring every %s", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil {
				log.Printf("position manager: tick failed: %v", err)
			}
		}
	}
}

// Tick runs one monitoring pass: load, price, evaluate, persist, signal.
// Safe to replay: positions already Closing or Closed are skipped, so a
// crash between persist and signal emission cannot double-emit.
func (m *Manager) Tick(ctx context.Context) error {
	positions, err := m.All(ctx)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}

	prices := m.fetchPrices(ctx, uniqueMints(positions))
	now := m.clk.Now()

	for _, p := range positions {
		if !p.Monitorable() {
			continue
		}
		price, ok := prices[p.TokenMint]
		if !ok {
			log.Printf("position manager: no price for %s (position %s)", p.TokenMint, p.ID)
			continue
		}
		if err := m.evaluate(ctx, p, price, now); err != nil {
			log.Printf("position manager: evaluate %s failed: %v", p.ID, err)
		}
	}
	return nil
}

// evaluate updates one position and emits at most one exit signal.
func (m *Manager) evaluate(ctx context.Context, p *ActivePosition, price float64, now time.Time) error {
	p.UpdateWithPrice(price, now)

	if reason, exit := p.ShouldExit(price, now); exit {
		// Persist the Closing state BEFORE emitting, so a restart cannot
		// re-emit for this position.
		p.MarkClosing("", now)
		if p.Metadata == nil {
			p.Metadata = map[string]any{}
		}
		p.Metadata["exit_reason"] = string(reason)
		if err := m.Update(ctx, p); err != nil {
			return err
		}

		signal := p.ExitSignal(reason, p.TokensHeld, now)
		if err := m.signals.Send(ctx, signal); err != nil {
			return err
		}
		log.Printf("position manager: exit %s for %s (%s), size %.6f",
			reason, p.ID, p.Symbol, p.TokensHeld)
		return nil
	}

	if level, cfg, ok := p.NextPartialExit(price); ok {
		exitTokens := p.ApplyPartialExit(level, cfg.AmountPct, now)
		if err := m.Update(ctx, p); err != nil {
			return err
		}
		signal := p.ExitSignal(ExitPartial, exitTokens, now)
		if err := m.signals.Send(ctx, signal); err != nil {
			return err
		}
		log.Printf("position manager: partial exit level %d for %s, size %.6f",
			level, p.ID, exitTokens)
		return nil
	}

	return m.Update(ctx, p)
}

// fetchPrices resolves current prices for all mints with bounded
// concurrency. Missing prices are reported by absence, not error.
func (m *Manager) fetchPrices(ctx context.Context, mints []string) map[string]float64 {
	type priced struct {
		mint  string
		price float64
	}

	results := make(chan priced, len(mints))
	g, fetchCtx := errgroup.WithContext(ctx)
	g.SetLimit(priceFetchConcurrency)

	for _, mint := range mints {
		mint := mint
		g.Go(func() error {
			price, err := m.prices.TokenPrice(fetchCtx, mint)
			if err != nil {
				log.Printf("position manager: price fetch for %s failed: %v", mint, err)
				return nil
			}
			results <- priced{mint: mint, price: price}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := make(map[string]float64, len(mints))
	for r := range results {
		out[r.mint] = r.price
	}
	return out
}

func uniqueMints(positions []*ActivePosition) []string {
	seen := make(map[string]struct{}, len(positions))
	var out []string
	for _, p := range positions {
		if !p.Monitorable() {
			continue
		}
		if _, ok := seen[p.TokenMint]; ok {
			continue
		}
		seen[p.TokenMint] = struct{}{}
		out = append(out, p.TokenMint)
	}
	return out
}
