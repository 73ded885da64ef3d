package strategy

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"sniper-core/pkg/clock"
)

// ActivationBand maps a SOL balance range to the strategies allowed to run
// inside it. Bands come from configuration, not code.
type ActivationBand struct {
	Name       string   `yaml:"name"`
	MaxSOL     float64  `yaml:"max_sol"` // 0 means unbounded (top band)
	Strategies []string `yaml:"strategies"`
}

// Registry owns the strategy set, the active list and per-strategy
// performance counters. Writers take the exclusive lock; dispatch readers
// take an immutable snapshot of the active list.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]*entry
	order      []string // registration order, drives deterministic dispatch
	active     []string

	perfMu sync.Mutex
	perf   map[string]*Performance

	bands           []ActivationBand
	lastBalance     float64
	balanceObserved bool

	clk clock.Clock
}

// entry pairs a strategy with its dispatch gate. Remove acquires the gate,
// so in-flight dispatch to the strategy finishes before removal returns.
type entry struct {
	strategy   Strategy
	dispatchMu sync.Mutex
}

// NewRegistry creates an empty registry with the given activation bands.
func NewRegistry(bands []ActivationBand, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.System{}
	}
	sort.SliceStable(bands, func(i, j int) bool {
		// Unbounded band (MaxSOL 0) sorts last.
		if bands[i].MaxSOL == 0 {
			return false
		}
		if bands[j].MaxSOL == 0 {
			return true
		}
		return bands[i].MaxSOL < bands[j].MaxSOL
	})
	return &Registry{
		strategies: make(map[string]*entry),
		perf:       make(map[string]*Performance),
		bands:      bands,
		clk:        clk,
	}
}

// Add registers a strategy. Names must be unique.
func (r *Registry) Add(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("strategy %q already registered", name)
	}
	r.strategies[name] = &entry{strategy: s}
	r.order = append(r.order, name)
	if s.IsEnabled() {
		r.active = append(r.active, name)
	}

	r.perfMu.Lock()
	r.perf[name] = &Performance{}
	r.perfMu.Unlock()

	log.Printf("registry: added strategy %s (%s)", name, s.StrategyKind())
	return nil
}

// Remove unregisters a strategy. It blocks until any in-flight dispatch to
// the strategy has completed.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	e, ok := r.strategies[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("strategy %q not registered", name)
	}
	delete(r.strategies, name)
	r.order = removeString(r.order, name)
	r.active = removeString(r.active, name)
	r.mu.Unlock()

	// Wait out any dispatch currently running against this strategy.
	e.dispatchMu.Lock()
	e.dispatchMu.Unlock()

	r.perfMu.Lock()
	delete(r.perf, name)
	r.perfMu.Unlock()

	log.Printf("registry: removed strategy %s", name)
	return nil
}

// Enable adds a strategy to the active set.
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.strategies[name]
	if !ok {
		return fmt.Errorf("strategy %q not registered", name)
	}
	e.strategy.SetEnabled(true)
	if !containsString(r.active, name) {
		r.active = r.activeInOrderLocked(append(r.activeSetLocked(), name))
	}
	return nil
}

// Disable removes a strategy from the active set.
func (r *Registry) Disable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.strategies[name]
	if !ok {
		return fmt.Errorf("strategy %q not registered", name)
	}
	e.strategy.SetEnabled(false)
	r.active = removeString(r.active, name)
	return nil
}

// activeSnapshot returns the active strategies in registration order, with
// their dispatch gates. The slice is a copy; callers may iterate freely.
func (r *Registry) activeSnapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.active))
	for _, name := range r.order {
		if containsString(r.active, name) {
			out = append(out, r.strategies[name])
		}
	}
	return out
}

// ActiveNames lists active strategy names in registration order.
func (r *Registry) ActiveNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.active))
	for _, name := range r.order {
		if containsString(r.active, name) {
			out = append(out, name)
		}
	}
	return out
}

// AllNames lists every registered strategy in registration order.
func (r *Registry) AllNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns a registered strategy.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.strategies[name]
	if !ok {
		return nil, false
	}
	return e.strategy, true
}

// UpdateForBalance recomputes the active set from the configured bands.
// It only reacts to the first observation or a balance change above 5%.
func (r *Registry) UpdateForBalance(solBalance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.bands) == 0 {
		return
	}
	if r.balanceObserved && r.lastBalance > 0 {
		if abs(r.lastBalance-solBalance)/r.lastBalance < 0.05 {
			return
		}
	}
	r.lastBalance = solBalance
	r.balanceObserved = true

	band := r.bands[len(r.bands)-1]
	for _, b := range r.bands {
		if b.MaxSOL > 0 && solBalance < b.MaxSOL {
			band = b
			break
		}
	}

	var active []string
	for _, name := range band.Strategies {
		e, ok := r.strategies[name]
		if !ok || !e.strategy.IsEnabled() {
			continue
		}
		active = append(active, name)
	}
	r.active = r.activeInOrderLocked(active)

	log.Printf("registry: balance %.4f SOL selects band %q, active=%v",
		solBalance, band.Name, r.active)
}

// RecordSignal updates the signal counters for a strategy.
func (r *Registry) RecordSignal(name string, strength float64) {
	r.perfMu.Lock()
	defer r.perfMu.Unlock()
	p, ok := r.perf[name]
	if !ok {
		return
	}
	p.SignalsGenerated++
	p.LastSignalTime = r.clk.Now()
	// Running mean of signal strength.
	total := p.AvgSignalStrength*float64(p.SignalsGenerated-1) + strength
	p.AvgSignalStrength = total / float64(p.SignalsGenerated)
}

// RecordTradeOutcome feeds realised PnL back into the counters.
func (r *Registry) RecordTradeOutcome(name string, pnl float64, success bool) {
	r.perfMu.Lock()
	defer r.perfMu.Unlock()
	p, ok := r.perf[name]
	if !ok {
		return
	}
	if success {
		p.SuccessfulSignals++
	}
	p.TotalPnL += pnl
	if p.SignalsGenerated > 0 {
		p.WinRate = float64(p.SuccessfulSignals) / float64(p.SignalsGenerated)
	}
}

// PerformanceSnapshot returns a copy of every strategy's counters.
func (r *Registry) PerformanceSnapshot() map[string]Performance {
	r.perfMu.Lock()
	defer r.perfMu.Unlock()
	out := make(map[string]Performance, len(r.perf))
	for name, p := range r.perf {
		out[name] = *p
	}
	return out
}

// activeSetLocked returns the current active names.
func (r *Registry) activeSetLocked() []string {
	out := make([]string, len(r.active))
	copy(out, r.active)
	return out
}

// activeInOrderLocked reorders names into registration order.
func (r *Registry) activeInOrderLocked(names []string) []string {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	var out []string
	for _, n := range r.order {
		if _, ok := set[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func removeString(list []string, v string) []string {
	for i, s := range list {
		if s == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
