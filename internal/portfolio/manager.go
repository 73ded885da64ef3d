// Package portfolio tracks wallet balances and the locked-amount ledger
// that coordinates the execution planner with outstanding orders.
package portfolio

import (
	"context"
	"log"
	"sync"
	"time"

	"sniper-core/internal/models"
	"sniper-core/pkg/clock"
	"sniper-core/pkg/solana"
)

// ChainBalances is the chain surface the manager reads. *solana.Client
// satisfies it.
type ChainBalances interface {
	GetBalance(ctx context.Context, address string) (float64, error)
	GetTokenAccounts(ctx context.Context, owner string) ([]solana.TokenAccount, error)
}

// Manager caches wallet state and exposes snapshots with locked amounts
// folded in.
type Manager struct {
	chain   ChainBalances
	address string
	locks   *Locks
	clk     clock.Clock

	mu       sync.RWMutex
	solBal   float64
	tokens   map[string]float64 // mint -> balance
	updated  time.Time
}

// NewManager creates a portfolio manager for one wallet.
func NewManager(chain ChainBalances, address string, locks *Locks, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	if locks == nil {
		locks = NewLocks()
	}
	return &Manager{
		chain:   chain,
		address: address,
		locks:   locks,
		clk:     clk,
		tokens:  make(map[string]float64),
	}
}

// Locks exposes the ledger shared with the planner.
func (m *Manager) Locks() *Locks { return m.locks }

// Refresh pulls balances from the chain into the cache.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.chain == nil {
		return nil
	}

	sol, err := m.chain.GetBalance(ctx, m.address)
	if err != nil {
		return err
	}
	accounts, err := m.chain.GetTokenAccounts(ctx, m.address)
	if err != nil {
		return err
	}

	tokens := make(map[string]float64, len(accounts))
	for _, acct := range accounts {
		tokens[acct.Mint] = acct.Balance
	}

	m.mu.Lock()
	m.solBal = sol
	m.tokens = tokens
	m.updated = m.clk.Now()
	m.mu.Unlock()

	log.Printf("portfolio: refreshed, %.4f SOL, %d token balances", sol, len(tokens))
	return nil
}

// StartSync refreshes on a fixed interval until the context ends.
func (m *Manager) StartSync(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Refresh(ctx); err != nil {
					log.Printf("portfolio: refresh failed: %v", err)
				}
			}
		}
	}()
}

// SetBalances seeds the cache directly (dry runs and tests).
func (m *Manager) SetBalances(sol float64, tokens map[string]float64) {
	m.mu.Lock()
	m.solBal = sol
	if tokens == nil {
		tokens = make(map[string]float64)
	}
	m.tokens = tokens
	m.updated = m.clk.Now()
	m.mu.Unlock()
}

// ApplyFill adjusts the cached balances after an execution without waiting
// for the next chain refresh.
func (m *Manager) ApplyFill(mint string, deltaToken, deltaSOL float64) {
	m.mu.Lock()
	m.solBal += deltaSOL
	if m.solBal < 0 {
		m.solBal = 0
	}
	next := m.tokens[mint] + deltaToken
	if next <= 0 {
		delete(m.tokens, mint)
	} else {
		m.tokens[mint] = next
	}
	m.updated = m.clk.Now()
	m.mu.Unlock()
}

// SOLBalance returns the cached SOL balance.
func (m *Manager) SOLBalance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.solBal
}

// Balance returns the cached balance of a mint. SOL is addressed through
// the wrapped mint.
func (m *Manager) Balance(mint string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mint == models.WrappedSOLMint {
		return m.solBal
	}
	return m.tokens[mint]
}

// Available is the balance minus the locked amount for a mint.
func (m *Manager) Available(mint string) float64 {
	avail := m.Balance(mint) - m.locks.Locked(mint)
	if avail < 0 {
		return 0
	}
	return avail
}

// Snapshot builds the immutable portfolio view passed to strategies.
func (m *Manager) Snapshot() models.PortfolioSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := make(map[string]models.TokenHolding, len(m.tokens))
	total := m.solBal
	for mint, bal := range m.tokens {
		tokens[mint] = models.TokenHolding{
			Mint:         mint,
			Balance:      bal,
			LockedAmount: m.locks.Locked(mint),
		}
	}

	return models.PortfolioSnapshot{
		SOLBalance:  m.solBal,
		Tokens:      tokens,
		TotalValue:  total,
		LastUpdated: m.updated,
	}
}
