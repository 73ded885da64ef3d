// Package exec plans and executes orders: pre-trade gates and balance
// locking, then the direct swap path or the MEV-protected bundle path.
package exec

import (
	"fmt"
	"strings"

	"sniper-core/internal/models"
	"sniper-core/internal/portfolio"
)

// Planner hard limits.
const (
	MaxSlippageBps = 1000
	// FeeReserveSOL is locked alongside every order to cover network fees.
	FeeReserveSOL = 0.01
	// mevValueThresholdUSD forces bundle submission above this order value.
	mevValueThresholdUSD = 1000.0
	// nominalSOLPriceUSD converts SOL sizes to an order-value estimate for
	// the MEV decision; precision does not matter at this boundary.
	nominalSOLPriceUSD = 100.0
)

// Planner runs the pre-trade gates and owns lock acquisition.
type Planner struct {
	portfolio  *portfolio.Manager
	mevEnabled bool
	// mevStrategies always execute through the protected path.
	mevStrategies map[string]bool
	// maxPositionSize caps a single order's size; 0 disables the cap.
	maxPositionSize float64
}

// NewPlanner creates a planner bound to the portfolio ledger.
func NewPlanner(pf *portfolio.Manager, mevEnabled bool, mevStrategies []string) *Planner {
	required := make(map[string]bool, len(mevStrategies))
	for _, name := range mevStrategies {
		required[name] = true
	}
	return &Planner{
		portfolio:     pf,
		mevEnabled:    mevEnabled,
		mevStrategies: required,
	}
}

// SetMaxPositionSize caps order sizes at the configured maximum.
func (p *Planner) SetMaxPositionSize(max float64) {
	p.maxPositionSize = max
}

// PlannedOrder is an order that passed the gates with its funds locked.
type PlannedOrder struct {
	Order      models.Order
	InputMint  string
	OutputMint string
	UseMEV     bool

	planner *Planner
	released bool
}

// Plan validates the order, decides the execution path and locks funds.
// On success the caller MUST call Release on every exit path.
func (p *Planner) Plan(order models.Order) (*PlannedOrder, error) {
	if order.Status != models.OrderPending {
		return nil, &models.InvalidOrderError{Reason: "order must be pending"}
	}
	if order.Size <= 0 {
		return nil, &models.InvalidOrderError{Reason: "size must be positive"}
	}
	if p.maxPositionSize > 0 && order.Side == models.SideBuy && order.Size > p.maxPositionSize {
		return nil, &models.InvalidOrderError{
			Reason: fmt.Sprintf("size %.4f exceeds max position size %.4f", order.Size, p.maxPositionSize),
		}
	}
	if order.MaxSlippageBps <= 0 || order.MaxSlippageBps > MaxSlippageBps {
		return nil, &models.InvalidOrderError{
			Reason: fmt.Sprintf("max slippage %dbps outside (0, %d]", order.MaxSlippageBps, MaxSlippageBps),
		}
	}

	inputMint, outputMint, err := ResolveSymbol(order.Symbol, order.Side)
	if err != nil {
		return nil, err
	}

	// Available balance excludes amounts locked by other orders.
	available := p.portfolio.Available(inputMint)
	if available < order.Size {
		return nil, &models.InsufficientBalanceError{
			Mint:      inputMint,
			Required:  order.Size,
			Available: available,
		}
	}

	// Reserve native coin for fees on top of the traded size.
	feeNeed := FeeReserveSOL
	solAvailable := p.portfolio.Available(models.WrappedSOLMint)
	if inputMint == models.WrappedSOLMint {
		solAvailable -= order.Size
	}
	if solAvailable < feeNeed {
		return nil, &models.InsufficientFeesError{
			Required:  feeNeed,
			Available: solAvailable,
		}
	}

	useMEV := p.decideMEV(order)

	locks := p.portfolio.Locks()
	locks.Lock(inputMint, order.Size)
	locks.Lock(models.WrappedSOLMint, feeNeed)

	return &PlannedOrder{
		Order:      order,
		InputMint:  inputMint,
		OutputMint: outputMint,
		UseMEV:     useMEV,
		planner:    p,
	}, nil
}

// Release returns the locked funds once the order reaches a terminal
// status or fails. The filled portion has already left the wallet balance
// (ApplyFill), so the full lock comes off either way. Idempotent.
func (po *PlannedOrder) Release() {
	if po.released {
		return
	}
	po.released = true

	locks := po.planner.portfolio.Locks()
	locks.Unlock(po.InputMint, po.Order.Size)
	locks.Unlock(models.WrappedSOLMint, FeeReserveSOL)
}

// decideMEV picks the protected path for large orders and for strategies
// that always require it.
func (p *Planner) decideMEV(order models.Order) bool {
	if !p.mevEnabled {
		return false
	}
	if order.ExecParams.UseMEVProtection {
		return true
	}
	if p.mevStrategies[order.StrategyName] {
		return true
	}
	return orderValueUSD(order) > mevValueThresholdUSD
}

// orderValueUSD estimates order value for the MEV threshold.
func orderValueUSD(order models.Order) float64 {
	if order.Side == models.SideBuy {
		// Buys are sized in SOL.
		return order.Size * nominalSOLPriceUSD
	}
	if order.Price > 0 {
		return order.Size * order.Price * nominalSOLPriceUSD
	}
	return 0
}

// ResolveSymbol maps "TKN/SOL" onto input and output mints for a side.
// Buys spend the quote side; sells spend the base side.
func ResolveSymbol(symbol string, side models.OrderSide) (inputMint, outputMint string, err error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &models.InvalidOrderError{Reason: fmt.Sprintf("malformed symbol %q", symbol)}
	}

	base, err := mintFor(parts[0])
	if err != nil {
		return "", "", err
	}
	quote, err := mintFor(parts[1])
	if err != nil {
		return "", "", err
	}

	if side == models.SideBuy {
		return quote, base, nil
	}
	return base, quote, nil
}

// mintFor resolves a symbol component to a mint address. Well-known
// symbols map to their canonical mints; anything that already looks like
// a mint address passes through.
func mintFor(component string) (string, error) {
	switch strings.ToUpper(component) {
	case "SOL":
		return models.WrappedSOLMint, nil
	case "USDC":
		return models.USDCMint, nil
	}
	if len(component) >= 32 && len(component) <= 44 {
		return component, nil
	}
	return "", &models.InvalidOrderError{Reason: fmt.Sprintf("unknown token %q", component)}
}
