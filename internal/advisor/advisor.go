// Package advisor enriches candidate signals with a recommendation from an
// external AI oracle. The oracle is fallible by design: any failure
// degrades to a conservative HOLD instead of surfacing an error.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sniper-core/internal/models"
	"sniper-core/pkg/clock"
)

// DefaultTimeout bounds one oracle round trip.
const DefaultTimeout = 10 * time.Second

// Advisor calls the oracle and folds its answer into a final action.
type Advisor struct {
	url          string
	client       *http.Client
	timeout      time.Duration
	minConfidence float64
	limiter      *rate.Limiter
	clk          clock.Clock
}

// Option configures the advisor.
type Option func(*Advisor)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Advisor) { a.client = hc }
}

// WithTimeout overrides the oracle deadline.
func WithTimeout(d time.Duration) Option {
	return func(a *Advisor) { a.timeout = d }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(a *Advisor) { a.clk = c }
}

// New creates an advisor. An empty URL disables the oracle; signals then
// pass through with their own strength as confidence.
func New(url string, minConfidence float64, opts ...Option) *Advisor {
	a := &Advisor{
		url:           url,
		client:        &http.Client{Timeout: DefaultTimeout},
		timeout:       DefaultTimeout,
		minConfidence: minConfidence,
		limiter:       rate.NewLimiter(rate.Limit(2), 4),
		clk:           clock.System{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether an oracle endpoint is configured.
func (a *Advisor) Enabled() bool { return a.url != "" }

// advisorRequest is the fixed request shape sent to the oracle.
type advisorRequest struct {
	Signal     models.StrategySignal    `json:"signal"`
	Aggregated models.AggregatedMarketData `json:"aggregated"`
	Portfolio  models.PortfolioSnapshot `json:"portfolio"`
	Conditions models.MarketConditions  `json:"conditions"`
}

// Process enriches one signal. It never returns an error: oracle failures
// degrade to the conservative fallback recommendation.
func (a *Advisor) Process(ctx context.Context, signal models.StrategySignal, sctx models.StrategyContext) models.EnhancedSignal {
	if !a.Enabled() {
		return a.passthrough(signal)
	}

	rec, err := a.consult(ctx, signal, sctx)
	if err != nil {
		log.Printf("advisor: oracle failed for %s %s: %v", signal.StrategyName, signal.Symbol, err)
		return a.fallback(signal)
	}

	final := a.finalAction(signal, rec)
	return models.EnhancedSignal{
		Original:       signal,
		Recommendation: rec,
		FinalAction:    final,
		RiskScore:      riskScore(signal, rec),
		ProcessedAt:    a.clk.Now(),
	}
}

// consult performs the HTTP round trip under the deadline.
func (a *Advisor) consult(ctx context.Context, signal models.StrategySignal, sctx models.StrategyContext) (models.AIRecommendation, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return models.AIRecommendation{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(advisorRequest{
		Signal:     signal,
		Aggregated: sctx.Aggregated,
		Portfolio:  sctx.Portfolio,
		Conditions: sctx.Conditions,
	})
	if err != nil {
		return models.AIRecommendation{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return models.AIRecommendation{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return models.AIRecommendation{}, fmt.Errorf("%w: %v", models.ErrAdvisorUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AIRecommendation{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.AIRecommendation{}, fmt.Errorf("%w: http %d", models.ErrAdvisorUnavailable, resp.StatusCode)
	}

	return ParseRecommendation(string(data))
}

// ParseRecommendation tolerates prose around the JSON object by cutting
// from the first '{' to the last '}'.
func ParseRecommendation(raw string) (models.AIRecommendation, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return models.AIRecommendation{}, fmt.Errorf("%w: no JSON object in response", models.ErrAdvisorUnavailable)
	}

	var rec models.AIRecommendation
	if err := json.Unmarshal([]byte(raw[start:end+1]), &rec); err != nil {
		return models.AIRecommendation{}, fmt.Errorf("%w: %v", models.ErrAdvisorUnavailable, err)
	}
	switch rec.Action {
	case models.AIBuy, models.AISell, models.AIHold, models.AINoAction, models.AIReject:
	default:
		return models.AIRecommendation{}, fmt.Errorf("%w: unknown action %q", models.ErrAdvisorUnavailable, rec.Action)
	}
	return rec, nil
}

// finalAction implements the decision table consumed by the planner.
// The confidence threshold comparison is inclusive.
func (a *Advisor) finalAction(signal models.StrategySignal, rec models.AIRecommendation) models.FinalAction {
	if rec.Confidence < a.minConfidence {
		return models.ActionHold
	}
	if rec.Action == models.AINoAction {
		return models.ActionReject
	}
	if signalMatchesAction(signal.Kind, rec.Action) {
		return models.ActionExecute
	}
	if rec.Confidence >= 0.8 {
		// Trust high-confidence AI over the strategy on disagreement.
		return models.ActionExecute
	}
	return models.ActionHold
}

// signalMatchesAction maps signal kinds onto advisor actions.
func signalMatchesAction(kind models.SignalKind, action models.AIAction) bool {
	switch kind {
	case models.SignalBuy:
		return action == models.AIBuy
	case models.SignalSell, models.SignalStopLoss, models.SignalTakeProfit:
		return action == models.AISell
	case models.SignalHold:
		return action == models.AIHold
	}
	return false
}

// riskScore blends oracle confidence, signal strength and trade direction:
// base 0.5 + (1-conf)*0.3 + (1-strength)*0.2, +-0.1 by side, clamped.
func riskScore(signal models.StrategySignal, rec models.AIRecommendation) float64 {
	score := 0.5
	score += (1 - rec.Confidence) * 0.3
	score += (1 - signal.Strength) * 0.2
	switch signal.Kind {
	case models.SignalBuy:
		score += 0.1
	case models.SignalSell, models.SignalStopLoss, models.SignalTakeProfit:
		score -= 0.1
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// passthrough is used when no oracle is configured.
func (a *Advisor) passthrough(signal models.StrategySignal) models.EnhancedSignal {
	return models.EnhancedSignal{
		Original: signal,
		Recommendation: models.AIRecommendation{
			Action:     actionForKind(signal.Kind),
			Confidence: signal.Strength,
			Rationale:  "advisor disabled; using strategy signal directly",
			RiskScore:  0.5,
		},
		FinalAction: models.ActionExecute,
		RiskScore:   0.5,
		ProcessedAt: a.clk.Now(),
	}
}

// fallback is the conservative recommendation on any oracle failure.
func (a *Advisor) fallback(signal models.StrategySignal) models.EnhancedSignal {
	return models.EnhancedSignal{
		Original: signal,
		Recommendation: models.AIRecommendation{
			Action:     models.AIHold,
			Confidence: 0.5,
			Rationale:  "advisor unavailable",
			RiskScore:  0.6,
		},
		FinalAction: models.ActionHold,
		RiskScore:   0.6,
		ProcessedAt: a.clk.Now(),
	}
}

func actionForKind(kind models.SignalKind) models.AIAction {
	switch kind {
	case models.SignalBuy:
		return models.AIBuy
	case models.SignalSell, models.SignalStopLoss, models.SignalTakeProfit:
		return models.AISell
	default:
		return models.AIHold
	}
}
