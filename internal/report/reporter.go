// Package report ships observability events to an external sink in
// batches. Senders never block and never see sink failures.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"sniper-core/pkg/clock"
)

// Defaults per the sink contract.
const (
	QueueCapacity        = 1000
	DefaultBatchSize     = 10
	DefaultFlushInterval = 30 * time.Second
	DefaultRetryAttempts = 3
)

// EventType tags the report-event union.
type EventType string

const (
	TypeSignalGenerated   EventType = "SignalGenerated"
	TypeTradeExecuted     EventType = "TradeExecuted"
	TypeBalanceUpdate     EventType = "BalanceUpdate"
	TypeRiskAlert         EventType = "RiskAlert"
	TypeErrorOccurred     EventType = "ErrorOccurred"
	TypePerformanceMetric EventType = "PerformanceMetric"
	TypeAIDecision        EventType = "AIDecision"
	TypeMarketOpportunity EventType = "MarketOpportunity"
)

// Event is one tagged observability record. Fields irrelevant to a type
// stay zero and are omitted from the wire form.
type Event struct {
	Type      EventType `json:"type"`
	Strategy  string    `json:"strategy,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	Action    string    `json:"action,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Message   string    `json:"message,omitempty"`
	Component string    `json:"component,omitempty"`
	Metric    string    `json:"metric,omitempty"`
	Value     float64   `json:"value,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	Price     float64   `json:"price,omitempty"`
	Fees      float64   `json:"fees,omitempty"`
	Success   *bool     `json:"success,omitempty"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Config tunes the reporter.
type Config struct {
	Enabled       bool
	SinkURL       string
	BatchSize     int
	FlushInterval time.Duration
	RetryAttempts int
}

// Reporter batches events and posts them to the sink.
type Reporter struct {
	cfg    Config
	client *http.Client
	clk    clock.Clock

	mu    sync.Mutex
	queue []Event

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// Option configures the reporter.
type Option func(*Reporter)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Reporter) { r.client = hc }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(r *Reporter) { r.clk = c }
}

// New creates a reporter. Zero config fields fall back to the defaults.
func New(cfg Config, opts ...Option) *Reporter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	r := &Reporter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		clk:    clock.System{},
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send enqueues one event without blocking. When the queue is full the
// oldest event is dropped.
func (r *Reporter) Send(ev Event) {
	if !r.cfg.Enabled {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.clk.Now()
	}

	r.mu.Lock()
	if len(r.queue) >= QueueCapacity {
		r.queue = r.queue[1:]
	}
	r.queue = append(r.queue, ev)
	ready := len(r.queue) >= r.cfg.BatchSize
	r.mu.Unlock()

	if ready {
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
}

// QueueLen reports the number of pending events.
func (r *Reporter) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Run drains the queue until the context ends, then flushes what is left.
func (r *Reporter) Run(ctx context.Context) {
	if !r.cfg.Enabled {
		return
	}
	defer r.once.Do(func() { close(r.done) })

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Flush(context.Background())
			return
		case <-r.wake:
			r.Flush(ctx)
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Done is closed when Run has exited after its final flush.
func (r *Reporter) Done() <-chan struct{} { return r.done }

// Flush posts pending events in batches. Failed batches are retried up to
// the configured attempts, then dropped.
func (r *Reporter) Flush(ctx context.Context) {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		n := len(r.queue)
		if n > r.cfg.BatchSize {
			n = r.cfg.BatchSize
		}
		batch := make([]Event, n)
		copy(batch, r.queue[:n])
		r.queue = r.queue[n:]
		r.mu.Unlock()

		if err := r.postBatch(ctx, batch); err != nil {
			log.Printf("reporter: dropping batch of %d after retries: %v", len(batch), err)
		}
	}
}

// sinkPayload is the wire envelope.
type sinkPayload struct {
	Events    []Event `json:"events"`
	Timestamp string  `json:"timestamp"`
	Source    string  `json:"source"`
}

func (r *Reporter) postBatch(ctx context.Context, batch []Event) error {
	body, err := json.Marshal(sinkPayload{
		Events:    batch,
		Timestamp: r.clk.Now().UTC().Format(time.RFC3339),
		Source:    "bot",
	})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < r.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.SinkURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("sink http %d", resp.StatusCode)
	}
	return lastErr
}

// Convenience constructors for the common event shapes.

// SignalGenerated reports a strategy signal.
func SignalGenerated(strategy, symbol, kind string, strength float64) Event {
	return Event{
		Type:     TypeSignalGenerated,
		Strategy: strategy,
		Symbol:   symbol,
		Action:   kind,
		Value:    strength,
	}
}

// TradeExecuted reports an execution outcome.
func TradeExecuted(strategy, symbol, action string, amount, price, fees float64, success bool, errMsg string) Event {
	return Event{
		Type:     TypeTradeExecuted,
		Strategy: strategy,
		Symbol:   symbol,
		Action:   action,
		Amount:   amount,
		Price:    price,
		Fees:     fees,
		Success:  &success,
		Message:  errMsg,
	}
}

// RiskAlert reports a risk condition.
func RiskAlert(severity, message, strategy, symbol string) Event {
	return Event{
		Type:     TypeRiskAlert,
		Severity: severity,
		Message:  message,
		Strategy: strategy,
		Symbol:   symbol,
	}
}

// ErrorOccurred reports a component failure.
func ErrorOccurred(component, message string) Event {
	return Event{
		Type:      TypeErrorOccurred,
		Component: component,
		Message:   message,
	}
}

// AIDecision reports an advisor verdict.
func AIDecision(strategy, symbol, action string, confidence float64, rationale string) Event {
	return Event{
		Type:     TypeAIDecision,
		Strategy: strategy,
		Symbol:   symbol,
		Action:   action,
		Value:    confidence,
		Message:  rationale,
	}
}

// PerformanceMetric reports one named measurement.
func PerformanceMetric(metric string, value float64, strategy string) Event {
	return Event{
		Type:     TypePerformanceMetric,
		Metric:   metric,
		Value:    value,
		Strategy: strategy,
	}
}
