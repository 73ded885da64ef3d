package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"sniper-core/internal/advisor"
	"sniper-core/internal/aggregate"
	"sniper-core/internal/events"
	"sniper-core/internal/exec"
	"sniper-core/internal/models"
	"sniper-core/internal/monitor"
	"sniper-core/internal/portfolio"
	"sniper-core/internal/position"
	"sniper-core/internal/report"
	"sniper-core/internal/source"
	"sniper-core/internal/strategy"
	"sniper-core/pkg/clock"
	"sniper-core/pkg/config"
	"sniper-core/pkg/jito"
	"sniper-core/pkg/jupiter"
	"sniper-core/pkg/solana"
	"sniper-core/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("starting engine, mode=%s", cfg.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		log.Fatalf("wiring: %v", err)
	}

	if err := eng.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("engine stopped with error: %v", err)
		eng.shutdown()
		os.Exit(1)
	}
	eng.shutdown()
}

// engine owns the wired components and the central event loop.
type engine struct {
	cfg *config.Config
	clk clock.Clock

	store      store.Store
	reporter   *report.Reporter
	metrics    *monitor.Metrics
	sources    *source.Manager
	aggregator *aggregate.Aggregator
	registry   *strategy.Registry
	dispatcher *strategy.Dispatcher
	advisor    *advisor.Advisor
	portfolio  *portfolio.Manager
	planner    *exec.Planner
	executor   *exec.Executor
	positions  *position.Manager

	marketEvents *events.Pipeline[models.MarketEvent]
	exitSignals  *events.Pipeline[models.StrategySignal]
	bus          *events.Bus

	// Daily-loss circuit breaker state; only the event loop touches it.
	dailyPnL float64
	dailyDay string

	reporterCancel context.CancelFunc
}

// buildEngine wires C1 through C11 in startup order.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	clk := clock.System{}

	// State store first: it is the durable coordination plane. A dry run
	// may proceed on the in-memory store when no server is reachable.
	var st store.Store
	client, err := store.New(ctx, store.Options{
		URL:              cfg.StoreURL,
		PoolSize:         cfg.StorePoolSize,
		ConnectTimeout:   cfg.StoreConnectTimeout,
		OperationTimeout: cfg.StoreOperationTimeout,
	})
	if err != nil {
		if cfg.Mode != config.ModeDryRun {
			return nil, err
		}
		log.Printf("store unreachable (%v), dry run continues on in-memory store", err)
		st = store.NewMemory()
	} else {
		st = client
	}

	reporter := report.New(report.Config{
		Enabled:       cfg.ReporterEnabled,
		SinkURL:       cfg.ReporterURL,
		BatchSize:     cfg.ReporterBatchSize,
		FlushInterval: cfg.ReporterFlushInterval,
		RetryAttempts: cfg.ReporterRetryAttempts,
	})

	// Wallet: a configured key in Pilot/Live, an ephemeral one in DryRun.
	var wallet *solana.Wallet
	if cfg.WalletPrivateKey != "" {
		wallet, err = solana.NewWallet(cfg.WalletPrivateKey)
	} else if cfg.Mode == config.ModeDryRun {
		wallet, err = solana.GenerateWallet()
	} else {
		return nil, errors.New("WALLET_PRIVATE_KEY is required outside DryRun")
	}
	if err != nil {
		return nil, err
	}
	log.Printf("wallet %s", wallet.Address())

	chain := solana.NewClient(cfg.RPCURL,
		solana.WithMaxRetries(cfg.RetryAttempts),
		solana.WithRetryDelay(time.Duration(cfg.RetryDelaySeconds)*time.Second))
	quotes := jupiter.NewClient(cfg.QuoteURL)
	bundles, err := jito.NewClient(cfg.BundleURL, cfg.BundleTipAccounts)
	if err != nil {
		return nil, err
	}

	marketEvents := events.NewPipeline[models.MarketEvent](events.DefaultCapacity)
	exitSignals := events.NewPipeline[models.StrategySignal](events.DefaultCapacity)
	bus := events.NewBus()

	// Sources: one adapter per enabled entry.
	var adapters []source.Adapter
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		switch src.Name {
		case "helius":
			adapters = append(adapters, source.NewChainAdapter(src.Name, src.WSURL))
		case "binance":
			adapters = append(adapters, source.NewExchangeAdapter(src.Name, src.WSURL, []string{"SOLUSDT"}))
		default:
			log.Printf("unknown source %q skipped", src.Name)
		}
	}
	sources := source.NewManager(adapters, marketEvents, cfg.ReconnectTimeout,
		source.WithMaxRetries(cfg.SourceMaxRetries))

	aggregator := aggregate.New([]aggregate.VenueClient{
		&jupiterVenue{quotes: quotes, clk: clk},
	})

	locks := portfolio.NewLocks()
	pf := portfolio.NewManager(chain, wallet.Address(), locks, clk)
	if cfg.Mode == config.ModeDryRun {
		pf.SetBalances(10, nil)
	}

	// Strategy configuration: yaml file with parameters and balance bands.
	stratCfg, err := strategy.LoadConfig(cfg.StrategiesPath)
	if err != nil {
		return nil, err
	}
	registry := strategy.NewRegistry(stratCfg.ActivationBands, clk)
	validator := &mintValidator{chain: chain, dryRun: cfg.Mode == config.ModeDryRun}

	// Strategies without a named exit preset fall back to the configured
	// global percentages.
	position.SetDefaultExit(position.ExitStrategy{
		TakeProfitPct: cfg.TakeProfitPercentage,
		StopLossPct:   cfg.StopLossPercentage,
		TimeExitHours: 24,
	})
	for _, sc := range stratCfg.Strategies {
		s, err := strategy.Build(sc, validator)
		if err != nil {
			return nil, err
		}
		s.SetEnabled(sc.Enabled)
		if err := registry.Add(s); err != nil {
			return nil, err
		}
	}

	// A lower risk tolerance demands more advisor conviction before a
	// trade may execute.
	minConfidence := cfg.AdvisorMinConfidence
	if byTolerance := 0.9 - 0.3*cfg.RiskTolerance; byTolerance > minConfidence {
		minConfidence = byTolerance
	}

	planner := exec.NewPlanner(pf, cfg.MEVEnabled, mevRequiredStrategies(stratCfg))
	planner.SetMaxPositionSize(cfg.MaxPositionSizeSOL)

	eng := &engine{
		cfg:          cfg,
		clk:          clk,
		store:        st,
		reporter:     reporter,
		metrics:      monitor.NewMetrics(),
		sources:      sources,
		aggregator:   aggregator,
		registry:     registry,
		advisor:      advisor.New(cfg.AdvisorURL, minConfidence, advisor.WithTimeout(cfg.AdvisorTimeout)),
		portfolio:    pf,
		planner:      planner,
		marketEvents: marketEvents,
		exitSignals:  exitSignals,
		bus:          bus,
	}
	eng.dispatcher = strategy.NewDispatcher(registry, eng, cfg.MaxOpportunitiesPerCycle)
	eng.executor = exec.NewExecutor(quotes, chain, bundles, wallet,
		exec.WithDryRun(cfg.Mode == config.ModeDryRun))
	eng.positions = position.NewManager(st, &jupiterPriceSource{quotes: quotes}, exitSignals)

	return eng, nil
}

// mevRequiredStrategies lists sniping strategies, which always execute
// through the protected path.
func mevRequiredStrategies(cfg *strategy.ConfigFile) []string {
	var names []string
	for _, sc := range cfg.Strategies {
		if sc.Type == "sniping" {
			names = append(names, sc.Name)
		}
	}
	return names
}

// run starts the background tasks and drives the central event loop.
func (e *engine) run(ctx context.Context) error {
	reporterCtx, cancelReporter := context.WithCancel(context.Background())
	e.reporterCancel = cancelReporter
	go e.reporter.Run(reporterCtx)

	if !e.store.HealthCheck(ctx) {
		log.Printf("store health check failed at startup")
	}

	if err := e.portfolio.Refresh(ctx); err != nil {
		log.Printf("initial balance refresh failed: %v", err)
	}
	e.registry.UpdateForBalance(e.portfolio.SOLBalance())
	e.portfolio.StartSync(ctx, 30*time.Second)

	e.sources.Start(ctx)
	go e.positions.Run(ctx)

	analysisTicker := time.NewTicker(time.Duration(e.cfg.ProcessingIntervalSeconds) * time.Second)
	defer analysisTicker.Stop()
	statusTicker := time.NewTicker(30 * time.Second)
	defer statusTicker.Stop()

	log.Printf("engine running: %d strategies, %d active",
		len(e.registry.AllNames()), len(e.registry.ActiveNames()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-e.marketEvents.Receive():
			e.handleMarketEvent(ctx, ev)

		case sig := <-e.exitSignals.Receive():
			e.handleExitSignal(ctx, sig)

		case <-analysisTicker.C:
			cycleCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.CycleTimeoutSeconds)*time.Second)
			signals := e.dispatcher.RunPeriodicAnalysis(cycleCtx)
			for _, sig := range signals {
				e.handleSignal(cycleCtx, sig, true)
			}
			cancel()

		case <-statusTicker.C:
			e.persistStatus(ctx)
		}
	}
}

// handleMarketEvent is the source -> dispatcher -> signal path.
func (e *engine) handleMarketEvent(ctx context.Context, ev models.MarketEvent) {
	start := e.clk.Now()
	e.metrics.IncEvents()
	e.bus.Publish(events.TopicMarketEvent, ev)

	switch event := ev.(type) {
	case models.ConnectionStatus:
		if !event.Connected {
			e.reporter.Send(report.ErrorOccurred("source:"+event.SourceTag, event.Error))
		}
		return
	case models.RawMessage:
		// Surfaced for debugging; nothing to trade on.
		return
	case models.NewTokenListing:
		if event.TokenAddress != "" {
			wasNew, err := e.store.SetAdd(ctx, store.KeyProcessedTokens, event.TokenAddress)
			if err != nil {
				log.Printf("token dedup failed: %v", err)
			} else if wasNew {
				_ = e.store.ListPushFront(ctx, store.KeyNewTokenQueue, event.TokenAddress)
			} else {
				return // already seen, do not re-dispatch
			}
		}
	case models.NewPoolCreated:
		if event.BaseMint != "" {
			wasNew, err := e.store.SetAdd(ctx, store.KeyProcessedTokens, event.BaseMint)
			if err != nil {
				log.Printf("token dedup failed: %v", err)
			} else if !wasNew {
				return
			}
		}
	}

	cycleCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.CycleTimeoutSeconds)*time.Second)
	defer cancel()

	signals := e.dispatcher.DispatchEvent(cycleCtx, ev)
	e.metrics.IncSignals(len(signals))
	e.metrics.DispatchLatency.RecordDuration(e.clk.Now().Sub(start))

	for _, sig := range signals {
		e.handleSignal(cycleCtx, sig, true)
	}
}

// handleExitSignal routes position-manager sells straight to planning; the
// advisor never vetoes an exit.
func (e *engine) handleExitSignal(ctx context.Context, sig models.StrategySignal) {
	e.bus.Publish(events.TopicSignal, sig)
	e.executeSignal(ctx, sig)
}

// handleSignal runs the signal-to-execution path: cache, enrich, decide.
func (e *engine) handleSignal(ctx context.Context, sig models.StrategySignal, consultAdvisor bool) {
	e.bus.Publish(events.TopicSignal, sig)
	e.reporter.Send(report.SignalGenerated(sig.StrategyName, sig.Symbol, string(sig.Kind), sig.Strength))
	e.cacheSignal(ctx, sig)

	enhanced := models.EnhancedSignal{Original: sig, FinalAction: models.ActionExecute, ProcessedAt: e.clk.Now()}
	if consultAdvisor {
		sctx, err := e.BuildContext(ctx, sig.Symbol)
		if err != nil {
			log.Printf("context for advisor failed: %v", err)
		}
		enhanced = e.advisor.Process(ctx, sig, sctx)
		e.reporter.Send(report.AIDecision(sig.StrategyName, sig.Symbol,
			string(enhanced.Recommendation.Action), enhanced.Recommendation.Confidence,
			enhanced.Recommendation.Rationale))
	}

	e.queueDecision(ctx, enhanced)

	switch enhanced.FinalAction {
	case models.ActionExecute:
		if sig.Kind == models.SignalBuy && !e.riskAllowsEntry() {
			e.reporter.Send(report.RiskAlert("critical", "daily loss limit reached, entries suspended",
				sig.StrategyName, sig.Symbol))
			log.Printf("entry suppressed by daily loss limit: %s %s", sig.StrategyName, sig.Symbol)
			return
		}
		e.executeSignal(ctx, sig)
	case models.ActionReject:
		log.Printf("signal rejected by advisor: %s %s", sig.StrategyName, sig.Symbol)
	default:
		log.Printf("signal held: %s %s (confidence %.2f)",
			sig.StrategyName, sig.Symbol, enhanced.Recommendation.Confidence)
	}
}

// riskAllowsEntry is the daily-loss circuit breaker: once realised losses
// for the current day exceed the configured limit, no new entries open.
// The counter resets on day rollover.
func (e *engine) riskAllowsEntry() bool {
	if e.cfg.MaxDailyLossSOL <= 0 {
		return true
	}
	day := e.clk.Now().UTC().Format("2006-01-02")
	if day != e.dailyDay {
		e.dailyDay = day
		e.dailyPnL = 0
	}
	return e.dailyPnL > -e.cfg.MaxDailyLossSOL
}

// recordDailyPnL feeds realised results into the circuit breaker.
func (e *engine) recordDailyPnL(pnl float64) {
	day := e.clk.Now().UTC().Format("2006-01-02")
	if day != e.dailyDay {
		e.dailyDay = day
		e.dailyPnL = 0
	}
	e.dailyPnL += pnl
}

// queueDecision appends the enriched decision to the trading decisions
// queue for downstream consumers.
func (e *engine) queueDecision(ctx context.Context, enhanced models.EnhancedSignal) {
	data, err := json.Marshal(enhanced)
	if err != nil {
		return
	}
	if err := e.store.ListPushFront(ctx, store.KeyDecisionQueue, string(data)); err != nil {
		return
	}
	_ = e.store.ListTrim(ctx, store.KeyDecisionQueue, 0, store.RecentSignalsLimit-1)
}

// executeSignal turns a signal into an order and runs it to a terminal
// result, then updates positions and books.
func (e *engine) executeSignal(ctx context.Context, sig models.StrategySignal) {
	order := e.orderFromSignal(sig)

	// A sell carrying a position id is that position's exit order; record
	// its id on the closing record before anything can fail.
	positionID := ""
	if order.Side == models.SideSell {
		positionID = sig.MetadataString("position_id")
	}
	if positionID != "" {
		e.attachExitOrder(ctx, positionID, order.ID)
	}

	planned, err := e.planner.Plan(order)
	if err != nil {
		order.Status = models.OrderRejected
		e.metrics.IncErrors()
		log.Printf("planner rejected order %s: %v", order.ID, err)
		e.reporter.Send(report.TradeExecuted(sig.StrategyName, sig.Symbol, string(sig.Kind),
			order.Size, order.Price, 0, false, err.Error()))
		if positionID != "" {
			e.failClosingPosition(ctx, positionID, err.Error())
		}
		return
	}

	start := e.clk.Now()
	result := e.executor.Execute(ctx, planned)
	e.metrics.ExecutionLatency.RecordDuration(e.clk.Now().Sub(start))
	e.metrics.IncOrders()
	e.bus.Publish(events.TopicExecution, result)

	e.reporter.Send(report.TradeExecuted(sig.StrategyName, sig.Symbol, string(sig.Kind),
		result.FilledSize, result.FilledPrice, result.FeesPaid, result.Success, result.Error))
	e.pushActivity(ctx, sig, result)

	if !result.Success {
		order.Status = models.OrderRejected
		e.metrics.IncErrors()
		e.registry.RecordTradeOutcome(sig.StrategyName, 0, false)
		log.Printf("execution failed for order %s: %s", order.ID, result.Error)
		if positionID != "" {
			e.failClosingPosition(ctx, positionID, result.Error)
		}
		return
	}
	order.Status = models.OrderFilled
	order.FilledSize = result.FilledSize
	order.TransactionRef = result.TransactionRef
	order.BundleRef = result.BundleRef

	switch sig.Kind {
	case models.SignalBuy:
		e.openPosition(ctx, order, sig, result)
	case models.SignalSell, models.SignalStopLoss, models.SignalTakeProfit:
		e.closePosition(ctx, sig, result)
	}
}

// openPosition books a filled buy into the position store and balances.
func (e *engine) openPosition(ctx context.Context, order models.Order, sig models.StrategySignal, result models.ExecutionResult) {
	p, err := position.FromExecution(order, sig, result, e.clk.Now())
	if err != nil {
		log.Printf("cannot build position from order %s: %v", order.ID, err)
		return
	}
	if err := e.positions.Add(ctx, p); err != nil {
		log.Printf("persist position %s failed: %v", p.ID, err)
		e.metrics.IncErrors()
		return
	}
	if e.cfg.Mode == config.ModeDryRun {
		e.portfolio.ApplyFill(p.TokenMint, p.TokensHeld, -(p.SOLInvested + result.FeesPaid))
	}
	e.registry.UpdateForBalance(e.portfolio.SOLBalance())
	e.bus.Publish(events.TopicPositionChange, p)
}

// closePosition finalises the position referenced by an exit signal.
func (e *engine) closePosition(ctx context.Context, sig models.StrategySignal, result models.ExecutionResult) {
	positionID := sig.MetadataString("position_id")
	if positionID == "" {
		return
	}
	p, err := e.positions.Get(ctx, positionID)
	if err != nil || p == nil {
		log.Printf("position %s not found for exit: %v", positionID, err)
		return
	}

	if sig.MetadataString("exit_reason") == string(position.ExitPartial) {
		// Partial exits keep the position active; the monitor already
		// reduced the held amount.
		e.bookExitProceeds(p, sig.Size, result)
		e.bus.Publish(events.TopicPositionChange, p)
		return
	}

	p.MarkClosed(result.TransactionRef, e.clk.Now())
	if err := e.positions.Update(ctx, p); err != nil {
		log.Printf("persist closed position %s failed: %v", p.ID, err)
	}
	e.bookExitProceeds(p, sig.Size, result)

	pnl := (resultPrice(result, p) - p.EntryPrice) * sig.Size
	e.registry.RecordTradeOutcome(p.StrategyName, pnl, pnl > 0)
	e.recordDailyPnL(pnl)
	e.bus.Publish(events.TopicPositionChange, p)
	log.Printf("position %s closed (%s), pnl %.6f SOL",
		p.ID, sig.MetadataString("exit_reason"), pnl)
}

// attachExitOrder records the dispatched exit order's id on the closing
// position.
func (e *engine) attachExitOrder(ctx context.Context, positionID, orderID string) {
	p, err := e.positions.Get(ctx, positionID)
	if err != nil || p == nil {
		log.Printf("position %s not found for exit order %s: %v", positionID, orderID, err)
		return
	}
	if p.Status != position.StatusClosing {
		// Partial exits leave the position active; the exit order id field
		// belongs to the closing order only.
		return
	}
	p.MarkClosing(orderID, e.clk.Now())
	if err := e.positions.Update(ctx, p); err != nil {
		log.Printf("persist exit order id for %s failed: %v", positionID, err)
	}
}

// failClosingPosition sinks a closing position whose exit order could not
// execute. Left in Closing it would never be re-evaluated; Failed makes
// the stranded capital visible to the operator.
func (e *engine) failClosingPosition(ctx context.Context, positionID, reason string) {
	p, err := e.positions.Get(ctx, positionID)
	if err != nil || p == nil {
		log.Printf("position %s not found while failing exit: %v", positionID, err)
		return
	}
	if p.Status != position.StatusClosing {
		return
	}
	p.MarkFailed(e.clk.Now())
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	p.Metadata["failure_reason"] = reason
	if err := e.positions.Update(ctx, p); err != nil {
		log.Printf("persist failed position %s: %v", p.ID, err)
		return
	}
	e.reporter.Send(report.RiskAlert("critical",
		"exit execution failed, position marked failed: "+reason, p.StrategyName, p.Symbol))
	e.bus.Publish(events.TopicPositionChange, p)
	log.Printf("position %s marked failed: %s", p.ID, reason)
}

func (e *engine) bookExitProceeds(p *position.ActivePosition, soldTokens float64, result models.ExecutionResult) {
	if e.cfg.Mode != config.ModeDryRun {
		return
	}
	proceeds := soldTokens*resultPrice(result, p) - result.FeesPaid
	e.portfolio.ApplyFill(p.TokenMint, -soldTokens, proceeds)
	e.registry.UpdateForBalance(e.portfolio.SOLBalance())
}

func resultPrice(result models.ExecutionResult, p *position.ActivePosition) float64 {
	if result.FilledPrice > 0 {
		return result.FilledPrice
	}
	return p.LastPrice
}

// orderFromSignal derives the market order a signal asks for.
func (e *engine) orderFromSignal(sig models.StrategySignal) models.Order {
	now := e.clk.Now()

	side := models.SideBuy
	switch sig.Kind {
	case models.SignalSell, models.SignalStopLoss, models.SignalTakeProfit:
		side = models.SideSell
	}

	params := models.DefaultExecutionParams()
	params.UseMEVProtection = sig.MetadataBool("use_mev_protection")
	if e.cfg.MEVTipLamports > 0 {
		params.PriorityFeeLamports = e.cfg.MEVTipLamports
	}
	if sig.MetadataString("priority") == "ultra_high" {
		params.TipUrgency = 3.0
	} else if sig.MetadataString("priority") == "high" {
		params.TipUrgency = 2.0
	}

	return models.Order{
		ID:             uuid.NewString(),
		Symbol:         sig.Symbol,
		Side:           side,
		Kind:           models.OrderMarket,
		Size:           sig.Size,
		Price:          sig.Price,
		Status:         models.OrderPending,
		StrategyName:   sig.StrategyName,
		MaxSlippageBps: 300,
		ExecParams:     params,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// cacheSignal stores the signal for the dashboard: per-key with TTL plus
// the bounded recent list.
func (e *engine) cacheSignal(ctx context.Context, sig models.StrategySignal) {
	data, err := json.Marshal(sig)
	if err != nil {
		return
	}
	key := store.SignalKey(sig.StrategyName, sig.Symbol)
	if err := e.store.Set(ctx, key, string(data), store.TTLSignal); err != nil {
		log.Printf("cache signal failed: %v", err)
		return
	}
	_ = e.store.ListPushFront(ctx, store.KeyRecentSignals, string(data))
	_ = e.store.ListTrim(ctx, store.KeyRecentSignals, 0, store.RecentSignalsLimit-1)
	_, _ = e.store.Expire(ctx, store.KeyRecentSignals, store.TTLRecentSignals)
}

// pushActivity appends one entry to the dashboard activity feed.
func (e *engine) pushActivity(ctx context.Context, sig models.StrategySignal, result models.ExecutionResult) {
	entry, err := json.Marshal(map[string]any{
		"strategy":  sig.StrategyName,
		"symbol":    sig.Symbol,
		"action":    sig.Kind,
		"size":      result.FilledSize,
		"success":   result.Success,
		"tx_ref":    result.TransactionRef,
		"timestamp": e.clk.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := e.store.ListPushFront(ctx, store.KeyActivityFeed, string(entry)); err != nil {
		return
	}
	_ = e.store.ListTrim(ctx, store.KeyActivityFeed, 0, store.ActivityFeedLimit-1)
}

// persistStatus writes the periodic snapshots the dashboard reads.
func (e *engine) persistStatus(ctx context.Context) {
	now := e.clk.Now()

	status, err := json.Marshal(map[string]any{
		"mode":              string(e.cfg.Mode),
		"sources":           e.sources.ConnectionStatus(),
		"active_strategies": e.registry.ActiveNames(),
		"sol_balance":       e.portfolio.SOLBalance(),
		"updated_at":        now.UTC().Format(time.RFC3339),
	})
	if err == nil {
		_ = e.store.Set(ctx, store.KeyBotStatus, string(status), store.TTLBotStatus)
	}

	if metrics, err := json.Marshal(e.metrics.Snapshot(now)); err == nil {
		_ = e.store.Set(ctx, store.KeyRealtimeMetrics, string(metrics), store.TTLRealtimeMetrics)
	}

	if stats, err := json.Marshal(e.registry.PerformanceSnapshot()); err == nil {
		_ = e.store.Set(ctx, store.KeyDashboardStats, string(stats), store.TTLDashboardStats)
	}
}

// BuildContext assembles the snapshot strategies and the advisor receive.
// It satisfies strategy.ContextBuilder.
func (e *engine) BuildContext(ctx context.Context, symbol string) (models.StrategyContext, error) {
	sctx := models.StrategyContext{
		Portfolio: e.portfolio.Snapshot(),
		Conditions: models.MarketConditions{
			VolumeTrend:   "stable",
			PriceMomentum: "sideways",
		},
	}
	if symbol == "" {
		return sctx, nil
	}

	aggregated, err := e.aggregator.GetAggregated(ctx, symbol)
	if err != nil {
		// Strategies still run with portfolio-only context; new pools
		// usually have no quotable market yet.
		return sctx, nil
	}
	sctx.Aggregated = aggregated
	sctx.Conditions.LiquidityDepth = aggregated.Primary.Volume
	return sctx, nil
}

// shutdown tears components down in reverse order: sources, pipeline,
// positions are already durable, reporter flush, store close.
func (e *engine) shutdown() {
	log.Printf("shutting down")

	e.sources.Stop()

	// Drain whatever the sources already emitted so no event is lost
	// between the pipeline and the dispatcher.
	drain := time.After(200 * time.Millisecond)
	for {
		select {
		case ev := <-e.marketEvents.Receive():
			e.bus.Publish(events.TopicMarketEvent, ev)
			continue
		case <-drain:
		}
		break
	}

	e.persistStatus(context.Background())

	if e.reporterCancel != nil {
		e.reporterCancel()
		select {
		case <-e.reporter.Done():
		case <-time.After(5 * time.Second):
			log.Printf("reporter flush timed out")
		}
	}

	e.bus.Close()
	if err := e.store.Close(); err != nil {
		log.Printf("store close: %v", err)
	}
	log.Printf("shutdown complete")
}

// jupiterVenue adapts the quote aggregator into an aggregate.VenueClient.
type jupiterVenue struct {
	quotes *jupiter.Client
	clk    clock.Clock
}

func (v *jupiterVenue) Tag() string { return "jupiter" }

func (v *jupiterVenue) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	inputMint, outputMint, err := exec.ResolveSymbol(symbol, models.SideSell)
	if err != nil {
		return models.Quote{}, err
	}
	// Quote one token against SOL to derive a spot price.
	price, err := v.quotes.GetPrice(ctx, inputMint, outputMint, 1_000_000_000)
	if err != nil {
		return models.Quote{}, err
	}
	return models.Quote{
		Symbol:    symbol,
		Price:     price,
		Timestamp: v.clk.Now(),
		SourceTag: "jupiter",
	}, nil
}

// jupiterPriceSource adapts the aggregator for the position monitor.
type jupiterPriceSource struct {
	quotes *jupiter.Client
}

func (s *jupiterPriceSource) TokenPrice(ctx context.Context, mint string) (float64, error) {
	return s.quotes.GetPrice(ctx, mint, models.WrappedSOLMint, 1_000_000_000)
}

// mintValidator approves sniper targets whose mint and freeze authorities
// are burned. Dry runs approve everything.
type mintValidator struct {
	chain  *solana.Client
	dryRun bool
}

func (v *mintValidator) ValidateToken(ctx context.Context, mint string) (bool, error) {
	if v.dryRun {
		return true, nil
	}
	info, err := v.chain.GetMintInfo(ctx, mint)
	if err != nil {
		return false, err
	}
	return info.MintAuthority == "" && info.FreezeAuthority == "", nil
}
