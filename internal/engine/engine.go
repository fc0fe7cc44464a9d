package engine

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ricky22407-lang/bitrader/internal/indicators"
	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/ledger"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/store"
	"github.com/ricky22407-lang/bitrader/internal/trace"
	"github.com/ricky22407-lang/bitrader/internal/tradelog"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

const persistQueueSize = 8

// Engine owns the ledger and circuit breaker behind one mutex. Every
// mutation — tick processing, executes, emergency liquidation — runs
// serialized; ticks for different symbols are dispatched on parallel
// workers but converge here.
type Engine struct {
	cfg      *store.Config
	feed     interfaces.Feed
	decider  interfaces.Decider
	stor     interfaces.Store
	notifier interfaces.Notifier
	exchange interfaces.Exchange // nil in simulation mode

	mu      sync.Mutex
	ledger  *ledger.Ledger
	breaker *circuitBreaker

	armed      atomic.Bool
	decisionMu sync.Mutex // single-flight gate for decision cycles
	pulse      *rate.Limiter
	indParams  indicators.Params

	activeMu     sync.Mutex
	activeSymbol string

	persistCh chan types.Portfolio
	done      chan struct{}
	stopOnce  sync.Once
}

func newEngine(cfg *store.Config, led *ledger.Ledger, feed interfaces.Feed, decider interfaces.Decider, stor interfaces.Store, notifier interfaces.Notifier, exchange interfaces.Exchange) *Engine {
	e := &Engine{
		cfg:      cfg,
		feed:     feed,
		decider:  decider,
		stor:     stor,
		notifier: notifier,
		exchange: exchange,
		ledger:   led,
		breaker: newCircuitBreaker(
			cfg.Breaker.LossStreak,
			time.Duration(cfg.Breaker.CooldownMinutes)*time.Minute,
		),
		pulse: rate.NewLimiter(rate.Every(time.Duration(cfg.Decision.PulseMaxSeconds)*time.Second), 1),
		indParams: indicators.Params{
			RSIPeriod:  cfg.Indicators.RSIPeriod,
			MACDFast:   cfg.Indicators.MACDFast,
			MACDSlow:   cfg.Indicators.MACDSlow,
			MACDSignal: cfg.Indicators.MACDSignal,
			BBWindow:   cfg.Indicators.BBWindow,
			BBStdDev:   cfg.Indicators.BBStdDev,
			ATRPeriod:  cfg.Indicators.ATRPeriod,
		},
		persistCh: make(chan types.Portfolio, persistQueueSize),
		done:      make(chan struct{}),
	}
	if len(cfg.Symbols) > 0 {
		e.activeSymbol = cfg.Symbols[0]
	}
	go e.persistLoop()
	return e
}

// Run consumes the feed until the context ends. Each symbol gets its
// own dispatcher so ticks for one symbol are processed in arrival
// order while symbols proceed in parallel.
func (e *Engine) Run(ctx context.Context) {
	chans := make(map[string]chan types.Tick, len(e.cfg.Symbols))
	var wg sync.WaitGroup
	for _, s := range e.cfg.Symbols {
		ch := make(chan types.Tick, 64)
		chans[s] = ch
		wg.Add(1)
		go func(ch <-chan types.Tick) {
			defer wg.Done()
			for tick := range ch {
				e.OnTick(ctx, tick)
			}
		}(ch)
	}

	decisionTicker := time.NewTicker(5 * time.Second)
	defer decisionTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, ch := range chans {
				close(ch)
			}
			wg.Wait()
			e.Close()
			return
		case <-decisionTicker.C:
			go e.RunDecisionCycle(ctx)
		case tick, ok := <-e.feed.Ticks():
			if !ok {
				for _, ch := range chans {
					close(ch)
				}
				wg.Wait()
				e.Close()
				return
			}
			if ch, known := chans[tick.Symbol]; known {
				ch <- tick
			}
		}
	}
}

// OnTick processes one price update: recompute the affected symbol,
// scan triggers, and execute at most one forced close.
func (e *Engine) OnTick(ctx context.Context, tick types.Tick) {
	price := tick.Candle.Close
	if price <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ledger.Recompute(tick.Symbol, price)

	instr := scanTriggers(e.ledger.Portfolio(), tick.Symbol, price)
	if instr == nil {
		return
	}

	logger.Risk(ctx, tick.Symbol, "FORCED_CLOSE",
		"reason", instr.reason,
		"price", price,
		"position_id", instr.position.ID,
		"side", string(instr.position.Side),
	)
	if _, err := e.executeLocked(ctx, types.ExecRequest{
		Action:   instr.action,
		Fraction: 1,
		Symbol:   tick.Symbol,
		Reason:   instr.reason,
		Strategy: "risk-triggers",
		Market:   instr.position.Market,
		Leverage: instr.position.Leverage,
	}); err != nil {
		logger.ErrorWithErr(ctx, "Forced close failed", err, "symbol", tick.Symbol, "reason", instr.reason)
	}
}

// Execute is the public entry point for intents.
func (e *Engine) Execute(ctx context.Context, req types.ExecRequest) (*types.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executeLocked(ctx, req)
}

// ManualTrade bypasses the decision provider and the circuit breaker
// (manual actions are an intentional override) but flows through the
// same execute path, so notional minimums and leverage clamps still
// hold. It acts on the currently active symbol's spot bucket.
func (e *Engine) ManualTrade(ctx context.Context, side types.Action, fraction float64) (*types.Trade, error) {
	if side != types.Buy && side != types.Sell {
		return nil, nil
	}
	return e.Execute(ctx, types.ExecRequest{
		Action:   side,
		Fraction: fraction,
		Symbol:   e.ActiveSymbol(),
		Reason:   "Manual",
		Strategy: "manual",
		Market:   types.Spot,
	})
}

// LiquidateAll force-closes everything. Used for the emergency stop.
func (e *Engine) LiquidateAll(ctx context.Context, reason string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liquidateAllLocked(ctx, reason)
}

// RunDecisionCycle runs at most one provider round trip: no-op when
// disarmed, when a cycle is in flight, or inside the pulse cooldown.
// The provider call happens outside the ledger mutex — it can take
// seconds and must not block tick processing.
func (e *Engine) RunDecisionCycle(ctx context.Context) {
	if !e.armed.Load() {
		return
	}
	if !e.pulse.Allow() {
		return
	}
	if !e.decisionMu.TryLock() {
		return
	}
	defer e.decisionMu.Unlock()

	ctx, span := trace.StartSpan(ctx, "engine.DecisionCycle")
	defer span.End()

	snapshots := e.collectSnapshots(ctx)
	if len(snapshots) == 0 {
		return
	}
	portfolio := e.Snapshot()

	scan, err := e.decider.Evaluate(ctx, snapshots, &portfolio, e.ActiveSymbol())
	active := scan.SelectedSymbol
	if err != nil || !e.watched(active) {
		active = fallbackSymbol(snapshots)
		logger.Debug(ctx, "Coarse scan unusable, ranked fallback selected", "symbol", active)
	}
	if active == "" {
		return
	}
	e.setActiveSymbol(active)

	candles, err := e.feed.RecentCandles(active, 0)
	if err != nil || len(candles) == 0 {
		return
	}
	inds := indicators.Compute(candles, e.indParams)
	e.adjustPulse(inds.ATR, candles[len(candles)-1].Close)

	decision, err := e.decider.Decide(ctx, active, candles, inds, &portfolio, e.cfg.RiskProfile)
	if err != nil {
		// Provider failures are an implicit HOLD, never a crash path.
		logger.Warn(ctx, "Decision provider failed, holding", "symbol", active, "error", err)
		return
	}

	logger.Decision(ctx, active, string(decision.Action), decision.Confidence, decision.Reasoning,
		"market", string(decision.Market), "leverage", decision.Leverage, "fraction", decision.Fraction)
	_ = tradelog.AppendDecision(tradelog.DecisionEntry{
		Symbol:     active,
		Action:     string(decision.Action),
		Confidence: decision.Confidence,
		Reason:     decision.Reasoning,
		Price:      candles[len(candles)-1].Close,
		Indicators: map[string]float64{
			"RSI":    inds.RSI,
			"MACD":   inds.MACD.Histogram,
			"SMA20":  inds.SMA20,
			"EMA50":  inds.EMA50,
			"EMA200": inds.EMA200,
			"ATR":    inds.ATR,
		},
	})

	if decision.Action == types.Hold {
		return
	}
	if decision.Action.IsOpening() {
		if decision.Confidence < e.confidenceThreshold() {
			logger.Info(ctx, "Decision below confidence gate",
				"symbol", active,
				"action", string(decision.Action),
				"confidence", decision.Confidence,
				"threshold", e.confidenceThreshold(),
			)
			return
		}
		if remaining := e.BreakerRemaining(); remaining > 0 {
			logger.Risk(ctx, active, "ENTRY_BLOCKED_BREAKER", "remaining", remaining.String())
			return
		}
	}

	e.executeDecision(ctx, active, decision)
}

// executeDecision re-checks the armed flag under the ledger mutex so a
// decision that was in flight when the engine disarmed is discarded
// instead of executed.
func (e *Engine) executeDecision(ctx context.Context, symbol string, d types.Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.armed.Load() {
		logger.Info(ctx, "Discarding stale decision after disarm", "symbol", symbol, "action", string(d.Action))
		return
	}
	if _, err := e.executeLocked(ctx, types.ExecRequest{
		Action:          d.Action,
		Fraction:        d.Fraction,
		Symbol:          symbol,
		Reason:          d.Reasoning,
		Strategy:        "ai-" + e.cfg.Decision.Provider,
		Market:          d.Market,
		Leverage:        d.Leverage,
		StopLoss:        d.StopLoss,
		TakeProfit:      d.TakeProfit,
		TrailingStopPct: d.TrailingStopPct,
	}); err != nil {
		logger.ErrorWithErr(ctx, "Decision execution failed", err, "symbol", symbol)
	}
}

func (e *Engine) collectSnapshots(ctx context.Context) []types.SymbolSnapshot {
	stats, err := e.feed.Stats24h(ctx)
	if err != nil {
		logger.Debug(ctx, "24h stats unavailable", "error", err)
	}
	bySymbol := make(map[string]types.TickerStats, len(stats))
	for _, s := range stats {
		bySymbol[s.Symbol] = s
	}

	out := make([]types.SymbolSnapshot, 0, len(e.cfg.Symbols))
	for _, sym := range e.cfg.Symbols {
		price, ok := e.feed.LastPrice(sym)
		if !ok {
			continue
		}
		candles, err := e.feed.RecentCandles(sym, 0)
		if err != nil {
			continue
		}
		out = append(out, types.SymbolSnapshot{
			Symbol:     sym,
			LastPrice:  price,
			Stats:      bySymbol[sym],
			Indicators: indicators.Compute(candles, e.indParams),
		})
	}
	return out
}

// fallbackSymbol ranks the universe by |24h move| weighted by log
// quote volume and returns the top entry. Used when the coarse scan is
// missing or unusable.
func fallbackSymbol(snapshots []types.SymbolSnapshot) string {
	best := ""
	bestScore := -1.0
	for _, s := range snapshots {
		score := math.Abs(s.Stats.ChangePct24h) * math.Log10(1+math.Max(s.Stats.QuoteVolume, 0))
		if score > bestScore {
			bestScore = score
			best = s.Symbol
		}
	}
	return best
}

// adjustPulse shortens the decision interval toward its minimum when
// volatility (ATR as a percentage of price) runs hot and stretches it
// toward the maximum when quiet.
func (e *Engine) adjustPulse(atr, price float64) {
	interval := time.Duration(e.cfg.Decision.PulseMaxSeconds) * time.Second
	if price > 0 && atr/price*100 >= e.cfg.Decision.VolatilityPctHot {
		interval = time.Duration(e.cfg.Decision.PulseMinSeconds) * time.Second
	}
	e.pulse.SetLimit(rate.Every(interval))
}

func (e *Engine) confidenceThreshold() float64 {
	threshold := e.cfg.Decision.MinConfidence
	// Low risk profile demands stronger conviction before entering.
	if e.cfg.RiskProfile == "low" {
		threshold = math.Max(threshold, 0.75)
	}
	return threshold
}

// BreakerRemaining reports (and, when tripped fresh, records) the
// circuit breaker cooldown.
func (e *Engine) BreakerRemaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.ledger.Portfolio()
	wasTripped := p.BreakerTrippedAt != nil
	remaining := e.breaker.check(p, time.Now().UTC())
	if remaining > 0 && !wasTripped {
		logger.Risk(context.Background(), "", "CIRCUIT_BREAKER_TRIPPED",
			"loss_streak", e.breaker.lossStreak, "cooldown", remaining.String())
		e.notify(context.Background(), types.Event{
			Kind:    types.EventBreaker,
			Message: "circuit breaker tripped after consecutive losses",
			Time:    time.Now().UTC(),
		})
		e.persistAsync()
	}
	return remaining
}

func (e *Engine) Arm()        { e.armed.Store(true) }
func (e *Engine) Disarm()     { e.armed.Store(false) }
func (e *Engine) Armed() bool { return e.armed.Load() }

// Snapshot returns a deep copy of the portfolio for readers.
func (e *Engine) Snapshot() types.Portfolio {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Snapshot()
}

// ActiveSymbol is the symbol the decision cycle currently focuses on.
func (e *Engine) ActiveSymbol() string {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	return e.activeSymbol
}

func (e *Engine) setActiveSymbol(s string) {
	e.activeMu.Lock()
	e.activeSymbol = s
	e.activeMu.Unlock()
}

func (e *Engine) watched(symbol string) bool {
	for _, s := range e.cfg.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

func (e *Engine) notify(ctx context.Context, ev types.Event) {
	if e.notifier == nil {
		return
	}
	e.notifier.Publish(ctx, ev)
}

// persistAsync enqueues a portfolio snapshot for the single writer.
// Queue pressure drops the oldest pending snapshot: writes are
// last-write-wins, so only the newest state matters.
func (e *Engine) persistAsync() {
	if e.stor == nil {
		return
	}
	snap := e.ledger.Snapshot()
	for {
		select {
		case e.persistCh <- snap:
			return
		default:
			select {
			case <-e.persistCh:
			default:
			}
		}
	}
}

func (e *Engine) persistLoop() {
	ctx := context.Background()
	for {
		select {
		case <-e.done:
			return
		case snap := <-e.persistCh:
			if err := e.stor.Save(ctx, &snap); err != nil {
				// In-memory state stays authoritative; the next
				// successful write catches up.
				logger.Warn(ctx, "Portfolio persist failed", "error", err)
			}
		}
	}
}

// Close flushes a final snapshot synchronously and stops the writer.
func (e *Engine) Close() {
	e.stopOnce.Do(func() {
		close(e.done)
		if e.stor != nil {
			snap := e.Snapshot()
			if err := e.stor.Save(context.Background(), &snap); err != nil {
				logger.Warn(context.Background(), "Final portfolio persist failed", "error", err)
			}
		}
	})
}
