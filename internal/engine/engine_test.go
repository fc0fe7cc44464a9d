package engine

import (
	"context"
	"math"
	"testing"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/ledger"
	"github.com/ricky22407-lang/bitrader/internal/store"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// fakeFeed serves fixed prices without any network.
type fakeFeed struct {
	prices  map[string]float64
	candles map[string][]types.Candle
	ticks   chan types.Tick
}

var _ interfaces.Feed = (*fakeFeed)(nil)

func newFakeFeed(prices map[string]float64) *fakeFeed {
	return &fakeFeed{
		prices:  prices,
		candles: map[string][]types.Candle{},
		ticks:   make(chan types.Tick, 16),
	}
}

func (f *fakeFeed) Start(ctx context.Context) error                       { return nil }
func (f *fakeFeed) Stop(ctx context.Context)                              {}
func (f *fakeFeed) Subscribe(ctx context.Context, symbols []string) error { return nil }
func (f *fakeFeed) Ticks() <-chan types.Tick                              { return f.ticks }

func (f *fakeFeed) RecentCandles(symbol string, n int) ([]types.Candle, error) {
	return f.candles[symbol], nil
}

func (f *fakeFeed) LastPrice(symbol string) (float64, bool) {
	p, ok := f.prices[symbol]
	return p, ok
}

func (f *fakeFeed) Stats24h(ctx context.Context) ([]types.TickerStats, error) {
	return nil, nil
}

func testConfig(symbols ...string) *store.Config {
	cfg := &store.Config{
		Mode:        "DRY_RUN",
		Symbols:     symbols,
		InitialCash: 10000,
		RiskProfile: "medium",
	}
	cfg.Decision.MinConfidence = 0.6
	cfg.Decision.PulseMinSeconds = 30
	cfg.Decision.PulseMaxSeconds = 300
	cfg.Decision.VolatilityPctHot = 1.0
	cfg.Breaker.LossStreak = 3
	cfg.Breaker.CooldownMinutes = 60
	return cfg
}

func newTestEngine(t *testing.T, cash float64, prices map[string]float64) (*Engine, *fakeFeed) {
	t.Helper()
	symbols := make([]string, 0, len(prices))
	for s := range prices {
		symbols = append(symbols, s)
	}
	feed := newFakeFeed(prices)
	e := newEngine(testConfig(symbols...), ledger.New(cash), feed, nil, nil, nil, nil)
	t.Cleanup(e.Close)
	return e, feed
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestSpotBuyThenSell(t *testing.T) {
	e, feed := newTestEngine(t, 10000, map[string]float64{"BTCUSDT": 100})
	ctx := context.Background()

	trade, err := e.Execute(ctx, types.ExecRequest{
		Action: types.Buy, Fraction: 0.1, Symbol: "BTCUSDT", Market: types.Spot, Reason: "test",
	})
	if err != nil || trade == nil {
		t.Fatalf("buy failed: trade=%v err=%v", trade, err)
	}
	if !almostEqual(trade.Amount, 10) {
		t.Errorf("expected 10 coins for $1000 at $100, got %f", trade.Amount)
	}

	p := e.Snapshot()
	if !almostEqual(p.Cash, 9000) {
		t.Errorf("expected cash 9000, got %f", p.Cash)
	}

	feed.prices["BTCUSDT"] = 120
	trade, err = e.Execute(ctx, types.ExecRequest{
		Action: types.Sell, Fraction: 1, Symbol: "BTCUSDT", Market: types.Spot, Reason: "test",
	})
	if err != nil || trade == nil {
		t.Fatalf("sell failed: trade=%v err=%v", trade, err)
	}
	if trade.PnL == nil || !almostEqual(*trade.PnL, 200) {
		t.Errorf("expected realized PnL 200, got %v", trade.PnL)
	}

	p = e.Snapshot()
	if !almostEqual(p.Cash, 10200) {
		t.Errorf("expected cash 10200 after round trip, got %f", p.Cash)
	}
	if len(p.SpotPositions) != 0 {
		t.Errorf("expected empty spot bucket, got %d positions", len(p.SpotPositions))
	}
}

func TestSpotBuyBelowMinimumRejected(t *testing.T) {
	e, _ := newTestEngine(t, 50, map[string]float64{"BTCUSDT": 100})

	trade, err := e.Execute(context.Background(), types.ExecRequest{
		Action: types.Buy, Fraction: 0.1, Symbol: "BTCUSDT", Market: types.Spot,
	})
	if err != nil {
		t.Fatalf("expected silent rejection, got error %v", err)
	}
	if trade != nil {
		t.Errorf("expected no trade for $5 spend, got %+v", trade)
	}
	if got := e.Snapshot().Cash; !almostEqual(got, 50) {
		t.Errorf("cash changed on rejected buy: %f", got)
	}
}

func TestFuturesOpenCloseLong(t *testing.T) {
	e, feed := newTestEngine(t, 10000, map[string]float64{"ETHUSDT": 100})
	ctx := context.Background()

	trade, err := e.Execute(ctx, types.ExecRequest{
		Action: types.OpenLong, Fraction: 0.1, Symbol: "ETHUSDT",
		Market: types.Futures, Leverage: 3,
	})
	if err != nil || trade == nil {
		t.Fatalf("open failed: trade=%v err=%v", trade, err)
	}

	p := e.Snapshot()
	pos := p.FuturesPositions[0]
	if !almostEqual(pos.MarginUsed, 1000) {
		t.Errorf("expected margin 1000, got %f", pos.MarginUsed)
	}
	if !almostEqual(pos.Amount, 30) {
		t.Errorf("expected 30 coins ($3000 notional at $100), got %f", pos.Amount)
	}
	// entry*(1 - 1/3 + 0.01)
	if !almostEqual(pos.LiquidationPrice, 100*(1-1.0/3+0.01)) {
		t.Errorf("unexpected liquidation price %f", pos.LiquidationPrice)
	}
	if !almostEqual(p.Cash, 9000) {
		t.Errorf("expected cash 9000, got %f", p.Cash)
	}

	feed.prices["ETHUSDT"] = 110
	trade, err = e.Execute(ctx, types.ExecRequest{
		Action: types.CloseLong, Fraction: 1, Symbol: "ETHUSDT", Market: types.Futures,
	})
	if err != nil || trade == nil {
		t.Fatalf("close failed: trade=%v err=%v", trade, err)
	}
	if trade.PnL == nil || !almostEqual(*trade.PnL, 300) {
		t.Errorf("expected PnL 300 (10 x 30), got %v", trade.PnL)
	}

	p = e.Snapshot()
	if !almostEqual(p.Cash, 10300) {
		t.Errorf("expected cash 10300 (margin back plus pnl), got %f", p.Cash)
	}
	if len(p.FuturesPositions) != 0 {
		t.Errorf("expected empty futures bucket, got %d", len(p.FuturesPositions))
	}
}

func TestLeverageClamped(t *testing.T) {
	e, _ := newTestEngine(t, 10000, map[string]float64{"ETHUSDT": 100})

	trade, err := e.Execute(context.Background(), types.ExecRequest{
		Action: types.OpenShort, Fraction: 0.1, Symbol: "ETHUSDT",
		Market: types.Futures, Leverage: 10,
	})
	if err != nil || trade == nil {
		t.Fatalf("open failed: trade=%v err=%v", trade, err)
	}
	if pos := e.Snapshot().FuturesPositions[0]; pos.Leverage != 3 {
		t.Errorf("expected leverage clamped to 3, got %f", pos.Leverage)
	}
}

func TestFlipClosesOppositeFirst(t *testing.T) {
	e, _ := newTestEngine(t, 10000, map[string]float64{"ETHUSDT": 100})
	ctx := context.Background()

	if _, err := e.Execute(ctx, types.ExecRequest{
		Action: types.OpenLong, Fraction: 0.1, Symbol: "ETHUSDT", Market: types.Futures, Leverage: 2,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(ctx, types.ExecRequest{
		Action: types.OpenShort, Fraction: 0.1, Symbol: "ETHUSDT", Market: types.Futures, Leverage: 2,
	}); err != nil {
		t.Fatal(err)
	}

	p := e.Snapshot()
	if len(p.FuturesPositions) != 1 {
		t.Fatalf("expected exactly one futures position after flip, got %d", len(p.FuturesPositions))
	}
	if p.FuturesPositions[0].Side != types.Short {
		t.Errorf("expected SHORT after flip, got %s", p.FuturesPositions[0].Side)
	}
	// Two opens plus the auto-flip close.
	if len(p.TradeHistory) != 3 {
		t.Errorf("expected 3 trades (open, flip close, open), got %d", len(p.TradeHistory))
	}
	if p.TradeHistory[1].Reason != "Auto-Flip" {
		t.Errorf("expected middle trade to be the flip close, got %q", p.TradeHistory[1].Reason)
	}
}

func TestScaleInKeepsLiquidationPrice(t *testing.T) {
	e, feed := newTestEngine(t, 10000, map[string]float64{"ETHUSDT": 100})
	ctx := context.Background()

	if _, err := e.Execute(ctx, types.ExecRequest{
		Action: types.OpenLong, Fraction: 0.1, Symbol: "ETHUSDT", Market: types.Futures, Leverage: 2,
	}); err != nil {
		t.Fatal(err)
	}
	original := e.Snapshot().FuturesPositions[0].LiquidationPrice

	feed.prices["ETHUSDT"] = 120
	if _, err := e.Execute(ctx, types.ExecRequest{
		Action: types.OpenLong, Fraction: 0.1, Symbol: "ETHUSDT", Market: types.Futures, Leverage: 2,
	}); err != nil {
		t.Fatal(err)
	}

	pos := e.Snapshot().FuturesPositions[0]
	if pos.LiquidationPrice != original {
		t.Errorf("liquidation price moved on scale-in: %f -> %f", original, pos.LiquidationPrice)
	}
	if pos.EntryPrice <= 100 || pos.EntryPrice >= 120 {
		t.Errorf("expected weighted entry between 100 and 120, got %f", pos.EntryPrice)
	}
}

func TestSpotDustCleanup(t *testing.T) {
	e, _ := newTestEngine(t, 10000, map[string]float64{"BTCUSDT": 100})
	ctx := context.Background()

	if _, err := e.Execute(ctx, types.ExecRequest{
		Action: types.Buy, Fraction: 0.01, Symbol: "BTCUSDT", Market: types.Spot,
	}); err != nil {
		t.Fatal(err)
	}

	// 99.9% leaves ~$0.10 behind, under the dust threshold: the whole
	// position must go.
	trade, err := e.Execute(ctx, types.ExecRequest{
		Action: types.Sell, Fraction: 0.999, Symbol: "BTCUSDT", Market: types.Spot,
	})
	if err != nil || trade == nil {
		t.Fatalf("sell failed: trade=%v err=%v", trade, err)
	}
	if !almostEqual(trade.Amount, 1) {
		t.Errorf("expected full 1.0 coins sold, got %f", trade.Amount)
	}
	if got := len(e.Snapshot().SpotPositions); got != 0 {
		t.Errorf("expected dust position removed, %d left", got)
	}
}

func TestManualTradeUsesActiveSymbol(t *testing.T) {
	e, _ := newTestEngine(t, 10000, map[string]float64{"BTCUSDT": 100})

	trade, err := e.ManualTrade(context.Background(), types.Buy, 0.25)
	if err != nil || trade == nil {
		t.Fatalf("manual trade failed: trade=%v err=%v", trade, err)
	}
	if trade.Symbol != "BTCUSDT" {
		t.Errorf("expected active symbol BTCUSDT, got %s", trade.Symbol)
	}
	if trade.Market != types.Spot {
		t.Errorf("manual trades must hit the spot bucket, got %s", trade.Market)
	}
}

func TestManualTradeRejectsNonSpotActions(t *testing.T) {
	e, _ := newTestEngine(t, 10000, map[string]float64{"BTCUSDT": 100})

	trade, err := e.ManualTrade(context.Background(), types.OpenLong, 0.5)
	if err != nil || trade != nil {
		t.Errorf("expected OPEN_LONG rejected silently, got trade=%v err=%v", trade, err)
	}
}

func TestLiquidateAllClosesEverything(t *testing.T) {
	e, _ := newTestEngine(t, 10000, map[string]float64{"BTCUSDT": 100, "ETHUSDT": 50})
	ctx := context.Background()

	if _, err := e.Execute(ctx, types.ExecRequest{
		Action: types.Buy, Fraction: 0.1, Symbol: "BTCUSDT", Market: types.Spot,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(ctx, types.ExecRequest{
		Action: types.OpenShort, Fraction: 0.1, Symbol: "ETHUSDT", Market: types.Futures, Leverage: 2,
	}); err != nil {
		t.Fatal(err)
	}

	closed := e.LiquidateAll(ctx, "Emergency Stop")
	if closed != 2 {
		t.Errorf("expected 2 closes, got %d", closed)
	}

	p := e.Snapshot()
	if len(p.SpotPositions)+len(p.FuturesPositions) != 0 {
		t.Errorf("positions left open after emergency stop: %d spot, %d futures",
			len(p.SpotPositions), len(p.FuturesPositions))
	}
	// No price moved, so a full round trip restores cash.
	if !almostEqual(p.Cash, 10000) {
		t.Errorf("expected cash restored to 10000, got %f", p.Cash)
	}
}

func TestOnTickForcedCloseStopLoss(t *testing.T) {
	e, feed := newTestEngine(t, 10000, map[string]float64{"ETHUSDT": 100})
	ctx := context.Background()

	if _, err := e.Execute(ctx, types.ExecRequest{
		Action: types.OpenLong, Fraction: 0.1, Symbol: "ETHUSDT",
		Market: types.Futures, Leverage: 2, StopLoss: 95,
	}); err != nil {
		t.Fatal(err)
	}

	feed.prices["ETHUSDT"] = 94
	e.OnTick(ctx, types.Tick{
		Symbol: "ETHUSDT",
		Candle: types.Candle{Symbol: "ETHUSDT", Close: 94},
		Closed: false,
	})

	p := e.Snapshot()
	if len(p.FuturesPositions) != 0 {
		t.Fatalf("expected stop-loss to close the position, %d left", len(p.FuturesPositions))
	}
	last := p.TradeHistory[len(p.TradeHistory)-1]
	if last.Reason != reasonFuturesSL {
		t.Errorf("expected reason %q, got %q", reasonFuturesSL, last.Reason)
	}
}

func TestOnTickLiquidatesUnderwaterLong(t *testing.T) {
	e, feed := newTestEngine(t, 10000, map[string]float64{"ETHUSDT": 1000})
	ctx := context.Background()

	if _, err := e.Execute(ctx, types.ExecRequest{
		Action: types.OpenLong, Fraction: 0.1, Symbol: "ETHUSDT",
		Market: types.Futures, Leverage: 3, StopLoss: 700, TakeProfit: 1500,
	}); err != nil {
		t.Fatal(err)
	}
	pos := e.Snapshot().FuturesPositions[0]
	if !almostEqual(pos.LiquidationPrice, 1000*(1-1.0/3+0.01)) {
		t.Fatalf("unexpected liquidation price %f", pos.LiquidationPrice)
	}

	// 650 is through both the stop and the liquidation level; the
	// liquidation reason must win.
	feed.prices["ETHUSDT"] = 650
	e.OnTick(ctx, types.Tick{
		Symbol: "ETHUSDT",
		Candle: types.Candle{Symbol: "ETHUSDT", Close: 650},
		Closed: false,
	})

	p := e.Snapshot()
	if len(p.FuturesPositions) != 0 {
		t.Fatalf("expected position liquidated, %d left", len(p.FuturesPositions))
	}
	last := p.TradeHistory[len(p.TradeHistory)-1]
	if last.Reason != reasonLiquidation {
		t.Errorf("expected reason %q, got %q", reasonLiquidation, last.Reason)
	}
}

func TestDisarmDiscardsPendingDecision(t *testing.T) {
	e, _ := newTestEngine(t, 10000, map[string]float64{"BTCUSDT": 100})
	e.Arm()
	e.Disarm()

	e.executeDecision(context.Background(), "BTCUSDT", types.Decision{
		Action: types.Buy, Market: types.Spot, Fraction: 0.5, Confidence: 0.9,
	})

	if got := len(e.Snapshot().TradeHistory); got != 0 {
		t.Errorf("disarmed engine executed a trade, history=%d", got)
	}
}

func TestFallbackSymbolRanking(t *testing.T) {
	snaps := []types.SymbolSnapshot{
		{Symbol: "QUIET", Stats: types.TickerStats{ChangePct24h: 0.5, QuoteVolume: 1e9}},
		{Symbol: "MOVER", Stats: types.TickerStats{ChangePct24h: -8, QuoteVolume: 1e8}},
		{Symbol: "THIN", Stats: types.TickerStats{ChangePct24h: 12, QuoteVolume: 100}},
	}
	if got := fallbackSymbol(snaps); got != "MOVER" {
		t.Errorf("expected volume-weighted mover, got %s", got)
	}
}
