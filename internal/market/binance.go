package market

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

const (
	klineInterval  = "1m"
	backfillLimit  = maxCandlesPerSymbol
	tickChanBuffer = 1024
)

// binanceFeed streams kline updates over a multiplexed websocket,
// backfills history over REST, and republishes everything as Ticks.
// On stream failure it reconnects with exponential backoff without
// losing already-buffered history.
type binanceFeed struct {
	client  *binance.Client
	cache   *candleCache
	ticks   chan types.Tick
	symbols []string

	mu      sync.Mutex
	stopped chan struct{}
	stopWs  chan struct{}
	running bool
}

var _ interfaces.Feed = (*binanceFeed)(nil)

// NewBinanceFeed builds a live feed. Credentials are only needed for
// authenticated endpoints; market data works without them.
func NewBinanceFeed(apiKey, secretKey string) interfaces.Feed {
	return &binanceFeed{
		client:  binance.NewClient(apiKey, secretKey),
		cache:   newCandleCache(maxCandlesPerSymbol),
		ticks:   make(chan types.Tick, tickChanBuffer),
		stopped: make(chan struct{}),
	}
}

func (f *binanceFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}
	f.running = true
	logger.Info(ctx, "Market data feed started", "source", "binance")
	return nil
}

func (f *binanceFeed) Stop(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return
	}
	f.running = false
	close(f.stopped)
	if f.stopWs != nil {
		close(f.stopWs)
		f.stopWs = nil
	}
	logger.Info(ctx, "Market data feed stopped")
}

func (f *binanceFeed) Ticks() <-chan types.Tick { return f.ticks }

func (f *binanceFeed) Subscribe(ctx context.Context, symbols []string) error {
	f.mu.Lock()
	f.symbols = symbols
	f.mu.Unlock()

	for _, s := range symbols {
		f.cache.initBuffer(s)
		if err := f.backfill(ctx, s); err != nil {
			// Non-fatal: the stream will fill the buffer over time.
			logger.Warn(ctx, "Candle backfill failed", "symbol", s, "error", err)
		}
	}

	go f.streamLoop(ctx, symbols)
	logger.Info(ctx, "Subscribed to symbols", "symbols", symbols, "count", len(symbols))
	return nil
}

func (f *binanceFeed) backfill(ctx context.Context, symbol string) error {
	klines, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(klineInterval).
		Limit(backfillLimit).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("backfill %s: %w", symbol, err)
	}
	for _, k := range klines {
		f.cache.upsert(symbol, types.Candle{
			Symbol:   symbol,
			OpenTime: k.OpenTime,
			Open:     parseFloat(k.Open),
			High:     parseFloat(k.High),
			Low:      parseFloat(k.Low),
			Close:    parseFloat(k.Close),
			Volume:   parseFloat(k.Volume),
		})
	}
	return nil
}

// streamLoop keeps the multiplexed kline stream alive, reconnecting
// with exponential backoff when the websocket drops.
func (f *binanceFeed) streamLoop(ctx context.Context, symbols []string) {
	pairs := make(map[string]string, len(symbols))
	for _, s := range symbols {
		pairs[s] = klineInterval
	}

	bo := &backoff.Backoff{
		Min:    time.Second,
		Max:    time.Minute,
		Factor: 2,
		Jitter: true,
	}

	for {
		select {
		case <-f.stopped:
			return
		case <-ctx.Done():
			return
		default:
		}

		doneC, stopC, err := binance.WsCombinedKlineServe(pairs, f.onKline, func(err error) {
			logger.ErrorWithErr(ctx, "Websocket stream error", err)
		})
		if err != nil {
			d := bo.Duration()
			logger.Warn(ctx, "Websocket connect failed, retrying", "error", err, "retry_in", d)
			select {
			case <-time.After(d):
				continue
			case <-f.stopped:
				return
			case <-ctx.Done():
				return
			}
		}

		bo.Reset()
		f.mu.Lock()
		f.stopWs = stopC
		f.mu.Unlock()

		select {
		case <-doneC:
			logger.Warn(ctx, "Websocket stream closed, reconnecting")
		case <-f.stopped:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (f *binanceFeed) onKline(event *binance.WsKlineEvent) {
	k := event.Kline
	c := types.Candle{
		Symbol:   event.Symbol,
		OpenTime: k.StartTime,
		Open:     parseFloat(k.Open),
		High:     parseFloat(k.High),
		Low:      parseFloat(k.Low),
		Close:    parseFloat(k.Close),
		Volume:   parseFloat(k.Volume),
	}
	if !f.cache.upsert(event.Symbol, c) {
		return
	}
	tick := types.Tick{Symbol: event.Symbol, Candle: c, Closed: k.IsFinal}
	select {
	case f.ticks <- tick:
	case <-f.stopped:
	}
}

func (f *binanceFeed) RecentCandles(symbol string, n int) ([]types.Candle, error) {
	return f.cache.recent(symbol, n)
}

func (f *binanceFeed) LastPrice(symbol string) (float64, bool) {
	return f.cache.lastPrice(symbol)
}

func (f *binanceFeed) Stats24h(ctx context.Context) ([]types.TickerStats, error) {
	stats, err := f.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("24h stats: %w", err)
	}

	f.mu.Lock()
	watched := make(map[string]bool, len(f.symbols))
	for _, s := range f.symbols {
		watched[s] = true
	}
	f.mu.Unlock()

	out := make([]types.TickerStats, 0, len(watched))
	for _, s := range stats {
		if !watched[s.Symbol] {
			continue
		}
		out = append(out, types.TickerStats{
			Symbol:       s.Symbol,
			LastPrice:    parseFloat(s.LastPrice),
			ChangePct24h: parseFloat(s.PriceChangePercent),
			QuoteVolume:  parseFloat(s.QuoteVolume),
		})
	}
	return out, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
