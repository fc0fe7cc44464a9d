package market

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// mockFeed generates deterministic sine-wave candles for dry-run mode
// and tests. Each symbol gets its own base price and phase so buckets
// do not move in lockstep.
type mockFeed struct {
	cache    *candleCache
	ticks    chan types.Tick
	interval time.Duration

	mu      sync.Mutex
	symbols []string
	step    int
	stopped chan struct{}
	running bool
}

var _ interfaces.Feed = (*mockFeed)(nil)

// NewMockFeed builds a synthetic feed emitting one closed candle per
// interval.
func NewMockFeed(interval time.Duration) interfaces.Feed {
	if interval <= 0 {
		interval = time.Second
	}
	return &mockFeed{
		cache:    newCandleCache(maxCandlesPerSymbol),
		ticks:    make(chan types.Tick, tickChanBuffer),
		interval: interval,
		stopped:  make(chan struct{}),
	}
}

func (f *mockFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}
	f.running = true
	logger.Info(ctx, "Market data feed started", "source", "mock")
	return nil
}

func (f *mockFeed) Stop(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return
	}
	f.running = false
	close(f.stopped)
}

func (f *mockFeed) Ticks() <-chan types.Tick { return f.ticks }

func (f *mockFeed) Subscribe(ctx context.Context, symbols []string) error {
	f.mu.Lock()
	f.symbols = symbols
	f.mu.Unlock()

	for _, s := range symbols {
		f.cache.initBuffer(s)
	}
	go f.generate(ctx)
	return nil
}

func (f *mockFeed) generate(ctx context.Context) {
	t := time.NewTicker(f.interval)
	defer t.Stop()
	for {
		select {
		case <-f.stopped:
			return
		case <-ctx.Done():
			return
		case now := <-t.C:
			f.mu.Lock()
			f.step++
			step := f.step
			symbols := f.symbols
			f.mu.Unlock()

			for i, s := range symbols {
				base := 100.0 * float64(i+1)
				phase := float64(step) / 20.0
				price := base * (1 + 0.02*math.Sin(phase+float64(i)))
				c := types.Candle{
					Symbol:   s,
					OpenTime: now.UnixMilli() - now.UnixMilli()%60000,
					Open:     price * 0.999,
					High:     price * 1.001,
					Low:      price * 0.998,
					Close:    price,
					Volume:   1000 + 50*float64(step%10),
				}
				if !f.cache.upsert(s, c) {
					continue
				}
				select {
				case f.ticks <- types.Tick{Symbol: s, Candle: c, Closed: true}:
				case <-f.stopped:
					return
				}
			}
		}
	}
}

func (f *mockFeed) RecentCandles(symbol string, n int) ([]types.Candle, error) {
	return f.cache.recent(symbol, n)
}

func (f *mockFeed) LastPrice(symbol string) (float64, bool) {
	return f.cache.lastPrice(symbol)
}

func (f *mockFeed) Stats24h(ctx context.Context) ([]types.TickerStats, error) {
	f.mu.Lock()
	symbols := f.symbols
	f.mu.Unlock()

	out := make([]types.TickerStats, 0, len(symbols))
	for _, s := range symbols {
		price, ok := f.cache.lastPrice(s)
		if !ok {
			continue
		}
		out = append(out, types.TickerStats{
			Symbol:       s,
			LastPrice:    price,
			ChangePct24h: 1.5,
			QuoteVolume:  1_000_000,
		})
	}
	return out, nil
}
