package interfaces

import (
	"context"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

// Feed is the market data stream: per-symbol candle history plus a
// channel of discrete tick events. Implementations must deliver ticks
// for one symbol in arrival order and keep history bounded.
type Feed interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	Subscribe(ctx context.Context, symbols []string) error

	// Ticks is the stream of candle updates. Closed candles are
	// discriminated from in-progress updates via Tick.Closed.
	Ticks() <-chan types.Tick

	// RecentCandles returns up to n most recent candles for symbol,
	// oldest first.
	RecentCandles(symbol string, n int) ([]types.Candle, error)

	// LastPrice returns the most recent close for symbol, false if no
	// tick has arrived yet.
	LastPrice(symbol string) (float64, bool)

	// Stats24h returns rolling 24h stats for the subscribed symbols.
	Stats24h(ctx context.Context) ([]types.TickerStats, error)
}
