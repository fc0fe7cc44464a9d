package market

import (
	"fmt"
	"sync"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

const maxCandlesPerSymbol = 200

// candleCache keeps a bounded, ordered candle history per symbol.
// An incoming candle with the same open time as the newest entry
// replaces it in place (candle in progress); a newer open time
// appends; anything older is ignored.
type candleCache struct {
	mu      sync.RWMutex
	buffers map[string][]types.Candle
	maxSize int
}

func newCandleCache(maxSize int) *candleCache {
	if maxSize <= 0 {
		maxSize = maxCandlesPerSymbol
	}
	return &candleCache{
		buffers: make(map[string][]types.Candle),
		maxSize: maxSize,
	}
}

func (cc *candleCache) initBuffer(symbol string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if _, ok := cc.buffers[symbol]; !ok {
		cc.buffers[symbol] = make([]types.Candle, 0, cc.maxSize)
	}
}

// upsert folds one candle update into the buffer and reports whether
// it was accepted (stale updates are dropped).
func (cc *candleCache) upsert(symbol string, c types.Candle) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	buf, ok := cc.buffers[symbol]
	if !ok {
		return false
	}

	if n := len(buf); n > 0 {
		last := buf[n-1]
		switch {
		case c.OpenTime == last.OpenTime:
			buf[n-1] = c
			cc.buffers[symbol] = buf
			return true
		case c.OpenTime < last.OpenTime:
			return false
		}
	}

	buf = append(buf, c)
	if len(buf) > cc.maxSize {
		buf = buf[1:]
	}
	cc.buffers[symbol] = buf
	return true
}

func (cc *candleCache) recent(symbol string, n int) ([]types.Candle, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	buf, ok := cc.buffers[symbol]
	if !ok {
		return nil, fmt.Errorf("no candle data for symbol %s", symbol)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("no candles available for %s", symbol)
	}

	if len(buf) < n || n <= 0 {
		n = len(buf)
	}
	out := make([]types.Candle, n)
	copy(out, buf[len(buf)-n:])
	return out, nil
}

func (cc *candleCache) lastPrice(symbol string) (float64, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	buf, ok := cc.buffers[symbol]
	if !ok || len(buf) == 0 {
		return 0, false
	}
	return buf[len(buf)-1].Close, true
}
