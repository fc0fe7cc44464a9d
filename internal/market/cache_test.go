package market

import (
	"testing"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

func candleAt(openTime int64, close float64) types.Candle {
	return types.Candle{Symbol: "BTCUSDT", OpenTime: openTime, Close: close}
}

func TestUpsertReplaceInPlace(t *testing.T) {
	cc := newCandleCache(10)
	cc.initBuffer("BTCUSDT")

	if !cc.upsert("BTCUSDT", candleAt(1000, 100)) {
		t.Fatal("first upsert rejected")
	}
	// Same open time: the in-progress candle is replaced, not appended.
	if !cc.upsert("BTCUSDT", candleAt(1000, 105)) {
		t.Fatal("in-place replace rejected")
	}

	got, err := cc.recent("BTCUSDT", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(got))
	}
	if got[0].Close != 105 {
		t.Errorf("expected replaced close 105, got %f", got[0].Close)
	}
}

func TestUpsertDropsStale(t *testing.T) {
	cc := newCandleCache(10)
	cc.initBuffer("BTCUSDT")
	cc.upsert("BTCUSDT", candleAt(2000, 100))

	if cc.upsert("BTCUSDT", candleAt(1000, 90)) {
		t.Error("stale candle accepted")
	}
	if price, _ := cc.lastPrice("BTCUSDT"); price != 100 {
		t.Errorf("stale candle mutated state, price=%f", price)
	}
}

func TestUpsertEvictsOldestAtCap(t *testing.T) {
	cc := newCandleCache(3)
	cc.initBuffer("BTCUSDT")
	for i := int64(0); i < 5; i++ {
		cc.upsert("BTCUSDT", candleAt(i*1000, float64(i)))
	}

	got, err := cc.recent("BTCUSDT", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected cap 3, got %d", len(got))
	}
	if got[0].OpenTime != 2000 || got[2].OpenTime != 4000 {
		t.Errorf("expected oldest evicted, window [2000..4000], got [%d..%d]",
			got[0].OpenTime, got[2].OpenTime)
	}
}

func TestUpsertUnknownSymbolRejected(t *testing.T) {
	cc := newCandleCache(10)
	if cc.upsert("UNKNOWN", candleAt(1000, 1)) {
		t.Error("upsert accepted for a symbol never subscribed")
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	cc := newCandleCache(10)
	cc.initBuffer("BTCUSDT")
	cc.upsert("BTCUSDT", candleAt(1000, 100))

	got, _ := cc.recent("BTCUSDT", 0)
	got[0].Close = 1

	if price, _ := cc.lastPrice("BTCUSDT"); price != 100 {
		t.Errorf("recent() leaked internal storage, price=%f", price)
	}
}

func TestRecentTail(t *testing.T) {
	cc := newCandleCache(10)
	cc.initBuffer("BTCUSDT")
	for i := int64(0); i < 6; i++ {
		cc.upsert("BTCUSDT", candleAt(i*1000, float64(i)))
	}

	got, err := cc.recent("BTCUSDT", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].OpenTime != 4000 || got[1].OpenTime != 5000 {
		t.Errorf("expected the 2 newest candles, got %+v", got)
	}
}

func TestLastPriceEmpty(t *testing.T) {
	cc := newCandleCache(10)
	cc.initBuffer("BTCUSDT")
	if _, ok := cc.lastPrice("BTCUSDT"); ok {
		t.Error("lastPrice reported a price for an empty buffer")
	}
	if _, err := cc.recent("BTCUSDT", 5); err == nil {
		t.Error("recent succeeded on an empty buffer")
	}
}
