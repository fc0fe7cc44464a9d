// Package indicators assembles the full technical snapshot for a
// symbol from its candle history. The low-level primitives in ta
// return NaN on insufficient history; this layer substitutes neutral
// defaults so a short buffer degrades gracefully instead of erroring.
package indicators

import (
	"math"

	"github.com/ricky22407-lang/bitrader/internal/ta"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// Params are the lookbacks for the snapshot.
type Params struct {
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	BBWindow   int
	BBStdDev   float64
	ATRPeriod  int
}

// DefaultParams mirror the common charting defaults.
func DefaultParams() Params {
	return Params{
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		BBWindow:   20,
		BBStdDev:   2.0,
		ATRPeriod:  14,
	}
}

// Compute builds the snapshot. Defaults on short history: RSI 50,
// MACD zeroed, bands and moving averages pinned to the last close,
// ATR 0, no patterns.
func Compute(candles []types.Candle, p Params) types.Indicators {
	var out types.Indicators
	out.RSI = 50
	if len(candles) == 0 {
		return out
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	last := closes[len(closes)-1]

	out.RSI = orDefault(ta.RSI(closes, p.RSIPeriod), 50)

	line, sig, hist := ta.MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	out.MACD = types.MACDValue{
		Line:      orDefault(line, 0),
		Signal:    orDefault(sig, 0),
		Histogram: orDefault(hist, 0),
	}

	mid, up, low := ta.Bollinger(closes, p.BBWindow, p.BBStdDev)
	out.Bollinger = types.BollingerBands{
		Upper:  orDefault(up, last),
		Middle: orDefault(mid, last),
		Lower:  orDefault(low, last),
	}

	out.SMA20 = orDefault(ta.SMA(closes, 20), last)
	out.EMA50 = orDefault(ta.EMA(closes, 50), last)
	out.EMA200 = orDefault(ta.EMA(closes, 200), last)
	out.ATR = orDefault(ta.ATR(highs, lows, closes, p.ATRPeriod), 0)
	out.Patterns = DetectPatterns(candles)
	return out
}

func orDefault(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}
