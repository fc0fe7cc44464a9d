package indicators

import (
	"math"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

// DetectPatterns inspects the trailing window (last 5 candles at most)
// independently of the longer lookbacks. Two candles are enough for
// the engulfing checks, one for the single-candle shapes.
func DetectPatterns(candles []types.Candle) types.Patterns {
	var p types.Patterns
	n := len(candles)
	if n == 0 {
		return p
	}
	if n > 5 {
		candles = candles[n-5:]
		n = 5
	}

	cur := candles[n-1]
	body := math.Abs(cur.Close - cur.Open)
	rng := cur.High - cur.Low
	upperWick := cur.High - math.Max(cur.Open, cur.Close)
	lowerWick := math.Min(cur.Open, cur.Close) - cur.Low

	if rng > 0 {
		p.Doji = body <= rng*0.1
		p.Hammer = lowerWick >= body*2 && upperWick <= body && !p.Doji
		p.ShootingStar = upperWick >= body*2 && lowerWick <= body && !p.Doji
	}

	if n >= 2 {
		prev := candles[n-2]
		prevBearish := prev.Close < prev.Open
		prevBullish := prev.Close > prev.Open
		curBullish := cur.Close > cur.Open
		curBearish := cur.Close < cur.Open

		p.BullishEngulfing = prevBearish && curBullish &&
			cur.Open <= prev.Close && cur.Close >= prev.Open
		p.BearishEngulfing = prevBullish && curBearish &&
			cur.Open >= prev.Close && cur.Close <= prev.Open
	}
	return p
}
