package engine

import (
	"time"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

// circuitBreaker disables new entries after a streak of realized
// losses. It is pure over trade history plus the portfolio's
// trippedAt marker and never alters the history itself.
type circuitBreaker struct {
	lossStreak int
	cooldown   time.Duration
}

func newCircuitBreaker(lossStreak int, cooldown time.Duration) *circuitBreaker {
	if lossStreak <= 0 {
		lossStreak = 3
	}
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &circuitBreaker{lossStreak: lossStreak, cooldown: cooldown}
}

// check returns the remaining cooldown, zero when entries are allowed.
// When inactive it inspects the most recent lossStreak closed trades;
// if every one is a loss it trips, records the trigger time on the
// portfolio, and returns the full cooldown.
func (cb *circuitBreaker) check(p *types.Portfolio, now time.Time) time.Duration {
	if p.BreakerTrippedAt != nil {
		elapsed := now.Sub(*p.BreakerTrippedAt)
		if elapsed < cb.cooldown {
			return cb.cooldown - elapsed
		}
		p.BreakerTrippedAt = nil
	}

	closed := 0
	for i := len(p.TradeHistory) - 1; i >= 0 && closed < cb.lossStreak; i-- {
		t := p.TradeHistory[i]
		if t.PnL == nil {
			continue
		}
		if *t.PnL >= 0 {
			return 0
		}
		closed++
	}
	if closed < cb.lossStreak {
		return 0
	}

	trippedAt := now
	p.BreakerTrippedAt = &trippedAt
	return cb.cooldown
}
