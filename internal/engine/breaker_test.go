package engine

import (
	"testing"
	"time"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

func pnl(v float64) *float64 { return &v }

func historyOf(pnls ...*float64) []types.Trade {
	out := make([]types.Trade, len(pnls))
	for i, p := range pnls {
		out[i] = types.Trade{ID: "t", PnL: p}
	}
	return out
}

func TestBreakerTripsOnLossStreak(t *testing.T) {
	cb := newCircuitBreaker(3, time.Hour)
	p := &types.Portfolio{TradeHistory: historyOf(pnl(-10), pnl(-5), pnl(-3))}
	now := time.Now().UTC()

	remaining := cb.check(p, now)
	if remaining != time.Hour {
		t.Errorf("expected full cooldown, got %s", remaining)
	}
	if p.BreakerTrippedAt == nil || !p.BreakerTrippedAt.Equal(now) {
		t.Errorf("expected trip time recorded, got %v", p.BreakerTrippedAt)
	}
}

func TestBreakerWinBreaksStreak(t *testing.T) {
	cb := newCircuitBreaker(3, time.Hour)
	p := &types.Portfolio{TradeHistory: historyOf(pnl(1), pnl(-5), pnl(-3))}

	if remaining := cb.check(p, time.Now().UTC()); remaining != 0 {
		t.Errorf("expected no trip with a win in the window, got %s", remaining)
	}
	if p.BreakerTrippedAt != nil {
		t.Error("trip time recorded without a trip")
	}
}

func TestBreakerIgnoresOpeningTrades(t *testing.T) {
	cb := newCircuitBreaker(3, time.Hour)
	// Opens (nil PnL) interleaved between losses still count the
	// closed trades only.
	p := &types.Portfolio{TradeHistory: historyOf(pnl(-10), nil, pnl(-5), nil, pnl(-3))}

	if remaining := cb.check(p, time.Now().UTC()); remaining != time.Hour {
		t.Errorf("expected trip across interleaved opens, got %s", remaining)
	}
}

func TestBreakerTooFewClosedTrades(t *testing.T) {
	cb := newCircuitBreaker(3, time.Hour)
	p := &types.Portfolio{TradeHistory: historyOf(pnl(-10), pnl(-5))}

	if remaining := cb.check(p, time.Now().UTC()); remaining != 0 {
		t.Errorf("two losses must not trip a 3-streak breaker, got %s", remaining)
	}
}

func TestBreakerCooldownCountsDownAndClears(t *testing.T) {
	cb := newCircuitBreaker(3, time.Hour)
	tripped := time.Now().UTC()
	p := &types.Portfolio{
		TradeHistory:     historyOf(pnl(-10), pnl(-5), pnl(-3)),
		BreakerTrippedAt: &tripped,
	}

	remaining := cb.check(p, tripped.Add(20*time.Minute))
	if remaining != 40*time.Minute {
		t.Errorf("expected 40m remaining, got %s", remaining)
	}

	// After the window the marker clears. The same loss streak is
	// still the tail of history, so a fresh check trips again; bury it
	// under a win first.
	p.TradeHistory = append(p.TradeHistory, types.Trade{ID: "w", PnL: pnl(2)})
	if remaining := cb.check(p, tripped.Add(2*time.Hour)); remaining != 0 {
		t.Errorf("expected cooldown elapsed, got %s", remaining)
	}
	if p.BreakerTrippedAt != nil {
		t.Error("expected trip marker cleared after cooldown")
	}
}
