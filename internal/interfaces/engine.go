package interfaces

import (
	"context"
	"time"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

// Engine is the single owner of ledger state. All mutations are
// serialized behind it.
type Engine interface {
	// OnTick processes one market data update for its symbol:
	// recompute, trigger scan, and at most one forced close.
	OnTick(ctx context.Context, tick types.Tick)

	// Execute turns an intent into ledger mutations and a recorded
	// trade. Expected rejections (no price yet, below minimum
	// notional, insufficient funds) return (nil, nil).
	Execute(ctx context.Context, req types.ExecRequest) (*types.Trade, error)

	// ManualTrade bypasses the decision provider and the circuit
	// breaker but keeps every ledger invariant.
	ManualTrade(ctx context.Context, side types.Action, fraction float64) (*types.Trade, error)

	// LiquidateAll force-closes every open position, returning the
	// number closed.
	LiquidateAll(ctx context.Context, reason string) int

	// RunDecisionCycle runs at most one decision provider round trip.
	// No-op when disarmed, when a cycle is already in flight, or when
	// the pulse cooldown has not elapsed.
	RunDecisionCycle(ctx context.Context)

	Arm()
	Disarm()
	Armed() bool

	// BreakerRemaining reports the active cooldown, zero when trading
	// is allowed.
	BreakerRemaining() time.Duration

	// Snapshot returns a deep copy of the portfolio for readers.
	Snapshot() types.Portfolio
}
