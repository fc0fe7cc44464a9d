// Package ledger is the single source of truth for positions, balance
// and equity. Nothing outside this package mutates position numeric
// fields; the engine serializes access behind its own mutex.
package ledger

import (
	"time"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

const (
	equityCurveCap       = 1000
	equitySampleInterval = 60 * time.Second
)

// Ledger owns one portfolio.
type Ledger struct {
	p *types.Portfolio
}

// New creates a ledger around a fresh portfolio with the given budget.
func New(initialCash float64) *Ledger {
	now := time.Now().UTC()
	return &Ledger{p: &types.Portfolio{
		Cash:        initialCash,
		Equity:      initialCash,
		LastUpdated: now,
	}}
}

// FromPortfolio wraps a loaded portfolio.
func FromPortfolio(p *types.Portfolio) *Ledger {
	return &Ledger{p: p}
}

// Portfolio exposes the live aggregate. Callers must hold the engine
// mutex.
func (l *Ledger) Portfolio() *types.Portfolio { return l.p }

// Recompute refreshes every position on symbol for the given price,
// ratchets high-water marks and trailing triggers, and refreshes
// equity. Idempotent for a given price: a second call with the same
// input leaves the state unchanged.
func (l *Ledger) Recompute(symbol string, price float64) {
	for _, pos := range l.p.SpotPositions {
		if pos.Symbol != symbol {
			continue
		}
		pos.CurrentPrice = price
		pos.UnrealizedPnL = pos.Amount * (price - pos.EntryPrice)
		costBasis := pos.Amount * pos.EntryPrice
		if costBasis != 0 {
			pos.PnLPct = pos.UnrealizedPnL / costBasis * 100
		} else {
			pos.PnLPct = 0
		}
		ratchet(pos, price)
	}

	for _, pos := range l.p.FuturesPositions {
		if pos.Symbol != symbol {
			continue
		}
		pos.CurrentPrice = price
		pos.UnrealizedPnL = (price - pos.EntryPrice) * pos.Amount * pos.Direction()
		if pos.MarginUsed != 0 {
			pos.PnLPct = pos.UnrealizedPnL / pos.MarginUsed * 100
		} else {
			pos.PnLPct = 0
		}
		ratchet(pos, price)
	}

	l.RecomputeEquity()
	l.SampleEquity(time.Now().UTC(), false)
}

// ratchet moves the high-water mark in the favorable direction only
// and tightens the trailing trigger derived from it. The trigger never
// loosens: higher only for LONG, lower only for SHORT.
func ratchet(pos *types.Position, price float64) {
	if pos.Side == types.Short {
		if pos.HighWaterMark == 0 || price < pos.HighWaterMark {
			pos.HighWaterMark = price
		}
		if pos.TrailingStopPct > 0 {
			cand := pos.HighWaterMark * (1 + pos.TrailingStopPct/100)
			if pos.TrailingStopTrigger == 0 || cand < pos.TrailingStopTrigger {
				pos.TrailingStopTrigger = cand
			}
		}
		return
	}

	if price > pos.HighWaterMark {
		pos.HighWaterMark = price
	}
	if pos.TrailingStopPct > 0 {
		cand := pos.HighWaterMark * (1 - pos.TrailingStopPct/100)
		if cand > pos.TrailingStopTrigger {
			pos.TrailingStopTrigger = cand
		}
	}
}

// RecomputeEquity enforces the identity
// equity == cash + Σ unrealizedPnL across both buckets.
func (l *Ledger) RecomputeEquity() {
	eq := l.p.Cash
	for _, pos := range l.p.SpotPositions {
		eq += pos.UnrealizedPnL
	}
	for _, pos := range l.p.FuturesPositions {
		eq += pos.UnrealizedPnL
	}
	l.p.Equity = eq
	l.p.LastUpdated = time.Now().UTC()
}

// SampleEquity appends to the bounded equity curve. Unforced samples
// are rate-limited to one per minute; the cap evicts oldest first.
func (l *Ledger) SampleEquity(now time.Time, force bool) {
	curve := l.p.EquityCurve
	if !force && len(curve) > 0 {
		if now.Sub(curve[len(curve)-1].Time) < equitySampleInterval {
			return
		}
	}
	curve = append(curve, types.EquityPoint{Time: now, Equity: l.p.Equity})
	if len(curve) > equityCurveCap {
		curve = curve[len(curve)-equityCurveCap:]
	}
	l.p.EquityCurve = curve
}

// FindSpot returns the spot position for symbol, nil if none.
func (l *Ledger) FindSpot(symbol string) *types.Position {
	for _, pos := range l.p.SpotPositions {
		if pos.Symbol == symbol {
			return pos
		}
	}
	return nil
}

// FindFutures returns the futures position for symbol, nil if none.
func (l *Ledger) FindFutures(symbol string) *types.Position {
	for _, pos := range l.p.FuturesPositions {
		if pos.Symbol == symbol {
			return pos
		}
	}
	return nil
}

// AddSpot appends a new spot position.
func (l *Ledger) AddSpot(pos *types.Position) {
	l.p.SpotPositions = append(l.p.SpotPositions, pos)
}

// AddFutures appends a new futures position.
func (l *Ledger) AddFutures(pos *types.Position) {
	l.p.FuturesPositions = append(l.p.FuturesPositions, pos)
}

// RemoveSpot deletes a spot position by ID.
func (l *Ledger) RemoveSpot(id string) {
	l.p.SpotPositions = removeByID(l.p.SpotPositions, id)
}

// RemoveFutures deletes a futures position by ID.
func (l *Ledger) RemoveFutures(id string) {
	l.p.FuturesPositions = removeByID(l.p.FuturesPositions, id)
}

func removeByID(positions []*types.Position, id string) []*types.Position {
	out := positions[:0]
	for _, pos := range positions {
		if pos.ID != id {
			out = append(out, pos)
		}
	}
	return out
}

// AppendTrade records an executed order. Trade history is append-only.
func (l *Ledger) AppendTrade(t types.Trade) {
	l.p.TradeHistory = append(l.p.TradeHistory, t)
}

// Snapshot returns a deep copy safe for concurrent readers.
func (l *Ledger) Snapshot() types.Portfolio {
	cp := *l.p
	cp.SpotPositions = copyPositions(l.p.SpotPositions)
	cp.FuturesPositions = copyPositions(l.p.FuturesPositions)
	cp.TradeHistory = append([]types.Trade(nil), l.p.TradeHistory...)
	cp.EquityCurve = append([]types.EquityPoint(nil), l.p.EquityCurve...)
	if l.p.BreakerTrippedAt != nil {
		t := *l.p.BreakerTrippedAt
		cp.BreakerTrippedAt = &t
	}
	return cp
}

func copyPositions(src []*types.Position) []*types.Position {
	out := make([]*types.Position, len(src))
	for i, pos := range src {
		cp := *pos
		out[i] = &cp
	}
	return out
}
