package engine

import (
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// Forced-close reasons. Persisted verbatim onto the resulting Trade.
const (
	reasonLiquidation = "LIQUIDATION"
	reasonFuturesSL   = "Futures SL"
	reasonFuturesTP   = "Futures TP"
	reasonSpotSL      = "Spot SL"
	reasonSpotTP      = "Spot TP"
	reasonTrailing    = "Trailing Stop"
)

// closeInstruction is one forced close emitted by the trigger scan.
type closeInstruction struct {
	position *types.Position
	action   types.Action
	reason   string
}

// scanTriggers inspects every open position on symbol after a
// recompute and returns the first breach found, or nil. Per position
// the priority is liquidation, then fixed stop-loss, then take-profit,
// then trailing stop — liquidation pre-empts everything. The scan
// short-circuits on the first hit across the ledger: one forced close
// per tick, the next tick catches any further breaches.
func scanTriggers(p *types.Portfolio, symbol string, price float64) *closeInstruction {
	for _, pos := range p.FuturesPositions {
		if pos.Symbol != symbol {
			continue
		}
		if instr := checkFutures(pos, price); instr != nil {
			return instr
		}
	}
	for _, pos := range p.SpotPositions {
		if pos.Symbol != symbol {
			continue
		}
		if instr := checkSpot(pos, price); instr != nil {
			return instr
		}
	}
	return nil
}

func checkFutures(pos *types.Position, price float64) *closeInstruction {
	long := pos.Side == types.Long
	action := types.CloseShort
	if long {
		action = types.CloseLong
	}

	if pos.LiquidationPrice > 0 {
		if (long && price <= pos.LiquidationPrice) || (!long && price >= pos.LiquidationPrice) {
			return &closeInstruction{position: pos, action: action, reason: reasonLiquidation}
		}
	}
	if pos.StopLoss > 0 {
		if (long && price <= pos.StopLoss) || (!long && price >= pos.StopLoss) {
			return &closeInstruction{position: pos, action: action, reason: reasonFuturesSL}
		}
	}
	if pos.TakeProfit > 0 {
		if (long && price >= pos.TakeProfit) || (!long && price <= pos.TakeProfit) {
			return &closeInstruction{position: pos, action: action, reason: reasonFuturesTP}
		}
	}
	if pos.TrailingStopTrigger > 0 {
		if (long && price <= pos.TrailingStopTrigger) || (!long && price >= pos.TrailingStopTrigger) {
			return &closeInstruction{position: pos, action: action, reason: reasonTrailing}
		}
	}
	return nil
}

// checkSpot covers the always-LONG spot bucket: stop-loss, then
// take-profit, then trailing.
func checkSpot(pos *types.Position, price float64) *closeInstruction {
	if pos.StopLoss > 0 && price <= pos.StopLoss {
		return &closeInstruction{position: pos, action: types.Sell, reason: reasonSpotSL}
	}
	if pos.TakeProfit > 0 && price >= pos.TakeProfit {
		return &closeInstruction{position: pos, action: types.Sell, reason: reasonSpotTP}
	}
	if pos.TrailingStopTrigger > 0 && price <= pos.TrailingStopTrigger {
		return &closeInstruction{position: pos, action: types.Sell, reason: reasonTrailing}
	}
	return nil
}
