package engine

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/tradelog"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

const (
	minSpotNotional  = 10.0 // minimum spend for a spot buy
	minFuturesMargin = 10.0 // minimum margin committed to a futures open
	dustNotional     = 5.0  // below this the remainder is closed out entirely
	maxLeverage      = 3.0
	liqBuffer        = 0.01 // 1% buffer against exact-liquidation noise
)

// executeLocked is the only path that opens, closes or flips a
// position. Callers hold e.mu. Expected rejections — no price yet,
// fraction not positive, below minimum notional, nothing to close —
// return (nil, nil): these are frequent, ordinary conditions in a
// live feed, not errors.
func (e *Engine) executeLocked(ctx context.Context, req types.ExecRequest) (*types.Trade, error) {
	if req.Fraction <= 0 {
		return nil, nil
	}
	price, ok := e.feed.LastPrice(req.Symbol)
	if !ok || price <= 0 {
		logger.Debug(ctx, "Execution skipped, no price yet", "symbol", req.Symbol, "action", req.Action)
		return nil, nil
	}

	if req.Market == "" {
		req.Market = types.Spot
	}
	if req.Market == types.Spot {
		req.Leverage = 1
	} else {
		req.Leverage = clampLeverage(req.Leverage)
	}

	if req.Market == types.Futures {
		switch req.Action {
		case types.Buy:
			req.Action = types.OpenLong
		case types.Sell:
			req.Action = types.OpenShort
		}
		switch req.Action {
		case types.OpenLong, types.OpenShort:
			return e.openFutures(ctx, req, price)
		case types.CloseLong, types.CloseShort:
			return e.closeFutures(ctx, req, price)
		}
		return nil, nil
	}

	if req.Action.BuySide() {
		return e.buySpot(ctx, req, price)
	}
	return e.sellSpot(ctx, req, price)
}

func (e *Engine) buySpot(ctx context.Context, req types.ExecRequest, price float64) (*types.Trade, error) {
	p := e.ledger.Portfolio()
	spend := p.Cash * math.Min(req.Fraction, 1)
	if spend < minSpotNotional {
		logger.Debug(ctx, "Spot buy rejected, below minimum notional",
			"symbol", req.Symbol, "spend", spend, "min", minSpotNotional)
		return nil, nil
	}
	amount := spend / price

	if err := e.routeLive(ctx, req.Symbol, "BUY", types.Spot, amount); err != nil {
		return nil, err
	}

	pos := e.ledger.FindSpot(req.Symbol)
	if pos == nil {
		pos = &types.Position{
			ID:            uuid.NewString(),
			Symbol:        req.Symbol,
			Market:        types.Spot,
			Side:          types.Long,
			Amount:        amount,
			EntryPrice:    price,
			CurrentPrice:  price,
			Leverage:      1,
			HighWaterMark: price,
			OpenedAt:      time.Now().UTC(),
		}
		e.ledger.AddSpot(pos)
	} else {
		// Merge via weighted-average entry price.
		total := pos.Amount*pos.EntryPrice + spend
		pos.Amount += amount
		pos.EntryPrice = total / pos.Amount
	}
	applyRiskSettings(pos, req, price)
	p.Cash -= spend

	trade := e.newTrade(req, "BUY", price, amount, spend, nil)
	e.afterFill(ctx, trade, req.Symbol, price)
	return trade, nil
}

func (e *Engine) sellSpot(ctx context.Context, req types.ExecRequest, price float64) (*types.Trade, error) {
	pos := e.ledger.FindSpot(req.Symbol)
	if pos == nil || pos.Amount <= 0 {
		return nil, nil
	}

	sellAmount := pos.Amount * math.Min(req.Fraction, 1)
	// A sliver below the dust threshold is not worth keeping: close
	// the whole position instead so value never strands in the ledger.
	if (pos.Amount-sellAmount)*price < dustNotional {
		sellAmount = pos.Amount
	}

	if err := e.routeLive(ctx, req.Symbol, "SELL", types.Spot, sellAmount); err != nil {
		return nil, err
	}

	revenue := sellAmount * price
	costBasis := sellAmount * pos.EntryPrice
	pnl := revenue - costBasis

	p := e.ledger.Portfolio()
	p.Cash += revenue
	pos.Amount -= sellAmount
	if pos.Amount <= 0 {
		e.ledger.RemoveSpot(pos.ID)
	}

	trade := e.newTrade(req, "SELL", price, sellAmount, revenue, &pnl)
	e.afterFill(ctx, trade, req.Symbol, price)
	return trade, nil
}

func (e *Engine) openFutures(ctx context.Context, req types.ExecRequest, price float64) (*types.Trade, error) {
	opposite := types.Short
	side := types.Long
	if req.Action == types.OpenShort {
		side = types.Short
		opposite = types.Long
	}

	// Flip semantics: no symbol ever holds both sides. An existing
	// opposite-side position is fully closed before the new open.
	if existing := e.ledger.FindFutures(req.Symbol); existing != nil && existing.Side == opposite {
		closeAction := types.CloseLong
		if opposite == types.Short {
			closeAction = types.CloseShort
		}
		if _, err := e.closeFutures(ctx, types.ExecRequest{
			Action:   closeAction,
			Fraction: 1,
			Symbol:   req.Symbol,
			Reason:   "Auto-Flip",
			Strategy: req.Strategy,
			Market:   types.Futures,
			Leverage: existing.Leverage,
		}, price); err != nil {
			return nil, err
		}
	}

	p := e.ledger.Portfolio()
	margin := p.Cash * math.Min(req.Fraction, 1)
	if margin < minFuturesMargin {
		logger.Debug(ctx, "Futures open rejected, below minimum margin",
			"symbol", req.Symbol, "margin", margin, "min", minFuturesMargin)
		return nil, nil
	}
	notional := margin * req.Leverage
	amount := notional / price

	orderSide := "BUY"
	if side == types.Short {
		orderSide = "SELL"
	}
	if err := e.routeLive(ctx, req.Symbol, orderSide, types.Futures, amount); err != nil {
		return nil, err
	}

	pos := e.ledger.FindFutures(req.Symbol)
	if pos == nil {
		pos = &types.Position{
			ID:               uuid.NewString(),
			Symbol:           req.Symbol,
			Market:           types.Futures,
			Side:             side,
			Amount:           amount,
			EntryPrice:       price,
			CurrentPrice:     price,
			Leverage:         req.Leverage,
			MarginUsed:       margin,
			LiquidationPrice: liquidationPrice(side, price, req.Leverage),
			HighWaterMark:    price,
			OpenedAt:         time.Now().UTC(),
		}
		e.ledger.AddFutures(pos)
	} else {
		// Scale-in on the same side: weighted-average entry, margin
		// summed. The liquidation price stays as set at the original
		// open.
		total := pos.Amount*pos.EntryPrice + amount*price
		pos.Amount += amount
		pos.EntryPrice = total / pos.Amount
		pos.MarginUsed += margin
		pos.Leverage = req.Leverage
	}
	applyRiskSettings(pos, req, price)
	p.Cash -= margin

	trade := e.newTrade(req, orderSide, price, amount, notional, nil)
	e.afterFill(ctx, trade, req.Symbol, price)
	return trade, nil
}

func (e *Engine) closeFutures(ctx context.Context, req types.ExecRequest, price float64) (*types.Trade, error) {
	pos := e.ledger.FindFutures(req.Symbol)
	if pos == nil {
		return nil, nil
	}
	want := types.Long
	if req.Action == types.CloseShort {
		want = types.Short
	}
	if pos.Side != want {
		return nil, nil
	}

	fraction := math.Min(req.Fraction, 1)
	closedAmount := pos.Amount * fraction
	released := pos.MarginUsed * fraction
	// Close the remainder too when the sliver would fall under dust.
	if (pos.Amount-closedAmount)*price < dustNotional {
		closedAmount = pos.Amount
		released = pos.MarginUsed
	}

	orderSide := "SELL"
	if pos.Side == types.Short {
		orderSide = "BUY"
	}
	if err := e.routeLive(ctx, req.Symbol, orderSide, types.Futures, closedAmount); err != nil {
		return nil, err
	}

	pnl := (price - pos.EntryPrice) * closedAmount * pos.Direction()

	p := e.ledger.Portfolio()
	p.Cash += released + pnl
	pos.Amount -= closedAmount
	pos.MarginUsed -= released
	if pos.Amount <= 0 {
		e.ledger.RemoveFutures(pos.ID)
	}

	trade := e.newTrade(req, orderSide, price, closedAmount, closedAmount*price, &pnl)
	e.afterFill(ctx, trade, req.Symbol, price)
	return trade, nil
}

// liquidateAllLocked fully closes every open position through the
// normal execute path. Positions may vanish mid-iteration (auto-flip,
// dust cleanup); each is re-resolved by ID before closing.
func (e *Engine) liquidateAllLocked(ctx context.Context, reason string) int {
	p := e.ledger.Portfolio()

	type target struct {
		id     string
		symbol string
		action types.Action
		market types.MarketType
	}
	targets := make([]target, 0, len(p.FuturesPositions)+len(p.SpotPositions))
	for _, pos := range p.FuturesPositions {
		action := types.CloseLong
		if pos.Side == types.Short {
			action = types.CloseShort
		}
		targets = append(targets, target{pos.ID, pos.Symbol, action, types.Futures})
	}
	for _, pos := range p.SpotPositions {
		targets = append(targets, target{pos.ID, pos.Symbol, types.Sell, types.Spot})
	}

	closed := 0
	for _, t := range targets {
		if !e.positionExists(t.id, t.market) {
			continue
		}
		trade, err := e.executeLocked(ctx, types.ExecRequest{
			Action:   t.action,
			Fraction: 1,
			Symbol:   t.symbol,
			Reason:   reason,
			Strategy: "emergency-stop",
			Market:   t.market,
		})
		if err != nil {
			logger.ErrorWithErr(ctx, "Emergency close failed", err, "symbol", t.symbol)
			continue
		}
		if trade != nil {
			closed++
		}
	}
	return closed
}

func (e *Engine) positionExists(id string, market types.MarketType) bool {
	p := e.ledger.Portfolio()
	bucket := p.SpotPositions
	if market == types.Futures {
		bucket = p.FuturesPositions
	}
	for _, pos := range bucket {
		if pos.ID == id {
			return true
		}
	}
	return false
}

// routeLive sends the order through the exchange collaborator in live
// mode. A failure fails this execute call only.
func (e *Engine) routeLive(ctx context.Context, symbol, side string, market types.MarketType, amount float64) error {
	if e.exchange == nil {
		return nil
	}
	ack, err := e.exchange.PlaceOrder(ctx, types.OrderRequest{
		Symbol: symbol,
		Side:   side,
		Market: market,
		Amount: amount,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Live order failed", err, "symbol", symbol, "side", side)
		e.notify(ctx, types.Event{
			Kind:    types.EventError,
			Symbol:  symbol,
			Message: "live order failed: " + err.Error(),
			Time:    time.Now().UTC(),
		})
		return err
	}
	logger.Debug(ctx, "Live order accepted", "symbol", symbol, "order_id", ack.OrderID, "status", ack.Status)
	return nil
}

// applyRiskSettings overwrites stop settings when the request carries
// them and seeds the trailing trigger from the current price with the
// same formula the recompute ratchet uses.
func applyRiskSettings(pos *types.Position, req types.ExecRequest, price float64) {
	if req.StopLoss > 0 {
		pos.StopLoss = req.StopLoss
	}
	if req.TakeProfit > 0 {
		pos.TakeProfit = req.TakeProfit
	}
	if req.TrailingStopPct > 0 {
		pos.TrailingStopPct = req.TrailingStopPct
		if pos.Side == types.Short {
			pos.TrailingStopTrigger = price * (1 + req.TrailingStopPct/100)
		} else {
			pos.TrailingStopTrigger = price * (1 - req.TrailingStopPct/100)
		}
	}
}

func (e *Engine) newTrade(req types.ExecRequest, side string, price, amount, notional float64, pnl *float64) *types.Trade {
	return &types.Trade{
		ID:        uuid.NewString(),
		Symbol:    req.Symbol,
		Market:    req.Market,
		Side:      side,
		Price:     price,
		Amount:    amount,
		Notional:  notional,
		Leverage:  req.Leverage,
		Timestamp: time.Now().UTC(),
		PnL:       pnl,
		Reason:    req.Reason,
		Strategy:  req.Strategy,
	}
}

// afterFill runs the bookkeeping every successful execution shares:
// refresh the affected symbol, force an equity sample, record the
// trade, journal it, persist, and notify.
func (e *Engine) afterFill(ctx context.Context, trade *types.Trade, symbol string, price float64) {
	e.ledger.Recompute(symbol, price)
	e.ledger.SampleEquity(time.Now().UTC(), true)
	e.ledger.AppendTrade(*trade)

	pnl := 0.0
	if trade.PnL != nil {
		pnl = *trade.PnL
	}
	logger.Trade(ctx, trade.Symbol, trade.Side, trade.Amount, trade.Price, trade.Reason,
		"market", string(trade.Market), "leverage", trade.Leverage, "pnl", pnl)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:   trade.Symbol,
		Market:   string(trade.Market),
		Side:     trade.Side,
		Amount:   trade.Amount,
		Price:    trade.Price,
		PnL:      pnl,
		Reason:   trade.Reason,
		Strategy: trade.Strategy,
		TradeID:  trade.ID,
	})

	kind := types.EventTrade
	if trade.Reason == reasonLiquidation {
		kind = types.EventLiquidation
		logger.Risk(ctx, trade.Symbol, "LIQUIDATION", "pnl", pnl, "price", trade.Price)
	}
	e.notify(ctx, types.Event{
		Kind:    kind,
		Symbol:  trade.Symbol,
		Message: trade.Side + " " + trade.Symbol + " (" + trade.Reason + ")",
		Trade:   trade,
		Time:    trade.Timestamp,
	})

	e.persistAsync()
}

func clampLeverage(lev float64) float64 {
	if lev < 1 {
		return 1
	}
	if lev > maxLeverage {
		return maxLeverage
	}
	return lev
}

// liquidationPrice is the isolated-margin approximation fixed at open:
// a 1/leverage adverse move minus a 1% buffer.
func liquidationPrice(side types.Side, entry, leverage float64) float64 {
	if side == types.Short {
		return entry * (1 + 1/leverage - liqBuffer)
	}
	return entry * (1 - 1/leverage + liqBuffer)
}
