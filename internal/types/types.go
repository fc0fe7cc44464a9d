package types

import "time"

// MarketType distinguishes the spot and leveraged futures buckets.
type MarketType string

const (
	Spot    MarketType = "SPOT"
	Futures MarketType = "FUTURES"
)

// Side is the direction of an open position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Action is a trading intent. BUY/OPEN_LONG/CLOSE_SHORT resolve to a
// buy-side fill, SELL/OPEN_SHORT/CLOSE_LONG to a sell-side fill.
type Action string

const (
	Buy        Action = "BUY"
	Sell       Action = "SELL"
	Hold       Action = "HOLD"
	OpenLong   Action = "OPEN_LONG"
	OpenShort  Action = "OPEN_SHORT"
	CloseLong  Action = "CLOSE_LONG"
	CloseShort Action = "CLOSE_SHORT"
)

// IsOpening reports whether the action commits new capital. Opening
// actions are the ones gated by confidence and the circuit breaker.
func (a Action) IsOpening() bool {
	switch a {
	case Buy, OpenLong, OpenShort:
		return true
	}
	return false
}

// BuySide reports whether the action records as a BUY fill.
func (a Action) BuySide() bool {
	switch a {
	case Buy, OpenLong, CloseShort:
		return true
	}
	return false
}

// Candle is one OHLCV entry. The most recent entry for an in-progress
// interval may be replaced in place (same OpenTime) until it closes;
// closed candles are immutable.
type Candle struct {
	Symbol   string  `json:"symbol"`
	OpenTime int64   `json:"openTime"` // unix millis
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Tick is one unit of work off the market data stream: the latest state
// of a candle plus whether that candle just closed.
type Tick struct {
	Symbol string
	Candle Candle
	Closed bool
}

// TickerStats is a 24h rolling summary per symbol, used by the coarse
// market scan and the fallback symbol ranking.
type TickerStats struct {
	Symbol       string  `json:"symbol"`
	LastPrice    float64 `json:"lastPrice"`
	ChangePct24h float64 `json:"changePct24h"`
	QuoteVolume  float64 `json:"quoteVolume"`
}

// Position is a live spot or futures holding. All numeric fields are
// owned by the ledger; nothing else mutates them.
type Position struct {
	ID           string     `json:"id"`
	Symbol       string     `json:"symbol"`
	Market       MarketType `json:"market"`
	Side         Side       `json:"side"`
	Amount       float64    `json:"amount"` // coins
	EntryPrice   float64    `json:"entryPrice"`
	CurrentPrice float64    `json:"currentPrice"`
	Leverage     float64    `json:"leverage"`

	// Futures only. LiquidationPrice is fixed at open (isolated-margin
	// approximation) and never recalculated as PnL accrues.
	MarginUsed       float64 `json:"marginUsed,omitempty"`
	LiquidationPrice float64 `json:"liquidationPrice,omitempty"`

	UnrealizedPnL float64 `json:"unrealizedPnL"`
	PnLPct        float64 `json:"pnlPct"`

	StopLoss            float64 `json:"stopLoss,omitempty"`
	TakeProfit          float64 `json:"takeProfit,omitempty"`
	TrailingStopPct     float64 `json:"trailingStopPct,omitempty"`
	TrailingStopTrigger float64 `json:"trailingStopTrigger,omitempty"`

	// HighWaterMark is the most favorable price seen since entry: max
	// for LONG, min for SHORT. It only moves in the favorable direction.
	HighWaterMark float64 `json:"highWaterMark"`

	OpenedAt time.Time `json:"openedAt"`
}

// Notional is the current dollar exposure of the position.
func (p *Position) Notional() float64 { return p.Amount * p.CurrentPrice }

// Direction is +1 for LONG, -1 for SHORT.
func (p *Position) Direction() float64 {
	if p.Side == Short {
		return -1
	}
	return 1
}

// Trade is the immutable record of one executed order. PnL is set only
// on closing fills.
type Trade struct {
	ID        string     `json:"id"`
	Symbol    string     `json:"symbol"`
	Market    MarketType `json:"market"`
	Side      string     `json:"side"` // BUY or SELL
	Price     float64    `json:"price"`
	Amount    float64    `json:"amount"`
	Notional  float64    `json:"notional"`
	Leverage  float64    `json:"leverage"`
	Timestamp time.Time  `json:"timestamp"`
	PnL       *float64   `json:"pnl,omitempty"`
	Reason    string     `json:"reason"`
	Strategy  string     `json:"strategy"`
}

// EquityPoint is one sample of the bounded equity time series.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Portfolio is the aggregate root owned by the ledger. Equity is always
// recomputed as cash plus unrealized PnL, never trusted stale.
type Portfolio struct {
	Cash             float64       `json:"cash"`
	Equity           float64       `json:"equity"`
	SpotPositions    []*Position   `json:"spotPositions"`
	FuturesPositions []*Position   `json:"futuresPositions"`
	TradeHistory     []Trade       `json:"tradeHistory"`
	EquityCurve      []EquityPoint `json:"equityCurve"`
	LastUpdated      time.Time     `json:"lastUpdated"`
	BreakerTrippedAt *time.Time    `json:"breakerTrippedAt,omitempty"`
}

// Decision is a normalized detailed recommendation from the decision
// provider. Leverage and fraction arrive clamped; unknown actions are
// already mapped to HOLD by the provider layer.
type Decision struct {
	Action          Action     `json:"action"`
	Market          MarketType `json:"marketType"`
	Leverage        float64    `json:"leverage"`
	Confidence      float64    `json:"confidence"`
	Reasoning       string     `json:"reasoning"`
	Fraction        float64    `json:"suggestedAmountFraction"`
	StopLoss        float64    `json:"stopLoss,omitempty"`
	TakeProfit      float64    `json:"takeProfit,omitempty"`
	TrailingStopPct float64    `json:"trailingStopPct,omitempty"`
}

// ScanResult is the coarse market-scan recommendation.
type ScanResult struct {
	SelectedSymbol  string `json:"selectedSymbol"`
	RecommendedPath string `json:"recommendedPath"`
	NeedsEscalation bool   `json:"needsEscalation"`
	MarketCondition string `json:"marketCondition"`
}

// SymbolSnapshot is the per-symbol state handed to the coarse scan.
type SymbolSnapshot struct {
	Symbol     string      `json:"symbol"`
	LastPrice  float64     `json:"lastPrice"`
	Stats      TickerStats `json:"stats"`
	Indicators Indicators  `json:"indicators"`
}

// ExecRequest carries one intent into the execution engine.
type ExecRequest struct {
	Action          Action
	Fraction        float64
	Symbol          string
	Reason          string
	Strategy        string
	Market          MarketType
	Leverage        float64
	StopLoss        float64
	TakeProfit      float64
	TrailingStopPct float64
}

// OrderRequest is handed to the live exchange collaborator before the
// ledger is mutated. Simulation mode never builds one.
type OrderRequest struct {
	Symbol string
	Side   string // BUY or SELL
	Market MarketType
	Amount float64
}

// OrderAck is the exchange collaborator's acknowledgement.
type OrderAck struct {
	OrderID string
	Status  string
}

// EventKind classifies engine notifications.
type EventKind string

const (
	EventTrade       EventKind = "TRADE"
	EventLiquidation EventKind = "LIQUIDATION"
	EventBreaker     EventKind = "CIRCUIT_BREAKER"
	EventError       EventKind = "ERROR"
)

// Event is a structured notification emitted by the engine. Delivery is
// best-effort; the engine never depends on it succeeding.
type Event struct {
	Kind    EventKind `json:"kind"`
	Symbol  string    `json:"symbol,omitempty"`
	Message string    `json:"message"`
	Trade   *Trade    `json:"trade,omitempty"`
	Time    time.Time `json:"time"`
}
