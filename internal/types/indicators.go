package types

// MACDValue is the MACD line, its signal line and the histogram between.
type MACDValue struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// BollingerBands around a middle SMA.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Patterns flags candlestick formations detected over the trailing
// window (last ~5 candles).
type Patterns struct {
	BullishEngulfing bool `json:"bullishEngulfing"`
	BearishEngulfing bool `json:"bearishEngulfing"`
	Hammer           bool `json:"hammer"`
	ShootingStar     bool `json:"shootingStar"`
	Doji             bool `json:"doji"`
}

// Indicators is the full technical snapshot for one symbol. When
// history is shorter than a lookback the field carries its documented
// neutral default instead of an error: RSI 50, MACD zeroed, bands
// pinned to the last close, SMA/EMA pinned to the last close, ATR 0.
type Indicators struct {
	RSI       float64        `json:"rsi"`
	MACD      MACDValue      `json:"macd"`
	Bollinger BollingerBands `json:"bollinger"`
	SMA20     float64        `json:"sma20"`
	EMA50     float64        `json:"ema50"`
	EMA200    float64        `json:"ema200"`
	ATR       float64        `json:"atr"`
	Patterns  Patterns       `json:"patterns"`
}
