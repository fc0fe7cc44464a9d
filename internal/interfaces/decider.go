package interfaces

import (
	"context"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

// Decider supplies trading intents. The engine is agnostic to how a
// recommendation was produced; a failed or malformed response must
// surface as HOLD with confidence 0, never as an error that could
// reach the tick-processing path.
type Decider interface {
	// Evaluate is the coarse scan across the watched universe.
	Evaluate(ctx context.Context, snapshots []types.SymbolSnapshot, portfolio *types.Portfolio, activeSymbol string) (types.ScanResult, error)

	// Decide is the detailed per-symbol recommendation.
	Decide(ctx context.Context, symbol string, candles []types.Candle, inds types.Indicators, portfolio *types.Portfolio, riskProfile string) (types.Decision, error)
}
