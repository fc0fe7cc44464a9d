package noop

import (
	"context"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// NoopDecider is the fallback when no provider is configured. It never
// selects a symbol and always holds, so the engine runs its feed,
// triggers and manual paths without external calls.
type NoopDecider struct{}

var _ interfaces.Decider = (*NoopDecider)(nil)

func NewNoopDecider() *NoopDecider {
	return &NoopDecider{}
}

func (d *NoopDecider) Evaluate(ctx context.Context, snapshots []types.SymbolSnapshot, portfolio *types.Portfolio, activeSymbol string) (types.ScanResult, error) {
	return types.ScanResult{}, nil
}

func (d *NoopDecider) Decide(ctx context.Context, symbol string, candles []types.Candle, inds types.Indicators, portfolio *types.Portfolio, riskProfile string) (types.Decision, error) {
	logger.Debug(ctx, "Noop decider called, holding", "symbol", symbol)
	return types.Decision{
		Action:     types.Hold,
		Reasoning:  "no decision provider configured",
		Confidence: 0,
	}, nil
}
