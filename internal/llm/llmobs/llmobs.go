package llmobs

import (
	"context"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/trace"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// observableDecider wraps a Decider with logging and tracing.
type observableDecider struct {
	decider interfaces.Decider
}

var _ interfaces.Decider = (*observableDecider)(nil)

// Wrap wraps a decider with observability middleware.
func Wrap(decider interfaces.Decider) interfaces.Decider {
	return &observableDecider{
		decider: decider,
	}
}

func (od *observableDecider) Evaluate(
	ctx context.Context,
	snapshots []types.SymbolSnapshot,
	portfolio *types.Portfolio,
	activeSymbol string,
) (types.ScanResult, error) {
	ctx, span := trace.StartSpan(ctx, "decider.Evaluate")
	defer span.End()

	// Skip(1) so the log line reports the actual caller, not this wrapper.
	logger.DebugSkip(ctx, 1, "Requesting market scan",
		"symbols", len(snapshots),
		"active", activeSymbol,
	)

	scan, err := od.decider.Evaluate(ctx, snapshots, portfolio, activeSymbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Market scan failed", err, "active", activeSymbol)
		return types.ScanResult{}, err
	}

	logger.InfoSkip(ctx, 1, "Market scan received",
		"selected", scan.SelectedSymbol,
		"path", scan.RecommendedPath,
		"condition", scan.MarketCondition,
	)
	return scan, nil
}

func (od *observableDecider) Decide(
	ctx context.Context,
	symbol string,
	candles []types.Candle,
	inds types.Indicators,
	portfolio *types.Portfolio,
	riskProfile string,
) (types.Decision, error) {
	ctx, span := trace.StartSpan(ctx, "decider.Decide")
	defer span.End()

	price := 0.0
	if len(candles) > 0 {
		price = candles[len(candles)-1].Close
	}
	logger.DebugSkip(ctx, 1, "Requesting trading decision",
		"symbol", symbol,
		"price", price,
		"rsi", inds.RSI,
	)

	decision, err := od.decider.Decide(ctx, symbol, candles, inds, portfolio, riskProfile)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to get trading decision", err,
			"symbol", symbol,
			"price", price,
		)
		return types.Decision{}, err
	}

	logger.InfoSkip(ctx, 1, "Trading decision received",
		"symbol", symbol,
		"action", string(decision.Action),
		"market", string(decision.Market),
		"confidence", decision.Confidence,
	)
	return decision, nil
}
