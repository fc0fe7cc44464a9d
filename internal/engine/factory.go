package engine

import (
	"context"
	"fmt"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/ledger"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/store"
)

// New assembles an engine from its collaborators. The persisted
// portfolio is restored when present, otherwise the ledger is seeded
// from the configured initial cash. exchange may be nil (simulation).
func New(ctx context.Context, cfg *store.Config, feed interfaces.Feed, decider interfaces.Decider, stor interfaces.Store, notifier interfaces.Notifier, exchange interfaces.Exchange) (*Engine, error) {
	var led *ledger.Ledger
	if stor != nil {
		p, err := stor.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load portfolio: %w", err)
		}
		if p != nil {
			led = ledger.FromPortfolio(p)
			logger.Info(ctx, "Portfolio restored",
				"cash", p.Cash,
				"spot_positions", len(p.SpotPositions),
				"futures_positions", len(p.FuturesPositions),
				"trades", len(p.TradeHistory),
			)
		}
	}
	if led == nil {
		led = ledger.New(cfg.InitialCash)
		logger.Info(ctx, "Fresh portfolio initialized", "cash", cfg.InitialCash)
	}
	return newEngine(cfg, led, feed, decider, stor, notifier, exchange), nil
}

var _ interfaces.Engine = (*Engine)(nil)
