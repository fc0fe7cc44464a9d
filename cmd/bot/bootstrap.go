package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ricky22407-lang/bitrader/internal/exchange"
	"github.com/ricky22407-lang/bitrader/internal/exchange/exchangeobs"
	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/llm/llmobs"
	"github.com/ricky22407-lang/bitrader/internal/llm/noop"
	"github.com/ricky22407-lang/bitrader/internal/llm/openai"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/market"
	"github.com/ricky22407-lang/bitrader/internal/store"
	"github.com/ricky22407-lang/bitrader/internal/trace"
	"github.com/ricky22407-lang/bitrader/internal/tradelog"
)

// initializeSystem loads .env and brings up logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("TRADER_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeFeed picks the market data source by mode. DRY_RUN still
// uses live Binance data when credentials allow; TRADER_FEED=MOCK
// forces the deterministic generator for offline runs.
func initializeFeed(ctx context.Context, cfg *store.Config) interfaces.Feed {
	if os.Getenv("TRADER_FEED") == "MOCK" {
		logger.Warn(ctx, "Using MOCK feed - deterministic synthetic prices")
		return market.NewMockFeed(time.Second)
	}
	return market.NewBinanceFeed(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_SECRET_KEY"))
}

// initializeDecider wires the decision provider with observability.
func initializeDecider(ctx context.Context, cfg *store.Config) interfaces.Decider {
	var decider interfaces.Decider
	switch cfg.Decision.Provider {
	case "OPENAI":
		decider = openai.NewOpenAIDecider(cfg)
	default:
		decider = noop.NewNoopDecider()
		logger.Warn(ctx, "No decision provider configured - using Noop decider (always HOLD)")
	}
	return llmobs.Wrap(decider)
}

func initializeStore(ctx context.Context, cfg *store.Config) (interfaces.Store, error) {
	s, err := store.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open portfolio store", err, "path", cfg.StorePath)
		return nil, err
	}
	return s, nil
}

// initializeExchange returns the live order path, or nil in DRY_RUN
// where fills are simulated against the ledger only.
func initializeExchange(ctx context.Context, cfg *store.Config) (interfaces.Exchange, error) {
	if cfg.Mode != "LIVE" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
		return nil, nil
	}
	ex, err := exchange.NewBinanceExchange(
		os.Getenv("BINANCE_API_KEY"),
		os.Getenv("BINANCE_SECRET_KEY"),
		os.Getenv("BINANCE_TESTNET") == "true",
	)
	if err != nil {
		return nil, fmt.Errorf("initialize exchange: %w", err)
	}
	logger.Info(ctx, "LIVE mode - orders will be signed against Binance")
	return exchangeobs.Wrap(ex), nil
}
