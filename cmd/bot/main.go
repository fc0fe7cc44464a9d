package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ricky22407-lang/bitrader/internal/engine"
	"github.com/ricky22407-lang/bitrader/internal/eod"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/notify"
	"github.com/ricky22407-lang/bitrader/internal/trace"
	"github.com/ricky22407-lang/bitrader/internal/web"
)

func main() {
	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer trace.Shutdown(context.Background())

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}
	compressOldLogs(ctx)

	feed := initializeFeed(ctx, cfg)
	if err := feed.Start(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Failed to start market data feed", err)
		os.Exit(1)
	}
	if err := feed.Subscribe(ctx, cfg.Symbols); err != nil {
		logger.ErrorWithErr(ctx, "Failed to subscribe symbols", err, "symbols", cfg.Symbols)
		os.Exit(1)
	}

	decider := initializeDecider(ctx, cfg)

	stor, err := initializeStore(ctx, cfg)
	if err != nil {
		os.Exit(1)
	}
	defer stor.Close()

	ex, err := initializeExchange(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize exchange", err)
		os.Exit(1)
	}

	relay := notify.NewRelay()
	eng, err := engine.New(ctx, cfg, feed, decider, stor, relay, ex)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize engine", err)
		os.Exit(1)
	}

	if cfg.Telegram.Enabled {
		token := os.Getenv("TELEGRAM_BOT_TOKEN")
		bot, err := notify.NewTelegramBot(token, cfg.Telegram.ChatID, eng)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to start Telegram bot", err)
			os.Exit(1)
		}
		relay.Bind(bot)
		go bot.Start()
		defer bot.Stop()
	}

	srv := web.NewServer(cfg.APIAddr, eng)
	go func() {
		if err := srv.Start(); err != nil {
			logger.ErrorWithErr(ctx, "HTTP server failed", err)
		}
	}()

	// The engine starts disarmed unless explicitly armed at boot.
	if os.Getenv("TRADER_ARM_ON_START") == "true" {
		eng.Arm()
		logger.Warn(ctx, "Engine armed at startup")
	}

	go eng.Run(ctx)

	eodTick := time.NewTicker(time.Minute)
	defer eodTick.Stop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	logger.Info(ctx, "Trader started",
		"mode", cfg.Mode,
		"symbols", cfg.Symbols,
		"provider", cfg.Decision.Provider,
	)

	for {
		select {
		case <-eodTick.C:
			if ok, _ := eod.ShouldRunNow(); ok {
				if p, err := eod.SummarizeYesterday(); err == nil && p != "" {
					logger.Info(ctx, "EOD summary written", "path", p)
				}
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down")
			cancel()
			feed.Stop(context.Background())

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = srv.Shutdown(shutdownCtx)
			shutdownCancel()

			eng.Close()
			return
		}
	}
}
