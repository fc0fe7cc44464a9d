package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "portfolio.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadFirstRun(t *testing.T) {
	s := openTestStore(t)

	p, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("first load errored: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil portfolio on first run, got %+v", p)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pnl := -12.5
	in := &types.Portfolio{
		Cash:   9500,
		Equity: 9700,
		FuturesPositions: []*types.Position{{
			ID: "f1", Symbol: "ETHUSDT", Market: types.Futures, Side: types.Short,
			Amount: 2, EntryPrice: 100, Leverage: 3, MarginUsed: 66.6,
			LiquidationPrice: 132.3,
		}},
		TradeHistory: []types.Trade{{ID: "t1", Symbol: "ETHUSDT", Side: "SELL", PnL: &pnl}},
		LastUpdated:  time.Now().UTC(),
	}
	if err := s.Save(ctx, in); err != nil {
		t.Fatal(err)
	}

	out, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out == nil {
		t.Fatal("expected a portfolio back")
	}
	if out.Cash != in.Cash || out.Equity != in.Equity {
		t.Errorf("balances mismatched: %+v", out)
	}
	if len(out.FuturesPositions) != 1 || out.FuturesPositions[0].LiquidationPrice != 132.3 {
		t.Errorf("positions mismatched: %+v", out.FuturesPositions)
	}
	if len(out.TradeHistory) != 1 || out.TradeHistory[0].PnL == nil || *out.TradeHistory[0].PnL != -12.5 {
		t.Errorf("history mismatched: %+v", out.TradeHistory)
	}
}

func TestSaveIsLastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, &types.Portfolio{Cash: 100}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, &types.Portfolio{Cash: 200}); err != nil {
		t.Fatal(err)
	}

	out, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.Cash != 200 {
		t.Errorf("expected newest write to win, cash=%f", out.Cash)
	}
}
