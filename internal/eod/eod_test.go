package eod

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/ricky22407-lang/bitrader/internal/tradelog"
)

func TestSummarizeDay(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	fills := []tradelog.Entry{
		{Symbol: "BTCUSDT", Market: "SPOT", Side: "BUY", Amount: 1, Price: 100},
		{Symbol: "BTCUSDT", Market: "SPOT", Side: "SELL", Amount: 1, Price: 110, PnL: 10},
		{Symbol: "ETHUSDT", Market: "FUTURES", Side: "SELL", Amount: 2, Price: 50},
	}
	for _, e := range fills {
		if err := tradelog.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	path, err := SummarizeDay(time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("expected a CSV path")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	// Header, two symbols, total row.
	if len(rows) != 4 {
		t.Fatalf("expected 4 CSV rows, got %d: %v", len(rows), rows)
	}
	if rows[1][0] != "BTCUSDT" || rows[2][0] != "ETHUSDT" {
		t.Errorf("expected sorted symbols, got %v", rows)
	}
	if rows[1][5] != "10.00" {
		t.Errorf("expected realized PnL 10.00 for BTCUSDT, got %q", rows[1][5])
	}
	if rows[3][0] != "TOTAL" || rows[3][5] != "10.00" {
		t.Errorf("unexpected total row: %v", rows[3])
	}
}

func TestSummarizeEmptyDay(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	path, err := SummarizeDay(time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Errorf("expected no CSV for an empty day, got %q", path)
	}
}
