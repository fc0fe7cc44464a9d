package eod

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ricky22407-lang/bitrader/internal/tradelog"
)

// Crypto has no market close; the daily summary covers a full UTC day
// and runs shortly after the day rolls over.

type aggRow struct {
	Symbol      string
	BuyQty      float64
	BuyValue    float64
	SellQty     float64
	SellValue   float64
	RealizedPnL float64
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func csvPath(t time.Time) string {
	return filepath.Join(logDir(), "eod", t.UTC().Format("2006-01-02")+".csv")
}

// SummarizeDay aggregates the fills journaled on the given UTC day
// into a per-symbol CSV. A day with no journal produces no file and no
// error.
func SummarizeDay(t time.Time) (string, error) {
	entries, err := tradelog.ReadDay(t)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	aggs := map[string]*aggRow{}
	for _, e := range entries {
		row := aggs[e.Symbol]
		if row == nil {
			row = &aggRow{Symbol: e.Symbol}
			aggs[e.Symbol] = row
		}
		value := e.Amount * e.Price
		if e.Side == "BUY" {
			row.BuyQty += e.Amount
			row.BuyValue += value
		} else {
			row.SellQty += e.Amount
			row.SellValue += value
		}
		row.RealizedPnL += e.PnL
	}

	symbols := make([]string, 0, len(aggs))
	for s := range aggs {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	outPath := csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"symbol", "buy_qty", "buy_value", "sell_qty", "sell_value", "realized_pnl"}); err != nil {
		return "", err
	}

	totalPnL := 0.0
	for _, s := range symbols {
		r := aggs[s]
		rec := []string{
			r.Symbol,
			fmt.Sprintf("%.6f", r.BuyQty),
			fmt.Sprintf("%.2f", r.BuyValue),
			fmt.Sprintf("%.6f", r.SellQty),
			fmt.Sprintf("%.2f", r.SellValue),
			fmt.Sprintf("%.2f", r.RealizedPnL),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalPnL += r.RealizedPnL
	}
	if err := w.Write([]string{"TOTAL", "", "", "", "", fmt.Sprintf("%.2f", totalPnL)}); err != nil {
		return "", err
	}
	return outPath, nil
}

// SummarizeYesterday covers the most recently completed UTC day.
func SummarizeYesterday() (string, error) {
	return SummarizeDay(time.Now().UTC().AddDate(0, 0, -1))
}

// ShouldRunNow reports whether yesterday's summary is due: at least
// ten minutes into the new UTC day and not yet written.
func ShouldRunNow() (bool, string) {
	now := time.Now().UTC()
	yesterday := now.AddDate(0, 0, -1)
	outPath := csvPath(yesterday)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 10, 0, 0, time.UTC)
	if now.After(cutoff) {
		if _, err := os.Stat(outPath); errors.Is(err, os.ErrNotExist) {
			return true, outPath
		}
	}
	return false, outPath
}
