package tradelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func useTempLogDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)
	return dir
}

func TestAppendAndReadDay(t *testing.T) {
	useTempLogDir(t)

	entries := []Entry{
		{Symbol: "BTCUSDT", Market: "SPOT", Side: "BUY", Amount: 0.5, Price: 100, Reason: "test", TradeID: "t1"},
		{Symbol: "BTCUSDT", Market: "SPOT", Side: "SELL", Amount: 0.5, Price: 110, PnL: 5, Reason: "Spot TP", TradeID: "t2"},
	}
	for _, e := range entries {
		if err := Append(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ReadDay(time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 journaled fills, got %d", len(got))
	}
	if got[0].TradeID != "t1" || got[1].TradeID != "t2" {
		t.Errorf("order not preserved: %+v", got)
	}
	if got[1].PnL != 5 {
		t.Errorf("PnL lost in round trip: %+v", got[1])
	}
	if got[0].Time == "" {
		t.Error("expected timestamp stamped on append")
	}
}

func TestReadDayMissingFile(t *testing.T) {
	useTempLogDir(t)

	got, err := ReadDay(time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("missing journal must not error: %v", err)
	}
	if got != nil {
		t.Errorf("expected empty day, got %+v", got)
	}
}

func TestAppendDecision(t *testing.T) {
	dir := useTempLogDir(t)

	err := AppendDecision(DecisionEntry{
		Symbol:     "ETHUSDT",
		Action:     "HOLD",
		Confidence: 0.4,
		Indicators: map[string]float64{"RSI": 55},
	})
	if err != nil {
		t.Fatal(err)
	}

	day := time.Now().UTC().Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(dir, "decisions", day+".txt")); err != nil {
		t.Errorf("decision journal missing: %v", err)
	}
}

func TestCompressOlder(t *testing.T) {
	dir := useTempLogDir(t)

	old := filepath.Join(dir, "2026-01-01.txt")
	if err := os.WriteFile(old, []byte(`{"Symbol":"BTCUSDT"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	if err := CompressOlder(7); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expected original journal removed after compression")
	}
	if _, err := os.Stat(old + ".gz"); err != nil {
		t.Errorf("expected gzipped journal, got %v", err)
	}
}

func TestCompressOlderDisabled(t *testing.T) {
	dir := useTempLogDir(t)

	f := filepath.Join(dir, "2026-01-01.txt")
	if err := os.WriteFile(f, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CompressOlder(0); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(f); err != nil {
		t.Error("retention 0 must be a no-op")
	}
}
