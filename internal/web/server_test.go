package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// fakeEngine serves a fixed portfolio and records manual trades.
type fakeEngine struct {
	portfolio types.Portfolio
	armed     bool
	manual    []types.Action
}

var _ interfaces.Engine = (*fakeEngine)(nil)

func (f *fakeEngine) OnTick(ctx context.Context, tick types.Tick) {}
func (f *fakeEngine) Execute(ctx context.Context, req types.ExecRequest) (*types.Trade, error) {
	return nil, nil
}
func (f *fakeEngine) ManualTrade(ctx context.Context, side types.Action, fraction float64) (*types.Trade, error) {
	f.manual = append(f.manual, side)
	return &types.Trade{ID: "t1", Symbol: "BTCUSDT", Side: string(side), Amount: fraction}, nil
}
func (f *fakeEngine) LiquidateAll(ctx context.Context, reason string) int { return 0 }
func (f *fakeEngine) RunDecisionCycle(ctx context.Context)                {}
func (f *fakeEngine) Arm()                                                { f.armed = true }
func (f *fakeEngine) Disarm()                                             { f.armed = false }
func (f *fakeEngine) Armed() bool                                         { return f.armed }
func (f *fakeEngine) BreakerRemaining() time.Duration                     { return 0 }
func (f *fakeEngine) Snapshot() types.Portfolio                           { return f.portfolio }

func pnl(v float64) *float64 { return &v }

func TestComputeStats(t *testing.T) {
	p := &types.Portfolio{
		TradeHistory: []types.Trade{
			{ID: "open", PnL: nil},
			{ID: "win", PnL: pnl(10)},
			{ID: "loss", PnL: pnl(-4)},
			{ID: "win2", PnL: pnl(2)},
		},
		SpotPositions:    []*types.Position{{UnrealizedPnL: 3}},
		FuturesPositions: []*types.Position{{UnrealizedPnL: -1}},
	}

	st := computeStats(p)
	if st.TotalTrades != 4 || st.ClosedTrades != 3 {
		t.Errorf("trade counts wrong: %+v", st)
	}
	if st.ProfitableTrades != 2 || st.LosingTrades != 1 {
		t.Errorf("win/loss split wrong: %+v", st)
	}
	if st.RealizedPnL != 8 {
		t.Errorf("expected realized 8, got %f", st.RealizedPnL)
	}
	if st.UnrealizedPnL != 2 {
		t.Errorf("expected unrealized 2, got %f", st.UnrealizedPnL)
	}
	want := 2.0 / 3 * 100
	if st.WinRate < want-0.01 || st.WinRate > want+0.01 {
		t.Errorf("expected win rate %.2f, got %f", want, st.WinRate)
	}
	if st.AvgWin != 6 || st.AvgLoss != -4 {
		t.Errorf("expected avg win 6 loss -4, got %+v", st)
	}
}

func TestMaxDrawdown(t *testing.T) {
	curve := []types.EquityPoint{
		{Equity: 10000},
		{Equity: 12000},
		{Equity: 9000},
		{Equity: 11000},
	}
	// Peak 12000, trough 9000.
	if dd := maxDrawdown(curve); dd != 25 {
		t.Errorf("expected 25%% drawdown, got %f", dd)
	}
	if dd := maxDrawdown(nil); dd != 0 {
		t.Errorf("expected 0 for empty curve, got %f", dd)
	}
}

func TestStatusEndpoint(t *testing.T) {
	eng := &fakeEngine{portfolio: types.Portfolio{Cash: 9000, Equity: 9100}, armed: true}
	srv := NewServer(":0", eng)

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["armed"] != true {
		t.Errorf("expected armed true, got %v", body["armed"])
	}
	if body["cash"].(float64) != 9000 {
		t.Errorf("expected cash 9000, got %v", body["cash"])
	}
}

func TestManualEndpoint(t *testing.T) {
	eng := &fakeEngine{}
	srv := NewServer(":0", eng)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/manual", strings.NewReader(`{"side":"buy","fraction":0.5}`))
	srv.http.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(eng.manual) != 1 || eng.manual[0] != types.Buy {
		t.Errorf("expected one BUY routed to the engine, got %v", eng.manual)
	}
}

func TestManualEndpointValidation(t *testing.T) {
	eng := &fakeEngine{}
	srv := NewServer(":0", eng)

	cases := []string{
		`{"side":"HODL","fraction":0.5}`,
		`{"side":"BUY","fraction":0}`,
		`{"side":"BUY","fraction":1.5}`,
		`not json`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/manual", strings.NewReader(body))
		srv.http.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
	if len(eng.manual) != 0 {
		t.Errorf("invalid requests reached the engine: %v", eng.manual)
	}
}

func TestTradesEndpointCapped(t *testing.T) {
	p := types.Portfolio{}
	for i := 0; i < 250; i++ {
		p.TradeHistory = append(p.TradeHistory, types.Trade{ID: "t"})
	}
	srv := NewServer(":0", &fakeEngine{portfolio: p})

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trades", nil))

	var trades []types.Trade
	if err := json.Unmarshal(rec.Body.Bytes(), &trades); err != nil {
		t.Fatal(err)
	}
	if len(trades) != 200 {
		t.Errorf("expected payload capped at 200 trades, got %d", len(trades))
	}
}
