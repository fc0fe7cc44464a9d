package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// Server is the read-mostly HTTP surface: status and portfolio for
// dashboards, a manual-trade endpoint mirroring the Telegram commands.
type Server struct {
	engine interfaces.Engine
	http   *http.Server
}

func NewServer(addr string, eng interfaces.Engine) *Server {
	s := &Server{engine: eng}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /trades", s.handleTrades)
	mux.HandleFunc("POST /manual", s.handleManual)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Info(context.Background(), "HTTP server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Stats summarizes trade performance for the status endpoint.
type Stats struct {
	TotalTrades      int     `json:"totalTrades"`
	ClosedTrades     int     `json:"closedTrades"`
	ProfitableTrades int     `json:"profitableTrades"`
	LosingTrades     int     `json:"losingTrades"`
	WinRate          float64 `json:"winRate"`
	AvgWin           float64 `json:"avgWin"`
	AvgLoss          float64 `json:"avgLoss"`
	RealizedPnL      float64 `json:"realizedPnL"`
	UnrealizedPnL    float64 `json:"unrealizedPnL"`
	MaxDrawdownPct   float64 `json:"maxDrawdownPct"`
}

func computeStats(p *types.Portfolio) Stats {
	st := Stats{TotalTrades: len(p.TradeHistory)}
	var winSum, lossSum float64
	for _, t := range p.TradeHistory {
		if t.PnL == nil {
			continue
		}
		st.ClosedTrades++
		st.RealizedPnL += *t.PnL
		if *t.PnL >= 0 {
			st.ProfitableTrades++
			winSum += *t.PnL
		} else {
			st.LosingTrades++
			lossSum += *t.PnL
		}
	}
	if st.ClosedTrades > 0 {
		st.WinRate = float64(st.ProfitableTrades) / float64(st.ClosedTrades) * 100
	}
	if st.ProfitableTrades > 0 {
		st.AvgWin = winSum / float64(st.ProfitableTrades)
	}
	if st.LosingTrades > 0 {
		st.AvgLoss = lossSum / float64(st.LosingTrades)
	}
	st.MaxDrawdownPct = maxDrawdown(p.EquityCurve)
	for _, pos := range p.SpotPositions {
		st.UnrealizedPnL += pos.UnrealizedPnL
	}
	for _, pos := range p.FuturesPositions {
		st.UnrealizedPnL += pos.UnrealizedPnL
	}
	return st
}

// maxDrawdown is the worst peak-to-trough decline over the equity
// curve, as a positive percentage of the peak.
func maxDrawdown(curve []types.EquityPoint) float64 {
	var peak, worst float64
	for _, pt := range curve {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak > 0 {
			if dd := (peak - pt.Equity) / peak * 100; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"armed":            s.engine.Armed(),
		"cash":             p.Cash,
		"equity":           p.Equity,
		"spotPositions":    len(p.SpotPositions),
		"futuresPositions": len(p.FuturesPositions),
		"breakerRemaining": s.engine.BreakerRemaining().Seconds(),
		"stats":            computeStats(&p),
		"lastUpdated":      p.LastUpdated,
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Snapshot()
	trades := p.TradeHistory
	// Newest last; cap the payload to the most recent 200.
	if len(trades) > 200 {
		trades = trades[len(trades)-200:]
	}
	writeJSON(w, http.StatusOK, trades)
}

type manualRequest struct {
	Side     string  `json:"side"` // BUY or SELL
	Fraction float64 `json:"fraction"`
}

func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	side := types.Action(strings.ToUpper(strings.TrimSpace(req.Side)))
	if side != types.Buy && side != types.Sell {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "side must be BUY or SELL"})
		return
	}
	if req.Fraction <= 0 || req.Fraction > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fraction must be within (0,1]"})
		return
	}

	trade, err := s.engine.ManualTrade(r.Context(), side, req.Fraction)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	if trade == nil {
		writeJSON(w, http.StatusOK, map[string]string{"result": "rejected", "detail": "no price yet or below minimum size"})
		return
	}
	writeJSON(w, http.StatusOK, trade)
}
