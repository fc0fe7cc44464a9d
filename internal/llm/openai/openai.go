package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ricky22407-lang/bitrader/internal/api"
	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/store"
	"github.com/ricky22407-lang/bitrader/internal/trace"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

const decisionSchema = `{"action":"BUY|SELL|HOLD|OPEN_LONG|OPEN_SHORT|CLOSE_LONG|CLOSE_SHORT","marketType":"SPOT|FUTURES","leverage":1,"confidence":0.0,"reasoning":"...","suggestedAmountFraction":0.0,"stopLoss":0,"takeProfit":0,"trailingStopPct":0}`

const scanSchema = `{"selectedSymbol":"...","recommendedPath":"SPOT|FUTURES","needsEscalation":false,"marketCondition":"..."}`

// OpenAIDecider implements both decision tiers over the chat
// completions API. All responses flow through the repair parser;
// a provider failure surfaces as an error only on Evaluate, while
// Decide degrades malformed content to HOLD.
type OpenAIDecider struct {
	cfg    *store.Config
	client *api.Client
}

var _ interfaces.Decider = (*OpenAIDecider)(nil)

func NewOpenAIDecider(cfg *store.Config) *OpenAIDecider {
	return &OpenAIDecider{
		cfg: cfg,
		client: api.NewClient(
			api.WithBaseURL("https://api.openai.com"),
			api.WithLogging(true),
		),
	}
}

func (d *OpenAIDecider) Evaluate(ctx context.Context, snapshots []types.SymbolSnapshot, portfolio *types.Portfolio, activeSymbol string) (types.ScanResult, error) {
	ctx, span := trace.StartSpan(ctx, "openai.Evaluate")
	defer span.End()

	state := map[string]any{
		"symbols":      snapshots,
		"activeSymbol": activeSymbol,
		"cash":         portfolio.Cash,
		"equity":       portfolio.Equity,
	}
	sb, _ := json.Marshal(state)
	prompt := fmt.Sprintf("You will receive the watched market universe as JSON. Pick the single most promising symbol to focus on. Respond ONLY with compact JSON matching the schema.\nSchema:%s\nState:%s", scanSchema, string(sb))

	raw, err := d.complete(ctx, prompt)
	if err != nil {
		return types.ScanResult{}, err
	}
	return parseScan(raw), nil
}

func (d *OpenAIDecider) Decide(ctx context.Context, symbol string, candles []types.Candle, inds types.Indicators, portfolio *types.Portfolio, riskProfile string) (types.Decision, error) {
	ctx, span := trace.StartSpan(ctx, "openai.Decide")
	defer span.End()

	// The full candle cache would blow the token budget; the tail
	// carries the structure the indicators have not already summarized.
	recent := candles
	if len(recent) > 30 {
		recent = recent[len(recent)-30:]
	}
	trades := portfolio.TradeHistory
	if len(trades) > 10 {
		trades = trades[len(trades)-10:]
	}
	state := map[string]any{
		"symbol":      symbol,
		"candles":     recent,
		"indicators":  inds,
		"riskProfile": riskProfile,
		"portfolio": map[string]any{
			"cash":             portfolio.Cash,
			"equity":           portfolio.Equity,
			"spotPositions":    portfolio.SpotPositions,
			"futuresPositions": portfolio.FuturesPositions,
			"recentTrades":     trades,
		},
	}
	sb, _ := json.Marshal(state)
	prompt := fmt.Sprintf("You will receive market state as JSON. Respond ONLY with compact JSON matching the schema.\nSchema:%s\nState:%s", decisionSchema, string(sb))

	raw, err := d.complete(ctx, prompt)
	if err != nil {
		return types.Decision{}, err
	}
	return parseDecision(raw), nil
}

func (d *OpenAIDecider) complete(ctx context.Context, prompt string) (string, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", errors.New("OPENAI_API_KEY missing")
	}

	system := d.cfg.Decision.System
	if system == "" {
		system = "You are a disciplined crypto trading assistant. You respond only with JSON."
	}
	body := map[string]any{
		"model":       d.cfg.Decision.Model,
		"messages":    []map[string]string{{"role": "system", "content": system}, {"role": "user", "content": prompt}},
		"temperature": d.cfg.Decision.Temperature,
		"max_tokens":  d.cfg.Decision.MaxTokens,
	}

	req := api.NewRequest("POST", "/v1/chat/completions").
		WithContext(ctx).
		WithBody(body).
		WithHeader("Authorization", "Bearer "+apiKey)
	resp, err := d.client.DoWithRetry(req, nil)
	if err != nil {
		return "", err
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := resp.ParseJSON(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}
