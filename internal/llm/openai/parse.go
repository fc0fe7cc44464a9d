package openai

import (
	"encoding/json"
	"strings"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

// extractJSON salvages a JSON object from a chat completion. Models
// wrap output in markdown fences or prepend prose despite the prompt;
// strip fences, then slice from the first '{' to the last '}'.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// parseDecision decodes and normalizes a detailed recommendation.
// Anything unusable degrades to HOLD with zero confidence rather than
// erroring: a garbled model response must never stall the engine.
func parseDecision(raw string) types.Decision {
	hold := types.Decision{Action: types.Hold, Reasoning: "unparseable model response", Confidence: 0}

	payload := extractJSON(raw)
	if payload == "" {
		return hold
	}
	var d types.Decision
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return hold
	}

	d.Action = types.Action(strings.ToUpper(strings.TrimSpace(string(d.Action))))
	switch d.Action {
	case types.Buy, types.Sell, types.Hold, types.OpenLong, types.OpenShort, types.CloseLong, types.CloseShort:
	default:
		return hold
	}

	d.Market = types.MarketType(strings.ToUpper(strings.TrimSpace(string(d.Market))))
	switch d.Market {
	case types.Spot, types.Futures:
	case "":
		d.Market = types.Spot
	default:
		return hold
	}

	if d.Confidence < 0 || d.Confidence > 1 {
		d.Confidence = 0
	}
	if d.Leverage <= 0 {
		d.Leverage = 1
	}
	if d.Leverage > 3 {
		d.Leverage = 3
	}
	if d.Fraction <= 0 || d.Fraction > 1 {
		d.Fraction = 0
		if d.Action != types.Hold {
			// An actionable call without a sizing is no call at all.
			return hold
		}
	}
	return d
}

// parseScan decodes a coarse market-scan response. An unusable
// response returns an empty result; the caller falls back to its own
// ranking.
func parseScan(raw string) types.ScanResult {
	payload := extractJSON(raw)
	if payload == "" {
		return types.ScanResult{}
	}
	var r types.ScanResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return types.ScanResult{}
	}
	r.SelectedSymbol = strings.ToUpper(strings.TrimSpace(r.SelectedSymbol))
	return r
}
