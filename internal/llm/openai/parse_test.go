package openai

import (
	"testing"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

func TestExtractJSONFenced(t *testing.T) {
	raw := "```json\n{\"action\":\"BUY\"}\n```"
	if got := extractJSON(raw); got != `{"action":"BUY"}` {
		t.Errorf("fence not stripped: %q", got)
	}
}

func TestExtractJSONWithProse(t *testing.T) {
	raw := "Sure! Here is my analysis: {\"action\":\"HOLD\"} hope that helps"
	if got := extractJSON(raw); got != `{"action":"HOLD"}` {
		t.Errorf("prose not trimmed: %q", got)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	if got := extractJSON("no json here"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestParseDecisionValid(t *testing.T) {
	raw := `{"action":"open_long","marketType":"futures","leverage":2,"confidence":0.8,"reasoning":"breakout","suggestedAmountFraction":0.3}`
	d := parseDecision(raw)

	if d.Action != types.OpenLong {
		t.Errorf("expected OPEN_LONG, got %s", d.Action)
	}
	if d.Market != types.Futures {
		t.Errorf("expected FUTURES, got %s", d.Market)
	}
	if d.Leverage != 2 || d.Confidence != 0.8 || d.Fraction != 0.3 {
		t.Errorf("fields mangled: %+v", d)
	}
}

func TestParseDecisionGarbageIsHold(t *testing.T) {
	for _, raw := range []string{
		"",
		"total garbage",
		`{"action":"YOLO","confidence":0.9,"suggestedAmountFraction":0.5}`,
		`{"action":"BUY","marketType":"OPTIONS","suggestedAmountFraction":0.5}`,
	} {
		d := parseDecision(raw)
		if d.Action != types.Hold || d.Confidence != 0 {
			t.Errorf("raw %q: expected HOLD conf 0, got %+v", raw, d)
		}
	}
}

func TestParseDecisionClampsLeverage(t *testing.T) {
	raw := `{"action":"OPEN_SHORT","marketType":"FUTURES","leverage":20,"confidence":0.7,"suggestedAmountFraction":0.2}`
	if d := parseDecision(raw); d.Leverage != 3 {
		t.Errorf("expected leverage clamped to 3, got %f", d.Leverage)
	}

	raw = `{"action":"OPEN_SHORT","marketType":"FUTURES","leverage":0,"confidence":0.7,"suggestedAmountFraction":0.2}`
	if d := parseDecision(raw); d.Leverage != 1 {
		t.Errorf("expected missing leverage to default to 1, got %f", d.Leverage)
	}
}

func TestParseDecisionOutOfRangeConfidence(t *testing.T) {
	raw := `{"action":"BUY","confidence":1.4,"suggestedAmountFraction":0.5}`
	if d := parseDecision(raw); d.Confidence != 0 {
		t.Errorf("expected out-of-range confidence zeroed, got %f", d.Confidence)
	}
}

func TestParseDecisionActionWithoutSizingIsHold(t *testing.T) {
	raw := `{"action":"BUY","confidence":0.9}`
	if d := parseDecision(raw); d.Action != types.Hold {
		t.Errorf("expected unsized BUY degraded to HOLD, got %s", d.Action)
	}
}

func TestParseDecisionDefaultsMarketToSpot(t *testing.T) {
	raw := `{"action":"BUY","confidence":0.9,"suggestedAmountFraction":0.5}`
	if d := parseDecision(raw); d.Market != types.Spot {
		t.Errorf("expected missing market to default to SPOT, got %s", d.Market)
	}
}

func TestParseScan(t *testing.T) {
	raw := "```json\n{\"selectedSymbol\":\"ethusdt\",\"recommendedPath\":\"FUTURES\",\"marketCondition\":\"volatile\"}\n```"
	r := parseScan(raw)
	if r.SelectedSymbol != "ETHUSDT" {
		t.Errorf("expected normalized ETHUSDT, got %q", r.SelectedSymbol)
	}
	if r.RecommendedPath != "FUTURES" {
		t.Errorf("expected path kept, got %q", r.RecommendedPath)
	}

	if r := parseScan("nonsense"); r.SelectedSymbol != "" {
		t.Errorf("expected empty result on garbage, got %+v", r)
	}
}
