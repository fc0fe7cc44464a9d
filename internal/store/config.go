package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode        string   `yaml:"mode"`         // DRY_RUN or LIVE
	Symbols     []string `yaml:"symbols"`      // watched universe
	InitialCash float64  `yaml:"initial_cash"` // starting budget on first run
	RiskProfile string   `yaml:"risk_profile"` // low, medium, high
	StorePath   string   `yaml:"store_path"`
	APIAddr     string   `yaml:"api_addr"`

	Decision struct {
		Provider      string  `yaml:"provider"` // OPENAI or NOOP
		Model         string  `yaml:"model"`
		MaxTokens     int     `yaml:"max_tokens"`
		Temperature   float32 `yaml:"temperature"`
		System        string  `yaml:"system"`
		MinConfidence float64 `yaml:"min_confidence"`
		// Pulse bounds for the decision cycle: the interval shortens
		// toward min when volatility is high and stretches toward max
		// when the market is quiet.
		PulseMinSeconds  int     `yaml:"pulse_min_seconds"`
		PulseMaxSeconds  int     `yaml:"pulse_max_seconds"`
		VolatilityPctHot float64 `yaml:"volatility_pct_hot"` // ATR/price % that counts as hot
	} `yaml:"decision"`

	Breaker struct {
		LossStreak      int `yaml:"loss_streak"`
		CooldownMinutes int `yaml:"cooldown_minutes"`
	} `yaml:"breaker"`

	Indicators struct {
		RSIPeriod  int     `yaml:"rsi_period"`
		MACDFast   int     `yaml:"macd_fast"`
		MACDSlow   int     `yaml:"macd_slow"`
		MACDSignal int     `yaml:"macd_signal"`
		BBWindow   int     `yaml:"bb_window"`
		BBStdDev   float64 `yaml:"bb_stddev"`
		ATRPeriod  int     `yaml:"atr_period"`
	} `yaml:"indicators"`

	Telegram struct {
		Enabled bool  `yaml:"enabled"`
		ChatID  int64 `yaml:"chat_id"`
	} `yaml:"telegram"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Symbols) == 0 {
		return errors.New("symbols cannot be empty")
	}
	if c.InitialCash <= 0 {
		return fmt.Errorf("initial_cash must be positive, got %.2f", c.InitialCash)
	}
	switch c.RiskProfile {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("risk_profile must be 'low', 'medium' or 'high', got '%s'", c.RiskProfile)
	}
	if c.Decision.MinConfidence < 0 || c.Decision.MinConfidence > 1 {
		return fmt.Errorf("decision.min_confidence must be within 0-1, got %.2f", c.Decision.MinConfidence)
	}
	if c.Decision.PulseMinSeconds > c.Decision.PulseMaxSeconds {
		return fmt.Errorf("decision.pulse_min_seconds (%d) exceeds pulse_max_seconds (%d)",
			c.Decision.PulseMinSeconds, c.Decision.PulseMaxSeconds)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.InitialCash == 0 {
		c.InitialCash = 10000
	}
	if c.RiskProfile == "" {
		c.RiskProfile = "medium"
	}
	if c.StorePath == "" {
		c.StorePath = "data/bitrader.db"
	}
	if c.APIAddr == "" {
		c.APIAddr = ":8080"
	}
	if c.Decision.Provider == "" {
		c.Decision.Provider = "NOOP"
	}
	if c.Decision.MinConfidence == 0 {
		c.Decision.MinConfidence = 0.6
	}
	if c.Decision.PulseMinSeconds == 0 {
		c.Decision.PulseMinSeconds = 30
	}
	if c.Decision.PulseMaxSeconds == 0 {
		c.Decision.PulseMaxSeconds = 300
	}
	if c.Decision.VolatilityPctHot == 0 {
		c.Decision.VolatilityPctHot = 1.0
	}
	if c.Breaker.LossStreak == 0 {
		c.Breaker.LossStreak = 3
	}
	if c.Breaker.CooldownMinutes == 0 {
		c.Breaker.CooldownMinutes = 60
	}
	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.Indicators.MACDFast == 0 {
		c.Indicators.MACDFast = 12
	}
	if c.Indicators.MACDSlow == 0 {
		c.Indicators.MACDSlow = 26
	}
	if c.Indicators.MACDSignal == 0 {
		c.Indicators.MACDSignal = 9
	}
	if c.Indicators.BBWindow == 0 {
		c.Indicators.BBWindow = 20
	}
	if c.Indicators.BBStdDev == 0 {
		c.Indicators.BBStdDev = 2.0
	}
	if c.Indicators.ATRPeriod == 0 {
		c.Indicators.ATRPeriod = 14
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
