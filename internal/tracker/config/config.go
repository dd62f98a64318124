package config

import (
	"time"

	"prism-insight/pkg/config"
)

// Portfolio holds the admission constraints of the simulated portfolio.
type Portfolio struct {
	MaxSlots        int     `mapstructure:"max_slots"`
	MaxSameSector   int     `mapstructure:"max_same_sector"`
	MaxSectorWeight float64 `mapstructure:"max_sector_weight"`
	MinScore        int     `mapstructure:"min_score"`
	SlotCapital     float64 `mapstructure:"slot_capital"`
}

// Weights of the normalised metrics in the composite score.
type Weights struct {
	VolumeSurge   float64 `mapstructure:"volume_surge"`
	GapUp         float64 `mapstructure:"gap_up"`
	Turnover      float64 `mapstructure:"turnover"`
	CloseStrength float64 `mapstructure:"close_strength"`
}

// DetectorRule configures the screening pass of one session mode.
type DetectorRule struct {
	MinVolumeSurgeRatio float64 `mapstructure:"min_volume_surge_ratio"`
	MinGapUpPct         float64 `mapstructure:"min_gap_up_pct"`
	RequireBoth         bool    `mapstructure:"require_both"`
	MinTurnoverRatio    float64 `mapstructure:"min_turnover_ratio"`
	MinClose            float64 `mapstructure:"min_close"`
	MaxCandidates       int     `mapstructure:"max_candidates"`
	Weights             Weights `mapstructure:"weights"`
}

type Detector struct {
	Workers   int          `mapstructure:"workers"`
	Morning   DetectorRule `mapstructure:"morning"`
	Afternoon DetectorRule `mapstructure:"afternoon"`
}

// Retry configures the bounded retry policy for external calls.
type Retry struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	MinDelay       time.Duration `mapstructure:"min_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// Tracker holds the tracker-specific configuration.
type Tracker struct {
	TimeZone      string    `mapstructure:"time_zone"`
	Holidays      []string  `mapstructure:"holidays"`
	MorningCron   string    `mapstructure:"morning_cron"`
	AfternoonCron string    `mapstructure:"afternoon_cron"`
	Portfolio     Portfolio `mapstructure:"portfolio"`
	Detector      Detector  `mapstructure:"detector"`
	Retry         Retry     `mapstructure:"retry"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// AI holds configuration for AI providers.
type AI struct {
	Provider string `mapstructure:"provider"`
}

// MarketData holds the configuration of the market snapshot API.
type MarketData struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// Broker holds the configuration of the trade execution API.
type Broker struct {
	Enabled             bool          `mapstructure:"enabled"`
	Mode                string        `mapstructure:"mode"`
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	BuyAmount           float64       `mapstructure:"buy_amount"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// Publisher selects where trading signals are published.
type Publisher struct {
	Kind         string   `mapstructure:"kind"`
	Stream       string   `mapstructure:"stream"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

// News holds the configuration of the headline feed.
type News struct {
	Enabled  bool          `mapstructure:"enabled"`
	FeedURL  string        `mapstructure:"feed_url"`
	MaxItems int           `mapstructure:"max_items"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the tracker.
type Config struct {
	App        config.App      `mapstructure:"app"`
	Logger     config.Logger   `mapstructure:"logger"`
	Database   config.Database `mapstructure:"database"`
	Redis      config.Redis    `mapstructure:"redis"`
	API        config.API      `mapstructure:"api"`
	Tracker    Tracker         `mapstructure:"tracker"`
	Gemini     Gemini          `mapstructure:"gemini"`
	AI         AI              `mapstructure:"ai"`
	MarketData MarketData      `mapstructure:"market_data"`
	Broker     Broker          `mapstructure:"broker"`
	Publisher  Publisher       `mapstructure:"publisher"`
	News       News            `mapstructure:"news"`
	Telegram   Telegram        `mapstructure:"telegram"`
}

// Load loads the tracker configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "prism-insight-tracker"
	}
	if c.Tracker.TimeZone == "" {
		c.Tracker.TimeZone = "Asia/Seoul"
	}
	if c.Tracker.MorningCron == "" {
		c.Tracker.MorningCron = "30 9 * * 1-5"
	}
	if c.Tracker.AfternoonCron == "" {
		c.Tracker.AfternoonCron = "40 15 * * 1-5"
	}

	p := &c.Tracker.Portfolio
	if p.MaxSlots <= 0 {
		p.MaxSlots = 10
	}
	if p.MaxSameSector <= 0 {
		p.MaxSameSector = 3
	}
	if p.MaxSectorWeight <= 0 {
		p.MaxSectorWeight = 0.3
	}
	if p.MinScore <= 0 {
		p.MinScore = 7
	}
	if p.SlotCapital <= 0 {
		p.SlotCapital = 1
	}

	if c.Tracker.Detector.Workers <= 0 {
		c.Tracker.Detector.Workers = 4
	}
	defaultRule(&c.Tracker.Detector.Morning, Weights{VolumeSurge: 0.4, GapUp: 0.4, Turnover: 0.1, CloseStrength: 0.1})
	defaultRule(&c.Tracker.Detector.Afternoon, Weights{VolumeSurge: 0.3, GapUp: 0.2, Turnover: 0.2, CloseStrength: 0.3})

	r := &c.Tracker.Retry
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.MinDelay <= 0 {
		r.MinDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = 30 * time.Second
	}
	if r.AttemptTimeout <= 0 {
		r.AttemptTimeout = 2 * time.Minute
	}

	if c.AI.Provider == "" {
		c.AI.Provider = "gemini"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.MaxRequestPerMinute <= 0 {
		c.Gemini.MaxRequestPerMinute = 10
	}
	if c.MarketData.MaxRequestPerMinute <= 0 {
		c.MarketData.MaxRequestPerMinute = 60
	}
	if c.MarketData.Timeout <= 0 {
		c.MarketData.Timeout = 30 * time.Second
	}
	if c.Broker.Mode == "" {
		c.Broker.Mode = "demo"
	}
	if c.Broker.MaxRequestPerMinute <= 0 {
		c.Broker.MaxRequestPerMinute = 30
	}
	if c.Broker.Timeout <= 0 {
		c.Broker.Timeout = 30 * time.Second
	}
	if c.Publisher.Kind == "" {
		c.Publisher.Kind = "none"
	}
	if c.News.MaxItems <= 0 {
		c.News.MaxItems = 5
	}
	if c.News.Timeout <= 0 {
		c.News.Timeout = 15 * time.Second
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

func defaultRule(r *DetectorRule, w Weights) {
	if r.MinVolumeSurgeRatio <= 0 {
		r.MinVolumeSurgeRatio = 2
	}
	if r.MinGapUpPct <= 0 {
		r.MinGapUpPct = 2
	}
	if r.Weights == (Weights{}) {
		r.Weights = w
	}
}
