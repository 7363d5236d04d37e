// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogDir      string `yaml:"log_dir"`
}

// Exchange describes connectivity parameters for the single spot venue.
type Exchange struct {
	Name      string   `yaml:"name"`
	RestURL   string   `yaml:"rest_url"`
	StreamURL string   `yaml:"stream_url"`
	Symbols   []string `yaml:"symbols"`
	APIKey    string   `yaml:"-"`
	APISecret string   `yaml:"-"`
}

// Trading groups the tunable knobs of the entry/exit logic.
type Trading struct {
	MaxCapital     float64 `yaml:"max_capital"`
	FeeTaker       float64 `yaml:"fee_taker"`
	ProfitTakeBps  float64 `yaml:"profit_take_bps"`
	StopLossBps    float64 `yaml:"stop_loss_bps"`
	TrailStartBps  float64 `yaml:"trail_start_bps"`
	TrailStepBps   float64 `yaml:"trail_step_bps"`
	MinSpreadBps   float64 `yaml:"min_spread_bps"`
	MinNotional    float64 `yaml:"min_notional"`
	SlippageBps    float64 `yaml:"slippage_bps"`
	MaxOpenTrades  int     `yaml:"max_open_trades"`
	EntryMinGrade  string  `yaml:"entry_min_grade"`
	EntryMinScore  float64 `yaml:"entry_min_score"`
	RiskUnit       string  `yaml:"risk_unit"` // "bps" or "usdt"
	Live           bool    `yaml:"live"`
	Debug          bool    `yaml:"debug"`
	TradesOnlyLogs bool    `yaml:"trades_only_logs"`
}

// Risk encodes the session-wide guard-rails shared across all symbols.
type Risk struct {
	DailyMaxDrawdown float64 `yaml:"daily_max_drawdown"`
	CooldownSec      int     `yaml:"cooldown_sec"`
}

// Telegram holds notifier settings; the token and chat id come from the environment.
type Telegram struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"-"`
	ChatID  string `yaml:"-"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Exchange Exchange `yaml:"exchange"`
	Trading  Trading  `yaml:"trading"`
	Risk     Risk     `yaml:"risk"`
	Telegram Telegram `yaml:"telegram"`
}

// Load reads a YAML file from disk and hydrates a Config struct, then
// overlays secrets from the process environment (a .env file is honored
// when present so no shell exports are required).
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	_ = godotenv.Load()
	config.Exchange.APIKey = os.Getenv("BINANCE_API_KEY")
	config.Exchange.APISecret = os.Getenv("BINANCE_API_SECRET")
	config.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	config.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.MetricsAddr == "" {
		c.App.MetricsAddr = ":9109"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Exchange.RestURL == "" {
		c.Exchange.RestURL = "https://api.binance.com"
	}
	if c.Exchange.StreamURL == "" {
		c.Exchange.StreamURL = "wss://stream.binance.com:9443/stream"
	}
	if len(c.Exchange.Symbols) == 0 {
		c.Exchange.Symbols = []string{"BTCUSDT"}
	}
	if c.Trading.MaxCapital == 0 {
		c.Trading.MaxCapital = 25
	}
	if c.Trading.FeeTaker == 0 {
		c.Trading.FeeTaker = 0.001
	}
	if c.Trading.ProfitTakeBps == 0 {
		c.Trading.ProfitTakeBps = 30
	}
	if c.Trading.StopLossBps == 0 {
		c.Trading.StopLossBps = 20
	}
	if c.Trading.TrailStartBps == 0 {
		c.Trading.TrailStartBps = 15
	}
	if c.Trading.TrailStepBps == 0 {
		c.Trading.TrailStepBps = 5
	}
	if c.Trading.MinSpreadBps == 0 {
		c.Trading.MinSpreadBps = 1
	}
	if c.Trading.MinNotional == 0 {
		c.Trading.MinNotional = 5
	}
	if c.Trading.SlippageBps == 0 {
		c.Trading.SlippageBps = 2
	}
	if c.Trading.MaxOpenTrades == 0 {
		c.Trading.MaxOpenTrades = 1
	}
	if c.Trading.EntryMinGrade == "" {
		c.Trading.EntryMinGrade = "B"
	}
	if c.Trading.RiskUnit == "" {
		c.Trading.RiskUnit = "bps"
	}
	if c.Risk.DailyMaxDrawdown == 0 {
		c.Risk.DailyMaxDrawdown = 2
	}
	if c.Risk.CooldownSec == 0 {
		c.Risk.CooldownSec = 15
	}
	c.Trading.EntryMinGrade = strings.ToUpper(c.Trading.EntryMinGrade)
	c.Trading.RiskUnit = strings.ToLower(c.Trading.RiskUnit)
	for i, sym := range c.Exchange.Symbols {
		c.Exchange.Symbols[i] = strings.ToUpper(strings.TrimSpace(sym))
	}
}

// Validate surfaces configuration problems before any trading starts.
func (c *Config) Validate() error {
	if c.Trading.MaxCapital <= 0 {
		return fmt.Errorf("trading.max_capital (%f) must be positive", c.Trading.MaxCapital)
	}
	if c.Trading.FeeTaker < 0 || c.Trading.FeeTaker > 0.05 {
		return fmt.Errorf("trading.fee_taker (%f) out of realistic range", c.Trading.FeeTaker)
	}
	if c.Trading.StopLossBps <= 0 {
		return fmt.Errorf("trading.stop_loss_bps (%f) must be positive", c.Trading.StopLossBps)
	}
	if c.Trading.ProfitTakeBps <= 0 {
		return fmt.Errorf("trading.profit_take_bps (%f) must be positive", c.Trading.ProfitTakeBps)
	}
	if c.Trading.TrailStepBps < 0 || c.Trading.TrailStartBps < 0 {
		return fmt.Errorf("trailing bps values cannot be negative")
	}
	switch c.Trading.EntryMinGrade {
	case "A", "B", "C", "":
	default:
		return fmt.Errorf("trading.entry_min_grade (%q) must be A, B, or C", c.Trading.EntryMinGrade)
	}
	switch c.Trading.RiskUnit {
	case "bps", "usdt", "":
	default:
		return fmt.Errorf("trading.risk_unit (%q) must be bps or usdt", c.Trading.RiskUnit)
	}
	if c.Risk.DailyMaxDrawdown <= 0 {
		return fmt.Errorf("risk.daily_max_drawdown (%f) must be positive", c.Risk.DailyMaxDrawdown)
	}
	if c.Risk.CooldownSec < 0 {
		return fmt.Errorf("risk.cooldown_sec (%d) cannot be negative", c.Risk.CooldownSec)
	}
	return nil
}
