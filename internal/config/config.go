package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all non-secret application configuration.
type Config struct {
	Exchange struct {
		Name           string   `yaml:"name"`
		BaseURL        string   `yaml:"base_url"`
		QuoteCurrency  string   `yaml:"quote_currency"`
		Pairs          []string `yaml:"pairs"`      // always synced, in addition to held assets
		Timeframes     []string `yaml:"timeframes"` // e.g. 1h, 4h, 1d
		MinAssetAmount float64  `yaml:"min_asset_amount"`
		RateDelaySec   float64  `yaml:"rate_delay_sec"` // pause between remote calls
	} `yaml:"exchange"`
	OpenAI struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
		TimeoutSec  int     `yaml:"timeout_sec"`
	} `yaml:"openai"`
	Telegram struct {
		MaxMessageLength int     `yaml:"max_message_length"`
		PartPauseSec     float64 `yaml:"part_pause_sec"`
	} `yaml:"telegram"`
	History struct {
		PageLimit     int     `yaml:"page_limit"`
		RetryDelaySec float64 `yaml:"retry_delay_sec"`
		LookbackDays  int     `yaml:"lookback_days"` // initial depth for fresh series
	} `yaml:"history"`
	Storage struct {
		DataDir    string `yaml:"data_dir"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`
	Schedule struct {
		AdviseCron string `yaml:"advise_cron"`
		SyncCron   string `yaml:"sync_cron"`
	} `yaml:"schedule"`
	PromptFile string `yaml:"prompt_file"`
}

// Credentials are loaded from the environment only, never from the YAML file.
type Credentials struct {
	KrakenAPIKey     string `envconfig:"KRAKEN_API_KEY" required:"true"`
	KrakenAPISecret  string `envconfig:"KRAKEN_API_SECRET" required:"true"`
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY" required:"true"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID" required:"true"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("KRAKEN_BASE_URL"); v != "" {
		cfg.Exchange.BaseURL = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("PROMPT_FILE"); v != "" {
		cfg.PromptFile = v
	}
	if v := os.Getenv("CRON_ADVISE"); v != "" {
		cfg.Schedule.AdviseCron = v
	}
	if v := os.Getenv("MIN_ASSET_AMOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Exchange.MinAssetAmount = f
		}
	}

	// Defaults
	if cfg.Exchange.Name == "" {
		cfg.Exchange.Name = "kraken"
	}
	if cfg.Exchange.BaseURL == "" {
		cfg.Exchange.BaseURL = "https://api.kraken.com"
	}
	if cfg.Exchange.QuoteCurrency == "" {
		cfg.Exchange.QuoteCurrency = "ZEUR"
	}
	if len(cfg.Exchange.Timeframes) == 0 {
		cfg.Exchange.Timeframes = []string{"1h", "1d"}
	}
	if cfg.Exchange.MinAssetAmount == 0 {
		cfg.Exchange.MinAssetAmount = 0.0001
	}
	if cfg.Exchange.RateDelaySec == 0 {
		cfg.Exchange.RateDelaySec = 1.0
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4-turbo-preview"
	}
	if cfg.OpenAI.Temperature == 0 {
		cfg.OpenAI.Temperature = 0.7
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = 2000
	}
	if cfg.OpenAI.TimeoutSec == 0 {
		cfg.OpenAI.TimeoutSec = 60
	}
	if cfg.Telegram.MaxMessageLength == 0 {
		cfg.Telegram.MaxMessageLength = 4000
	}
	if cfg.Telegram.PartPauseSec == 0 {
		cfg.Telegram.PartPauseSec = 0.5
	}
	if cfg.History.PageLimit == 0 {
		cfg.History.PageLimit = 720
	}
	if cfg.History.RetryDelaySec == 0 {
		cfg.History.RetryDelaySec = 5
	}
	if cfg.History.LookbackDays == 0 {
		cfg.History.LookbackDays = 30
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/octoadvisor.db"
	}
	if cfg.Schedule.AdviseCron == "" {
		cfg.Schedule.AdviseCron = "0 0 7 * * *"
	}
	if cfg.Schedule.SyncCron == "" {
		cfg.Schedule.SyncCron = "0 30 * * * *"
	}
	if cfg.PromptFile == "" {
		cfg.PromptFile = "prompt.txt"
	}

	return cfg, nil
}

// Validate checks that all fields are consistent.
func (c *Config) Validate() error {
	if c.Exchange.MinAssetAmount < 0 {
		return fmt.Errorf("exchange.min_asset_amount must not be negative")
	}
	if c.Telegram.MaxMessageLength <= 0 {
		return fmt.Errorf("telegram.max_message_length must be positive")
	}
	if c.History.PageLimit <= 0 {
		return fmt.Errorf("history.page_limit must be positive")
	}
	for _, tf := range c.Exchange.Timeframes {
		if !validTimeframe(tf) {
			return fmt.Errorf("exchange.timeframes: unknown timeframe %q", tf)
		}
	}
	if c.PromptFile == "" {
		return fmt.Errorf("prompt_file is required")
	}
	return nil
}

func validTimeframe(s string) bool {
	switch s {
	case "1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w":
		return true
	}
	return false
}

// LoadCredentials reads the API secrets from the environment.
func LoadCredentials() (*Credentials, error) {
	var creds Credentials
	if err := envconfig.Process("", &creds); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return &creds, nil
}
