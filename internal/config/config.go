package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram      TelegramConfig      `yaml:"telegram"`
	Kraken        KrakenConfig        `yaml:"kraken"`
	Trading       TradingConfig       `yaml:"trading"`
	Monitor       MonitorConfig       `yaml:"monitor"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Log           LogConfig           `yaml:"log"`
}

type TelegramConfig struct {
	BotToken string        `yaml:"bot_token"`
	UserID   int64         `yaml:"user_id"`
	Webhook  WebhookConfig `yaml:"webhook"`
}

type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Port    int    `yaml:"port"`
	URL     string `yaml:"url"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
}

type KrakenConfig struct {
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
	APIBaseURL     string `yaml:"api_base_url"`
	Retries        int    `yaml:"retries"`
	HTTPTimeoutSec int64  `yaml:"http_timeout_sec"`
}

type TradingConfig struct {
	// UsedPairs maps a coin altname to the quote currency altname,
	// e.g. XBT: EUR. Resolved to venue pair codes at startup.
	UsedPairs    map[string]string `yaml:"used_pairs"`
	BaseCurrency string            `yaml:"base_currency"`
}

type MonitorConfig struct {
	CheckTrades       bool  `yaml:"check_trades"`
	CheckTradeTimeSec int64 `yaml:"check_trade_time_sec"`
	TrackOpenOnStart  bool  `yaml:"track_open_on_start"`
	WSTicker          bool  `yaml:"ws_ticker"`
}

type NotificationsConfig struct {
	ShowAccessDenied bool `yaml:"show_access_denied"`
	SendErrors       bool `yaml:"send_errors"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.Kraken.APIKey = strings.TrimSpace(c.Kraken.APIKey)
	c.Kraken.APISecret = strings.TrimSpace(c.Kraken.APISecret)
	c.Kraken.APIBaseURL = strings.TrimSpace(c.Kraken.APIBaseURL)
	c.Trading.BaseCurrency = strings.ToUpper(strings.TrimSpace(c.Trading.BaseCurrency))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	pairs := make(map[string]string, len(c.Trading.UsedPairs))
	for coin, quote := range c.Trading.UsedPairs {
		pairs[strings.ToUpper(strings.TrimSpace(coin))] = strings.ToUpper(strings.TrimSpace(quote))
	}
	c.Trading.UsedPairs = pairs
}

func (c *Config) applyDefaults() {
	if c.Kraken.APIBaseURL == "" {
		c.Kraken.APIBaseURL = "https://api.kraken.com"
	}
	if c.Kraken.HTTPTimeoutSec == 0 {
		c.Kraken.HTTPTimeoutSec = 15
	}
	if c.Monitor.CheckTradeTimeSec == 0 {
		c.Monitor.CheckTradeTimeSec = 60
	}
	if c.Trading.BaseCurrency == "" {
		c.Trading.BaseCurrency = "EUR"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 20
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 14
	}
	if c.Telegram.Webhook.Listen == "" {
		c.Telegram.Webhook.Listen = "0.0.0.0"
	}
	if c.Telegram.Webhook.Port == 0 {
		c.Telegram.Webhook.Port = 8443
	}
}

// applyEnv overlays secrets from the environment so they can be kept out of
// the config file. A .env file loaded at startup feeds the same variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("KRAKEN_API_KEY"); v != "" {
		c.Kraken.APIKey = v
	}
	if v := os.Getenv("KRAKEN_API_SECRET"); v != "" {
		c.Kraken.APISecret = v
	}
}

func (c Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.UserID == 0 {
		return fmt.Errorf("telegram.user_id is required")
	}
	if c.Kraken.APIKey == "" || c.Kraken.APISecret == "" {
		return fmt.Errorf("kraken.api_key/api_secret are required")
	}
	if c.Kraken.Retries < 0 {
		return fmt.Errorf("kraken.retries must be >= 0")
	}
	if c.Kraken.HTTPTimeoutSec < 1 || c.Kraken.HTTPTimeoutSec > 120 {
		return fmt.Errorf("kraken.http_timeout_sec must be between 1 and 120")
	}
	if err := validateURL(c.Kraken.APIBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("kraken.api_base_url %v", err)
	}
	if len(c.Trading.UsedPairs) == 0 {
		return fmt.Errorf("trading.used_pairs must list at least one pair")
	}
	for coin, quote := range c.Trading.UsedPairs {
		if coin == "" || quote == "" {
			return fmt.Errorf("trading.used_pairs entries must map coin to quote currency")
		}
	}
	if c.Monitor.CheckTradeTimeSec < 5 || c.Monitor.CheckTradeTimeSec > 3600 {
		return fmt.Errorf("monitor.check_trade_time_sec must be between 5 and 3600")
	}
	if c.Telegram.Webhook.Enabled {
		if err := validateURL(c.Telegram.Webhook.URL, "https"); err != nil {
			return fmt.Errorf("telegram.webhook.url %v", err)
		}
		if c.Telegram.Webhook.Port < 1 || c.Telegram.Webhook.Port > 65535 {
			return fmt.Errorf("telegram.webhook.port must be a valid port")
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must include scheme and host")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
}
