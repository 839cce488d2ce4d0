package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
telegram:
  bot_token: "123:abc"
  user_id: 42

kraken:
  api_key: key
  api_secret: secret

trading:
  used_pairs:
    XBT: EUR
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Kraken.APIBaseURL != "https://api.kraken.com" {
		t.Fatalf("kraken.api_base_url = %q", cfg.Kraken.APIBaseURL)
	}
	if cfg.Kraken.HTTPTimeoutSec != 15 {
		t.Fatalf("kraken.http_timeout_sec = %d, want 15", cfg.Kraken.HTTPTimeoutSec)
	}
	if cfg.Monitor.CheckTradeTimeSec != 60 {
		t.Fatalf("monitor.check_trade_time_sec = %d, want 60", cfg.Monitor.CheckTradeTimeSec)
	}
	if cfg.Trading.BaseCurrency != "EUR" {
		t.Fatalf("trading.base_currency = %q, want EUR", cfg.Trading.BaseCurrency)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log.level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadNormalizesUsedPairs(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, `
telegram:
  bot_token: "123:abc"
  user_id: 42

kraken:
  api_key: key
  api_secret: secret

trading:
  used_pairs:
    xbt: " eur "
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Trading.UsedPairs["XBT"] != "EUR" {
		t.Fatalf("used_pairs = %v", cfg.Trading.UsedPairs)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeTempConfig(t, minimalConfig+`
extra_key: true
`))
	if err == nil {
		t.Fatal("Load() accepted unknown key")
	}
}

func TestLoadRejectsMissingPairs(t *testing.T) {
	_, err := Load(writeTempConfig(t, `
telegram:
  bot_token: "123:abc"
  user_id: 42

kraken:
  api_key: key
  api_secret: secret
`))
	if err == nil || !strings.Contains(err.Error(), "used_pairs") {
		t.Fatalf("Load() error = %v, want used_pairs complaint", err)
	}
}

func TestLoadRejectsBadRetries(t *testing.T) {
	_, err := Load(writeTempConfig(t, `
telegram:
  bot_token: "123:abc"
  user_id: 42

kraken:
  api_key: key
  api_secret: secret
  retries: -1

trading:
  used_pairs:
    XBT: EUR
`))
	if err == nil || !strings.Contains(err.Error(), "retries") {
		t.Fatalf("Load() error = %v, want retries complaint", err)
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("KRAKEN_API_SECRET", "from-env")
	cfg, err := Load(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Kraken.APISecret != "from-env" {
		t.Fatalf("kraken.api_secret = %q, want env value", cfg.Kraken.APISecret)
	}
}

func TestWithValueRoundTrip(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	updated, err := cfg.WithValue("log.level", "debug")
	if err != nil {
		t.Fatalf("WithValue() error = %v", err)
	}
	if updated.Log.Level != "debug" {
		t.Fatalf("log.level = %q, want debug", updated.Log.Level)
	}
	if cfg.Log.Level == "debug" {
		t.Fatal("WithValue mutated the receiver")
	}
}

func TestWithValueRejectsProtectedKey(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := cfg.WithValue(ProtectedKey, int64(7)); err == nil {
		t.Fatal("WithValue() changed the protected key")
	}
}

func TestWithValueRejectsInvalidResult(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := cfg.WithValue("log.level", "verbose"); err == nil {
		t.Fatal("WithValue() accepted an invalid log level")
	}
}

func TestCoercePrecedence(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"hello", "hello"},
		{"1.5", "1.5"},
	}
	for _, tt := range tests {
		if got := Coerce(tt.in); got != tt.want {
			t.Errorf("Coerce(%q) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}
}

func TestSettingsListsLeafKeys(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	keys := make(map[string]bool, len(settings))
	for _, s := range settings {
		keys[s.Key] = true
	}
	for _, want := range []string{"telegram.user_id", "log.level", "kraken.retries", "monitor.check_trades"} {
		if !keys[want] {
			t.Fatalf("Settings() missing %s (got %v)", want, settings)
		}
	}
}

func TestSettingsMarkCredentialsMasked(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	masked := make(map[string]bool, len(settings))
	for _, s := range settings {
		masked[s.Key] = s.Masked()
	}
	for _, key := range []string{"telegram.bot_token", "kraken.api_key", "kraken.api_secret"} {
		if !masked[key] {
			t.Errorf("%s must be masked", key)
		}
	}
	if masked["log.level"] || masked["telegram.user_id"] {
		t.Error("plain settings must not be masked")
	}
}
