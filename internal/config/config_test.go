package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/threatlens/threatlens/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server: {}\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.HTTPPort != config.DefaultHTTPPort {
		t.Errorf("HTTPPort: got %d, want %d", cfg.Server.HTTPPort, config.DefaultHTTPPort)
	}
	if cfg.Server.DataDir != config.DefaultDataDir {
		t.Errorf("DataDir: got %q, want %q", cfg.Server.DataDir, config.DefaultDataDir)
	}
	if cfg.Server.Auth.TokenTTL != config.DefaultTokenTTL {
		t.Errorf("TokenTTL: got %v, want %v", cfg.Server.Auth.TokenTTL, config.DefaultTokenTTL)
	}
	if cfg.Server.Alerts.DefaultCooldownMinutes != config.DefaultCooldownMinutes {
		t.Errorf("DefaultCooldownMinutes: got %d, want %d",
			cfg.Server.Alerts.DefaultCooldownMinutes, config.DefaultCooldownMinutes)
	}
	if cfg.Server.Lookup.BaseURL != config.DefaultLookupBaseURL {
		t.Errorf("Lookup.BaseURL: got %q, want %q", cfg.Server.Lookup.BaseURL, config.DefaultLookupBaseURL)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9001
  data_dir: /var/lib/threatlens
  log_level: debug
  auth:
    secret_env: TL_SECRET
    token_ttl: 1h
  alerts:
    default_cooldown_minutes: 5
    webhooks:
      - type: slack
        url_env: TL_SLACK
  lookup:
    cache_size: 64
    cache_ttl: 10m
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.HTTPPort != 9001 {
		t.Errorf("HTTPPort: got %d, want 9001", cfg.Server.HTTPPort)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Server.Auth.TokenTTL != time.Hour {
		t.Errorf("TokenTTL: got %v, want 1h", cfg.Server.Auth.TokenTTL)
	}
	if len(cfg.Server.Alerts.Webhooks) != 1 || cfg.Server.Alerts.Webhooks[0].Type != "slack" {
		t.Errorf("Webhooks: got %+v", cfg.Server.Alerts.Webhooks)
	}
	if cfg.Server.Lookup.CacheTTL != 10*time.Minute {
		t.Errorf("Lookup.CacheTTL: got %v, want 10m", cfg.Server.Lookup.CacheTTL)
	}
	// Unset lookup fields keep their defaults.
	if cfg.Server.Lookup.Timeout != config.DefaultLookupTimeout {
		t.Errorf("Lookup.Timeout: got %v, want default", cfg.Server.Lookup.Timeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "server: [not a map"},
		{"port out of range", "server:\n  http_port: 70000\n"},
		{"negative cooldown", "server:\n  alerts:\n    default_cooldown_minutes: -1\n"},
		{"unknown webhook type", "server:\n  alerts:\n    webhooks:\n      - type: pigeon\n"},
		{"empty data dir", "server:\n  data_dir: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := config.Load(path); err == nil {
				t.Fatal("Load: expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestWebhookURLFromEnv(t *testing.T) {
	t.Setenv("TL_TEST_WEBHOOK", "https://hooks.example.com/x")
	wh := config.WebhookConfig{Type: "http", URLEnv: "TL_TEST_WEBHOOK"}
	if got := wh.URL(); got != "https://hooks.example.com/x" {
		t.Errorf("URL: got %q", got)
	}
	if got := (config.WebhookConfig{}).URL(); got != "" {
		t.Errorf("URL with no env: got %q, want empty", got)
	}
}
