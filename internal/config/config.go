package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 8080
	DefaultDataDir         = "./data"
	DefaultLogLevel        = "info"
	DefaultTokenTTL        = 24 * time.Hour
	DefaultCooldownMinutes = 15
	DefaultLookupBaseURL   = "http://ip-api.com/json"
	DefaultLookupCacheSize = 1024
	DefaultLookupCacheTTL  = time.Hour
	DefaultLookupTimeout   = 5 * time.Second
)

// Config holds the configuration parsed from the `server:` section of
// config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket hub, and metrics
	// endpoint listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// DataDir is the directory holding the embedded document database.
	DataDir string `yaml:"data_dir"`

	// LogLevel is a zerolog level name: trace|debug|info|warn|error.
	LogLevel string `yaml:"log_level"`

	Auth   AuthConfig   `yaml:"auth"`
	Alerts AlertsConfig `yaml:"alerts"`
	Lookup LookupConfig `yaml:"lookup"`
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	// SecretEnv is the name of the environment variable holding the JWT
	// signing secret. Empty disables login (all protected routes 401).
	SecretEnv string `yaml:"secret_env"`

	// TokenTTL is the bearer token lifetime. Default: 24h.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Secret returns the signing secret resolved from the environment.
func (a AuthConfig) Secret() string {
	if a.SecretEnv == "" {
		return ""
	}
	return os.Getenv(a.SecretEnv)
}

// AlertsConfig holds alert defaults and webhook delivery targets.
type AlertsConfig struct {
	// DefaultCooldownMinutes is applied to rules created without an
	// explicit cooldown. Default: 15.
	DefaultCooldownMinutes int `yaml:"default_cooldown_minutes"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// LookupConfig tunes the third-party IP lookup client.
type LookupConfig struct {
	BaseURL   string        `yaml:"base_url"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Load reads and parses the config file at path. Missing fields are
// filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			DataDir:  DefaultDataDir,
			LogLevel: DefaultLogLevel,
			Auth: AuthConfig{
				TokenTTL: DefaultTokenTTL,
			},
			Alerts: AlertsConfig{
				DefaultCooldownMinutes: DefaultCooldownMinutes,
			},
			Lookup: LookupConfig{
				BaseURL:   DefaultLookupBaseURL,
				CacheSize: DefaultLookupCacheSize,
				CacheTTL:  DefaultLookupCacheTTL,
				Timeout:   DefaultLookupTimeout,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.DataDir == "" {
		return fmt.Errorf("server.data_dir must not be empty")
	}
	if cfg.Server.Auth.TokenTTL <= 0 {
		return fmt.Errorf("server.auth.token_ttl must be positive")
	}
	if cfg.Server.Alerts.DefaultCooldownMinutes < 0 {
		return fmt.Errorf("server.alerts.default_cooldown_minutes must not be negative")
	}
	if cfg.Server.Lookup.CacheSize <= 0 {
		return fmt.Errorf("server.lookup.cache_size must be positive")
	}
	for _, wh := range cfg.Server.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks type %q unknown: want slack|teams|http", wh.Type)
		}
	}
	return nil
}
