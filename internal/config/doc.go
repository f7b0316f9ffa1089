// Package config loads the server configuration from the `server:`
// section of config.yaml.
//
// Config fields:
//   - HTTPPort         — port for the REST API, WebSocket hub, and metrics (default 8080)
//   - DataDir          — BadgerDB directory (default ./data)
//   - LogLevel         — zerolog level name (default "info")
//   - Auth.SecretEnv   — environment variable holding the JWT signing secret
//   - Auth.TokenTTL    — bearer token lifetime (default 24h)
//   - Alerts.DefaultCooldownMinutes — cooldown applied to rules created without one
//   - Alerts.Webhooks  — webhook delivery targets (type + URL env var)
//   - Lookup.BaseURL   — third-party IP lookup endpoint
//   - Lookup.CacheSize / CacheTTL / Timeout — lookup client tuning
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) hot-reloads the file on write.
package config
