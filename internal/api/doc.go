// Package api implements the HTTP REST API for threatlens-server.
//
// New(...) returns an http.Handler that serves:
//
//	POST /api/v1/auth/register       — create an account
//	POST /api/v1/auth/login          — exchange credentials for a bearer token
//	GET  /api/v1/health              — liveness and document counts
//	GET  /api/v1/threats             — list records (filters + paging)
//	POST /api/v1/threats             — ingest or re-observe a record
//	GET  /api/v1/threats/{id}        — single record; 404 if unknown
//	DELETE /api/v1/threats/{id}      — remove a record
//	GET  /api/v1/search?q=           — IoC search with type auto-detection
//	GET  /api/v1/rules               — the caller's alert rules
//	POST /api/v1/rules               — create a rule
//	GET|PUT|DELETE /api/v1/rules/{id}
//	GET  /api/v1/alerts?limit=       — the caller's recent alert events
//	GET  /api/v1/lookup/ip/{addr}    — third-party IP lookup (cached)
//	GET  /api/v1/dashboard           — chart aggregates + recent activity
//	GET  /api/v1/reports/summary     — ranked breakdown report
//	GET  /api/v1/reports/export      — CSV or JSON threat export
//
// All endpoints respond with Content-Type: application/json (except the
// CSV export) and return 401 without a valid bearer token on everything
// but /auth/*, /health, and /metrics. JSON types are defined in types.go.
package api
