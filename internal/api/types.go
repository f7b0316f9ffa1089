package api

import (
	"time"

	"github.com/threatlens/threatlens/internal/model"
	"github.com/threatlens/threatlens/internal/reports"
)

// RegisterRequest is the payload for POST /api/v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest is the payload for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login or registration.
type TokenResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is an account without its credential material.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
}

// ThreatRequest is the payload for POST /api/v1/threats.
type ThreatRequest struct {
	Type          model.ThreatType `json:"type"`
	Value         string           `json:"value"`
	Severity      model.Severity   `json:"severity"`
	Source        string           `json:"source"`
	Category      string           `json:"category"`
	Country       string           `json:"country"`
	MalwareFamily string           `json:"malware_family"`
	Description   string           `json:"description"`
	Tags          []string         `json:"tags"`
}

// IngestResponse reports what happened to an ingested record and which
// alert rules fired on it.
type IngestResponse struct {
	Threat   *model.ThreatRecord `json:"threat"`
	Observed bool                `json:"observed"` // true when an existing record was re-observed
	Alerts   []*model.AlertEvent `json:"alerts,omitempty"`
}

// ThreatListResponse is the paged payload for GET /api/v1/threats.
type ThreatListResponse struct {
	Threats []*model.ThreatRecord `json:"threats"`
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// SearchResponse is the payload for GET /api/v1/search.
type SearchResponse struct {
	Query        string                `json:"query"`
	DetectedType model.ThreatType      `json:"detected_type,omitempty"`
	Threats      []*model.ThreatRecord `json:"threats"`
}

// RuleRequest is the payload for creating or updating an alert rule.
// Pointer fields distinguish "absent" from zero on update.
type RuleRequest struct {
	Name            string               `json:"name"`
	Conditions      model.RuleConditions `json:"conditions"`
	IsActive        *bool                `json:"is_active,omitempty"`
	CooldownMinutes *int                 `json:"cooldown_minutes,omitempty"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	ThreatCount int64  `json:"threat_count"`
	WSClients   int    `json:"ws_clients"`
}

// DashboardResponse is the payload for GET /api/v1/dashboard.
type DashboardResponse struct {
	Summary       *reports.Summary      `json:"summary"`
	RecentThreats []*model.ThreatRecord `json:"recent_threats"`
	RecentAlerts  []*model.AlertEvent   `json:"recent_alerts"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
