package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxRecentMatches bounds the per-rule match history. The newest match
// is always first; the oldest entry beyond the bound is discarded.
const MaxRecentMatches = 10

// RuleConditions is the conjunction of optional filters an alert rule
// applies to a threat record. An empty set or zero value on any field
// means that dimension is unconstrained.
type RuleConditions struct {
	// Type restricts the threat type; TypeAny matches every record type.
	Type ThreatType `json:"type"`

	// Value, when non-empty, requires an exact match on the record value.
	Value string `json:"value,omitempty"`

	Severities      []Severity `json:"severities,omitempty"`
	Sources         []string   `json:"sources,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	Countries       []string   `json:"countries,omitempty"`
	MalwareFamilies []string   `json:"malware_families,omitempty"`

	// Keywords match case-insensitively as substrings of the record's
	// description, tags, and value.
	Keywords []string `json:"keywords,omitempty"`
}

// Validate checks structural constraints on the conditions. An unset
// type is normalized to TypeAny.
func (c *RuleConditions) Validate() error {
	if c.Type == "" {
		c.Type = TypeAny
	}
	if c.Type != TypeAny && !c.Type.IsRecordType() {
		return fmt.Errorf("model: rule condition type %q unknown", c.Type)
	}
	for _, s := range c.Severities {
		if !s.IsValid() {
			return fmt.Errorf("model: rule condition severity %q unknown", s)
		}
	}
	return nil
}

// RuleMatch is one entry in a rule's bounded recent-match history.
type RuleMatch struct {
	ThreatID  string    `json:"threat_id"`
	MatchedAt time.Time `json:"matched_at"`
	Notified  bool      `json:"notified"`
}

// AlertRule is a user-defined matching rule with its trigger bookkeeping.
type AlertRule struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	Name       string         `json:"name"`
	Conditions RuleConditions `json:"conditions"`
	IsActive   bool           `json:"is_active"`

	// CooldownMinutes suppresses re-firing for this many minutes after a
	// trigger. Zero disables the cooldown entirely.
	CooldownMinutes int `json:"cooldown_minutes"`

	NextTriggerAllowed *time.Time  `json:"next_trigger_allowed,omitempty"`
	LastTriggered      *time.Time  `json:"last_triggered,omitempty"`
	TriggerCount       int64       `json:"trigger_count"`
	RecentMatches      []RuleMatch `json:"recent_matches,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAlertRule builds an active rule owned by ownerID.
func NewAlertRule(ownerID, name string, cond RuleConditions, cooldownMinutes int, now time.Time) (*AlertRule, error) {
	if name == "" {
		return nil, fmt.Errorf("model: rule name is empty")
	}
	if cooldownMinutes < 0 {
		return nil, fmt.Errorf("model: cooldown must not be negative")
	}
	if err := cond.Validate(); err != nil {
		return nil, err
	}
	return &AlertRule{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		Name:            name,
		Conditions:      cond,
		IsActive:        true,
		CooldownMinutes: cooldownMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Cooldown returns the configured cooldown as a duration.
func (r *AlertRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// AlertEvent is a persisted record of one rule firing on one threat.
type AlertEvent struct {
	ID        string     `json:"id"`
	RuleID    string     `json:"rule_id"`
	RuleName  string     `json:"rule_name"`
	OwnerID   string     `json:"owner_id"`
	ThreatID  string     `json:"threat_id"`
	Type      ThreatType `json:"threat_type"`
	Value     string     `json:"threat_value"`
	Severity  Severity   `json:"severity"`
	FiredAt   time.Time  `json:"fired_at"`
}

// NewAlertEvent records that rule fired on threat at now.
func NewAlertEvent(rule *AlertRule, threat *ThreatRecord, now time.Time) *AlertEvent {
	return &AlertEvent{
		ID:       uuid.New().String(),
		RuleID:   rule.ID,
		RuleName: rule.Name,
		OwnerID:  rule.OwnerID,
		ThreatID: threat.ID,
		Type:     threat.Type,
		Value:    threat.Value,
		Severity: threat.Severity,
		FiredAt:  now,
	}
}
