package alerts

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/threatlens/threatlens/internal/model"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func activeRule(cond model.RuleConditions) *model.AlertRule {
	return &model.AlertRule{
		ID:         "rule-1",
		OwnerID:    "user-1",
		Name:       "test rule",
		Conditions: cond,
		IsActive:   true,
	}
}

func threat() *model.ThreatRecord {
	return &model.ThreatRecord{
		ID:            "threat-1",
		Type:          model.TypeIP,
		Value:         "203.0.113.7",
		Severity:      model.SeverityCritical,
		Source:        "AbuseIPDB",
		Category:      "botnet",
		Country:       "Germany",
		MalwareFamily: "Emotet",
		Description:   "C2 callback address",
		Tags:          []string{"Emotet", "botnet"},
	}
}

func TestShouldTrigger_InactiveNeverFires(t *testing.T) {
	rule := activeRule(model.RuleConditions{Type: model.TypeAny})
	rule.IsActive = false

	assert.False(t, ShouldTrigger(rule, threat(), now))
}

func TestShouldTrigger_EmptyConditionsMatchEverything(t *testing.T) {
	rule := activeRule(model.RuleConditions{Type: model.TypeAny})

	assert.True(t, ShouldTrigger(rule, threat(), now))

	other := threat()
	other.Type = model.TypeDomain
	other.Value = "evil.example.com"
	other.Severity = model.SeverityLow
	other.MalwareFamily = ""
	assert.True(t, ShouldTrigger(rule, other, now))
}

func TestShouldTrigger_CooldownGate(t *testing.T) {
	rule := activeRule(model.RuleConditions{Type: model.TypeAny})
	deadline := now.Add(10 * time.Minute)
	rule.NextTriggerAllowed = &deadline

	assert.False(t, ShouldTrigger(rule, threat(), now))
	assert.False(t, ShouldTrigger(rule, threat(), deadline.Add(-time.Second)))
	// Eligible again exactly at the deadline.
	assert.True(t, ShouldTrigger(rule, threat(), deadline))
	assert.True(t, ShouldTrigger(rule, threat(), deadline.Add(time.Second)))
}

func TestShouldTrigger_Dimensions(t *testing.T) {
	tests := []struct {
		name string
		cond model.RuleConditions
		mut  func(*model.ThreatRecord)
		want bool
	}{
		{
			name: "type match",
			cond: model.RuleConditions{Type: model.TypeIP},
			want: true,
		},
		{
			name: "type mismatch",
			cond: model.RuleConditions{Type: model.TypeDomain},
			want: false,
		},
		{
			name: "exact value match",
			cond: model.RuleConditions{Type: model.TypeAny, Value: "203.0.113.7"},
			want: true,
		},
		{
			name: "exact value mismatch",
			cond: model.RuleConditions{Type: model.TypeAny, Value: "198.51.100.1"},
			want: false,
		},
		{
			name: "severity in set",
			cond: model.RuleConditions{Type: model.TypeIP, Severities: []model.Severity{model.SeverityCritical}},
			want: true,
		},
		{
			name: "severity not in set",
			cond: model.RuleConditions{Type: model.TypeIP, Severities: []model.Severity{model.SeverityCritical}},
			mut:  func(tr *model.ThreatRecord) { tr.Severity = model.SeverityMedium },
			want: false,
		},
		{
			name: "source set empty is vacuous",
			cond: model.RuleConditions{Type: model.TypeIP, Severities: []model.Severity{model.SeverityCritical}, Sources: nil},
			want: true,
		},
		{
			name: "source in set",
			cond: model.RuleConditions{Type: model.TypeAny, Sources: []string{"AbuseIPDB", "VirusTotal"}},
			want: true,
		},
		{
			name: "source not in set",
			cond: model.RuleConditions{Type: model.TypeAny, Sources: []string{"VirusTotal"}},
			want: false,
		},
		{
			name: "category in set",
			cond: model.RuleConditions{Type: model.TypeAny, Categories: []string{"botnet"}},
			want: true,
		},
		{
			name: "country not in set",
			cond: model.RuleConditions{Type: model.TypeAny, Countries: []string{"France"}},
			want: false,
		},
		{
			name: "family in set",
			cond: model.RuleConditions{Type: model.TypeAny, MalwareFamilies: []string{"Emotet"}},
			want: true,
		},
		{
			name: "family constraint requires a family on the record",
			cond: model.RuleConditions{Type: model.TypeAny, MalwareFamilies: []string{"Emotet"}},
			mut:  func(tr *model.ThreatRecord) { tr.MalwareFamily = "" },
			want: false,
		},
		{
			name: "all dimensions together",
			cond: model.RuleConditions{
				Type:       model.TypeIP,
				Severities: []model.Severity{model.SeverityCritical, model.SeverityHigh},
				Sources:    []string{"AbuseIPDB"},
				Countries:  []string{"Germany"},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := threat()
			if tt.mut != nil {
				tt.mut(tr)
			}
			assert.Equal(t, tt.want, ShouldTrigger(activeRule(tt.cond), tr, now))
		})
	}
}

func TestShouldTrigger_KeywordsCaseInsensitive(t *testing.T) {
	rule := activeRule(model.RuleConditions{Type: model.TypeAny, Keywords: []string{"emotet"}})

	// Tag is "Emotet"; keyword matching must ignore case.
	assert.True(t, ShouldTrigger(rule, threat(), now))

	rule.Conditions.Keywords = []string{"CALLBACK"}
	assert.True(t, ShouldTrigger(rule, threat(), now), "description match")

	rule.Conditions.Keywords = []string{"203.0.113"}
	assert.True(t, ShouldTrigger(rule, threat(), now), "value match")

	rule.Conditions.Keywords = []string{"lockbit", "qakbot"}
	assert.False(t, ShouldTrigger(rule, threat(), now))
}

func TestRecordTrigger_Bookkeeping(t *testing.T) {
	rule := activeRule(model.RuleConditions{Type: model.TypeAny})
	rule.CooldownMinutes = 30

	RecordTrigger(rule, "threat-1", now)

	assert.NotNil(t, rule.LastTriggered)
	assert.Equal(t, now, *rule.LastTriggered)
	assert.EqualValues(t, 1, rule.TriggerCount)
	assert.Len(t, rule.RecentMatches, 1)
	assert.Equal(t, "threat-1", rule.RecentMatches[0].ThreatID)
	assert.False(t, rule.RecentMatches[0].Notified)

	// Cooldown deadline is strictly in the future of the trigger.
	assert.NotNil(t, rule.NextTriggerAllowed)
	assert.Equal(t, now.Add(30*time.Minute), *rule.NextTriggerAllowed)
	assert.True(t, rule.NextTriggerAllowed.After(now))
}

func TestRecordTrigger_ZeroCooldownSetsNoDeadline(t *testing.T) {
	rule := activeRule(model.RuleConditions{Type: model.TypeAny})

	RecordTrigger(rule, "threat-1", now)

	assert.Nil(t, rule.NextTriggerAllowed)
	assert.True(t, ShouldTrigger(rule, threat(), now), "no throttle without cooldown")
}

func TestRecordTrigger_HistoryBoundedNewestFirst(t *testing.T) {
	rule := activeRule(model.RuleConditions{Type: model.TypeAny})

	for i := 0; i < 25; i++ {
		RecordTrigger(rule, fmt.Sprintf("threat-%d", i), now.Add(time.Duration(i)*time.Minute))
	}

	assert.EqualValues(t, 25, rule.TriggerCount)
	assert.Len(t, rule.RecentMatches, model.MaxRecentMatches)
	// Newest first, oldest discarded.
	assert.Equal(t, "threat-24", rule.RecentMatches[0].ThreatID)
	assert.Equal(t, "threat-15", rule.RecentMatches[len(rule.RecentMatches)-1].ThreatID)
	for i := 1; i < len(rule.RecentMatches); i++ {
		assert.True(t, rule.RecentMatches[i].MatchedAt.Before(rule.RecentMatches[i-1].MatchedAt))
	}
}

func TestCooldownRoundTrip(t *testing.T) {
	rule := activeRule(model.RuleConditions{Type: model.TypeAny})
	rule.CooldownMinutes = 15

	assert.True(t, ShouldTrigger(rule, threat(), now))
	RecordTrigger(rule, "threat-1", now)

	assert.False(t, ShouldTrigger(rule, threat(), now.Add(time.Minute)))
	assert.False(t, ShouldTrigger(rule, threat(), now.Add(15*time.Minute-time.Second)))
	assert.True(t, ShouldTrigger(rule, threat(), now.Add(15*time.Minute)))
}

// The worked example from the dashboard documentation: an IP rule
// scoped to Critical severity with no source constraint.
func TestShouldTrigger_CriticalIPExample(t *testing.T) {
	rule := activeRule(model.RuleConditions{
		Type:       model.TypeIP,
		Severities: []model.Severity{model.SeverityCritical},
	})

	tr := threat()
	assert.True(t, ShouldTrigger(rule, tr, now))

	tr.Severity = model.SeverityMedium
	assert.False(t, ShouldTrigger(rule, tr, now))
}
