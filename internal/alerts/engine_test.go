package alerts_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatlens/threatlens/internal/alerts"
	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/model"
	"github.com/threatlens/threatlens/internal/store"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type capturePublisher struct {
	events []*model.AlertEvent
}

func (p *capturePublisher) Publish(e *model.AlertEvent) { p.events = append(p.events, e) }

func newEngine(t *testing.T) (*alerts.Engine, *store.Store, *capturePublisher) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine := alerts.New(st, config.AlertsConfig{})
	pub := &capturePublisher{}
	engine.SetPublisher(pub)
	return engine, st, pub
}

func seedRule(t *testing.T, st *store.Store, cond model.RuleConditions, cooldownMinutes int) *model.AlertRule {
	t.Helper()
	rule, err := model.NewAlertRule("user-1", "test rule", cond, cooldownMinutes, now)
	require.NoError(t, err)
	require.NoError(t, st.PutRule(rule))
	return rule
}

func seedThreat(t *testing.T, st *store.Store) *model.ThreatRecord {
	t.Helper()
	tr, err := model.NewThreatRecord(model.TypeIP, "203.0.113.7", now)
	require.NoError(t, err)
	tr.Severity = model.SeverityCritical
	tr.Source = "AbuseIPDB"
	require.NoError(t, st.PutThreat(tr))
	return tr
}

func TestEngine_FiresAndPersists(t *testing.T) {
	engine, st, pub := newEngine(t)
	rule := seedRule(t, st, model.RuleConditions{
		Type:       model.TypeIP,
		Severities: []model.Severity{model.SeverityCritical},
	}, 15)
	threat := seedThreat(t, st)

	fired := engine.Evaluate(threat, now)
	require.Len(t, fired, 1)
	assert.Equal(t, rule.ID, fired[0].RuleID)
	assert.Equal(t, threat.ID, fired[0].ThreatID)

	// Trigger bookkeeping reached the store.
	stored, err := st.GetRule(rule.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.TriggerCount)
	require.Len(t, stored.RecentMatches, 1)
	assert.Equal(t, threat.ID, stored.RecentMatches[0].ThreatID)
	require.NotNil(t, stored.NextTriggerAllowed)
	assert.Equal(t, now.Add(15*time.Minute), *stored.NextTriggerAllowed)

	// Event document persisted and published.
	events, err := st.RecentEvents("", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, fired[0].ID, pub.events[0].ID)
}

func TestEngine_CooldownSuppressesRefire(t *testing.T) {
	engine, st, _ := newEngine(t)
	rule := seedRule(t, st, model.RuleConditions{Type: model.TypeAny}, 30)
	threat := seedThreat(t, st)

	require.Len(t, engine.Evaluate(threat, now), 1)
	assert.Empty(t, engine.Evaluate(threat, now.Add(time.Minute)))
	assert.Empty(t, engine.Evaluate(threat, now.Add(29*time.Minute)))

	fired := engine.Evaluate(threat, now.Add(30*time.Minute))
	require.Len(t, fired, 1)

	stored, err := st.GetRule(rule.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.TriggerCount)
}

func TestEngine_InactiveRuleIgnored(t *testing.T) {
	engine, st, pub := newEngine(t)
	rule := seedRule(t, st, model.RuleConditions{Type: model.TypeAny}, 0)
	_, err := st.UpdateRule(rule.ID, func(r *model.AlertRule) error {
		r.IsActive = false
		return nil
	})
	require.NoError(t, err)
	threat := seedThreat(t, st)

	assert.Empty(t, engine.Evaluate(threat, now))
	assert.Empty(t, pub.events)
}

func TestEngine_NonMatchingRuleIgnored(t *testing.T) {
	engine, st, _ := newEngine(t)
	seedRule(t, st, model.RuleConditions{Type: model.TypeDomain}, 0)
	threat := seedThreat(t, st)

	assert.Empty(t, engine.Evaluate(threat, now))

	events, err := st.RecentEvents("", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEngine_MultipleRulesFireIndependently(t *testing.T) {
	engine, st, _ := newEngine(t)
	seedRule(t, st, model.RuleConditions{Type: model.TypeIP}, 0)
	seedRule(t, st, model.RuleConditions{Type: model.TypeAny, Keywords: []string{"203.0.113"}}, 0)
	seedRule(t, st, model.RuleConditions{Type: model.TypeDomain}, 0)
	threat := seedThreat(t, st)

	fired := engine.Evaluate(threat, now)
	assert.Len(t, fired, 2)
}
