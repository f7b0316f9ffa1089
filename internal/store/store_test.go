package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatlens/threatlens/internal/model"
	"github.com/threatlens/threatlens/internal/store"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newThreat(t *testing.T, typ model.ThreatType, value string) *model.ThreatRecord {
	t.Helper()
	tr, err := model.NewThreatRecord(typ, value, now)
	require.NoError(t, err)
	return tr
}

// --- threats ----------------------------------------------------------------

func TestThreats_PutGetDelete(t *testing.T) {
	st := openStore(t)

	tr := newThreat(t, model.TypeIP, "203.0.113.7")
	tr.Severity = model.SeverityHigh
	tr.Source = "AbuseIPDB"
	require.NoError(t, st.PutThreat(tr))

	got, err := st.GetThreat(tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.Value, got.Value)
	assert.Equal(t, model.SeverityHigh, got.Severity)

	byValue, err := st.FindThreatByValue(model.TypeIP, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, tr.ID, byValue.ID)

	require.NoError(t, st.DeleteThreat(tr.ID))
	_, err = st.GetThreat(tr.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.FindThreatByValue(model.TypeIP, "203.0.113.7")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestThreats_DuplicateValueConflicts(t *testing.T) {
	st := openStore(t)

	require.NoError(t, st.PutThreat(newThreat(t, model.TypeDomain, "evil.example.com")))
	err := st.PutThreat(newThreat(t, model.TypeDomain, "evil.example.com"))
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestThreats_ObserveBumpsCounters(t *testing.T) {
	st := openStore(t)

	tr := newThreat(t, model.TypeIP, "203.0.113.7")
	require.NoError(t, st.PutThreat(tr))

	later := now.Add(time.Hour)
	got, seen, err := st.ObserveThreat(model.TypeIP, "203.0.113.7", later)
	require.NoError(t, err)
	assert.True(t, seen)
	assert.EqualValues(t, 2, got.HitCount)
	assert.Equal(t, later, got.LastSeen)
	assert.Equal(t, now, got.FirstSeen, "first seen is immutable")

	// Unknown value: nothing written, seen=false.
	got, seen, err = st.ObserveThreat(model.TypeIP, "198.51.100.1", later)
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Nil(t, got)
}

func TestThreats_ListFilters(t *testing.T) {
	st := openStore(t)

	a := newThreat(t, model.TypeIP, "203.0.113.7")
	a.Severity = model.SeverityCritical
	a.Source = "AbuseIPDB"
	a.Country = "Germany"
	b := newThreat(t, model.TypeDomain, "evil.example.com")
	b.Severity = model.SeverityLow
	b.Description = "phishing landing page"
	b.LastSeen = now.Add(time.Minute)
	c := newThreat(t, model.TypeIP, "198.51.100.1")
	c.Severity = model.SeverityCritical
	c.LastSeen = now.Add(2 * time.Minute)
	for _, tr := range []*model.ThreatRecord{a, b, c} {
		require.NoError(t, st.PutThreat(tr))
	}

	all, total, err := st.ListThreats(store.ThreatFilters{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	// Newest LastSeen first.
	assert.Equal(t, c.ID, all[0].ID)

	ips, total, err := st.ListThreats(store.ThreatFilters{Type: model.TypeIP})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, ips, 2)

	crit, _, err := st.ListThreats(store.ThreatFilters{Severity: model.SeverityCritical, Source: "AbuseIPDB"})
	require.NoError(t, err)
	require.Len(t, crit, 1)
	assert.Equal(t, a.ID, crit[0].ID)

	found, _, err := st.ListThreats(store.ThreatFilters{Search: "PHISHING"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)

	paged, total, err := st.ListThreats(store.ThreatFilters{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, paged, 1)
	assert.Equal(t, b.ID, paged[0].ID)
}

// --- users ------------------------------------------------------------------

func TestUsers_CreateAndLookup(t *testing.T) {
	st := openStore(t)

	u, err := model.NewUser("Analyst@Example.com", "Analyst", now)
	require.NoError(t, err)
	require.NoError(t, st.CreateUser(u))

	byEmail, err := st.GetUserByEmail("analyst@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	dup, err := model.NewUser("analyst@example.com", "Other", now)
	require.NoError(t, err)
	assert.ErrorIs(t, st.CreateUser(dup), store.ErrConflict)

	require.NoError(t, st.TouchLogin(u.ID, now.Add(time.Hour)))
	got, err := st.GetUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), got.LastLogin)
}

// --- rules ------------------------------------------------------------------

func TestRules_CRUDAndActiveList(t *testing.T) {
	st := openStore(t)

	r1, err := model.NewAlertRule("user-1", "critical IPs", model.RuleConditions{Type: model.TypeIP}, 15, now)
	require.NoError(t, err)
	r2, err := model.NewAlertRule("user-2", "domains", model.RuleConditions{Type: model.TypeDomain}, 0, now.Add(time.Minute))
	require.NoError(t, err)
	r2.IsActive = false
	require.NoError(t, st.PutRule(r1))
	require.NoError(t, st.PutRule(r2))

	mine, err := st.ListRules("user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r1.ID, mine[0].ID)

	active, err := st.ListActiveRules()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, r1.ID, active[0].ID)

	require.NoError(t, st.DeleteRule(r1.ID))
	assert.ErrorIs(t, st.DeleteRule(r1.ID), store.ErrNotFound)
}

func TestRules_UpdateSerialized(t *testing.T) {
	st := openStore(t)

	rule, err := model.NewAlertRule("user-1", "counter", model.RuleConditions{Type: model.TypeAny}, 0, now)
	require.NoError(t, err)
	require.NoError(t, st.PutRule(rule))

	// Concurrent increments through UpdateRule must not lose updates.
	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.UpdateRule(rule.ID, func(r *model.AlertRule) error {
				r.TriggerCount++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := st.GetRule(rule.ID)
	require.NoError(t, err)
	assert.EqualValues(t, workers, got.TriggerCount)
}

// --- events -----------------------------------------------------------------

func TestEvents_NewestFirstAndOwnerFilter(t *testing.T) {
	st := openStore(t)

	rule, err := model.NewAlertRule("user-1", "r", model.RuleConditions{Type: model.TypeAny}, 0, now)
	require.NoError(t, err)
	other, err := model.NewAlertRule("user-2", "r2", model.RuleConditions{Type: model.TypeAny}, 0, now)
	require.NoError(t, err)
	tr := newThreat(t, model.TypeIP, "203.0.113.7")

	for i := 0; i < 3; i++ {
		ev := model.NewAlertEvent(rule, tr, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, st.AppendEvent(ev))
	}
	require.NoError(t, st.AppendEvent(model.NewAlertEvent(other, tr, now.Add(time.Hour))))

	events, err := st.RecentEvents("", 10)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "user-2", events[0].OwnerID, "newest event first")
	assert.True(t, events[1].FiredAt.After(events[2].FiredAt))

	mine, err := st.RecentEvents("user-1", 2)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, ev := range mine {
		assert.Equal(t, "user-1", ev.OwnerID)
	}
}

func TestStats(t *testing.T) {
	st := openStore(t)

	a := newThreat(t, model.TypeIP, "203.0.113.7")
	a.Severity = model.SeverityCritical
	a.Source = "AbuseIPDB"
	a.MalwareFamily = "Emotet"
	b := newThreat(t, model.TypeDomain, "evil.example.com")
	b.Severity = model.SeverityCritical
	b.LastSeen = now.Add(-48 * time.Hour)
	require.NoError(t, st.PutThreat(a))
	require.NoError(t, st.PutThreat(b))

	stats, err := st.Stats(time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 2, stats.BySeverity["Critical"])
	assert.EqualValues(t, 1, stats.ByType["IP"])
	assert.EqualValues(t, 1, stats.ByFamily["Emotet"])

	recent, err := st.Stats(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, recent.Total)
}
