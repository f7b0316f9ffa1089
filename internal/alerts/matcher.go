package alerts

import (
	"strings"
	"time"

	"github.com/threatlens/threatlens/internal/model"
)

// ShouldTrigger reports whether rule fires for threat at now.
//
// Two gates run first: an inactive rule never fires, and a rule whose
// cooldown deadline lies after now never fires. Past the gates the
// result is the conjunction of the per-dimension filters below, each of
// which is vacuously true when its configured set or value is empty:
//
//	type            — unset or Any, or equals the record type
//	exact value     — unset, or equals the record value
//	severity        — empty, or the record severity is in the set
//	source          — empty, or the record source is in the set
//	category        — empty, or the record category is in the set
//	country         — empty, or the record country is in the set
//	malware family  — empty, or the record family is set and in the set
//	keywords        — empty, or any keyword is a case-insensitive
//	                  substring of description + tags + value
func ShouldTrigger(rule *model.AlertRule, threat *model.ThreatRecord, now time.Time) bool {
	if !rule.IsActive {
		return false
	}
	if rule.NextTriggerAllowed != nil && rule.NextTriggerAllowed.After(now) {
		return false
	}

	cond := &rule.Conditions
	if cond.Type != "" && cond.Type != model.TypeAny && cond.Type != threat.Type {
		return false
	}
	if cond.Value != "" && cond.Value != threat.Value {
		return false
	}
	if !inSeveritySet(cond.Severities, threat.Severity) {
		return false
	}
	if !inSet(cond.Sources, threat.Source) {
		return false
	}
	if !inSet(cond.Categories, threat.Category) {
		return false
	}
	if !inSet(cond.Countries, threat.Country) {
		return false
	}
	if len(cond.MalwareFamilies) > 0 {
		if threat.MalwareFamily == "" || !inSet(cond.MalwareFamilies, threat.MalwareFamily) {
			return false
		}
	}
	if !matchKeywords(cond.Keywords, threat) {
		return false
	}
	return true
}

// RecordTrigger applies the trigger side effects to rule: LastTriggered,
// TriggerCount, the bounded recent-match history (newest first, oldest
// discarded beyond MaxRecentMatches), and — only when a cooldown is
// configured — the next-trigger deadline. The caller persists the rule.
func RecordTrigger(rule *model.AlertRule, threatID string, now time.Time) {
	t := now
	rule.LastTriggered = &t
	rule.TriggerCount++

	matches := make([]model.RuleMatch, 0, len(rule.RecentMatches)+1)
	matches = append(matches, model.RuleMatch{ThreatID: threatID, MatchedAt: now})
	matches = append(matches, rule.RecentMatches...)
	if len(matches) > model.MaxRecentMatches {
		matches = matches[:model.MaxRecentMatches]
	}
	rule.RecentMatches = matches

	if rule.CooldownMinutes > 0 {
		deadline := now.Add(rule.Cooldown())
		rule.NextTriggerAllowed = &deadline
	}
	rule.UpdatedAt = now
}

func inSet(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func inSeveritySet(set []model.Severity, v model.Severity) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// matchKeywords checks any-of keyword containment over the record's
// free-text surface.
func matchKeywords(keywords []string, threat *model.ThreatRecord) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(threat.Description + " " + strings.Join(threat.Tags, " ") + " " + threat.Value)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
