package store

import (
	"time"

	"github.com/threatlens/threatlens/internal/model"
)

// ThreatStats aggregates record counts across the filter dimensions the
// dashboard charts on.
type ThreatStats struct {
	Total      int64            `json:"total"`
	ByType     map[string]int64 `json:"by_type"`
	BySeverity map[string]int64 `json:"by_severity"`
	BySource   map[string]int64 `json:"by_source"`
	ByCountry  map[string]int64 `json:"by_country"`
	ByFamily   map[string]int64 `json:"by_family"`
}

// Stats aggregates counts over all records whose LastSeen is at or
// after since. A zero since covers everything.
func (s *Store) Stats(since time.Time) (*ThreatStats, error) {
	st := &ThreatStats{
		ByType:     make(map[string]int64),
		BySeverity: make(map[string]int64),
		BySource:   make(map[string]int64),
		ByCountry:  make(map[string]int64),
		ByFamily:   make(map[string]int64),
	}
	err := s.iterPrefix(prefixThreat, func() interface{} { return &model.ThreatRecord{} }, func(v interface{}) bool {
		t := v.(*model.ThreatRecord)
		if !since.IsZero() && t.LastSeen.Before(since) {
			return true
		}
		st.Total++
		st.ByType[string(t.Type)]++
		st.BySeverity[string(t.Severity)]++
		if t.Source != "" {
			st.BySource[t.Source]++
		}
		if t.Country != "" {
			st.ByCountry[t.Country]++
		}
		if t.MalwareFamily != "" {
			st.ByFamily[t.MalwareFamily]++
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
