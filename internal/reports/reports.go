package reports

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/threatlens/threatlens/internal/model"
	"github.com/threatlens/threatlens/internal/store"
)

// Count is one labelled tally in a ranked breakdown.
type Count struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Summary is the payload of GET /api/v1/reports/summary.
type Summary struct {
	GeneratedAt  time.Time          `json:"generated_at"`
	WindowStart  *time.Time         `json:"window_start,omitempty"`
	Stats        *store.ThreatStats `json:"stats"`
	TopSources   []Count            `json:"top_sources"`
	TopCountries []Count            `json:"top_countries"`
	TopFamilies  []Count            `json:"top_families"`
}

// topN is how many entries each ranked breakdown carries.
const topN = 10

// BuildSummary aggregates the store into a report. A zero since covers
// all records.
func BuildSummary(st *store.Store, since time.Time, now time.Time) (*Summary, error) {
	stats, err := st.Stats(since)
	if err != nil {
		return nil, err
	}
	s := &Summary{
		GeneratedAt:  now,
		Stats:        stats,
		TopSources:   ranked(stats.BySource),
		TopCountries: ranked(stats.ByCountry),
		TopFamilies:  ranked(stats.ByFamily),
	}
	if !since.IsZero() {
		s.WindowStart = &since
	}
	return s, nil
}

// ranked converts a tally map into a descending top-N list with a
// stable label tiebreak.
func ranked(m map[string]int64) []Count {
	out := make([]Count, 0, len(m))
	for label, n := range m {
		out = append(out, Count{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// csvHeader is the column order of CSV exports.
var csvHeader = []string{
	"id", "type", "value", "severity", "source", "category",
	"country", "malware_family", "description", "tags",
	"first_seen", "last_seen", "hit_count",
}

// WriteCSV streams threats to w as CSV, header row first.
func WriteCSV(w io.Writer, threats []*model.ThreatRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range threats {
		row := []string{
			t.ID,
			string(t.Type),
			t.Value,
			string(t.Severity),
			t.Source,
			t.Category,
			t.Country,
			t.MalwareFamily,
			t.Description,
			strings.Join(t.Tags, ";"),
			t.FirstSeen.UTC().Format(time.RFC3339),
			t.LastSeen.UTC().Format(time.RFC3339),
			strconv.FormatInt(t.HitCount, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON streams threats to w as a JSON array.
func WriteJSON(w io.Writer, threats []*model.ThreatRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(threats)
}
