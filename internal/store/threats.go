package store

import (
	"errors"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/threatlens/threatlens/internal/model"
)

// ThreatFilters narrows ListThreats results. Zero values mean no
// constraint on that dimension.
type ThreatFilters struct {
	Type     model.ThreatType
	Severity model.Severity
	Source   string
	Category string
	Country  string
	Search   string // case-insensitive substring of value, description, or tags
	Since    time.Time
	Limit    int
	Offset   int
}

func valueKey(typ model.ThreatType, value string) string {
	return prefixThreatVal + string(typ) + ":" + value
}

// PutThreat stores a new threat record and its value index entry.
// Returns ErrConflict if a record with the same (type, value) exists;
// callers wanting re-observation semantics use ObserveThreat.
func (s *Store) PutThreat(t *model.ThreatRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := s.getRef(txn, valueKey(t.Type, t.Value)); err == nil {
			return ErrConflict
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.putJSON(txn, prefixThreat+t.ID, t); err != nil {
			return err
		}
		return txn.Set([]byte(valueKey(t.Type, t.Value)), []byte(t.ID))
	})
}

// ObserveThreat records an observation of (typ, value). If a matching
// record exists its LastSeen and HitCount are bumped and the stored
// record is returned with seen=true; otherwise nothing is written and
// seen=false tells the caller to ingest a fresh record.
func (s *Store) ObserveThreat(typ model.ThreatType, value string, now time.Time) (t *model.ThreatRecord, seen bool, err error) {
	err = s.db.Update(func(txn *badger.Txn) error {
		id, err := s.getRef(txn, valueKey(typ, value))
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var rec model.ThreatRecord
		if err := s.getJSON(txn, prefixThreat+id, &rec); err != nil {
			return err
		}
		rec.Observe(now)
		if err := s.putJSON(txn, prefixThreat+id, &rec); err != nil {
			return err
		}
		t, seen = &rec, true
		return nil
	})
	return t, seen, err
}

// GetThreat returns the record with the given ID.
func (s *Store) GetThreat(id string) (*model.ThreatRecord, error) {
	var t model.ThreatRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return s.getJSON(txn, prefixThreat+id, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteThreat removes the record and its value index entry.
func (s *Store) DeleteThreat(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var t model.ThreatRecord
		if err := s.getJSON(txn, prefixThreat+id, &t); err != nil {
			return err
		}
		if err := txn.Delete([]byte(valueKey(t.Type, t.Value))); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixThreat + id))
	})
}

// FindThreatByValue resolves a record through the value index.
func (s *Store) FindThreatByValue(typ model.ThreatType, value string) (*model.ThreatRecord, error) {
	var t model.ThreatRecord
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := s.getRef(txn, valueKey(typ, value))
		if err != nil {
			return err
		}
		return s.getJSON(txn, prefixThreat+id, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListThreats returns records matching f, newest LastSeen first.
// total is the match count before Limit/Offset are applied.
func (s *Store) ListThreats(f ThreatFilters) (out []*model.ThreatRecord, total int, err error) {
	var all []*model.ThreatRecord
	err = s.iterPrefix(prefixThreat, func() interface{} { return &model.ThreatRecord{} }, func(v interface{}) bool {
		t := v.(*model.ThreatRecord)
		if matchesFilters(t, f) {
			all = append(all, t)
		}
		return true
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].LastSeen.After(all[j].LastSeen) })

	total = len(all)
	if f.Offset > 0 {
		if f.Offset >= len(all) {
			return []*model.ThreatRecord{}, total, nil
		}
		all = all[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func matchesFilters(t *model.ThreatRecord, f ThreatFilters) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Severity != "" && t.Severity != f.Severity {
		return false
	}
	if f.Source != "" && t.Source != f.Source {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Country != "" && t.Country != f.Country {
		return false
	}
	if !f.Since.IsZero() && t.LastSeen.Before(f.Since) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		hay := strings.ToLower(t.Value + " " + t.Description + " " + strings.Join(t.Tags, " "))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}
