package store

import (
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/threatlens/threatlens/internal/model"
)

// PutRule stores or replaces an alert rule document.
func (s *Store) PutRule(r *model.AlertRule) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.putJSON(txn, prefixRule+r.ID, r)
	})
}

// GetRule returns the rule with the given ID.
func (s *Store) GetRule(id string) (*model.AlertRule, error) {
	var r model.AlertRule
	err := s.db.View(func(txn *badger.Txn) error {
		return s.getJSON(txn, prefixRule+id, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRule removes the rule document.
func (s *Store) DeleteRule(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixRule + id)); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete([]byte(prefixRule + id))
	})
}

// ListRules returns all rules, newest created first. When ownerID is
// non-empty only that owner's rules are returned.
func (s *Store) ListRules(ownerID string) ([]*model.AlertRule, error) {
	var out []*model.AlertRule
	err := s.iterPrefix(prefixRule, func() interface{} { return &model.AlertRule{} }, func(v interface{}) bool {
		r := v.(*model.AlertRule)
		if ownerID == "" || r.OwnerID == ownerID {
			out = append(out, r)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListActiveRules returns every rule with IsActive set.
func (s *Store) ListActiveRules() ([]*model.AlertRule, error) {
	var out []*model.AlertRule
	err := s.iterPrefix(prefixRule, func() interface{} { return &model.AlertRule{} }, func(v interface{}) bool {
		r := v.(*model.AlertRule)
		if r.IsActive {
			out = append(out, r)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRule runs fn on the stored rule inside the per-rule write lock
// and persists the result. Trigger recording goes through here so that
// concurrent matches on the same rule cannot lose counter or history
// updates.
func (s *Store) UpdateRule(id string, fn func(*model.AlertRule) error) (*model.AlertRule, error) {
	s.ruleMu.Lock()
	defer s.ruleMu.Unlock()

	var r model.AlertRule
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := s.getJSON(txn, prefixRule+id, &r); err != nil {
			return err
		}
		if err := fn(&r); err != nil {
			return err
		}
		return s.putJSON(txn, prefixRule+id, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}
