package store

import (
	"fmt"
	"math"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/threatlens/threatlens/internal/model"
)

// eventKey orders events newest-first under prefix iteration by storing
// the timestamp as a zero-padded reverse nanosecond count.
func eventKey(e *model.AlertEvent) string {
	rev := math.MaxInt64 - e.FiredAt.UnixNano()
	return fmt.Sprintf("%s%019d:%s", prefixEvent, rev, e.ID)
}

// AppendEvent persists one alert event.
func (s *Store) AppendEvent(e *model.AlertEvent) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.putJSON(txn, eventKey(e), e)
	})
}

// RecentEvents returns up to limit alert events, newest first. When
// ownerID is non-empty only that owner's events are returned.
func (s *Store) RecentEvents(ownerID string, limit int) ([]*model.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	out := make([]*model.AlertEvent, 0, limit)
	err := s.iterPrefix(prefixEvent, func() interface{} { return &model.AlertEvent{} }, func(v interface{}) bool {
		e := v.(*model.AlertEvent)
		if ownerID != "" && e.OwnerID != ownerID {
			return true
		}
		out = append(out, e)
		return len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
