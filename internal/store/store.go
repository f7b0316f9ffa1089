package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/threatlens/threatlens/internal/logging"
)

// Key prefixes. Secondary index keys hold only the primary document ID.
const (
	prefixThreat    = "threat:"
	prefixThreatVal = "threatval:" // threatval:<type>:<normalized value> -> threat ID
	prefixUser      = "user:"
	prefixUserEmail = "useremail:" // useremail:<email> -> user ID
	prefixRule      = "rule:"
	prefixEvent     = "event:" // event:<reverse nano ts>:<id>, newest first on iteration
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a uniqueness constraint would be violated.
var ErrConflict = errors.New("store: already exists")

// Store wraps BadgerDB with typed document operations.
type Store struct {
	db  *badger.DB
	log zerolog.Logger

	// ruleMu serializes read-modify-write cycles on alert rules so that
	// trigger bookkeeping for the same rule never interleaves.
	ruleMu sync.Mutex
}

// Open returns a Store rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir)).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, log: logging.WithComponent("store")}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// --- generic JSON document helpers ------------------------------------------

func (s *Store) putJSON(txn *badger.Txn, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

func (s *Store) getJSON(txn *badger.Txn, key string, v interface{}) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func (s *Store) getRef(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// iterPrefix walks all documents under prefix, decoding each into a
// fresh value produced by newV and passing it to fn. Iteration stops
// when fn returns false.
func (s *Store) iterPrefix(prefix string, newV func() interface{}, fn func(interface{}) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opt := badger.DefaultIteratorOptions
		opt.Prefix = []byte(prefix)
		it := txn.NewIterator(opt)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			v := newV()
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, v)
			})
			if err != nil {
				s.log.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("skipping malformed document")
				continue
			}
			if !fn(v) {
				return nil
			}
		}
		return nil
	})
}
