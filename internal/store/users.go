package store

import (
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/threatlens/threatlens/internal/model"
)

// CreateUser stores a new account. Returns ErrConflict when the email
// is already registered.
func (s *Store) CreateUser(u *model.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := s.getRef(txn, prefixUserEmail+u.Email); err == nil {
			return ErrConflict
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.putJSON(txn, prefixUser+u.ID, u); err != nil {
			return err
		}
		return txn.Set([]byte(prefixUserEmail+u.Email), []byte(u.ID))
	})
}

// GetUser returns the account with the given ID.
func (s *Store) GetUser(id string) (*model.User, error) {
	var u model.User
	err := s.db.View(func(txn *badger.Txn) error {
		return s.getJSON(txn, prefixUser+id, &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail resolves an account through the email index.
func (s *Store) GetUserByEmail(email string) (*model.User, error) {
	var u model.User
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := s.getRef(txn, prefixUserEmail+email)
		if err != nil {
			return err
		}
		return s.getJSON(txn, prefixUser+id, &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchLogin updates the account's LastLogin timestamp.
func (s *Store) TouchLogin(id string, now time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var u model.User
		if err := s.getJSON(txn, prefixUser+id, &u); err != nil {
			return err
		}
		u.LastLogin = now
		return s.putJSON(txn, prefixUser+id, &u)
	})
}
