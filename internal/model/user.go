package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is one dashboard account. PasswordHash is a bcrypt digest; the
// API layer maps users to a response type that omits it.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash []byte    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// NewUser builds an account with a normalized email. The password hash
// is set separately by the auth layer.
func NewUser(email, name string, now time.Time) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("model: invalid email: %w", err)
	}
	if name == "" {
		return nil, fmt.Errorf("model: user name is empty")
	}
	return &User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		CreatedAt: now,
	}, nil
}
