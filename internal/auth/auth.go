package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for a wrong password or an
// unverifiable token. Callers map it to HTTP 401.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Authenticator issues and verifies bearer tokens.
type Authenticator struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time // injectable for deterministic tests
}

// New creates an Authenticator. An empty secret is allowed but every
// issue/verify call will fail, which effectively locks the API.
func New(secret string, tokenTTL time.Duration) *Authenticator {
	return &Authenticator{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// HashPassword returns the bcrypt digest of password.
func HashPassword(password string) ([]byte, error) {
	if len(password) < 8 {
		return nil, fmt.Errorf("auth: password must be at least 8 characters")
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword compares password against its stored bcrypt digest.
func CheckPassword(hash []byte, password string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueToken returns a signed HS256 JWT for userID, valid for the
// configured TTL.
func (a *Authenticator) IssueToken(userID string) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("auth: no signing secret configured")
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		Issuer:    "threatlens",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// VerifyToken parses and validates tokenString, returning the user ID
// it was issued for.
func (a *Authenticator) VerifyToken(tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrInvalidCredentials
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidCredentials
	}
	return claims.Subject, nil
}
