// Package auth handles account credentials and bearer-token sessions:
// bcrypt password hashing and verification, HS256 JWT issuance, and the
// HTTP middleware that authenticates API requests.
package auth
