// Package accounts owns registration, credential checks, bearer-token
// sessions and the per-user profile record holding the generation key.
package accounts

import "time"

// User is one registered account.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Profile holds per-user settings. SecretKey is the user's generation
// service key; the empty string means no key is provisioned.
type Profile struct {
	UserID    string
	SecretKey string
	UpdatedAt time.Time
}

// AuthSession is one issued token, keyed by the JWT's jti claim so it
// can be revoked server-side before expiry.
type AuthSession struct {
	ID        string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session is usable at the given instant.
func (s AuthSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Session is the result of a successful authentication: a signed token
// plus the account it belongs to, including the profile's secret key.
type Session struct {
	Token     string
	UserID    string
	Email     string
	SecretKey string
}
