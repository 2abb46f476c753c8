package accounts

import "context"

// UserRepository provides persistence for users and their profiles.
// Every user has exactly one profile row; UpsertSecretKey creates it on
// first write.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertSecretKey(ctx context.Context, userID, key string) error
}

// SessionRepository provides persistence for issued-token records, so
// sign-out can revoke a token before it expires.
type SessionRepository interface {
	Create(ctx context.Context, sess *AuthSession) error
	Get(ctx context.Context, id string) (*AuthSession, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}
