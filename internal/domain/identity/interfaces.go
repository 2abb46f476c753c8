package identity

import "context"

// Provider is the auth/profile backend. Implementations classify failures
// with the sentinel errors of this package; the store never inspects
// transport detail.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	// CurrentSession resolves a persisted token to a live session,
	// including the profile's secret key. Returns ErrNotAuthenticated
	// when the token is absent, expired, or revoked.
	CurrentSession(ctx context.Context, token string) (*Session, error)
	// UpdateSecretKey upserts the secret key on the identity's profile
	// record. Idempotent; an empty key removes it.
	UpdateSecretKey(ctx context.Context, token, key string) error
}

// SnapshotStore persists the identity snapshot at the fixed storage key so
// other clients on the same machine can observe session changes.
type SnapshotStore interface {
	// Load returns the persisted session, or (nil, nil) when absent.
	Load() (*Session, error)
	Save(sess Session) error
	Clear() error
}
