package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/finaccosolutions/vbastudio/internal/domain/accounts"
	"github.com/finaccosolutions/vbastudio/internal/repository"
)

func newTestAuthSession(t *testing.T, db *DB, userID string) *accounts.AuthSession {
	t.Helper()
	now := time.Now().UTC()
	sess := &accounts.AuthSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	require.NoError(t, NewAuthSessionRepository(db).Create(context.Background(), sess))
	return sess
}

func TestAuthSessionLifecycle(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	user := newTestUser("a@b.c")
	require.NoError(t, NewUserRepository(db).Create(ctx, user))

	repo := NewAuthSessionRepository(db)
	sess := newTestAuthSession(t, db, user.ID)

	got, err := repo.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, got.Active(time.Now().UTC()))

	require.NoError(t, repo.Revoke(ctx, sess.ID))

	got, err = repo.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	require.False(t, got.Active(time.Now().UTC()))

	// Revoking again is a no-op.
	require.NoError(t, repo.Revoke(ctx, sess.ID))
}

func TestAuthSessionExpiry(t *testing.T) {
	sess := accounts.AuthSession{
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	require.False(t, sess.Active(time.Now().UTC()))
}

func TestAuthSessionRevokeUnknown(t *testing.T) {
	db := NewTestDB(t)
	err := NewAuthSessionRepository(db).Revoke(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRevokeAllForUser(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	user := newTestUser("a@b.c")
	require.NoError(t, NewUserRepository(db).Create(ctx, user))

	repo := NewAuthSessionRepository(db)
	first := newTestAuthSession(t, db, user.ID)
	second := newTestAuthSession(t, db, user.ID)

	require.NoError(t, repo.RevokeAllForUser(ctx, user.ID))

	for _, id := range []string{first.ID, second.ID} {
		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
	}
}

func TestAuthSessionUnknownUser(t *testing.T) {
	db := NewTestDB(t)
	now := time.Now().UTC()
	err := NewAuthSessionRepository(db).Create(context.Background(), &accounts.AuthSession{
		ID:        uuid.NewString(),
		UserID:    "missing",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)
}
