package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/finaccosolutions/vbastudio/internal/domain/accounts"
	"github.com/finaccosolutions/vbastudio/internal/repository"
)

// AuthSessionRepository implements accounts.SessionRepository for SQLite
type AuthSessionRepository struct {
	db *DB
}

// NewAuthSessionRepository creates a new AuthSessionRepository
func NewAuthSessionRepository(db *DB) *AuthSessionRepository {
	return &AuthSessionRepository{db: db}
}

// Create records an issued token.
func (r *AuthSessionRepository) Create(ctx context.Context, sess *accounts.AuthSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, issued_at, expires_at, revoked_at)
		VALUES (?, ?, ?, ?, NULL)
	`, sess.ID, sess.UserID, sess.IssuedAt, sess.ExpiresAt)

	if isForeignKeyViolation(err) {
		return repository.ErrForeignKeyViolation
	}
	if err != nil {
		return fmt.Errorf("failed to create auth session: %w", err)
	}
	return nil
}

// Get retrieves a session record by jti.
func (r *AuthSessionRepository) Get(ctx context.Context, id string) (*accounts.AuthSession, error) {
	var sess accounts.AuthSession
	var revoked sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, issued_at, expires_at, revoked_at
		FROM auth_sessions
		WHERE id = ?
	`, id).Scan(&sess.ID, &sess.UserID, &sess.IssuedAt, &sess.ExpiresAt, &revoked)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auth session: %w", err)
	}
	if revoked.Valid {
		sess.RevokedAt = &revoked.Time
	}
	return &sess, nil
}

// Revoke marks a single session revoked. Revoking an already revoked
// session is a no-op.
func (r *AuthSessionRepository) Revoke(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET revoked_at = ?
		WHERE id = ? AND revoked_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke auth session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish unknown from already revoked.
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// RevokeAllForUser revokes every live session of one user.
func (r *AuthSessionRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET revoked_at = ?
		WHERE user_id = ? AND revoked_at IS NULL
	`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}
