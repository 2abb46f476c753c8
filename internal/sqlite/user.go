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

// UserRepository implements accounts.UserRepository for SQLite
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user together with its empty profile row.
func (r *UserRepository) Create(ctx context.Context, user *accounts.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, secret_key, updated_at)
		VALUES (?, '', ?)
	`, user.ID, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*accounts.User, error) {
	return r.get(ctx, "email = ?", email)
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*accounts.User, error) {
	return r.get(ctx, "id = ?", id)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (*accounts.User, error) {
	var user accounts.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE `+where, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetProfile retrieves a user's profile
func (r *UserRepository) GetProfile(ctx context.Context, userID string) (*accounts.Profile, error) {
	var prof accounts.Profile
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, secret_key, updated_at
		FROM profiles
		WHERE user_id = ?
	`, userID).Scan(&prof.UserID, &prof.SecretKey, &prof.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &prof, nil
}

// UpsertSecretKey writes the secret key, creating the profile row when
// it does not exist yet. Last write wins.
func (r *UserRepository) UpsertSecretKey(ctx context.Context, userID, key string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, secret_key, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			secret_key = excluded.secret_key,
			updated_at = excluded.updated_at
	`, userID, key, time.Now().UTC())

	if isForeignKeyViolation(err) {
		return repository.ErrForeignKeyViolation
	}
	if err != nil {
		return fmt.Errorf("failed to upsert secret key: %w", err)
	}
	return nil
}
