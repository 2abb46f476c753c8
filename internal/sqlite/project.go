package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finaccosolutions/vbastudio/internal/domain/projects"
	"github.com/finaccosolutions/vbastudio/internal/repository"
)

// ProjectRepository implements projects.Repository for SQLite
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a project with an empty transcript.
func (r *ProjectRepository) Create(ctx context.Context, proj *projects.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, title, description, artifact, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, proj.ID, proj.OwnerID, proj.Title, proj.Description, proj.Artifact,
		proj.CreatedAt, proj.UpdatedAt)

	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	if isForeignKeyViolation(err) {
		return repository.ErrForeignKeyViolation
	}
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// Get retrieves a project by id, scoped to its owner.
func (r *ProjectRepository) Get(ctx context.Context, ownerID, id string) (*projects.Project, error) {
	var proj projects.Project
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, description, artifact, created_at, updated_at
		FROM projects
		WHERE id = ? AND owner_id = ?
	`, id, ownerID).Scan(
		&proj.ID,
		&proj.OwnerID,
		&proj.Title,
		&proj.Description,
		&proj.Artifact,
		&proj.CreatedAt,
		&proj.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &proj, nil
}

// List returns project summaries for an owner, most recently updated first.
func (r *ProjectRepository) List(ctx context.Context, ownerID string) ([]projects.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			p.id,
			p.title,
			p.description,
			COUNT(m.id) AS message_count,
			p.updated_at
		FROM projects p
		LEFT JOIN messages m ON m.project_id = p.id
		WHERE p.owner_id = ?
		GROUP BY p.id, p.title, p.description, p.updated_at
		ORDER BY p.updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var summaries []projects.Summary
	for rows.Next() {
		var s projects.Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.MessageCount, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return summaries, nil
}

// Delete removes a project and its transcript.
func (r *ProjectRepository) Delete(ctx context.Context, ownerID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM projects WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetArtifact replaces the project's artifact and refreshes UpdatedAt.
func (r *ProjectRepository) SetArtifact(ctx context.Context, ownerID, id, artifact string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET artifact = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND owner_id = ?
	`, artifact, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to set artifact: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AppendMessage assigns the next seq within the project and inserts the
// message, refreshing the project's UpdatedAt in the same transaction.
func (r *ProjectRepository) AppendMessage(ctx context.Context, ownerID string, msg *projects.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM projects WHERE id = ? AND owner_id = ?`,
		msg.ProjectID, ownerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE project_id = ?`,
		msg.ProjectID).Scan(&msg.Seq)
	if err != nil {
		return fmt.Errorf("failed to assign seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, project_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ProjectID, msg.Seq, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE projects SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt, msg.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListMessages returns the transcript in seq order.
func (r *ProjectRepository) ListMessages(ctx context.Context, ownerID, projectID string) ([]projects.Message, error) {
	if _, err := r.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, seq, role, content, created_at
		FROM messages
		WHERE project_id = ?
		ORDER BY seq ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []projects.Message
	for rows.Next() {
		var m projects.Message
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return msgs, nil
}
