package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/finaccosolutions/vbastudio/internal/domain/projects"
	"github.com/finaccosolutions/vbastudio/internal/repository"
)

func newTestProject(t *testing.T, db *DB, ownerID, title string) *projects.Project {
	t.Helper()
	now := time.Now().UTC()
	proj := &projects.Project{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewProjectRepository(db).Create(context.Background(), proj))
	return proj
}

func seedOwner(t *testing.T, db *DB) string {
	t.Helper()
	user := newTestUser(uuid.NewString() + "@b.c")
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user.ID
}

func TestProjectCreateAndGet(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	owner := seedOwner(t, db)
	proj := newTestProject(t, db, owner, "Sort Tool")

	got, err := repo.Get(ctx, owner, proj.ID)
	require.NoError(t, err)
	require.Equal(t, "Sort Tool", got.Title)
	require.Empty(t, got.Artifact)
}

func TestProjectOwnerScoping(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	owner := seedOwner(t, db)
	other := seedOwner(t, db)
	proj := newTestProject(t, db, owner, "Sort Tool")

	_, err := repo.Get(ctx, other, proj.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppendMessageAssignsSeq(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	owner := seedOwner(t, db)
	proj := newTestProject(t, db, owner, "Sort Tool")

	for i, content := range []string{"first", "second", "third"} {
		role := projects.RoleUser
		if i%2 == 1 {
			role = projects.RoleAssistant
		}
		msg := &projects.Message{
			ID:        uuid.NewString(),
			ProjectID: proj.ID,
			Role:      role,
			Content:   content,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, repo.AppendMessage(ctx, owner, msg))
		require.Equal(t, int64(i+1), msg.Seq)
	}

	msgs, err := repo.ListMessages(ctx, owner, proj.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "third", msgs[2].Content)
}

func TestAppendMessageUnknownProject(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProjectRepository(db)

	owner := seedOwner(t, db)
	err := repo.AppendMessage(context.Background(), owner, &projects.Message{
		ID:        uuid.NewString(),
		ProjectID: "missing",
		Role:      projects.RoleUser,
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSetArtifact(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	owner := seedOwner(t, db)
	proj := newTestProject(t, db, owner, "Sort Tool")

	require.NoError(t, repo.SetArtifact(ctx, owner, proj.ID, "Sub A()\nEnd Sub"))
	require.NoError(t, repo.SetArtifact(ctx, owner, proj.ID, "Sub B()\nEnd Sub"))

	got, err := repo.Get(ctx, owner, proj.ID)
	require.NoError(t, err)
	require.Equal(t, "Sub B()\nEnd Sub", got.Artifact)

	require.ErrorIs(t, repo.SetArtifact(ctx, owner, "missing", "x"), repository.ErrNotFound)
}

func TestProjectList(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	owner := seedOwner(t, db)
	proj := newTestProject(t, db, owner, "Sort Tool")
	newTestProject(t, db, owner, "Budget Tool")

	require.NoError(t, repo.AppendMessage(ctx, owner, &projects.Message{
		ID:        uuid.NewString(),
		ProjectID: proj.ID,
		Role:      projects.RoleUser,
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	}))

	summaries, err := repo.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byTitle := map[string]int64{}
	for _, s := range summaries {
		byTitle[s.Title] = s.MessageCount
	}
	require.Equal(t, int64(1), byTitle["Sort Tool"])
	require.Equal(t, int64(0), byTitle["Budget Tool"])
}

func TestProjectDelete(t *testing.T) {
	db := NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	owner := seedOwner(t, db)
	proj := newTestProject(t, db, owner, "Sort Tool")
	require.NoError(t, repo.AppendMessage(ctx, owner, &projects.Message{
		ID:        uuid.NewString(),
		ProjectID: proj.ID,
		Role:      projects.RoleUser,
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, repo.Delete(ctx, owner, proj.ID))

	_, err := repo.Get(ctx, owner, proj.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	var count int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE project_id = ?`, proj.ID).Scan(&count))
	require.Zero(t, count)

	require.ErrorIs(t, repo.Delete(ctx, owner, proj.ID), repository.ErrNotFound)
}
