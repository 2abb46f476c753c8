package projects_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/finaccosolutions/vbastudio/internal/domain/accounts"
	"github.com/finaccosolutions/vbastudio/internal/domain/projects"
	"github.com/finaccosolutions/vbastudio/internal/sqlite"
)

func newService(t *testing.T) (*projects.Service, string) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	user := &accounts.User{
		ID:           uuid.NewString(),
		Email:        "a@b.c",
		PasswordHash: []byte("hash"),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, sqlite.NewUserRepository(db).Create(context.Background(), user))

	return projects.NewService(sqlite.NewProjectRepository(db), nil), user.ID
}

func TestCreateAndGet(t *testing.T) {
	svc, owner := newService(t)
	ctx := context.Background()

	proj, err := svc.Create(ctx, owner, "Sort Tool", "sorting helpers")
	require.NoError(t, err)
	require.NotEmpty(t, proj.ID)

	got, err := svc.Get(ctx, owner, proj.ID)
	require.NoError(t, err)
	require.Equal(t, "Sort Tool", got.Title)

	msgs, err := svc.Transcript(ctx, owner, proj.ID)
	require.NoError(t, err)
	require.Empty(t, msgs, "new projects start with an empty transcript")
}

func TestCreateRequiresTitle(t *testing.T) {
	svc, owner := newService(t)

	_, err := svc.Create(context.Background(), owner, "", "")
	require.ErrorIs(t, err, projects.ErrEmptyTitle)
}

func TestAppendMessageOrdering(t *testing.T) {
	svc, owner := newService(t)
	ctx := context.Background()

	proj, err := svc.Create(ctx, owner, "Sort Tool", "")
	require.NoError(t, err)

	_, err = svc.AppendMessage(ctx, owner, proj.ID, projects.RoleUser, "sort my data")
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, owner, proj.ID, projects.RoleAssistant, "Here you go.")
	require.NoError(t, err)

	msgs, err := svc.Transcript(ctx, owner, proj.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, projects.RoleUser, msgs[0].Role)
	require.Equal(t, projects.RoleAssistant, msgs[1].Role)
	require.Less(t, msgs[0].Seq, msgs[1].Seq)
}

func TestAppendMessageValidation(t *testing.T) {
	svc, owner := newService(t)
	ctx := context.Background()

	proj, err := svc.Create(ctx, owner, "Sort Tool", "")
	require.NoError(t, err)

	_, err = svc.AppendMessage(ctx, owner, proj.ID, projects.RoleUser, "")
	require.ErrorIs(t, err, projects.ErrEmptyContent)

	_, err = svc.AppendMessage(ctx, owner, proj.ID, "system", "hi")
	require.ErrorIs(t, err, projects.ErrInvalidRole)

	_, err = svc.AppendMessage(ctx, owner, "unknown-project", projects.RoleUser, "hi")
	require.ErrorIs(t, err, projects.ErrNotFound)
}

func TestForeignOwnerLooksLikeMissing(t *testing.T) {
	svc, owner := newService(t)
	ctx := context.Background()

	proj, err := svc.Create(ctx, owner, "Sort Tool", "")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "someone-else", proj.ID)
	require.ErrorIs(t, err, projects.ErrNotFound)

	err = svc.Delete(ctx, "someone-else", proj.ID)
	require.ErrorIs(t, err, projects.ErrNotFound)
}

func TestSetArtifactReplaces(t *testing.T) {
	svc, owner := newService(t)
	ctx := context.Background()

	proj, err := svc.Create(ctx, owner, "Sort Tool", "")
	require.NoError(t, err)

	require.NoError(t, svc.SetArtifact(ctx, owner, proj.ID, "Sub A()\nEnd Sub"))
	require.NoError(t, svc.SetArtifact(ctx, owner, proj.ID, "Sub B()\nEnd Sub"))

	got, err := svc.Get(ctx, owner, proj.ID)
	require.NoError(t, err)
	require.Equal(t, "Sub B()\nEnd Sub", got.Artifact)
}

func TestDeleteRemovesProject(t *testing.T) {
	svc, owner := newService(t)
	ctx := context.Background()

	proj, err := svc.Create(ctx, owner, "Sort Tool", "")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, owner, proj.ID))

	_, err = svc.Get(ctx, owner, proj.ID)
	require.ErrorIs(t, err, projects.ErrNotFound)

	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, list)
}
