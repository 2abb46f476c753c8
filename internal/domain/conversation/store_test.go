package conversation_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finaccosolutions/vbastudio/internal/domain/conversation"
)

type fakeIdentity struct {
	id string
	ok bool
}

func (f *fakeIdentity) CurrentID() (string, bool) { return f.id, f.ok }

func signedIn() *fakeIdentity  { return &fakeIdentity{id: "u1", ok: true} }
func signedOut() *fakeIdentity { return &fakeIdentity{} }

func TestCreateProjectRequiresIdentity(t *testing.T) {
	store := conversation.NewStore(signedOut())

	_, ok := store.CreateProject("Sort Tool", "")
	require.False(t, ok)
	require.Empty(t, store.List())
	_, ok = store.Active()
	require.False(t, ok)
}

func TestCreateProjectBecomesActive(t *testing.T) {
	store := conversation.NewStore(signedIn())

	proj, ok := store.CreateProject("Sort Tool", "sorts column A")
	require.True(t, ok)
	require.NotEmpty(t, proj.ID)
	require.Equal(t, "u1", proj.OwnerID)
	require.Empty(t, proj.Messages)
	require.Equal(t, proj.ID, store.ActiveID())
}

func TestListCreationOrder(t *testing.T) {
	store := conversation.NewStore(signedIn())

	var want []string
	for _, title := range []string{"first", "second", "third"} {
		proj, ok := store.CreateProject(title, "")
		require.True(t, ok)
		want = append(want, proj.ID)
	}
	// Touch the first project; listing order must not change.
	require.True(t, store.SelectProject(want[0]))
	_, ok := store.AppendMessage("hello", conversation.RoleUser)
	require.True(t, ok)

	var got []string
	for _, s := range store.List() {
		got = append(got, s.ID)
	}
	require.Equal(t, want, got)
}

func TestAppendMessageFIFO(t *testing.T) {
	store := conversation.NewStore(signedIn())
	_, ok := store.CreateProject("p", "")
	require.True(t, ok)

	// Interleaved user/assistant appends keep call order.
	var want []string
	for i := 0; i < 6; i++ {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		content := fmt.Sprintf("turn-%d", i)
		_, ok := store.AppendMessage(content, role)
		require.True(t, ok)
		want = append(want, content)
	}

	proj, _ := store.Active()
	require.Len(t, proj.Messages, 6)
	for i, msg := range proj.Messages {
		require.Equal(t, want[i], msg.Content)
	}
}

func TestAppendMessageWithoutActiveProject(t *testing.T) {
	store := conversation.NewStore(signedIn())
	_, ok := store.AppendMessage("hello", conversation.RoleUser)
	require.False(t, ok)
}

func TestAppendRefreshesUpdatedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := conversation.NewStore(signedIn(), conversation.WithClock(func() time.Time { return now }))

	proj, _ := store.CreateProject("p", "")
	created := proj.UpdatedAt

	now = now.Add(time.Minute)
	_, ok := store.AppendMessage("hello", conversation.RoleUser)
	require.True(t, ok)

	proj, _ = store.Active()
	require.True(t, proj.UpdatedAt.After(created))
}

func TestSetArtifactLeavesTranscript(t *testing.T) {
	store := conversation.NewStore(signedIn())
	store.CreateProject("p", "")
	store.AppendMessage("make a macro", conversation.RoleUser)

	require.True(t, store.SetArtifact("Sub Macro1()\nEnd Sub"))

	proj, _ := store.Active()
	require.Equal(t, "Sub Macro1()\nEnd Sub", proj.Artifact)
	require.Len(t, proj.Messages, 1)
}

func TestSelectProjectUnknownIDIsNoop(t *testing.T) {
	store := conversation.NewStore(signedIn())
	first, _ := store.CreateProject("first", "")
	second, _ := store.CreateProject("second", "")
	require.Equal(t, second.ID, store.ActiveID())

	require.True(t, store.SelectProject(first.ID))
	require.Equal(t, first.ID, store.ActiveID())

	require.False(t, store.SelectProject("no-such-project"))
	require.Equal(t, first.ID, store.ActiveID())
}

func TestActiveReturnsCopy(t *testing.T) {
	store := conversation.NewStore(signedIn())
	store.CreateProject("p", "")
	store.AppendMessage("one", conversation.RoleUser)

	proj, _ := store.Active()
	proj.Messages[0].Content = "tampered"
	proj.Title = "tampered"

	fresh, _ := store.Active()
	require.Equal(t, "one", fresh.Messages[0].Content)
	require.Equal(t, "p", fresh.Title)
}

func TestResetDropsEverything(t *testing.T) {
	store := conversation.NewStore(signedIn())
	store.CreateProject("p", "")
	store.Reset()

	require.Empty(t, store.List())
	_, ok := store.Active()
	require.False(t, ok)
}
