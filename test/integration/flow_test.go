package integration_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finaccosolutions/vbastudio/internal/backend"
	"github.com/finaccosolutions/vbastudio/internal/domain/chat"
	"github.com/finaccosolutions/vbastudio/internal/domain/conversation"
	"github.com/finaccosolutions/vbastudio/internal/domain/gate"
	"github.com/finaccosolutions/vbastudio/internal/domain/identity"
	"github.com/finaccosolutions/vbastudio/internal/genai"
	"github.com/finaccosolutions/vbastudio/internal/mocks"
	"github.com/finaccosolutions/vbastudio/internal/session"
	"github.com/finaccosolutions/vbastudio/internal/testserver"
)

type client struct {
	identities *identity.Store
	conv       *conversation.Store
	chat       *chat.Service
	gen        *mocks.Generator
	states     *[]gate.State
}

// newClient wires the full client core against a live backend, with
// acquisition flows scripted by the test.
func newClient(t *testing.T, ts *testserver.TestServer, authFlow, keyFlow gate.FlowFunc) *client {
	t.Helper()

	provider := backend.NewClient(ts.URL(), 5*time.Second, nil)
	snapshots := session.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	identities := identity.NewStore(provider, snapshots, nil)

	conv := conversation.NewStore(identitySource{identities})

	var states []gate.State
	controller := gate.NewController(identities, authFlow, keyFlow,
		gate.WithTransitionListener(func(s gate.State) { states = append(states, s) }))

	gen := &mocks.Generator{}
	chatSvc := chat.NewService(identities, conv, gen, controller, nil)

	require.NoError(t, identities.Resolve(context.Background()))

	return &client{
		identities: identities,
		conv:       conv,
		chat:       chatSvc,
		gen:        gen,
		states:     &states,
	}
}

type identitySource struct{ store *identity.Store }

func (s identitySource) CurrentID() (string, bool) {
	ident, ok := s.store.Current()
	return ident.ID, ok
}

func TestFirstRunAcquisitionFlow(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	ctx := context.Background()

	var c *client
	authFlow := gate.FlowFunc(func(ctx context.Context) error {
		return c.identities.SignIn(ctx, "a@b.c", "password1")
	})
	keyFlow := gate.FlowFunc(func(ctx context.Context) error {
		return c.identities.UpdateSecretKey(ctx, "sk-live")
	})

	ts.SignUp(t, "a@b.c", "password1")
	c = newClient(t, ts, authFlow, keyFlow)

	proj, err := c.chat.CreateProject(ctx, "Sort Tool", "")
	require.NoError(t, err)
	require.Empty(t, proj.Messages, "new project starts with an empty transcript")

	require.Equal(t,
		[]gate.State{gate.StateAwaitingAuth, gate.StateAwaitingKey, gate.StateReady, gate.StateIdle},
		*c.states)

	ident, ok := c.identities.Current()
	require.True(t, ok)
	require.True(t, ident.HasSecretKey())
}

func TestFullConversationTurn(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	ctx := context.Background()

	sess := ts.SignUp(t, "a@b.c", "password1")
	require.NoError(t, ts.Accounts.UpdateSecretKey(ctx, sess.UserID, "sk-live"))

	var c *client
	authFlow := gate.FlowFunc(func(ctx context.Context) error {
		return c.identities.SignIn(ctx, "a@b.c", "password1")
	})
	keyFlow := gate.FlowFunc(func(context.Context) error {
		t.Fatal("key flow must not run when the profile already has a key")
		return nil
	})
	c = newClient(t, ts, authFlow, keyFlow)

	_, err := c.chat.CreateProject(ctx, "Sort Tool", "")
	require.NoError(t, err)

	c.gen.On("Generate", mock.Anything, "sk-live", mock.Anything).
		Return(&genai.Result{VBACode: "Sub SortData()\nEnd Sub", Explanation: "Sorts column A."}, nil)

	require.NoError(t, c.chat.Send(ctx, "sort my data"))

	proj, ok := c.conv.Active()
	require.True(t, ok)
	require.Len(t, proj.Messages, 2)
	require.Equal(t, "Sub SortData()\nEnd Sub", proj.Artifact)
}

func TestSnapshotResumesSession(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	provider := backend.NewClient(ts.URL(), 5*time.Second, nil)
	snapshots := session.NewFileStore(path)

	ts.SignUp(t, "a@b.c", "password1")

	first := identity.NewStore(provider, snapshots, nil)
	require.NoError(t, first.Resolve(ctx))
	require.NoError(t, first.SignIn(ctx, "a@b.c", "password1"))

	// A second process on the same machine picks up the snapshot.
	second := identity.NewStore(provider, snapshots, nil)
	require.NoError(t, second.Resolve(ctx))

	ident, ok := second.Current()
	require.True(t, ok)
	require.Equal(t, "a@b.c", ident.Email)
}

func TestSignOutPropagatesThroughSnapshot(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "session.json")
	provider := backend.NewClient(ts.URL(), 5*time.Second, nil)
	snapshots := session.NewFileStore(path)

	ts.SignUp(t, "a@b.c", "password1")

	store := identity.NewStore(provider, snapshots, nil)
	require.NoError(t, store.Resolve(ctx))
	require.NoError(t, store.SignIn(ctx, "a@b.c", "password1"))

	watcher, err := session.NewWatcher(path, store, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start(ctx))
	defer watcher.Close()

	// Another client signs out, revoking the shared token and clearing
	// the snapshot.
	other := identity.NewStore(provider, snapshots, nil)
	require.NoError(t, other.Resolve(ctx))
	require.NoError(t, other.SignOut(ctx))

	require.Eventually(t, func() bool {
		_, ok := store.Current()
		return !ok
	}, 3*time.Second, 50*time.Millisecond)
}
