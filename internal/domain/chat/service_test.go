package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finaccosolutions/vbastudio/internal/domain/chat"
	"github.com/finaccosolutions/vbastudio/internal/domain/conversation"
	"github.com/finaccosolutions/vbastudio/internal/domain/gate"
	"github.com/finaccosolutions/vbastudio/internal/domain/identity"
	"github.com/finaccosolutions/vbastudio/internal/genai"
	"github.com/finaccosolutions/vbastudio/internal/mocks"
)

type fakeSession struct {
	ident identity.Identity
	ok    bool
}

func (f *fakeSession) Current() (identity.Identity, bool) { return f.ident, f.ok }
func (f *fakeSession) Loading() bool                      { return false }
func (f *fakeSession) CurrentID() (string, bool)          { return f.ident.ID, f.ok }

func passGate(session gate.Session) *gate.Controller {
	fail := gate.FlowFunc(func(context.Context) error { return gate.ErrCancelled })
	return gate.NewController(session, fail, fail)
}

func newFixture(t *testing.T) (*chat.Service, *conversation.Store, *mocks.Generator) {
	t.Helper()
	session := &fakeSession{
		ident: identity.Identity{ID: "user-1", Email: "a@b.c", SecretKey: "sk-live"},
		ok:    true,
	}
	conv := conversation.NewStore(session)
	gen := &mocks.Generator{}
	svc := chat.NewService(session, conv, gen, passGate(session), nil)
	return svc, conv, gen
}

func TestSendRecordsBothTurnsAndArtifact(t *testing.T) {
	svc, conv, gen := newFixture(t)
	_, err := svc.CreateProject(context.Background(), "Sort Tool", "")
	require.NoError(t, err)

	gen.On("Generate", mock.Anything, "sk-live", mock.Anything).
		Return(&genai.Result{VBACode: "Sub SortData()\nEnd Sub", Explanation: "Sorts column A."}, nil)

	require.NoError(t, svc.Send(context.Background(), "sort my data"))

	proj, ok := conv.Active()
	require.True(t, ok)
	require.Len(t, proj.Messages, 2)
	require.Equal(t, conversation.RoleUser, proj.Messages[0].Role)
	require.Equal(t, "sort my data", proj.Messages[0].Content)
	require.Equal(t, conversation.RoleAssistant, proj.Messages[1].Role)
	require.Equal(t, "Sorts column A.", proj.Messages[1].Content)
	require.Equal(t, "Sub SortData()\nEnd Sub", proj.Artifact)
	gen.AssertExpectations(t)
}

func TestSendPassesPriorHistoryNotTheNewTurn(t *testing.T) {
	svc, conv, gen := newFixture(t)
	_, err := svc.CreateProject(context.Background(), "Sort Tool", "")
	require.NoError(t, err)
	conv.AppendMessage("first ask", conversation.RoleUser)
	conv.AppendMessage("first answer", conversation.RoleAssistant)

	var got genai.Request
	gen.On("Generate", mock.Anything, "sk-live", mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).(genai.Request) }).
		Return(&genai.Result{VBACode: "x", Explanation: "y"}, nil)

	require.NoError(t, svc.Send(context.Background(), "second ask"))

	require.Equal(t, "second ask", got.Prompt)
	require.Len(t, got.History, 2)
	require.Equal(t, genai.Turn{Role: "user", Content: "first ask"}, got.History[0])
	require.Equal(t, genai.Turn{Role: "model", Content: "first answer"}, got.History[1])
}

func TestSendFailureBecomesAssistantMessage(t *testing.T) {
	svc, conv, gen := newFixture(t)
	_, err := svc.CreateProject(context.Background(), "Sort Tool", "")
	require.NoError(t, err)

	gen.On("Generate", mock.Anything, "sk-live", mock.Anything).
		Return(nil, genai.ErrQuotaExceeded)

	require.NoError(t, svc.Send(context.Background(), "sort my data"))

	proj, ok := conv.Active()
	require.True(t, ok)
	require.Len(t, proj.Messages, 2)
	require.Equal(t, conversation.RoleAssistant, proj.Messages[1].Role)
	require.Contains(t, proj.Messages[1].Content, "quota")
	require.Empty(t, proj.Artifact)
}

func TestSendDropsResultAfterProjectSwitch(t *testing.T) {
	svc, conv, gen := newFixture(t)
	first, err := svc.CreateProject(context.Background(), "Sort Tool", "")
	require.NoError(t, err)

	gen.On("Generate", mock.Anything, "sk-live", mock.Anything).
		Run(func(mock.Arguments) {
			// User switches projects while the request is in flight.
			conv.CreateProject("Budget Tool", "")
		}).
		Return(&genai.Result{VBACode: "late", Explanation: "late"}, nil)

	require.NoError(t, svc.Send(context.Background(), "sort my data"))

	require.True(t, conv.SelectProject(first.ID))
	proj, ok := conv.Active()
	require.True(t, ok)
	require.Len(t, proj.Messages, 1, "only the user's turn survives")
	require.Empty(t, proj.Artifact)

	for _, summary := range conv.List() {
		if summary.Title == "Budget Tool" {
			require.Zero(t, summary.MessageCount, "late result must not leak into the new project")
		}
	}
}

func TestSendWithoutActiveProject(t *testing.T) {
	svc, _, gen := newFixture(t)

	err := svc.Send(context.Background(), "sort my data")
	require.ErrorIs(t, err, chat.ErrNoActiveProject)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendBlockedWhileSignedOut(t *testing.T) {
	session := &fakeSession{}
	conv := conversation.NewStore(session)
	gen := &mocks.Generator{}
	svc := chat.NewService(session, conv, gen, passGate(session), nil)

	err := svc.Send(context.Background(), "sort my data")
	require.ErrorIs(t, err, gate.ErrCancelled)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendClassifiedNetworkFailure(t *testing.T) {
	svc, conv, gen := newFixture(t)
	_, err := svc.CreateProject(context.Background(), "Sort Tool", "")
	require.NoError(t, err)

	gen.On("Generate", mock.Anything, "sk-live", mock.Anything).
		Return(nil, errors.New("dial tcp: connection refused"))

	require.NoError(t, svc.Send(context.Background(), "sort my data"))

	proj, _ := conv.Active()
	require.Contains(t, proj.Messages[1].Content, "could not be reached")
}

func TestCreateProjectStartsEmpty(t *testing.T) {
	svc, conv, _ := newFixture(t)

	proj, err := svc.CreateProject(context.Background(), "Sort Tool", "sorting helpers")
	require.NoError(t, err)
	require.NotEmpty(t, proj.ID)
	require.Empty(t, proj.Messages)
	require.Equal(t, proj.ID, conv.ActiveID())
}
