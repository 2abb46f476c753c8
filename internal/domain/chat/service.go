// Package chat orchestrates one conversation turn: gate the request,
// record the user's message, call the generation service, record the
// outcome. The user's message is always recorded before the generation
// request is issued, and the assistant's reply (or a synthesized failure
// message) after it resolves.
package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/finaccosolutions/vbastudio/internal/domain/conversation"
	"github.com/finaccosolutions/vbastudio/internal/domain/gate"
	"github.com/finaccosolutions/vbastudio/internal/domain/identity"
	"github.com/finaccosolutions/vbastudio/internal/genai"
)

// ErrNoActiveProject indicates a turn was sent with no project selected.
var ErrNoActiveProject = errors.New("no active project")

// Session is the slice of the identity store the service reads.
type Session interface {
	Current() (identity.Identity, bool)
}

// Generator produces VBA code from a prompt and history.
type Generator interface {
	Generate(ctx context.Context, key string, req genai.Request) (*genai.Result, error)
}

// Service drives the conversation flow for one client.
type Service struct {
	session Session
	conv    *conversation.Store
	gen     Generator
	gate    *gate.Controller
	logger  *slog.Logger
}

// NewService creates a chat service.
func NewService(session Session, conv *conversation.Store, gen Generator, gc *gate.Controller, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		session: session,
		conv:    conv,
		gen:     gen,
		gate:    gc,
		logger:  logger,
	}
}

// CreateProject gates and then creates a project, making it active.
func (s *Service) CreateProject(ctx context.Context, title, description string) (conversation.Project, error) {
	var out conversation.Project
	err := s.gate.Request(ctx, func(context.Context) error {
		proj, ok := s.conv.CreateProject(title, description)
		if !ok {
			return identity.ErrNotAuthenticated
		}
		out = proj
		return nil
	})
	return out, err
}

// Send gates and then runs one conversation turn against the active
// project. Generation failures never surface as errors here; they become
// a synthesized assistant message so the transcript stays continuous.
func (s *Service) Send(ctx context.Context, content string) error {
	return s.gate.Request(ctx, func(ctx context.Context) error {
		return s.sendTurn(ctx, content)
	})
}

func (s *Service) sendTurn(ctx context.Context, content string) error {
	proj, ok := s.conv.Active()
	if !ok {
		return ErrNoActiveProject
	}
	ident, ok := s.session.Current()
	if !ok {
		return identity.ErrNotAuthenticated
	}

	history := historyTurns(proj.Messages)

	// The user's turn is recorded synchronously, before the request goes out.
	if _, ok := s.conv.AppendMessage(content, conversation.RoleUser); !ok {
		return ErrNoActiveProject
	}

	res, err := s.gen.Generate(ctx, ident.SecretKey, genai.Request{
		Prompt:  content,
		History: history,
	})

	// Stale-result check: the result belongs to the project that was
	// active when the turn started.
	if s.conv.ActiveID() != proj.ID {
		s.logger.Debug("dropping generation result for inactive project",
			"project_id", proj.ID)
		return nil
	}

	if err != nil {
		s.logger.Warn("generation failed", "project_id", proj.ID, "error", err)
		s.conv.AppendMessage(failureMessage(err), conversation.RoleAssistant)
		return nil
	}

	s.conv.AppendMessage(res.Explanation, conversation.RoleAssistant)
	s.conv.SetArtifact(res.VBACode)
	return nil
}

func historyTurns(messages []conversation.Message) []genai.Turn {
	turns := make([]genai.Turn, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == conversation.RoleAssistant {
			role = "model"
		}
		turns = append(turns, genai.Turn{Role: role, Content: msg.Content})
	}
	return turns
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, genai.ErrInvalidKey):
		return "Your generation key was rejected. Update it in settings and try again."
	case errors.Is(err, genai.ErrQuotaExceeded):
		return "The generation service reported your quota is exhausted. Please try again later."
	case errors.Is(err, genai.ErrMalformedResponse):
		return "The generation service returned an unusable answer. Please rephrase and try again."
	default:
		return "The generation service could not be reached. Check your connection and try again."
	}
}
