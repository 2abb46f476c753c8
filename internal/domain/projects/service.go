package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finaccosolutions/vbastudio/internal/repository"
)

var (
	// ErrNotFound indicates the project does not exist or belongs to
	// someone else. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("project not found")
	// ErrEmptyTitle indicates project creation without a title.
	ErrEmptyTitle = errors.New("title required")
	// ErrEmptyContent indicates an append with no message content.
	ErrEmptyContent = errors.New("content required")
	// ErrInvalidRole indicates a role outside user/assistant.
	ErrInvalidRole = errors.New("invalid role")
)

// Service is the server-side project archive API.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a projects service.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a project with an empty transcript.
func (s *Service) Create(ctx context.Context, ownerID, title, description string) (*Project, error) {
	if title == "" {
		return nil, ErrEmptyTitle
	}

	now := s.now().UTC()
	proj := &Project{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, proj); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("project created", "project_id", proj.ID, "owner_id", ownerID)
	return proj, nil
}

// Get returns one project.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*Project, error) {
	proj, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, mapNotFound(err, "get project")
	}
	return proj, nil
}

// List returns the owner's project summaries.
func (s *Service) List(ctx context.Context, ownerID string) ([]Summary, error) {
	summaries, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return summaries, nil
}

// Delete removes a project and its transcript.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return mapNotFound(err, "delete project")
	}
	s.logger.Info("project deleted", "project_id", id, "owner_id", ownerID)
	return nil
}

// AppendMessage appends one transcript entry.
func (s *Service) AppendMessage(ctx context.Context, ownerID, projectID, role, content string) (*Message, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if !ValidRole(role) {
		return nil, ErrInvalidRole
	}

	msg := &Message{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.AppendMessage(ctx, ownerID, msg); err != nil {
		return nil, mapNotFound(err, "append message")
	}
	return msg, nil
}

// Transcript returns the project's messages in append order.
func (s *Service) Transcript(ctx context.Context, ownerID, projectID string) ([]Message, error) {
	msgs, err := s.repo.ListMessages(ctx, ownerID, projectID)
	if err != nil {
		return nil, mapNotFound(err, "list messages")
	}
	return msgs, nil
}

// SetArtifact replaces the project's generated code.
func (s *Service) SetArtifact(ctx context.Context, ownerID, projectID, artifact string) error {
	if err := s.repo.SetArtifact(ctx, ownerID, projectID, artifact); err != nil {
		return mapNotFound(err, "set artifact")
	}
	return nil
}

func mapNotFound(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
