package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// IdentitySource reports whether an identity is active and who it is.
// The store only needs the owner id for new projects.
type IdentitySource interface {
	CurrentID() (string, bool)
}

// Store owns the project collection and the active project for one client.
// Mutations that require an identity or an active project degrade to
// silent no-ops; callers are expected to have gated beforehand.
type Store struct {
	ids IdentitySource
	now func() time.Time

	mu       sync.Mutex
	projects []*Project
	activeID string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty conversation store.
func NewStore(ids IdentitySource, opts ...Option) *Store {
	s := &Store{ids: ids, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProject adds a project with an empty transcript and makes it
// active. Without an active identity it is a no-op and returns false.
func (s *Store) CreateProject(title, description string) (Project, bool) {
	ownerID, ok := s.ids.CurrentID()
	if !ok {
		return Project{}, false
	}

	now := s.now()
	proj := &Project{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		OwnerID:     ownerID,
	}

	s.mu.Lock()
	s.projects = append(s.projects, proj)
	s.activeID = proj.ID
	s.mu.Unlock()

	return proj.clone(), true
}

// AppendMessage appends a turn to the active project's transcript and
// refreshes its UpdatedAt. Without an active project it is a no-op.
func (s *Store) AppendMessage(content string, role Role) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proj := s.activeLocked()
	if proj == nil {
		return Message{}, false
	}

	msg := Message{
		ID:        uuid.NewString(),
		Content:   content,
		Role:      role,
		Timestamp: s.now(),
	}
	proj.Messages = append(proj.Messages, msg)
	proj.UpdatedAt = msg.Timestamp
	return msg, true
}

// SetArtifact replaces the active project's generated code. The
// transcript is untouched.
func (s *Store) SetArtifact(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	proj := s.activeLocked()
	if proj == nil {
		return false
	}
	proj.Artifact = code
	proj.UpdatedAt = s.now()
	return true
}

// SelectProject makes the named project active. An unknown id leaves the
// previous selection unchanged.
func (s *Store) SelectProject(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, proj := range s.projects {
		if proj.ID == id {
			s.activeID = id
			return true
		}
	}
	return false
}

// Active returns a copy of the active project, if any.
func (s *Store) Active() (Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proj := s.activeLocked()
	if proj == nil {
		return Project{}, false
	}
	return proj.clone(), true
}

// ActiveID returns the active project's id, or empty.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// List returns summaries of all projects in creation order.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.projects))
	for _, proj := range s.projects {
		out = append(out, Summary{
			ID:           proj.ID,
			Title:        proj.Title,
			Description:  proj.Description,
			MessageCount: len(proj.Messages),
			UpdatedAt:    proj.UpdatedAt,
		})
	}
	return out
}

// Reset drops all projects, for identity teardown on sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = nil
	s.activeID = ""
}

func (s *Store) activeLocked() *Project {
	if s.activeID == "" {
		return nil
	}
	for _, proj := range s.projects {
		if proj.ID == s.activeID {
			return proj
		}
	}
	return nil
}
