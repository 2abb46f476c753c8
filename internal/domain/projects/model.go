// Package projects is the server-side project archive: persisted
// conversations and their generated artifacts, scoped per owner.
package projects

import "time"

// Project is one persisted conversation with its current artifact.
type Project struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Artifact    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is one persisted transcript entry. Seq is assigned on append
// and orders the transcript; it never changes afterwards.
type Message struct {
	ID        string
	ProjectID string
	Seq       int64
	Role      string
	Content   string
	CreatedAt time.Time
}

// Summary is the listing shape: no transcript, just counts.
type Summary struct {
	ID           string
	Title        string
	Description  string
	MessageCount int64
	UpdatedAt    time.Time
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether the role is one of the two transcript roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}
