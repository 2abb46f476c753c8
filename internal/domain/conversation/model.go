package conversation

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single conversation turn. Messages are immutable once
// created; the transcript is append-only and its insertion order is the
// conversation order.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// Project is one macro-building conversation: its transcript plus the
// latest generated VBA artifact.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Messages    []Message `json:"messages"`
	Artifact    string    `json:"artifact,omitempty"`
	OwnerID     string    `json:"owner_id"`
}

// clone returns a deep copy, so callers can never mutate store state.
func (p *Project) clone() Project {
	out := *p
	out.Messages = append([]Message(nil), p.Messages...)
	return out
}

// Summary is a lightweight representation for listing.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}
