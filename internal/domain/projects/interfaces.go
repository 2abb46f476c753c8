package projects

import "context"

// Repository provides persistence for projects and their transcripts.
type Repository interface {
	Create(ctx context.Context, proj *Project) error
	Get(ctx context.Context, ownerID, id string) (*Project, error)
	List(ctx context.Context, ownerID string) ([]Summary, error)
	Delete(ctx context.Context, ownerID, id string) error
	SetArtifact(ctx context.Context, ownerID, id, artifact string) error
	// AppendMessage assigns the message's Seq within its project and
	// refreshes the project's UpdatedAt.
	AppendMessage(ctx context.Context, ownerID string, msg *Message) error
	ListMessages(ctx context.Context, ownerID, projectID string) ([]Message, error)
}
