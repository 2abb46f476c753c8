// Package mcp exposes the project archive and macro generation as MCP
// tools. HTTP mode authenticates with the same bearer tokens as the
// REST API; stdio mode binds every call to one local user.
package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/finaccosolutions/vbastudio/internal/domain/projects"
	"github.com/finaccosolutions/vbastudio/internal/genai"
)

// ProjectService defines the project operations needed by the tools.
type ProjectService interface {
	Create(ctx context.Context, ownerID, title, description string) (*projects.Project, error)
	List(ctx context.Context, ownerID string) ([]projects.Summary, error)
	Get(ctx context.Context, ownerID, id string) (*projects.Project, error)
	AppendMessage(ctx context.Context, ownerID, projectID, role, content string) (*projects.Message, error)
	Transcript(ctx context.Context, ownerID, projectID string) ([]projects.Message, error)
	SetArtifact(ctx context.Context, ownerID, projectID, artifact string) error
}

// KeySource returns a user's generation key, empty when none is set.
type KeySource interface {
	SecretKey(ctx context.Context, userID string) (string, error)
}

// Generator produces VBA code from a prompt and history.
type Generator interface {
	Generate(ctx context.Context, key string, req genai.Request) (*genai.Result, error)
}

// GenerationObserver records generation outcomes, typically a metrics
// collector.
type GenerationObserver interface {
	RecordGeneration(outcome string)
}

// Services contains all dependencies needed by the tools.
type Services struct {
	Projects  ProjectService
	Keys      KeySource
	Generator Generator
	Observer  GenerationObserver
}

// Config contains server configuration.
type Config struct {
	Services Services
	Resolver UserResolver
	// TransportMode is "stdio" or "http". Stdio binds LocalUserID.
	TransportMode string
	LocalUserID   string
	Logger        *slog.Logger
}

const serverInstructions = `vbastudio turns plain-language requests into Excel VBA macros.
Create a project first, then use generate_macro to hold a conversation;
the latest generated code is the project's artifact. render_workbook
emits an instructional .xlsx for a finished macro.`

// NewServer creates and configures an MCP server with all tools and
// middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "vbastudio",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	if cfg.TransportMode == "stdio" {
		server.AddReceivingMiddleware(localUserMiddleware(cfg.LocalUserID))
	} else {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	}

	registerTools(server, cfg.Services, cfg.Logger)

	return server
}
