package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/finaccosolutions/vbastudio/internal/domain/projects"
	"github.com/finaccosolutions/vbastudio/internal/genai"
	"github.com/finaccosolutions/vbastudio/internal/render"
)

type createProjectInput struct {
	Title       string `json:"title" jsonschema:"project title"`
	Description string `json:"description,omitempty" jsonschema:"optional project description"`
}

type projectOutput struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Artifact    string `json:"artifact,omitempty"`
}

type listProjectsInput struct{}

type projectSummaryOutput struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	MessageCount int64     `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type listProjectsOutput struct {
	Projects []projectSummaryOutput `json:"projects"`
}

type getProjectInput struct {
	ID string `json:"id" jsonschema:"project id"`
}

type messageOutput struct {
	Seq     int64  `json:"seq"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type getProjectOutput struct {
	projectOutput
	Messages []messageOutput `json:"messages"`
}

type appendMessageInput struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	Role      string `json:"role" jsonschema:"user or assistant"`
	Content   string `json:"content" jsonschema:"message text"`
}

type generateMacroInput struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	Prompt    string `json:"prompt" jsonschema:"what the macro should do"`
}

type generateMacroOutput struct {
	VBACode     string `json:"vba_code"`
	Explanation string `json:"explanation"`
}

type renderWorkbookInput struct {
	Operation string                `json:"operation" jsonschema:"emit-code, emit-formula or emit-control"`
	Code      string                `json:"code,omitempty" jsonschema:"VBA source for emit-code"`
	Formula   string                `json:"formula,omitempty" jsonschema:"formula for emit-formula"`
	Control   *render.ControlConfig `json:"control,omitempty" jsonschema:"button configuration for emit-control"`
}

type renderWorkbookOutput struct {
	Filename        string `json:"filename"`
	WorkbookBase64  string `json:"workbook_base64"`
	ContentEncoding string `json:"content_encoding"`
}

func registerTools(server *sdkmcp.Server, svcs Services, logger *slog.Logger) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_project",
		Description: "Create a new VBA project with an empty conversation",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in createProjectInput) (*sdkmcp.CallToolResult, projectOutput, error) {
		proj, err := svcs.Projects.Create(ctx, getUserID(ctx), in.Title, in.Description)
		if err != nil {
			return nil, projectOutput{}, err
		}
		return nil, toProjectOutput(proj), nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_projects",
		Description: "List the caller's VBA projects",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ listProjectsInput) (*sdkmcp.CallToolResult, listProjectsOutput, error) {
		summaries, err := svcs.Projects.List(ctx, getUserID(ctx))
		if err != nil {
			return nil, listProjectsOutput{}, err
		}
		out := listProjectsOutput{Projects: make([]projectSummaryOutput, 0, len(summaries))}
		for _, s := range summaries {
			out.Projects = append(out.Projects, projectSummaryOutput{
				ID:           s.ID,
				Title:        s.Title,
				Description:  s.Description,
				MessageCount: s.MessageCount,
				UpdatedAt:    s.UpdatedAt,
			})
		}
		return nil, out, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_project",
		Description: "Get a project including its transcript and current artifact",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in getProjectInput) (*sdkmcp.CallToolResult, getProjectOutput, error) {
		userID := getUserID(ctx)
		proj, err := svcs.Projects.Get(ctx, userID, in.ID)
		if err != nil {
			return nil, getProjectOutput{}, err
		}
		msgs, err := svcs.Projects.Transcript(ctx, userID, in.ID)
		if err != nil {
			return nil, getProjectOutput{}, err
		}
		out := getProjectOutput{projectOutput: toProjectOutput(proj)}
		for _, m := range msgs {
			out.Messages = append(out.Messages, messageOutput{
				Seq: m.Seq, Role: m.Role, Content: m.Content,
			})
		}
		return nil, out, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "append_message",
		Description: "Append a message to a project's transcript without generating",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in appendMessageInput) (*sdkmcp.CallToolResult, messageOutput, error) {
		msg, err := svcs.Projects.AppendMessage(ctx, getUserID(ctx), in.ProjectID, in.Role, in.Content)
		if err != nil {
			return nil, messageOutput{}, err
		}
		return nil, messageOutput{Seq: msg.Seq, Role: msg.Role, Content: msg.Content}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "generate_macro",
		Description: "Run one conversation turn: record the prompt, generate VBA with the caller's stored key, record the reply and update the artifact",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in generateMacroInput) (*sdkmcp.CallToolResult, generateMacroOutput, error) {
		out, err := generateMacro(ctx, svcs, logger, in)
		return nil, out, err
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "render_workbook",
		Description: "Render an instructional Excel workbook for generated VBA, a formula or a form control",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in renderWorkbookInput) (*sdkmcp.CallToolResult, renderWorkbookOutput, error) {
		data, err := render.Render(render.Request{
			Operation: render.Operation(in.Operation),
			Code:      in.Code,
			Formula:   in.Formula,
			Control:   in.Control,
		})
		if err != nil {
			return nil, renderWorkbookOutput{}, err
		}
		return nil, renderWorkbookOutput{
			Filename:        "excel_template.xlsx",
			WorkbookBase64:  base64.StdEncoding.EncodeToString(data),
			ContentEncoding: "base64",
		}, nil
	})
}

// generateMacro is the server-side conversation turn. The key check is
// local and precedes any upstream call.
func generateMacro(ctx context.Context, svcs Services, logger *slog.Logger, in generateMacroInput) (generateMacroOutput, error) {
	userID := getUserID(ctx)

	key, err := svcs.Keys.SecretKey(ctx, userID)
	if err != nil {
		return generateMacroOutput{}, err
	}
	if key == "" {
		observe(svcs.Observer, "key_missing")
		return generateMacroOutput{}, fmt.Errorf("KEY_MISSING: no generation key is provisioned for this account")
	}

	history, err := svcs.Projects.Transcript(ctx, userID, in.ProjectID)
	if err != nil {
		return generateMacroOutput{}, err
	}

	if _, err := svcs.Projects.AppendMessage(ctx, userID, in.ProjectID, projects.RoleUser, in.Prompt); err != nil {
		return generateMacroOutput{}, err
	}

	turns := make([]genai.Turn, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == projects.RoleAssistant {
			role = "model"
		}
		turns = append(turns, genai.Turn{Role: role, Content: m.Content})
	}

	result, err := svcs.Generator.Generate(ctx, key, genai.Request{
		Prompt:  in.Prompt,
		History: turns,
	})
	if err != nil {
		observe(svcs.Observer, classifyGeneration(err))
		logger.Warn("generation failed", "project_id", in.ProjectID, "error", err)
		return generateMacroOutput{}, fmt.Errorf("generation failed: %w", err)
	}
	observe(svcs.Observer, "ok")

	if _, err := svcs.Projects.AppendMessage(ctx, userID, in.ProjectID, projects.RoleAssistant, result.Explanation); err != nil {
		return generateMacroOutput{}, err
	}
	if err := svcs.Projects.SetArtifact(ctx, userID, in.ProjectID, result.VBACode); err != nil {
		return generateMacroOutput{}, err
	}

	return generateMacroOutput{
		VBACode:     result.VBACode,
		Explanation: result.Explanation,
	}, nil
}

func classifyGeneration(err error) string {
	switch {
	case errors.Is(err, genai.ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, genai.ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, genai.ErrMalformedResponse):
		return "malformed"
	default:
		return "network"
	}
}

func observe(obs GenerationObserver, outcome string) {
	if obs != nil {
		obs.RecordGeneration(outcome)
	}
}

func toProjectOutput(proj *projects.Project) projectOutput {
	return projectOutput{
		ID:          proj.ID,
		Title:       proj.Title,
		Description: proj.Description,
		Artifact:    proj.Artifact,
	}
}
