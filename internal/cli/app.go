// Package cli is the interactive terminal client. It wires the session
// store, the conversation store, and the gated chat service into a REPL,
// and supplies the acquisition flows as terminal prompts.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/finaccosolutions/vbastudio/internal/backend"
	"github.com/finaccosolutions/vbastudio/internal/domain/chat"
	"github.com/finaccosolutions/vbastudio/internal/domain/conversation"
	"github.com/finaccosolutions/vbastudio/internal/domain/gate"
	"github.com/finaccosolutions/vbastudio/internal/domain/identity"
	"github.com/finaccosolutions/vbastudio/internal/render"
)

// App holds the client core plus the terminal I/O it drives.
type App struct {
	identities *identity.Store
	conv       *conversation.Store
	chat       *chat.Service
	api        *backend.Client

	reader *bufio.Reader
	out    io.Writer
}

// Deps are the pre-wired stores the App drives. The gate controller is
// constructed here so its flows can prompt through the App's terminal.
type Deps struct {
	Identities *identity.Store
	Conv       *conversation.Store
	API        *backend.Client
	Generator  chat.Generator
}

// NewApp builds the App and the gate controller whose flows prompt on
// the App's terminal.
func NewApp(deps Deps) *App {
	a := &App{
		identities: deps.Identities,
		conv:       deps.Conv,
		api:        deps.API,
		reader:     newReader(),
		out:        os.Stdout,
	}
	controller := gate.NewController(a.identities,
		gate.FlowFunc(a.authFlow), gate.FlowFunc(a.keyFlow))
	a.chat = chat.NewService(a.identities, a.conv, deps.Generator, controller, nil)
	return a
}

// authFlow prompts for sign-in or sign-up until an identity is active or
// the user backs out with a blank answer.
func (a *App) authFlow(ctx context.Context) error {
	for {
		choice, err := a.promptLine("Sign (i)n or sign (u)p? (blank to cancel) ")
		if err != nil {
			return gate.ErrCancelled
		}
		switch choice {
		case "":
			return gate.ErrCancelled
		case "i", "signin":
			if err := a.signIn(ctx); err == nil {
				return nil
			}
		case "u", "signup":
			if err := a.signUp(ctx); err == nil {
				return nil
			}
		default:
			fmt.Fprintln(a.out, "Answer i, u, or leave blank.")
		}
	}
}

// keyFlow prompts for the generation key. A blank key cancels.
func (a *App) keyFlow(ctx context.Context) error {
	fmt.Fprintln(a.out, "A Gemini API key is required before generating macros.")
	key, err := a.promptSecret("API key (blank to cancel): ")
	if err != nil || key == "" {
		return gate.ErrCancelled
	}
	if err := a.identities.UpdateSecretKey(ctx, key); err != nil {
		fmt.Fprintf(a.out, "Could not save the key: %v\n", err)
		return gate.ErrCancelled
	}
	fmt.Fprintln(a.out, "Key saved.")
	return nil
}

func (a *App) signIn(ctx context.Context) error {
	email, err := a.promptLine("Email: ")
	if err != nil {
		return err
	}
	password, err := a.promptSecret("Password: ")
	if err != nil {
		return err
	}
	if err := a.identities.SignIn(ctx, email, password); err != nil {
		fmt.Fprintf(a.out, "Sign-in failed: %s\n", userMessage(err))
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s.\n", email)
	return nil
}

func (a *App) signUp(ctx context.Context) error {
	if wait := a.identities.SignUpRetryAfter(); wait > 0 {
		fmt.Fprintf(a.out, "Sign-up is on cooldown, retry in %s.\n", wait.Round(time.Second))
		return identity.ErrRateLimited
	}
	email, err := a.promptLine("Email: ")
	if err != nil {
		return err
	}
	password, err := a.promptSecret("Password (6+ characters): ")
	if err != nil {
		return err
	}
	if err := a.identities.SignUp(ctx, email, password); err != nil {
		fmt.Fprintf(a.out, "Sign-up failed: %s\n", userMessage(err))
		return err
	}
	fmt.Fprintf(a.out, "Account created, signed in as %s.\n", email)
	return nil
}

func (a *App) signOut(ctx context.Context) {
	if err := a.identities.SignOut(ctx); err != nil {
		fmt.Fprintf(a.out, "Sign-out failed: %s\n", userMessage(err))
		return
	}
	a.conv.Reset()
	fmt.Fprintln(a.out, "Signed out.")
}

func (a *App) newProject(ctx context.Context, title string) {
	if title == "" {
		var err error
		title, err = a.promptLine("Project title: ")
		if err != nil || title == "" {
			fmt.Fprintln(a.out, "A title is required.")
			return
		}
	}
	proj, err := a.chat.CreateProject(ctx, title, "")
	if err != nil {
		fmt.Fprintf(a.out, "Could not create project: %s\n", userMessage(err))
		return
	}
	fmt.Fprintf(a.out, "Project %q is now active (%s).\n", proj.Title, proj.ID)
}

func (a *App) listProjects() {
	summaries := a.conv.List()
	if len(summaries) == 0 {
		fmt.Fprintln(a.out, "No projects yet. Use new to start one.")
		return
	}
	active := a.conv.ActiveID()
	for _, s := range summaries {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %s (%d messages)\n", marker, s.ID, s.Title, s.MessageCount)
	}
}

func (a *App) openProject(id string) {
	if !a.conv.SelectProject(id) {
		fmt.Fprintln(a.out, "No such project.")
		return
	}
	a.showTranscript()
}

func (a *App) send(ctx context.Context, content string) {
	if content == "" {
		var err error
		content, err = a.promptMultiline("Describe the macro (finish with a blank line):")
		if err != nil || content == "" {
			return
		}
	}
	if err := a.chat.Send(ctx, content); err != nil {
		fmt.Fprintf(a.out, "Send failed: %s\n", userMessage(err))
		return
	}
	a.showLatest()
}

func (a *App) showTranscript() {
	proj, ok := a.conv.Active()
	if !ok {
		fmt.Fprintln(a.out, "No active project.")
		return
	}
	fmt.Fprintf(a.out, "# %s\n", proj.Title)
	for _, msg := range proj.Messages {
		fmt.Fprintf(a.out, "[%s] %s\n", msg.Role, msg.Content)
	}
	if proj.Artifact != "" {
		fmt.Fprintf(a.out, "--- current macro ---\n%s\n", proj.Artifact)
	}
}

// showLatest prints the assistant's reply and the refreshed artifact
// after a successful turn.
func (a *App) showLatest() {
	proj, ok := a.conv.Active()
	if !ok || len(proj.Messages) == 0 {
		return
	}
	last := proj.Messages[len(proj.Messages)-1]
	if last.Role == conversation.RoleAssistant {
		fmt.Fprintf(a.out, "\n%s\n", last.Content)
	}
	if proj.Artifact != "" {
		fmt.Fprintf(a.out, "--- current macro ---\n%s\n", proj.Artifact)
	}
}

// export renders the active project's macro into an instructional
// workbook on the server and writes the .xlsx next to the user.
func (a *App) export(ctx context.Context, path string) {
	proj, ok := a.conv.Active()
	if !ok {
		fmt.Fprintln(a.out, "No active project.")
		return
	}
	if proj.Artifact == "" {
		fmt.Fprintln(a.out, "The active project has no generated macro yet.")
		return
	}
	if path == "" {
		path = "excel_template.xlsx"
	}

	data, err := a.api.DownloadWorkbook(ctx, a.identities.Token(), render.Request{
		Operation: render.OpEmitCode,
		Code:      proj.Artifact,
	})
	if err != nil {
		fmt.Fprintf(a.out, "Export failed: %s\n", userMessage(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(a.out, "Could not write %s: %v\n", path, err)
		return
	}
	fmt.Fprintf(a.out, "Wrote %s (%d bytes).\n", path, len(data))
}

func (a *App) status() {
	ident, ok := a.identities.Current()
	if !ok {
		fmt.Fprintln(a.out, "Not signed in.")
		return
	}
	key := "no key"
	if ident.HasSecretKey() {
		key = "key provisioned"
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s).\n", ident.Email, key)
	if proj, ok := a.conv.Active(); ok {
		fmt.Fprintf(a.out, "Active project: %s\n", proj.Title)
	}
}

func (a *App) isSignedIn() bool {
	_, ok := a.identities.Current()
	return ok
}

// userMessage flattens the identity error taxonomy into one line of
// terminal text.
func userMessage(err error) string {
	var rl *identity.RateLimitedError
	switch {
	case errors.As(err, &rl):
		return fmt.Sprintf("too many attempts, retry in %s", rl.RetryAfter.Round(time.Second))
	case errors.Is(err, identity.ErrInvalidCredentials):
		return "email or password is incorrect"
	case errors.Is(err, identity.ErrEmailTaken):
		return "that email is already registered"
	case errors.Is(err, identity.ErrNetwork):
		return "the server could not be reached"
	case errors.Is(err, identity.ErrNotAuthenticated):
		return "not signed in"
	case errors.Is(err, gate.ErrCancelled):
		return "cancelled"
	case errors.Is(err, gate.ErrBusy):
		return "another request is still running"
	case errors.Is(err, chat.ErrNoActiveProject):
		return "no active project, use new first"
	default:
		return strings.TrimSpace(err.Error())
	}
}
