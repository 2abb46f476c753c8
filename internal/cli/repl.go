package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Run reads commands until exit or EOF. Privileged commands go through
// the gate, which prompts for sign-in and key entry as needed.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out, "vbastudio - describe a macro, get working VBA. Type help for commands.")
	for {
		line, err := a.promptLine("vba> ")
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		cmd, rest := splitCommand(line)
		switch cmd {
		case "":
			continue
		case "help":
			a.printHelp()
		case "status":
			a.status()
		case "signin":
			_ = a.signIn(ctx)
		case "signup":
			_ = a.signUp(ctx)
		case "signout":
			a.signOut(ctx)
		case "key":
			_ = a.keyFlow(ctx)
		case "new":
			a.newProject(ctx, rest)
		case "list":
			a.listProjects()
		case "open":
			a.openProject(rest)
		case "show":
			a.showTranscript()
		case "send":
			a.send(ctx, rest)
		case "export":
			a.export(ctx, rest)
		case "exit", "quit":
			return nil
		default:
			// Bare prose is treated as a send, so a conversation
			// reads like chat.
			a.send(ctx, line)
		}
	}
}

func splitCommand(line string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	cmd := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return cmd, ""
	}
	return cmd, strings.TrimSpace(parts[1])
}

func (a *App) printHelp() {
	if a.isSignedIn() {
		fmt.Fprintln(a.out, `Commands:
  new [title]    start a project
  list           list projects
  open <id>      switch the active project
  send [text]    describe the macro you want
  show           print the active transcript
  export [path]  download the instructional workbook
  key            replace the stored API key
  status         show who is signed in
  signout        end the session everywhere on this machine
  exit`)
		return
	}
	fmt.Fprintln(a.out, `Commands:
  signin         sign in to an existing account
  signup         create an account
  status         show session state
  exit

You can also just start typing: the first privileged action will walk
you through sign-in and key setup.`)
}
