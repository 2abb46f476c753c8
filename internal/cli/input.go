package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func (a *App) promptLine(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	line, err := a.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) promptSecret(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	secret, err := readPassword()
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

// promptMultiline reads lines until the first blank line.
func (a *App) promptMultiline(prompt string) (string, error) {
	fmt.Fprintln(a.out, prompt)
	var lines []string
	for {
		line, err := a.reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
		if err != nil {
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func newReader() *bufio.Reader {
	return bufio.NewReader(os.Stdin)
}
