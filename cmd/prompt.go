package cmd

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// promptForInput prints prompt and reads one trimmed line.
func (c *cli) promptForInput(cmd *cobra.Command, prompt string) (string, error) {
	cmd.Print(prompt)
	line, err := c.lines(cmd).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptForPassword reads a password without echo when stdin is a terminal,
// and a plain line otherwise so it can be piped in.
func (c *cli) promptForPassword(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.Print(prompt)
		password, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(password)), nil
	}
	return c.promptForInput(cmd, prompt)
}
