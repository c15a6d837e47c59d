// Package authcmder provides the auth command for signing in to the chat
// service and managing the stored session.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const authLongDesc string = `Sign in to the chat service.

The session token is stored in credentials.toml in the .rolechat/ directory,
keyed by the server's base URL, and sent as a bearer token on every request.
When the server rejects it the stored token is removed.

ROLECHAT_TOKEN overrides the stored token for every server.

Examples:
  rolechat auth register --username ada --email ada@example.com
  rolechat auth login --email ada@example.com
  echo $PASSWORD | rolechat auth login --email ada@example.com
  rolechat auth whoami
  rolechat auth logout`

const authShortDesc string = "Sign in to the chat service"

func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
	}

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())

	return cmd
}

// prompter reads answers from the command's input. Piped input is read one
// line per answer.
type prompter struct {
	in  io.Reader
	out io.Writer
	r   *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{in: in, out: cmd.ErrOrStderr(), r: bufio.NewReader(in)}
}

// ask returns def when set, otherwise prompts for a line.
func (p *prompter) ask(label, def string) (string, error) {
	if def != "" {
		return def, nil
	}

	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.line()
	if err != nil {
		return "", err
	}
	if line == "" {
		return "", fmt.Errorf("%s cannot be empty", strings.ToLower(label))
	}
	return line, nil
}

// secret prompts for hidden input on a terminal, otherwise reads a line.
func (p *prompter) secret(label string) (string, error) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		line, err := p.line()
		if err != nil {
			return "", err
		}
		if line == "" {
			return "", fmt.Errorf("%s cannot be empty", strings.ToLower(label))
		}
		return line, nil
	}

	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}

	return string(b), nil
}

func (p *prompter) line() (string, error) {
	line, err := p.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	if err != nil && line == "" {
		return "", errors.New("no input received")
	}
	return strings.TrimSpace(line), nil
}
