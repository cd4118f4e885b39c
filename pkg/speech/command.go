package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command speaks by piping text to a local TTS program such as
// "say" (macOS) or "espeak --stdin" (Linux).
type Command struct {
	name string
	args []string
}

// NewCommand parses a command line like "espeak --stdin". Arguments are
// split on whitespace; quoting is not supported.
func NewCommand(commandLine string) *Command {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return &Command{}
	}
	return &Command{name: fields[0], args: fields[1:]}
}

// Available reports whether the program is on PATH.
func (c *Command) Available() bool {
	if c.name == "" {
		return false
	}
	_, err := exec.LookPath(c.name)
	return err == nil
}

// Speak implements Speaker. The text is written to the program's stdin.
func (c *Command) Speak(ctx context.Context, text string) error {
	if !c.Available() {
		return fmt.Errorf("%w: %q not found", ErrProviderUnavailable, c.name)
	}

	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w: %s", c.name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// String returns the command line.
func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}
