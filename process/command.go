package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoBinary is returned by Run and Start for a Command without Binary.
var ErrNoBinary = errors.New("process: binary is required")

const defaultGrace = 5 * time.Second

// Command describes one engine invocation, e.g. espeak-ng with a voice
// and text, or arecord writing raw PCM to stdout.
type Command struct {
	// Binary is looked up in PATH unless it contains a separator.
	Binary string
	Args   []string
	// Dir is the working directory; empty means the daemon's.
	Dir string
	// Env holds extra key=value pairs appended to the daemon's environment.
	Env   []string
	Stdin io.Reader
	// CaptureStdout exposes stdout through Process.Stdout when started with
	// Start. Run always captures stdout.
	CaptureStdout bool
	// GracePeriod separates SIGTERM from SIGKILL. Zero means 5s.
	GracePeriod time.Duration
}

// String renders the command line for logs, quoting arguments that
// contain spaces.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Binary)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

func (c Command) gracePeriod() time.Duration {
	if c.GracePeriod <= 0 {
		return defaultGrace
	}
	return c.GracePeriod
}

// build prepares the exec.Cmd shared by Run and Start. Engines may fork
// (say spawns helpers), so cancellation signals the whole process group.
func (c Command) build(ctx context.Context) (*exec.Cmd, error) {
	if c.Binary == "" {
		return nil, ErrNoBinary
	}
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...) //nolint:gosec // running engine binaries is the purpose of this package
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = c.gracePeriod()
	return cmd, nil
}
