package process

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Result holds the output and status of a completed command.
type Result struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is -1 when the process was killed by a signal.
	ExitCode int
	Duration time.Duration
}

// Text returns stdout as a string, as engines parse voice listings from it.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Stdout)
}

// ErrNotFound is wrapped when the executable is not installed.
var ErrNotFound = errors.New("process: executable not found")

// ExitError reports a command that started but exited unsuccessfully.
type ExitError struct {
	Binary string
	Code   int
	// Stderr is the last non-empty line the command wrote to stderr.
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("process: %s exited with code %d: %s", e.Binary, e.Code, e.Stderr)
	}
	return fmt.Sprintf("process: %s exited with code %d", e.Binary, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// lastLine returns the last non-empty line of b, trimmed.
func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
