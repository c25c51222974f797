package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Run executes a command and waits for it, capturing stdout and stderr.
// Engines use it for short probes such as listing voices. When ctx ends
// the process group gets SIGTERM, then SIGKILL after the grace period.
//
// A missing executable yields an error wrapping ErrNotFound; a failed
// exit yields an *ExitError carrying the last stderr line.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	c, err := cmd.build(ctx)
	if err != nil {
		return nil, err
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err = c.Run()

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, exec.ErrNotFound):
		return result, fmt.Errorf("%w: %s", ErrNotFound, cmd.Binary)
	case ctx.Err() != nil:
		return result, fmt.Errorf("process: %s killed by context: %w", cmd.Binary, ctx.Err())
	default:
		return result, &ExitError{Binary: cmd.Binary, Code: result.ExitCode, Stderr: lastLine(result.Stderr), Err: err}
	}
}
