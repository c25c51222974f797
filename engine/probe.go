package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/kbukum/voicekit/process"
)

// probe runs binary with args and classifies the failure: a missing
// executable reads "not installed", anything else "probe failed".
func probe(ctx context.Context, runner process.Runner, engine, binary string, args ...string) error {
	_, err := runner.Run(ctx, process.Command{Binary: binary, Args: args})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, process.ErrNotFound):
		return fmt.Errorf("%s: %s is not installed: %w", engine, binary, err)
	default:
		return fmt.Errorf("%s: probe %s: %w", engine, binary, err)
	}
}
