package process

import (
	"context"
	"time"
)

// Runner runs commands. Engines depend on Runner so tests can substitute a
// fake for the real executables.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
	Start(ctx context.Context, cmd Command) (Process, error)
}

// Config configures an Exec runner.
type Config struct {
	// GracePeriod is the default grace period for SIGTERM→SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period,omitempty" mapstructure:"grace_period"`
	// Timeout bounds Run calls. Zero means no timeout. Start is unaffected.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// Exec is the Runner backed by real subprocesses.
type Exec struct {
	config Config
}

var _ Runner = (*Exec)(nil)

// NewExec creates a Runner that executes real commands.
func NewExec(cfg Config) *Exec {
	return &Exec{config: cfg}
}

// Run executes a command, applying runner-level defaults.
func (e *Exec) Run(ctx context.Context, cmd Command) (*Result, error) {
	cmd = e.applyDefaults(cmd)
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}
	return Run(ctx, cmd)
}

// Start launches a command, applying runner-level defaults.
func (e *Exec) Start(ctx context.Context, cmd Command) (Process, error) {
	h, err := Start(ctx, e.applyDefaults(cmd))
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (e *Exec) applyDefaults(cmd Command) Command {
	if cmd.GracePeriod == 0 && e.config.GracePeriod > 0 {
		cmd.GracePeriod = e.config.GracePeriod
	}
	return cmd
}
