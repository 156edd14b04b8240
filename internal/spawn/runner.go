package spawn

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/randalmurphal/conductor/internal/manifest"
)

// Runner hands a spawned session to its execution environment. Start
// blocks until the hand-off is accepted (not until the agent finishes);
// an error means the session never started.
type Runner interface {
	Start(ctx context.Context, m *manifest.Manifest) error
}

// CommandRunner launches the configured agent command with the
// manifest path as its argument, in the project's working directory.
// The process is detached: conductor learns about its progress through
// reports, not by waiting on it.
type CommandRunner struct {
	// Command is the agent executable, e.g. "claude" or a wrapper
	// script. Args are prepended before the manifest path.
	Command string
	Args    []string

	logger *slog.Logger
}

// NewCommandRunner creates a runner for the given agent command.
func NewCommandRunner(command string, args []string, logger *slog.Logger) *CommandRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandRunner{Command: command, Args: args, logger: logger}
}

// Start launches the agent process.
func (r *CommandRunner) Start(ctx context.Context, m *manifest.Manifest) error {
	if r.Command == "" {
		return fmt.Errorf("no agent command configured")
	}

	args := append(append([]string(nil), r.Args...), m.Path)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = m.Project.WorkDir

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start agent process: %w", err)
	}
	r.logger.Info("agent process started",
		"session_id", m.SessionID,
		"pid", cmd.Process.Pid,
		"command", r.Command)

	// Reap the process in the background so it never zombies; exit
	// status is informational — lifecycle truth comes from reports.
	go func() {
		if err := cmd.Wait(); err != nil {
			r.logger.Warn("agent process exited with error", "session_id", m.SessionID, "error", err)
		}
	}()
	return nil
}

// NopRunner accepts every hand-off without doing anything. Used when
// conductor only tracks sessions driven by an external integration.
type NopRunner struct{}

// Start does nothing.
func (NopRunner) Start(ctx context.Context, m *manifest.Manifest) error { return nil }
