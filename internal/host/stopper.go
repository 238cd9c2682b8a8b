package host

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"autoshutdown/internal/types"
)

// DefaultStopTimeout bounds how long the stop command may run.
const DefaultStopTimeout = 30 * time.Second

// CommandStopper runs an operator-supplied shell command and then cancels the
// process root context. An empty command only cancels.
type CommandStopper struct {
	command string
	timeout time.Duration
	cancel  context.CancelFunc
	logger  *slog.Logger

	// run executes the command; replaced in tests.
	run func(ctx context.Context, command string) ([]byte, error)
}

// NewCommandStopper creates a CommandStopper. cancel is the root context's
// cancel function and is always called, even if the command fails.
func NewCommandStopper(command string, timeout time.Duration, cancel context.CancelFunc, logger *slog.Logger) *CommandStopper {
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandStopper{
		command: command,
		timeout: timeout,
		cancel:  cancel,
		logger:  logger,
		run:     runShell,
	}
}

// Stop implements types.Stopper.
func (s *CommandStopper) Stop(ctx context.Context) error {
	defer s.cancel()

	if s.command == "" {
		s.logger.Warn("stopping process")
		return nil
	}

	// The loop context may already be shutting down; the command still gets
	// its full timeout.
	cmdCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	s.logger.Warn("running stop command", "command", s.command, "timeout", s.timeout.String())
	out, err := s.run(cmdCtx, s.command)
	if err != nil {
		return fmt.Errorf("stop command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	s.logger.Info("stop command finished", "output", strings.TrimSpace(string(out)))
	return nil
}

// CancelStopper returns a Stopper that only cancels the root context.
func CancelStopper(cancel context.CancelFunc, logger *slog.Logger) types.Stopper {
	if logger == nil {
		logger = slog.Default()
	}
	return types.StopperFunc(func(context.Context) error {
		logger.Warn("stopping process")
		cancel()
		return nil
	})
}

func runShell(ctx context.Context, command string) ([]byte, error) {
	return exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
}
