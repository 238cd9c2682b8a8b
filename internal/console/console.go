// Package console provides the interactive operator console on stdin.
//
// Lines are parsed with the shared text grammar and executed as the console
// operator. Shutdown warnings are printed to the same terminal through
// ConsoleSink so they never garble the prompt.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"

	"autoshutdown/internal/commands"
	"autoshutdown/internal/types"
)

// DefaultPrompt is used when none is configured.
const DefaultPrompt = "autoshutdown> "

// LineReader is the part of *readline.Instance the console uses.
type LineReader interface {
	Readline() (string, error)
	Stdout() io.Writer
	Close() error
}

// Executor runs a parsed command.
type Executor interface {
	Execute(ctx context.Context, cmd commands.Command) (commands.Result, error)
}

// Console is the interactive command loop.
type Console struct {
	rl     LineReader
	logger *slog.Logger
}

// NewReader opens the terminal line reader. Build the process logger on its
// Stdout, then pass both to NewWithReader.
func NewReader(prompt string) (LineReader, error) {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return rl, nil
}

// NewWithReader creates a Console over an existing LineReader.
func NewWithReader(rl LineReader, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{rl: rl, logger: logger}
}

// Stdout returns a writer that coordinates with the prompt. Route log output
// through it while the console is running.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run reads commands and hands them to exec until ctx ends, EOF, or "exit".
// Leaving the console does not stop the process.
func (c *Console) Run(ctx context.Context, exec Executor) error {
	defer c.rl.Close()
	// Unblock Readline when the process shuts down.
	stop := context.AfterFunc(ctx, func() { _ = c.rl.Close() })
	defer stop()

	out := c.rl.Stdout()
	fmt.Fprintln(out, "type 'help' for commands")

	actorCtx := types.WithActor(ctx, types.Actor{
		ID:       "console",
		Type:     types.ActorTypeConsole,
		Operator: true,
	})

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := c.rl.Readline()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				c.logger.Info("console closed")
				return nil
			}
			return fmt.Errorf("console read failed: %w", err)
		}

		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			c.logger.Info("console closed")
			return nil
		}

		c.handle(actorCtx, exec, out, input)
	}
}

func (c *Console) handle(ctx context.Context, exec Executor, out io.Writer, input string) {
	cmd, err := commands.Parse(input)
	if err != nil {
		fmt.Fprintf(out, "%s\n", errorText(err))
		return
	}

	res, err := exec.Execute(ctx, cmd)
	switch {
	case res.Message != "":
		fmt.Fprintln(out, res.Message)
	case err != nil:
		fmt.Fprintln(out, errorText(err))
	}
}

// errorText renders an error for the operator without the code prefix.
func errorText(err error) string {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return "error: " + err.Error()
	}
	if input, ok := appErr.Details["input"]; ok {
		return fmt.Sprintf("%s: %v", appErr.Message, input)
	}
	return appErr.Message
}
