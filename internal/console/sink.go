package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"autoshutdown/internal/types"
)

// ANSI escape sequences.
const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	bell       = "\a"
)

// Sink prints shutdown warnings to a terminal with their color, weight and
// bell.
type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewSink creates a Sink writing to out, usually Console.Stdout().
func NewSink(out io.Writer) *Sink {
	return &Sink{out: out}
}

func (s *Sink) Name() string { return "console" }

func (s *Sink) Deliver(_ context.Context, ev types.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, Render(ev))
	return err
}

// Render formats ev as one terminal line.
func Render(ev types.NotificationEvent) string {
	style := colorCode(ev.Color)
	if ev.Bold {
		style = ansiBold + style
	}
	line := fmt.Sprintf("%s%s%s\n", style, ev.Message, ansiReset)
	if ev.Sound {
		line = bell + line
	}
	return line
}

func colorCode(c types.Color) string {
	switch c {
	case types.ColorGreen:
		return ansiGreen
	case types.ColorYellow:
		return ansiYellow
	case types.ColorRed:
		return ansiRed
	default:
		return ""
	}
}
