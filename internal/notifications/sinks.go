package notifications

import (
	"context"
	"log/slog"

	"autoshutdown/internal/types"
)

// LogSink writes each warning to the structured log. It is always installed
// so warnings are visible even when no network sink is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, ev types.NotificationEvent) error {
	level := slog.LevelInfo
	if ev.Severity == types.SeverityUrgent {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, ev.Message,
		"event_id", ev.ID,
		"threshold", ev.Threshold.String(),
		"remaining_ms", ev.Remaining.Milliseconds(),
		"deadline", ev.Deadline,
	)
	return nil
}
