// Package notifications owns the countdown warnings: the Stager decides which
// warning is due for a given remaining time, and the Dispatcher fans events
// out to the configured sinks (log, SQS queue, chat webhook) off the tick path.
package notifications

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"autoshutdown/internal/types"
)

// Thresholds are the remaining-time boundaries at which a warning is emitted,
// ascending.
var Thresholds = []time.Duration{
	time.Second,
	10 * time.Second,
	time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Stager tracks which thresholds have already produced a warning for the
// current deadline. It is not safe for concurrent use; the host loop is its
// only caller.
type Stager struct {
	fired []bool
}

// NewStager returns a Stager with every threshold unfired.
func NewStager() *Stager {
	return &Stager{fired: make([]bool, len(Thresholds))}
}

// Evaluate returns the warning due at the given remaining time, if any.
//
// The smallest threshold with remaining <= threshold is the one that applies.
// When it has not fired yet it fires, and every larger threshold is marked as
// fired too so a late tick never back-fills a less urgent warning. At most one
// event is returned per call.
func (s *Stager) Evaluate(remaining time.Duration) []types.NotificationEvent {
	for i, threshold := range Thresholds {
		if remaining > threshold {
			continue
		}
		if s.fired[i] {
			return nil
		}
		for j := i; j < len(Thresholds); j++ {
			s.fired[j] = true
		}
		return []types.NotificationEvent{newEvent(threshold, remaining)}
	}
	return nil
}

// Reset clears every fired flag. Called whenever the deadline is recomputed.
func (s *Stager) Reset() {
	for i := range s.fired {
		s.fired[i] = false
	}
}

// Fired returns the thresholds currently marked as fired, ascending.
func (s *Stager) Fired() []time.Duration {
	out := make([]time.Duration, 0, len(Thresholds))
	for i, f := range s.fired {
		if f {
			out = append(out, Thresholds[i])
		}
	}
	return out
}

func newEvent(threshold, remaining time.Duration) types.NotificationEvent {
	ev := types.NotificationEvent{
		ID:        uuid.NewString(),
		Threshold: threshold,
		Remaining: remaining,
		Severity:  types.SeverityUrgent,
		Color:     types.ColorRed,
		Sound:     true,
		Message:   "Server will shutdown within " + describe(threshold),
	}

	switch threshold {
	case 10 * time.Minute:
		ev.Severity = types.SeverityInfo
		ev.Color = types.ColorGreen
	case 5 * time.Minute:
		ev.Severity = types.SeverityInfo
		ev.Color = types.ColorYellow
	case 10 * time.Second, time.Second:
		ev.Bold = true
	}
	return ev
}

// describe renders a threshold as "10 minutes", "1 minute", "1 second".
func describe(d time.Duration) string {
	n, unit := int64(d/time.Second), "second"
	if d >= time.Minute {
		n, unit = int64(d/time.Minute), "minute"
	}
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
