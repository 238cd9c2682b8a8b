package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"autoshutdown/internal/notifications"
	"autoshutdown/internal/timecodec"
	"autoshutdown/internal/types"
)

// Persisted setting keys. Only the recurring timer survives a restart.
const (
	KeyEnableTimer = "enable-timer"
	KeyTimer       = "timer"
)

// MinOneShotDuration is the floor applied when the one-shot delay is enabled
// without an explicit duration.
const MinOneShotDuration = time.Minute

// DefaultSettings returns the settings written when the store is empty.
func DefaultSettings() map[string]string {
	return map[string]string{
		KeyEnableTimer: "false",
		KeyTimer:       "00:00:00",
	}
}

// SettingsStore is the key/value persistence the scheduler needs.
//
// Load returns an empty map (and no error) when nothing has been stored yet.
// Save merges the given keys into whatever is already stored. Failures are
// reported as *types.AppError with a persistence code.
type SettingsStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, settings map[string]string) error
}

// RecurringTimerConfig is the daily alarm. ReferenceMidnight+Offset is the
// next pending occurrence once aligned.
type RecurringTimerConfig struct {
	Enabled           bool
	Offset            time.Duration
	ReferenceMidnight time.Time
}

// Next returns the occurrence this config contributes.
func (c RecurringTimerConfig) Next() time.Time {
	return c.ReferenceMidnight.Add(c.Offset)
}

// OneShotTimerConfig is the delay measured from ReferenceInstant.
type OneShotTimerConfig struct {
	Enabled          bool
	Duration         time.Duration
	ReferenceInstant time.Time
}

// Next returns the instant this config contributes.
func (c OneShotTimerConfig) Next() time.Time {
	return c.ReferenceInstant.Add(c.Duration)
}

// SchedulerState is everything the scheduler mutates. It has exactly one
// owner, the host loop goroutine, and carries no lock.
type SchedulerState struct {
	Recurring RecurringTimerConfig
	OneShot   OneShotTimerConfig
	Stager    *notifications.Stager

	deadline    time.Time
	hasDeadline bool
	revision    uint64
}

// NewSchedulerState returns a state with both sources disabled and no
// deadline.
func NewSchedulerState() *SchedulerState {
	return &SchedulerState{Stager: notifications.NewStager()}
}

// Deadline returns the merged deadline and whether one exists.
func (s *SchedulerState) Deadline() (time.Time, bool) {
	return s.deadline, s.hasDeadline
}

// Revision increases every time the deadline is recomputed.
func (s *SchedulerState) Revision() uint64 {
	return s.revision
}

// DeadlineScheduler applies configuration changes to a SchedulerState and
// keeps the merged deadline current.
type DeadlineScheduler struct {
	state  *SchedulerState
	store  SettingsStore
	clock  types.Clock
	logger *slog.Logger
}

// NewDeadlineScheduler creates a DeadlineScheduler over state.
func NewDeadlineScheduler(state *SchedulerState, store SettingsStore, clock types.Clock, logger *slog.Logger) *DeadlineScheduler {
	if state == nil {
		state = NewSchedulerState()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadlineScheduler{
		state:  state,
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// State exposes the underlying state for read access by the controller.
func (d *DeadlineScheduler) State() *SchedulerState {
	return d.state
}

// SetRecurring updates the daily alarm. An empty offset keeps the current
// time-of-day.
//
// A malformed offset leaves the state untouched and returns an
// ErrCodeValidationTimeFormat error. Otherwise the change is applied, the
// deadline is recomputed and both recurring keys are persisted. A persistence
// failure is returned after the in-memory change has taken effect.
func (d *DeadlineScheduler) SetRecurring(ctx context.Context, enabled bool, offset string) error {
	next := d.state.Recurring.Offset
	if offset != "" {
		parsed, err := timecodec.Parse(offset)
		if err != nil {
			return err
		}
		next = parsed
	}

	now := d.clock.Now()
	ref := d.state.Recurring.ReferenceMidnight
	if ref.IsZero() {
		ref = LocalMidnight(now)
	}
	d.state.Recurring.Enabled = enabled
	d.state.Recurring.Offset = next
	d.state.Recurring.ReferenceMidnight = Align(ref, next, now)
	d.RecomputeDeadline(now)

	d.logger.Info("recurring timer updated",
		"enabled", enabled,
		"offset", timecodec.FormatClock(next),
		"next", d.state.Recurring.Next(),
	)

	return d.persist(ctx)
}

// SetOneShot updates the one-shot delay. An empty duration keeps the current
// value, floored at MinOneShotDuration when the delay goes from disabled to
// enabled. Every successful call restarts the delay from now. The delay is
// never persisted.
func (d *DeadlineScheduler) SetOneShot(_ context.Context, enabled bool, duration string) error {
	next := d.state.OneShot.Duration
	if duration != "" {
		parsed, err := timecodec.Parse(duration)
		if err != nil {
			return err
		}
		next = parsed
	} else if enabled && !d.state.OneShot.Enabled {
		next = max(next, MinOneShotDuration)
	}

	now := d.clock.Now()
	d.state.OneShot.Enabled = enabled
	d.state.OneShot.Duration = next
	d.state.OneShot.ReferenceInstant = now
	d.RecomputeDeadline(now)

	d.logger.Info("one-shot delay updated",
		"enabled", enabled,
		"duration", timecodec.FormatClock(next),
	)
	return nil
}

// RecomputeDeadline sets the deadline to the earliest enabled source and
// resets the notification stager.
func (d *DeadlineScheduler) RecomputeDeadline(now time.Time) {
	s := d.state
	s.hasDeadline = false
	s.deadline = time.Time{}

	if s.Recurring.Enabled {
		s.deadline = s.Recurring.Next()
		s.hasDeadline = true
	}
	if s.OneShot.Enabled {
		oneShot := s.OneShot.Next()
		if !s.hasDeadline || oneShot.Before(s.deadline) {
			s.deadline = oneShot
			s.hasDeadline = true
		}
	}

	s.Stager.Reset()
	s.revision++

	if s.hasDeadline {
		d.logger.Debug("shutdown deadline recomputed",
			"deadline", s.deadline,
			"remaining", timecodec.FormatRelative(s.deadline.Sub(now)),
		)
	} else {
		d.logger.Debug("shutdown deadline cleared")
	}
}

// Remaining returns the time left until the deadline and whether a deadline
// exists. The duration may be zero or negative once the deadline has passed.
func (d *DeadlineScheduler) Remaining(now time.Time) (time.Duration, bool) {
	if !d.state.hasDeadline {
		return 0, false
	}
	return d.state.deadline.Sub(now), true
}

// Restore rebuilds the state at process start.
//
// Persisted settings are loaded (defaults are written when the store is
// empty); a missing or malformed key falls back to its default with a
// warning. The recurring reference is today's local midnight and the one-shot
// anchor is now. Nothing here is fatal.
func (d *DeadlineScheduler) Restore(ctx context.Context) {
	now := d.clock.Now()
	defaults := DefaultSettings()

	settings, err := d.store.Load(ctx)
	switch {
	case err != nil:
		d.logger.Warn("failed to load shutdown settings, using defaults", "error", err)
		settings = defaults
	case len(settings) == 0:
		settings = defaults
		if err := d.store.Save(ctx, defaults); err != nil {
			d.logger.Warn("failed to write default shutdown settings", "error", err)
		}
	}

	enabled, err := strconv.ParseBool(d.lookup(settings, defaults, KeyEnableTimer))
	if err != nil {
		d.logger.Warn("invalid persisted setting, using default",
			"key", KeyEnableTimer,
			"value", settings[KeyEnableTimer],
			"default", defaults[KeyEnableTimer],
		)
		enabled = false
	}

	offset, err := timecodec.Parse(d.lookup(settings, defaults, KeyTimer))
	if err != nil {
		d.logger.Warn("invalid persisted setting, using default",
			"key", KeyTimer,
			"value", settings[KeyTimer],
			"default", defaults[KeyTimer],
		)
		offset = 0
	}

	d.state.Recurring = RecurringTimerConfig{
		Enabled:           enabled,
		Offset:            offset,
		ReferenceMidnight: Align(LocalMidnight(now), offset, now),
	}
	d.state.OneShot.ReferenceInstant = now
	d.RecomputeDeadline(now)

	d.logger.Info("shutdown settings restored",
		"timer_enabled", enabled,
		"timer", timecodec.FormatClock(offset),
		"next", d.state.Recurring.Next(),
	)
}

// persist writes both recurring keys.
func (d *DeadlineScheduler) persist(ctx context.Context) error {
	err := d.store.Save(ctx, map[string]string{
		KeyEnableTimer: strconv.FormatBool(d.state.Recurring.Enabled),
		KeyTimer:       timecodec.FormatClock(d.state.Recurring.Offset),
	})
	if err == nil {
		return nil
	}

	d.logger.Warn("recurring timer change applied but not persisted", "error", err)

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppError(types.ErrCodeInternalPersistenceWrite, "failed to write config file", err)
}

// lookup returns settings[key], falling back to the default when absent.
func (d *DeadlineScheduler) lookup(settings, defaults map[string]string, key string) string {
	if v, ok := settings[key]; ok {
		return v
	}
	d.logger.Warn("persisted setting missing, using default", "key", key, "default", defaults[key])
	return defaults[key]
}
