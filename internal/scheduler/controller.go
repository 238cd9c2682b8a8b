package scheduler

import (
	"context"
	"log/slog"
	"time"

	"autoshutdown/internal/timecodec"
	"autoshutdown/internal/types"
)

// ControllerState is the lifecycle of a countdown.
type ControllerState int

const (
	// StateIdle means no deadline is configured.
	StateIdle ControllerState = iota
	// StateArmed means a deadline exists and has not been reached.
	StateArmed
	// StateExpired means the deadline passed and the host was told to stop.
	StateExpired
)

// String returns the state name.
func (s ControllerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateArmed:
		return "ARMED"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// ShutdownController drives the countdown from host ticks. OnTick must only
// be called from the host loop goroutine.
type ShutdownController struct {
	scheduler   *DeadlineScheduler
	broadcaster types.Broadcaster
	stopper     types.Stopper
	logger      *slog.Logger

	state           ControllerState
	expiredRevision uint64
}

// NewShutdownController wires the controller to its collaborators.
func NewShutdownController(
	scheduler *DeadlineScheduler,
	broadcaster types.Broadcaster,
	stopper types.Stopper,
	logger *slog.Logger,
) *ShutdownController {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShutdownController{
		scheduler:   scheduler,
		broadcaster: broadcaster,
		stopper:     stopper,
		logger:      logger,
	}
}

// State returns the current controller state.
func (c *ShutdownController) State() ControllerState {
	return c.state
}

// OnTick evaluates the deadline at now.
//
// Once EXPIRED, ticks are ignored until the scheduler recomputes the deadline
// (an operator command re-arms the countdown). Stop is invoked exactly once
// per expiry.
func (c *ShutdownController) OnTick(ctx context.Context, now time.Time) {
	st := c.scheduler.State()
	if c.state == StateExpired {
		if st.Revision() == c.expiredRevision {
			return
		}
		c.state = StateIdle
	}

	remaining, ok := c.scheduler.Remaining(now)
	if !ok {
		c.state = StateIdle
		return
	}

	if remaining <= 0 {
		c.state = StateExpired
		c.expiredRevision = st.Revision()
		deadline, _ := st.Deadline()
		c.logger.Warn("shutdown deadline reached, stopping host", "deadline", deadline)
		if err := c.stopper.Stop(ctx); err != nil {
			c.logger.Error("host stop failed", "error", err)
		}
		return
	}

	c.state = StateArmed
	deadline, _ := st.Deadline()
	for _, ev := range st.Stager.Evaluate(remaining) {
		ev.Deadline = deadline
		ev.CreatedAt = now
		if err := c.broadcaster.Send(ctx, ev); err != nil {
			c.logger.Warn("failed to broadcast shutdown warning",
				"threshold", ev.Threshold.String(),
				"error", err,
			)
		}
	}
}

// Status is a read-only snapshot of the countdown.
type Status struct {
	State           string     `json:"state"`
	TimerEnabled    bool       `json:"timer_enabled"`
	Timer           string     `json:"timer"`
	NextTimer       *time.Time `json:"next_timer,omitempty"`
	DelayEnabled    bool       `json:"delay_enabled"`
	Delay           string     `json:"delay"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	Remaining       string     `json:"remaining,omitempty"`
	RemainingMillis int64      `json:"remaining_ms,omitempty"`
	FiredThresholds []string   `json:"fired_thresholds"`
}

// Status returns a snapshot at now.
func (c *ShutdownController) Status(now time.Time) Status {
	st := c.scheduler.State()
	out := Status{
		State:           c.state.String(),
		TimerEnabled:    st.Recurring.Enabled,
		Timer:           timecodec.FormatClock(st.Recurring.Offset),
		DelayEnabled:    st.OneShot.Enabled,
		Delay:           timecodec.FormatClock(st.OneShot.Duration),
		FiredThresholds: []string{},
	}

	if st.Recurring.Enabled {
		next := st.Recurring.Next()
		out.NextTimer = &next
	}
	if deadline, ok := st.Deadline(); ok {
		remaining := max(deadline.Sub(now), 0)
		out.Deadline = &deadline
		out.Remaining = timecodec.FormatRelative(remaining)
		out.RemainingMillis = remaining.Milliseconds()
	}
	for _, th := range st.Stager.Fired() {
		out.FiredThresholds = append(out.FiredThresholds, th.String())
	}
	return out
}
