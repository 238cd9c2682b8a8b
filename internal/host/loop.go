// Package host runs the single goroutine that owns the shutdown scheduler.
//
// Ticks and operator commands are serialized through one select loop, so the
// scheduler and controller never see concurrent calls and carry no locks.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"autoshutdown/internal/types"
)

// DefaultTickInterval matches the cadence the 1s warning needs.
const DefaultTickInterval = 250 * time.Millisecond

// Ticker is anything that wants to be driven by the loop.
type Ticker interface {
	OnTick(ctx context.Context, now time.Time)
}

// Func is a unit of work executed on the loop goroutine.
type Func func(ctx context.Context) error

type request struct {
	fn   Func
	resp chan error
}

// Loop drives a Ticker at a fixed interval and runs submitted work between
// ticks.
type Loop struct {
	target   Ticker
	clock    types.Clock
	interval time.Duration
	ticks    <-chan time.Time
	logger   *slog.Logger

	requests chan request
	done     chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock whose time is passed to OnTick.
func WithClock(c types.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithTicks replaces the internal ticker with an external channel.
func WithTicks(ch <-chan time.Time) Option {
	return func(l *Loop) { l.ticks = ch }
}

// NewLoop creates a Loop. A non-positive interval uses DefaultTickInterval.
func NewLoop(target Ticker, interval time.Duration, logger *slog.Logger, opts ...Option) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		target:   target,
		clock:    types.RealClock{},
		interval: interval,
		logger:   logger,
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run ticks once immediately and then on every interval until ctx is
// cancelled. It must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	ticks := l.ticks
	if ticks == nil {
		t := time.NewTicker(l.interval)
		defer t.Stop()
		ticks = t.C
	}

	l.logger.Info("host loop started", "tick_interval", l.interval.String())
	l.target.OnTick(ctx, l.clock.Now())

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("host loop stopped")
			return nil
		case <-ticks:
			l.target.OnTick(ctx, l.clock.Now())
		case req := <-l.requests:
			req.resp <- l.exec(ctx, req.fn)
		}
	}
}

// Do runs fn on the loop goroutine and waits for its result.
//
// It returns ctx.Err() if ctx ends before fn is picked up or before it
// finishes, and an ErrCodeUnavailableLoopStopped error once the loop has
// exited.
func (l *Loop) Do(ctx context.Context, fn Func) error {
	req := request{fn: fn, resp: make(chan error, 1)}

	select {
	case l.requests <- req:
	case <-l.done:
		return stoppedErr()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) exec(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic in loop request", "panic", fmt.Sprint(r))
			err = types.NewAppError(types.ErrCodeInternalUnexpected, "command panicked", fmt.Errorf("%v", r))
		}
	}()
	return fn(ctx)
}

func stoppedErr() error {
	return types.NewAppError(types.ErrCodeUnavailableLoopStopped, "host loop is not running", nil)
}
