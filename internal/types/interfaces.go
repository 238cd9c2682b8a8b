package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the host's wall clock in local time.
// Local time is required because the recurring alarm aligns to the host's
// calendar day.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time { return time.Now() }

// Broadcaster delivers shutdown warnings to connected clients.
// Implementations must not block the caller for network I/O.
type Broadcaster interface {
	Send(ctx context.Context, event NotificationEvent) error
}

// Stopper is the host's "stop now" capability. It is invoked exactly once
// per countdown, when the deadline is reached.
type Stopper interface {
	Stop(ctx context.Context) error
}

// StopperFunc adapts a plain function to the Stopper interface.
type StopperFunc func(ctx context.Context) error

// Stop calls f(ctx).
func (f StopperFunc) Stop(ctx context.Context) error { return f(ctx) }
