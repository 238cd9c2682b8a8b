package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoshutdown/internal/types"
)

type recordingBroadcaster struct {
	events []types.NotificationEvent
	err    error
}

func (r *recordingBroadcaster) Send(_ context.Context, ev types.NotificationEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingBroadcaster) thresholds() []time.Duration {
	out := make([]time.Duration, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Threshold)
	}
	return out
}

type countingStopper struct {
	calls int
	err   error
}

func (s *countingStopper) Stop(_ context.Context) error {
	s.calls++
	return s.err
}

func newTestController(data map[string]string, now time.Time) (*ShutdownController, *DeadlineScheduler, *mockClock, *recordingBroadcaster, *countingStopper) {
	d, _, clock := newTestScheduler(data, now)
	d.Restore(context.Background())
	b := &recordingBroadcaster{}
	s := &countingStopper{}
	return NewShutdownController(d, b, s, nil), d, clock, b, s
}

func TestControllerState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "ARMED", StateArmed.String())
	assert.Equal(t, "EXPIRED", StateExpired.String())
	assert.Equal(t, "UNKNOWN", ControllerState(42).String())
}

func TestOnTick_IdleWithoutDeadline(t *testing.T) {
	c, _, clock, b, s := newTestController(nil, testMidnight)

	c.OnTick(context.Background(), clock.Now())

	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, b.events)
	assert.Zero(t, s.calls)
}

func TestOnTick_EndToEnd(t *testing.T) {
	ctx := context.Background()
	c, d, clock, b, s := newTestController(map[string]string{
		KeyEnableTimer: "true",
		KeyTimer:       "00:00:10",
	}, testMidnight.Add(5*time.Second))

	remaining, ok := d.Remaining(clock.Now())
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, remaining)

	c.OnTick(ctx, clock.Now())
	assert.Equal(t, StateArmed, c.State())
	assert.Equal(t, []time.Duration{10 * time.Second}, b.thresholds())

	clock.now = testMidnight.Add(10*time.Second - 900*time.Millisecond)
	c.OnTick(ctx, clock.Now())
	assert.Equal(t, []time.Duration{10 * time.Second, time.Second}, b.thresholds())
	assert.True(t, b.events[1].Bold)
	assert.Equal(t, testMidnight.Add(10*time.Second), b.events[1].Deadline)
	assert.Equal(t, clock.Now(), b.events[1].CreatedAt)

	clock.Advance(500 * time.Millisecond)
	c.OnTick(ctx, clock.Now())
	assert.Len(t, b.events, 2, "1s warning fires once")

	clock.now = testMidnight.Add(10 * time.Second)
	c.OnTick(ctx, clock.Now())
	assert.Equal(t, StateExpired, c.State())
	assert.Equal(t, 1, s.calls)

	for i := 0; i < 5; i++ {
		clock.Advance(250 * time.Millisecond)
		c.OnTick(ctx, clock.Now())
	}
	assert.Equal(t, 1, s.calls, "stop is invoked exactly once")
	assert.Len(t, b.events, 2)
}

func TestOnTick_CommandRearmsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	c, d, clock, _, s := newTestController(nil, testMidnight)
	require.NoError(t, d.SetOneShot(ctx, true, "00:00:01"))

	clock.Advance(time.Second)
	c.OnTick(ctx, clock.Now())
	require.Equal(t, StateExpired, c.State())

	require.NoError(t, d.SetOneShot(ctx, true, "00:10:00"))
	c.OnTick(ctx, clock.Now())

	assert.Equal(t, StateArmed, c.State())
	assert.Equal(t, 1, s.calls)
}

func TestOnTick_DisablingReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	c, d, clock, _, _ := newTestController(nil, testMidnight)
	require.NoError(t, d.SetOneShot(ctx, true, "00:05:00"))
	c.OnTick(ctx, clock.Now())
	require.Equal(t, StateArmed, c.State())

	require.NoError(t, d.SetOneShot(ctx, false, ""))
	c.OnTick(ctx, clock.Now())

	assert.Equal(t, StateIdle, c.State())
}

func TestOnTick_ErrorsAreNotFatal(t *testing.T) {
	ctx := context.Background()
	c, d, clock, b, s := newTestController(nil, testMidnight)
	b.err = errors.New("queue full")
	s.err = errors.New("stop hook failed")
	require.NoError(t, d.SetOneShot(ctx, true, "00:00:05"))

	c.OnTick(ctx, clock.Now())
	clock.Advance(5 * time.Second)
	c.OnTick(ctx, clock.Now())

	assert.Len(t, b.events, 1)
	assert.Equal(t, StateExpired, c.State())
	assert.Equal(t, 1, s.calls)
}

func TestStatus_Snapshot(t *testing.T) {
	ctx := context.Background()
	c, d, clock, _, _ := newTestController(map[string]string{
		KeyEnableTimer: "true",
		KeyTimer:       "02:00:00",
	}, testMidnight.Add(time.Hour))
	require.NoError(t, d.SetOneShot(ctx, true, "00:04:00"))
	c.OnTick(ctx, clock.Now())

	st := c.Status(clock.Now())

	assert.Equal(t, "ARMED", st.State)
	assert.True(t, st.TimerEnabled)
	assert.Equal(t, "02:00:00", st.Timer)
	require.NotNil(t, st.NextTimer)
	assert.Equal(t, testMidnight.Add(2*time.Hour), *st.NextTimer)
	assert.True(t, st.DelayEnabled)
	assert.Equal(t, "00:04:00", st.Delay)
	require.NotNil(t, st.Deadline)
	assert.Equal(t, clock.Now().Add(4*time.Minute), *st.Deadline)
	assert.Equal(t, "0h 4m 0s", st.Remaining)
	assert.Equal(t, int64(240000), st.RemainingMillis)
	assert.Equal(t, []string{"5m0s", "10m0s"}, st.FiredThresholds)
}

func TestStatus_Idle(t *testing.T) {
	c, _, clock, _, _ := newTestController(nil, testMidnight)

	st := c.Status(clock.Now())

	assert.Equal(t, "IDLE", st.State)
	assert.Nil(t, st.Deadline)
	assert.Nil(t, st.NextTimer)
	assert.Empty(t, st.Remaining)
	assert.Equal(t, []string{}, st.FiredThresholds)
}
