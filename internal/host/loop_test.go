package host

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoshutdown/internal/types"
)

// --- Mocks ---

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingTicker struct {
	mu    sync.Mutex
	times []time.Time
	ticks chan struct{}
}

func newRecordingTicker() *recordingTicker {
	return &recordingTicker{ticks: make(chan struct{}, 16)}
}

func (r *recordingTicker) OnTick(_ context.Context, now time.Time) {
	r.mu.Lock()
	r.times = append(r.times, now)
	r.mu.Unlock()
	r.ticks <- struct{}{}
}

func (r *recordingTicker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.times)
}

func waitTick(t *testing.T, r *recordingTicker) {
	t.Helper()
	select {
	case <-r.ticks:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tick")
	}
}

func startLoop(t *testing.T, l *Loop) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

// --- Tests ---

func TestLoop_TicksImmediatelyAndOnEachTick(t *testing.T) {
	now := time.Date(2026, 3, 14, 4, 0, 0, 0, time.UTC)
	target := newRecordingTicker()
	ticks := make(chan time.Time)
	l := NewLoop(target, time.Second, nil, WithClock(fixedClock{now}), WithTicks(ticks))

	startLoop(t, l)
	waitTick(t, target)

	ticks <- time.Now()
	waitTick(t, target)
	ticks <- time.Now()
	waitTick(t, target)

	assert.Equal(t, 3, target.count())
	target.mu.Lock()
	defer target.mu.Unlock()
	for _, got := range target.times {
		assert.True(t, got.Equal(now), "OnTick must receive the clock's time")
	}
}

func TestLoop_DoRunsOnLoopGoroutine(t *testing.T) {
	target := newRecordingTicker()
	ticks := make(chan time.Time)
	l := NewLoop(target, time.Second, nil, WithTicks(ticks))
	startLoop(t, l)
	waitTick(t, target)

	ran := false
	err := l.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestLoop_DoReturnsFnError(t *testing.T) {
	target := newRecordingTicker()
	l := NewLoop(target, time.Second, nil, WithTicks(make(chan time.Time)))
	startLoop(t, l)

	want := types.NewAppError(types.ErrCodeValidationTimeFormat, "bad", nil)
	err := l.Do(context.Background(), func(context.Context) error { return want })

	assert.Equal(t, want, err)
}

func TestLoop_DoRecoversPanics(t *testing.T) {
	target := newRecordingTicker()
	l := NewLoop(target, time.Second, nil, WithTicks(make(chan time.Time)))
	startLoop(t, l)

	err := l.Do(context.Background(), func(context.Context) error { panic("boom") })

	assert.Equal(t, types.ErrCodeInternalUnexpected, types.CodeOf(err))

	// Still serving after the panic.
	require.NoError(t, l.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestLoop_DoAfterStopIsUnavailable(t *testing.T) {
	target := newRecordingTicker()
	l := NewLoop(target, time.Second, nil, WithTicks(make(chan time.Time)))
	cancel, errCh := startLoop(t, l)
	waitTick(t, target)

	cancel()
	require.NoError(t, <-errCh)
	<-l.Done()

	err := l.Do(context.Background(), func(context.Context) error { return nil })

	assert.Equal(t, types.ErrCodeUnavailableLoopStopped, types.CodeOf(err))
	assert.Equal(t, 503, types.CodeOf(err).HTTPStatus())
}

func TestLoop_DoHonoursCallerContext(t *testing.T) {
	// Loop never started: the request can't be picked up.
	l := NewLoop(newRecordingTicker(), time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Do(ctx, func(context.Context) error { return nil })

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLoop_SerializesRequests(t *testing.T) {
	target := newRecordingTicker()
	l := NewLoop(target, time.Second, nil, WithTicks(make(chan time.Time)))
	startLoop(t, l)

	// Unsynchronized counter: the race detector flags this if Do ever runs
	// two closures at once.
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func(context.Context) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestNewLoop_DefaultInterval(t *testing.T) {
	l := NewLoop(newRecordingTicker(), 0, nil)
	assert.Equal(t, DefaultTickInterval, l.interval)
}
