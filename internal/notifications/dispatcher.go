package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"autoshutdown/internal/types"
)

// ErrQueueFull is returned by Dispatcher.Send when the event could not be
// queued without blocking.
var ErrQueueFull = errors.New("notifications: dispatch queue full")

// DefaultDeliveryTimeout bounds a single sink delivery.
const DefaultDeliveryTimeout = 5 * time.Second

// flushTimeout bounds the delivery of events still queued at shutdown.
const flushTimeout = 10 * time.Second

// Sink delivers a warning to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event types.NotificationEvent) error
}

var _ types.Broadcaster = (*Dispatcher)(nil)

// Dispatcher is the Broadcaster used by the controller. Send never blocks:
// events go into a bounded queue and a single worker goroutine (Run) fans
// each one out to every sink in order. All metrics are recorded on the
// worker.
type Dispatcher struct {
	sinks   []Sink
	queue   chan types.NotificationEvent
	metrics Metrics
	logger  *slog.Logger
	timeout time.Duration

	// dropped counts Send calls rejected since the worker last reported.
	dropped atomic.Int64
}

// NewDispatcher creates a Dispatcher with a queue of the given depth.
func NewDispatcher(buffer int, metrics Metrics, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan types.NotificationEvent, buffer),
		metrics: metrics,
		logger:  logger,
		timeout: DefaultDeliveryTimeout,
	}
}

// Send queues event for delivery. It performs no I/O.
func (d *Dispatcher) Send(_ context.Context, event types.NotificationEvent) error {
	select {
	case d.queue <- event:
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is cancelled, then flushes whatever
// is still queued under a fresh deadline. It always returns nil so it can
// sit in an errgroup beside the other long-running components.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		case <-ctx.Done():
			d.flush()
			return nil
		}
	}
}

func (d *Dispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		default:
			d.reportDropped(ctx)
			return
		}
	}
}

// reportDropped publishes the drops counted by Send. A full queue always
// has a delivery pending, so the worker sees every drop.
func (d *Dispatcher) reportDropped(ctx context.Context) {
	if n := d.dropped.Swap(0); n > 0 {
		d.logger.Warn("shutdown warnings dropped, dispatch queue full", "count", n)
		d.metrics.RecordDropped(ctx, n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev types.NotificationEvent) {
	defer d.reportDropped(ctx)
	d.metrics.RecordEmitted(ctx, ev.Threshold)

	for _, sink := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := sink.Deliver(sctx, ev)
		cancel()

		if err != nil {
			d.metrics.RecordDelivery(ctx, sink.Name(), MetricFailure)
			d.logger.Warn("shutdown warning delivery failed",
				"sink", sink.Name(),
				"event_id", ev.ID,
				"threshold", ev.Threshold.String(),
				"error", err,
			)
			continue
		}
		d.metrics.RecordDelivery(ctx, sink.Name(), MetricSuccess)
	}
}
