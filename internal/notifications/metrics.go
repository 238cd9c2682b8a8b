package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"autoshutdown/internal/types"
)

// MetricResult is the outcome dimension of a delivery metric.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailure MetricResult = "failure"
)

// Metrics records notification telemetry.
type Metrics interface {
	// RecordEmitted counts a warning taken off the queue for delivery.
	RecordEmitted(ctx context.Context, threshold time.Duration)
	// RecordDelivery counts one sink delivery attempt.
	RecordDelivery(ctx context.Context, sink string, result MetricResult)
	// RecordDropped counts warnings discarded because the queue was full.
	RecordDropped(ctx context.Context, count int64)
}

// NoopMetrics discards everything. Used when METRICS_ENABLED is false.
type NoopMetrics struct{}

func (NoopMetrics) RecordEmitted(context.Context, time.Duration) {}

func (NoopMetrics) RecordDelivery(context.Context, string, MetricResult) {}

func (NoopMetrics) RecordDropped(context.Context, int64) {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics publishes notification metrics to CloudWatch.
//
// Metrics emitted:
//   - ShutdownWarningEmitted: Dims {Threshold}
//   - DeliveryAttempt: Dims {Sink, Result}
//   - DeliveryDropped: no dims
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
// An empty namespace falls back to types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func (m *CloudWatchMetrics) RecordEmitted(ctx context.Context, threshold time.Duration) {
	m.put(ctx, types.MetricNotificationEmitted, 1, cwtypes.Dimension{
		Name:  aws.String(types.DimThreshold),
		Value: aws.String(threshold.String()),
	})
}

func (m *CloudWatchMetrics) RecordDelivery(ctx context.Context, sink string, result MetricResult) {
	m.put(ctx, types.MetricDeliveryAttempt, 1,
		cwtypes.Dimension{
			Name:  aws.String(types.DimSink),
			Value: aws.String(sink),
		},
		cwtypes.Dimension{
			Name:  aws.String(types.DimResult),
			Value: aws.String(string(result)),
		},
	)
}

func (m *CloudWatchMetrics) RecordDropped(ctx context.Context, count int64) {
	m.put(ctx, types.MetricDeliveryDropped, float64(count))
}

func (m *CloudWatchMetrics) put(ctx context.Context, name string, value float64, dims ...cwtypes.Dimension) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"metric", name,
			"error", err.Error(),
		)
	}
}
