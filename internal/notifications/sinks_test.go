package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoshutdown/internal/types"
)

// mockSQSSender records all SendMessage calls for verification.
type mockSQSSender struct {
	calls     []*sqs.SendMessageInput
	returnErr error
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func testEvent(threshold time.Duration) types.NotificationEvent {
	ev := newEvent(threshold, threshold-100*time.Millisecond)
	ev.Deadline = time.Date(2026, 3, 14, 4, 0, 0, 0, time.UTC)
	ev.CreatedAt = ev.Deadline.Add(-ev.Remaining)
	return ev
}

// --- SQSSink ---

func TestSQSSink_Deliver(t *testing.T) {
	sender := &mockSQSSender{}
	sink := NewSQSSink(sender, "https://sqs.us-east-1.amazonaws.com/123/shutdown", "survival-1", nil)
	ev := testEvent(time.Minute)

	require.NoError(t, sink.Deliver(context.Background(), ev))
	require.Len(t, sender.calls, 1)

	input := sender.calls[0]
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/shutdown", aws.ToString(input.QueueUrl))
	assert.Equal(t, "urgent", aws.ToString(input.MessageAttributes["severity"].StringValue))
	assert.Equal(t, "survival-1", aws.ToString(input.MessageAttributes["server"].StringValue))

	var sent SQSMessage
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &sent))
	assert.Equal(t, "survival-1", sent.Server)
	assert.Equal(t, ev.ID, sent.Event.ID)
	assert.Equal(t, "Server will shutdown within 1 minute", sent.Event.Message)
}

func TestSQSSink_DeliverError(t *testing.T) {
	sender := &mockSQSSender{returnErr: errors.New("access denied")}
	sink := NewSQSSink(sender, "queue", "srv", nil)

	err := sink.Deliver(context.Background(), testEvent(time.Second))

	require.Error(t, err)
	assert.ErrorIs(t, err, sender.returnErr)
	assert.Contains(t, err.Error(), "sqs sink")
}

// --- LogSink ---

func TestLogSink_LevelFollowsSeverity(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewLogSink(logger)

	require.NoError(t, sink.Deliver(context.Background(), testEvent(10*time.Minute)))
	require.NoError(t, sink.Deliver(context.Background(), testEvent(10*time.Second)))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "Server will shutdown within 10 minutes", first["msg"])
	assert.Equal(t, "WARN", second["level"])
	assert.Equal(t, "10s", second["threshold"])
}

// --- CloudWatchMetrics ---

func TestCloudWatchMetrics_RecordDelivery(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "", nil)

	m.RecordDelivery(context.Background(), "webhook", MetricFailure)

	require.Len(t, cw.calls, 1)
	input := cw.calls[0]
	assert.Equal(t, types.MetricNamespace, aws.ToString(input.Namespace))
	require.Len(t, input.MetricData, 1)

	datum := input.MetricData[0]
	assert.Equal(t, types.MetricDeliveryAttempt, aws.ToString(datum.MetricName))
	assert.Equal(t, 1.0, aws.ToFloat64(datum.Value))

	dims := map[string]string{}
	for _, d := range datum.Dimensions {
		dims[aws.ToString(d.Name)] = aws.ToString(d.Value)
	}
	assert.Equal(t, map[string]string{types.DimSink: "webhook", types.DimResult: "failure"}, dims)
}

func TestCloudWatchMetrics_RecordEmittedAndDropped(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "Custom", nil)

	m.RecordEmitted(context.Background(), 5*time.Minute)
	m.RecordDropped(context.Background(), 3)

	require.Len(t, cw.calls, 2)
	assert.Equal(t, "Custom", aws.ToString(cw.calls[0].Namespace))
	assert.Equal(t, types.MetricNotificationEmitted, aws.ToString(cw.calls[0].MetricData[0].MetricName))
	assert.Equal(t, "5m0s", aws.ToString(cw.calls[0].MetricData[0].Dimensions[0].Value))
	assert.Equal(t, types.MetricDeliveryDropped, aws.ToString(cw.calls[1].MetricData[0].MetricName))
	assert.Equal(t, 3.0, aws.ToFloat64(cw.calls[1].MetricData[0].Value))
	assert.Empty(t, cw.calls[1].MetricData[0].Dimensions)
}

func TestCloudWatchMetrics_ErrorIsSwallowed(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	m := NewCloudWatchMetrics(cw, "", nil)

	assert.NotPanics(t, func() {
		m.RecordDropped(context.Background(), 1)
	})
	assert.Len(t, cw.calls, 1)
}
