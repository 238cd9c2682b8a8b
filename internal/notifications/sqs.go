package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"autoshutdown/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSMessage is the queue payload. Consumers (chat bridges, pagers) fan the
// warning out to connected clients.
type SQSMessage struct {
	Server string                  `json:"server"`
	Event  types.NotificationEvent `json:"event"`
}

// SQSSink publishes warnings to an SQS queue.
type SQSSink struct {
	client   SQSSender
	queueURL string
	server   string
	logger   *slog.Logger
}

// NewSQSSink creates an SQSSink targeting queueURL. server identifies this
// host in the message body.
func NewSQSSink(client SQSSender, queueURL, server string, logger *slog.Logger) *SQSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSSink{
		client:   client,
		queueURL: queueURL,
		server:   server,
		logger:   logger,
	}
}

func (s *SQSSink) Name() string { return "sqs" }

// Deliver serializes the event and sends it with its severity as a message
// attribute so consumers can filter without decoding the body.
func (s *SQSSink) Deliver(ctx context.Context, ev types.NotificationEvent) error {
	body, err := json.Marshal(SQSMessage{Server: s.server, Event: ev})
	if err != nil {
		return fmt.Errorf("sqs sink: failed to marshal event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"severity": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(ev.Severity)),
			},
			"server": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.server),
			},
		},
	}

	out, err := s.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("sqs sink: failed to send message to %s: %w", s.queueURL, err)
	}

	var messageID string
	if out != nil {
		messageID = aws.ToString(out.MessageId)
	}
	s.logger.Debug("shutdown warning published",
		"event_id", ev.ID,
		"message_id", messageID,
		"threshold", ev.Threshold.String(),
	)
	return nil
}
