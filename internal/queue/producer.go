// Package queue produces note domain events onto the SQS queue consumed by the
// notifications relay.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"cloudnotes/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Emitter publishes one domain event.
type Emitter interface {
	Emit(ctx context.Context, event types.DomainEvent) error
}

// EventProducer sends DomainEvents to a single SQS queue.
type EventProducer struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
}

// NewEventProducer creates an EventProducer for queueURL.
func NewEventProducer(client SQSSender, queueURL string, logger *slog.Logger) *EventProducer {
	return &EventProducer{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
	}
}

// Emit serializes event as the message body and sends it with eventType and
// userId message attributes. A zero Timestamp is stamped with the current
// time.
func (p *EventProducer) Emit(ctx context.Context, event types.DomainEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal DomainEvent: %w", err)
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Type)),
			},
			"userId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.UserID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("queue: failed to send %s event for note %s: %w", event.Type, event.NoteID, err)
	}

	p.logger.InfoContext(ctx, "note event sent",
		"message_id", aws.ToString(out.MessageId),
		"event_type", string(event.Type),
		"note_id", event.NoteID,
		"user_id", event.UserID,
	)
	return nil
}

// Notify emits event without letting failure reach the caller. It must only
// be called after the mutation it describes has committed. A nil emitter
// means the queue is not configured and the event is skipped.
func Notify(ctx context.Context, emitter Emitter, logger *slog.Logger, event types.DomainEvent) {
	if emitter == nil {
		logger.DebugContext(ctx, "event queue not configured, skipping note event",
			"event_type", string(event.Type),
			"note_id", event.NoteID,
		)
		return
	}

	if err := emitter.Emit(ctx, event); err != nil {
		logger.ErrorContext(ctx, "failed to emit note event",
			"event_type", string(event.Type),
			"note_id", event.NoteID,
			"error", err,
		)
	}
}
