package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	"cloudnotes/internal/types"
)

// TopicPublisher abstracts the SNS Publish operation.
type TopicPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ItemWriter abstracts the DynamoDB PutItem operation.
type ItemWriter interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Publisher fans a rendered Message out to the topic and appends an audit
// record for it.
type Publisher struct {
	topic    TopicPublisher
	topicARN string
	store    ItemWriter
	table    string
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewPublisher creates a Publisher for one topic and one audit table.
func NewPublisher(topic TopicPublisher, topicARN string, store ItemWriter, table string, logger *slog.Logger) *Publisher {
	return &Publisher{
		topic:    topic,
		topicARN: topicARN,
		store:    store,
		table:    table,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Publish sends msg to the topic and records it as SENT.
//
// When the topic rejects the message a FAILED_TO_PUBLISH record is written on
// a best-effort basis and the publish error is returned. When the topic
// accepts the message but the SENT record cannot be written, the write error
// is returned; the caller keeps the message and a redelivery may notify twice.
func (p *Publisher) Publish(ctx context.Context, msg Message) (*types.NotificationRecord, error) {
	ev := msg.Event

	out, pubErr := p.topic.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(msg.Subject),
		Message:  aws.String(msg.Body),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"userId":    stringAttr(ev.UserID),
			"noteId":    stringAttr(ev.NoteID),
			"eventType": stringAttr(string(ev.Type)),
		},
	})

	rec := p.newRecord(msg)
	if pubErr != nil {
		rec.Status = types.NotificationFailedToPublish
		rec.FailureReason = pubErr.Error()
		if err := p.put(ctx, rec); err != nil {
			p.logger.ErrorContext(ctx, "failed to record publish failure",
				"notification_id", rec.NotificationID,
				"note_id", ev.NoteID,
				"error", err,
			)
		}
		return nil, fmt.Errorf("notifications: failed to publish %s event for note %s: %w", ev.Type, ev.NoteID, pubErr)
	}

	rec.Status = types.NotificationSent
	rec.PublishMessageID = aws.ToString(out.MessageId)
	if err := p.put(ctx, rec); err != nil {
		return nil, fmt.Errorf("notifications: published %s but failed to record it: %w", rec.PublishMessageID, err)
	}

	p.logger.InfoContext(ctx, "notification published",
		"notification_id", rec.NotificationID,
		"sns_message_id", rec.PublishMessageID,
		"event_type", string(ev.Type),
		"note_id", ev.NoteID,
		"user_id", ev.UserID,
	)
	return rec, nil
}

func (p *Publisher) newRecord(msg Message) *types.NotificationRecord {
	rec := &types.NotificationRecord{
		RecipientID:     msg.Event.UserID,
		NotificationID:  p.newID(),
		OriginalEventID: msg.Event.NoteID,
		EventType:       msg.Event.Type,
		Subject:         msg.Subject,
		Message:         msg.Body,
		Timestamp:       p.now().UTC(),
	}
	if !msg.Event.Timestamp.IsZero() {
		ts := msg.Event.Timestamp.UTC()
		rec.OriginalEventTimestamp = &ts
	}
	return rec
}

func (p *Publisher) put(ctx context.Context, rec *types.NotificationRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal notification record: %w", err)
	}
	_, err = p.store.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.table),
		Item:      item,
	})
	return err
}

func stringAttr(v string) snstypes.MessageAttributeValue {
	return snstypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}
