package notifications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudnotes/internal/types"
)

const (
	testTopicARN = "arn:aws:sns:us-east-1:123456789012:note-events"
	testTable    = "notifications"
)

type fakeTopic struct {
	calls []*sns.PublishInput
	err   error
}

func (f *fakeTopic) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

type fakeWriter struct {
	items []*dynamodb.PutItemInput
	err   error
}

func (f *fakeWriter) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items = append(f.items, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeWriter) record(t *testing.T, i int) types.NotificationRecord {
	t.Helper()
	require.Greater(t, len(f.items), i)
	var rec types.NotificationRecord
	require.NoError(t, attributevalue.UnmarshalMap(f.items[i].Item, &rec))
	return rec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPublisher(topic *fakeTopic, store *fakeWriter) *Publisher {
	p := NewPublisher(topic, testTopicARN, store, testTable, discardLogger())
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC) }
	p.newID = func() string { return "notif-1" }
	return p
}

func testMessage(t *testing.T) Message {
	t.Helper()
	msg, err := Render(types.DomainEvent{
		Type:      types.EventNoteCreated,
		UserID:    "u1",
		NoteID:    "n1",
		Title:     "Hello",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return msg
}

func TestPublish_Success(t *testing.T) {
	topic, store := &fakeTopic{}, &fakeWriter{}
	p := newTestPublisher(topic, store)

	rec, err := p.Publish(context.Background(), testMessage(t))
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.Len(t, topic.calls, 1)
	in := topic.calls[0]
	assert.Equal(t, testTopicARN, aws.ToString(in.TopicArn))
	assert.Contains(t, aws.ToString(in.Subject), "Hello")
	assert.Equal(t, "u1", aws.ToString(in.MessageAttributes["userId"].StringValue))
	assert.Equal(t, "n1", aws.ToString(in.MessageAttributes["noteId"].StringValue))
	assert.Equal(t, "CREATED", aws.ToString(in.MessageAttributes["eventType"].StringValue))
	assert.Equal(t, "String", aws.ToString(in.MessageAttributes["eventType"].DataType))

	require.Len(t, store.items, 1)
	assert.Equal(t, testTable, aws.ToString(store.items[0].TableName))
	stored := store.record(t, 0)
	assert.Equal(t, types.NotificationSent, stored.Status)
	assert.Equal(t, "sns-1", stored.PublishMessageID)
	assert.Equal(t, "u1", stored.RecipientID)
	assert.Equal(t, "notif-1", stored.NotificationID)
	assert.Equal(t, "n1", stored.OriginalEventID)
	assert.Equal(t, types.EventNoteCreated, stored.EventType)
	require.NotNil(t, stored.OriginalEventTimestamp)
	assert.True(t, stored.OriginalEventTimestamp.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.Empty(t, stored.FailureReason)

	assert.Equal(t, types.NotificationSent, rec.Status)
}

func TestPublish_TopicFailureRecordsAndReturnsError(t *testing.T) {
	topic := &fakeTopic{err: errors.New("throttled")}
	store := &fakeWriter{}
	p := newTestPublisher(topic, store)

	rec, err := p.Publish(context.Background(), testMessage(t))
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, topic.err)

	stored := store.record(t, 0)
	assert.Equal(t, types.NotificationFailedToPublish, stored.Status)
	assert.Equal(t, "throttled", stored.FailureReason)
	assert.Empty(t, stored.PublishMessageID)
}

func TestPublish_TopicFailureWithStoreFailureStillReturnsPublishError(t *testing.T) {
	topic := &fakeTopic{err: errors.New("throttled")}
	store := &fakeWriter{err: errors.New("table missing")}
	p := newTestPublisher(topic, store)

	_, err := p.Publish(context.Background(), testMessage(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, topic.err)
	assert.Len(t, store.items, 1)
}

func TestPublish_RecordFailureAfterPublishIsError(t *testing.T) {
	topic := &fakeTopic{}
	store := &fakeWriter{err: errors.New("provisioned throughput exceeded")}
	p := newTestPublisher(topic, store)

	rec, err := p.Publish(context.Background(), testMessage(t))
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, store.err)
	assert.Len(t, topic.calls, 1)
}

func TestPublish_ZeroEventTimestampOmitted(t *testing.T) {
	topic, store := &fakeTopic{}, &fakeWriter{}
	p := newTestPublisher(topic, store)

	msg := testMessage(t)
	msg.Event.Timestamp = time.Time{}
	_, err := p.Publish(context.Background(), msg)
	require.NoError(t, err)

	_, present := store.items[0].Item["originalEventTimestamp"]
	assert.False(t, present)
}
