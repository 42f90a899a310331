package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"cloudnotes/internal/types"
)

// --- Mock SQS Client ---

// mockSQSSender captures SendMessage calls for test assertions.
type mockSQSSender struct {
	calls []*sqs.SendMessageInput
	err   error
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/note-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmit_SendsEventWithAttributes(t *testing.T) {
	mock := &mockSQSSender{}
	p := NewEventProducer(mock, testQueueURL, discardLogger())

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := p.Emit(context.Background(), types.DomainEvent{
		Type: types.EventNoteCreated, UserID: "u1", NoteID: "n1", Title: "Hello", Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("Emit returned unexpected error: %v", err)
	}
	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 SendMessage call, got %d", len(mock.calls))
	}

	in := mock.calls[0]
	if got := aws.ToString(in.QueueUrl); got != testQueueURL {
		t.Errorf("QueueUrl = %q, want %q", got, testQueueURL)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	want := map[string]any{
		"type": "CREATED", "userId": "u1", "noteId": "n1", "title": "Hello", "timestamp": "2026-03-01T12:00:00Z",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("body[%q] = %v, want %v", k, body[k], v)
		}
	}

	if got := aws.ToString(in.MessageAttributes["eventType"].StringValue); got != "CREATED" {
		t.Errorf("eventType attribute = %q, want CREATED", got)
	}
	if got := aws.ToString(in.MessageAttributes["userId"].StringValue); got != "u1" {
		t.Errorf("userId attribute = %q, want u1", got)
	}
}

func TestEmit_StampsMissingTimestamp(t *testing.T) {
	mock := &mockSQSSender{}
	p := NewEventProducer(mock, testQueueURL, discardLogger())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	if err := p.Emit(context.Background(), types.DomainEvent{Type: types.EventNoteDeleted, UserID: "u1", NoteID: "n1", Title: "t"}); err != nil {
		t.Fatalf("Emit returned unexpected error: %v", err)
	}

	var ev types.DomainEvent
	if err := json.Unmarshal([]byte(aws.ToString(mock.calls[0].MessageBody)), &ev); err != nil {
		t.Fatalf("body is not a DomainEvent: %v", err)
	}
	if !ev.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, fixed)
	}
}

func TestEmit_SQSError(t *testing.T) {
	mock := &mockSQSSender{err: errors.New("AccessDenied")}
	p := NewEventProducer(mock, testQueueURL, discardLogger())

	err := p.Emit(context.Background(), types.DomainEvent{Type: types.EventNoteUpdated, UserID: "u1", NoteID: "n9"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "n9") || !strings.Contains(err.Error(), "AccessDenied") {
		t.Errorf("error should name the note and cause, got: %v", err)
	}
}

func TestNotify_SwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	mock := &mockSQSSender{err: errors.New("queue down")}

	Notify(context.Background(), NewEventProducer(mock, testQueueURL, logger), logger,
		types.DomainEvent{Type: types.EventNoteCreated, UserID: "u1", NoteID: "n1", Title: "x"})

	if len(mock.calls) != 1 {
		t.Errorf("expected 1 send attempt, got %d", len(mock.calls))
	}
	if !strings.Contains(buf.String(), "failed to emit note event") {
		t.Errorf("expected failure to be logged, got: %s", buf.String())
	}
}

func TestNotify_NilEmitterSkips(t *testing.T) {
	// Must not panic.
	Notify(context.Background(), nil, discardLogger(), types.DomainEvent{Type: types.EventNoteCreated})
}
