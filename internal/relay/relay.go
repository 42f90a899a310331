// Package relay moves note events from the SQS queue to the notification
// fan-out. A message is acknowledged only after it has been published and
// recorded, or after it has been classified as poison. Every other failure
// leaves it on the queue for redelivery.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"cloudnotes/internal/notifications"
	"cloudnotes/internal/types"
)

// Outcome is the disposition of one queue message.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeDropped   Outcome = "dropped"
	OutcomeRetained  Outcome = "retained"
)

// Acknowledge reports whether a message with this outcome should be deleted.
func (o Outcome) Acknowledge() bool {
	return o == OutcomePublished || o == OutcomeDropped
}

// Notifier is the fan-out side of the relay.
type Notifier interface {
	Publish(ctx context.Context, msg notifications.Message) (*types.NotificationRecord, error)
}

// Metrics receives per-message telemetry. Implementations must not block.
type Metrics interface {
	RecordOutcome(ctx context.Context, outcome string, eventType types.EventType)
	RecordQueueLag(ctx context.Context, lag time.Duration)
	RecordPublishLatency(ctx context.Context, eventType types.EventType, d time.Duration)
}

// Relay decides what happens to a single message body.
type Relay struct {
	notifier Notifier
	metrics  Metrics
	logger   *slog.Logger
}

// New creates a Relay. A nil metrics discards telemetry.
func New(notifier Notifier, metrics Metrics, logger *slog.Logger) *Relay {
	if metrics == nil {
		metrics = notifications.NoopMetrics{}
	}
	return &Relay{notifier: notifier, metrics: metrics, logger: logger}
}

// wireEvent mirrors types.DomainEvent with a lenient timestamp, so that a
// malformed timestamp does not turn an otherwise valid event into poison.
type wireEvent struct {
	Type      types.EventType `json:"type"`
	UserID    string          `json:"userId"`
	NoteID    string          `json:"noteId"`
	Title     string          `json:"title"`
	Timestamp string          `json:"timestamp"`
}

// Process handles one message body. A nil error means the message can be
// acknowledged; the Outcome tells which way. A non-nil error always comes
// with OutcomeRetained.
func (r *Relay) Process(ctx context.Context, body string) (Outcome, error) {
	event, ok := r.decode(ctx, body)
	if !ok {
		r.metrics.RecordOutcome(ctx, string(OutcomeDropped), "")
		return OutcomeDropped, nil
	}

	msg, err := notifications.Render(event)
	if err != nil {
		r.logger.WarnContext(ctx, "dropping note event that cannot be rendered",
			"event_type", string(event.Type),
			"note_id", event.NoteID,
			"error", err,
		)
		r.metrics.RecordOutcome(ctx, string(OutcomeDropped), event.Type)
		return OutcomeDropped, nil
	}

	start := time.Now()
	_, err = r.notifier.Publish(ctx, msg)
	r.metrics.RecordPublishLatency(ctx, event.Type, time.Since(start))
	if err != nil {
		r.metrics.RecordOutcome(ctx, string(OutcomeRetained), event.Type)
		return OutcomeRetained, err
	}

	r.metrics.RecordOutcome(ctx, string(OutcomePublished), event.Type)
	return OutcomePublished, nil
}

// RecordSentTimestamp reports queue lag from an SQS SentTimestamp attribute
// (epoch milliseconds). Unparseable values are ignored.
func (r *Relay) RecordSentTimestamp(ctx context.Context, sent string) {
	if sent == "" {
		return
	}
	ms, err := strconv.ParseInt(sent, 10, 64)
	if err != nil {
		return
	}
	r.metrics.RecordQueueLag(ctx, time.Since(time.UnixMilli(ms)))
}

func (r *Relay) decode(ctx context.Context, body string) (types.DomainEvent, bool) {
	var w wireEvent
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		r.logger.WarnContext(ctx, "dropping malformed note event", "error", err)
		return types.DomainEvent{}, false
	}

	var missing []string
	if w.Type == "" {
		missing = append(missing, "type")
	}
	if w.UserID == "" {
		missing = append(missing, "userId")
	}
	if w.NoteID == "" {
		missing = append(missing, "noteId")
	}
	if w.Title == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		r.logger.WarnContext(ctx, "dropping note event with missing fields",
			"missing", missing,
			"note_id", w.NoteID,
		)
		return types.DomainEvent{}, false
	}
	if !w.Type.Valid() {
		r.logger.WarnContext(ctx, "dropping note event with unknown type",
			"event_type", string(w.Type),
			"note_id", w.NoteID,
		)
		return types.DomainEvent{}, false
	}

	event := types.DomainEvent{
		Type:   w.Type,
		UserID: w.UserID,
		NoteID: w.NoteID,
		Title:  w.Title,
	}
	if w.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, w.Timestamp); err == nil {
			event.Timestamp = ts
		} else {
			r.logger.DebugContext(ctx, "ignoring unparseable event timestamp",
				"note_id", w.NoteID,
				"timestamp", w.Timestamp,
			)
		}
	}
	return event, true
}
