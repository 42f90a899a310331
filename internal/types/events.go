package types

import "time"

// EventType identifies the kind of note mutation carried by a DomainEvent.
type EventType string

const (
	EventNoteCreated EventType = "CREATED"
	EventNoteUpdated EventType = "UPDATED"
	EventNoteDeleted EventType = "DELETED"
)

// Valid reports whether the event type is one the relay knows how to render.
func (e EventType) Valid() bool {
	switch e {
	case EventNoteCreated, EventNoteUpdated, EventNoteDeleted:
		return true
	}
	return false
}

// DomainEvent is the queue message body emitted after a committed note
// mutation. JSON tags are the wire format shared by producer and relay.
type DomainEvent struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	NoteID    string    `json:"noteId"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationStatus is the outcome recorded in the audit log.
type NotificationStatus string

const (
	NotificationSent            NotificationStatus = "SENT"
	NotificationFailedToPublish NotificationStatus = "FAILED_TO_PUBLISH"
)

// NotificationRecord is one append-only audit entry, keyed by
// (recipientUserId, notificationId).
type NotificationRecord struct {
	RecipientID            string             `dynamodbav:"recipientUserId" json:"recipientUserId"`
	NotificationID         string             `dynamodbav:"notificationId" json:"notificationId"`
	OriginalEventID        string             `dynamodbav:"originalEventId" json:"originalEventId"`
	EventType              EventType          `dynamodbav:"eventType" json:"eventType"`
	Subject                string             `dynamodbav:"subject" json:"subject"`
	Message                string             `dynamodbav:"message" json:"message"`
	PublishMessageID       string             `dynamodbav:"snsMessageId,omitempty" json:"snsMessageId,omitempty"`
	Status                 NotificationStatus `dynamodbav:"status" json:"status"`
	Timestamp              time.Time          `dynamodbav:"timestamp" json:"timestamp"`
	OriginalEventTimestamp *time.Time         `dynamodbav:"originalEventTimestamp,omitempty" json:"originalEventTimestamp,omitempty"`
	FailureReason          string             `dynamodbav:"failureReason,omitempty" json:"failureReason,omitempty"`
}

// Note is a user-owned text document stored in PostgreSQL.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FileMetadata describes one uploaded object, keyed by (userId, fileId).
type FileMetadata struct {
	UserID          string    `dynamodbav:"userId" json:"userId"`
	FileID          string    `dynamodbav:"fileId" json:"fileId"`
	S3Key           string    `dynamodbav:"s3Key" json:"s3Key"`
	OriginalName    string    `dynamodbav:"originalName" json:"originalName"`
	ContentType     string    `dynamodbav:"contentType" json:"contentType"`
	Size            int64     `dynamodbav:"size" json:"size"`
	UploadTimestamp time.Time `dynamodbav:"uploadTimestamp" json:"uploadTimestamp"`
	S3URL           string    `dynamodbav:"s3Url" json:"s3Url"`
}
