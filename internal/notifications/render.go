// Package notifications turns note domain events into topic notifications
// and keeps the per-recipient audit log of what was published.
package notifications

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cloudnotes/internal/types"
)

const (
	// subjectTitleRunes is how much of the note title appears in a subject.
	subjectTitleRunes = 30

	// maxSubjectLen is the SNS limit: fewer than 100 ASCII characters.
	maxSubjectLen = 99
)

// Message is a rendered notification ready for publishing.
type Message struct {
	Event   types.DomainEvent
	Subject string
	Body    string
}

// Render builds the subject and body for event. Unknown event types are an
// error; callers treat that as a poison message.
func Render(event types.DomainEvent) (Message, error) {
	var verb, subjectPrefix string
	switch event.Type {
	case types.EventNoteCreated:
		verb, subjectPrefix = "created", "New note created"
	case types.EventNoteUpdated:
		verb, subjectPrefix = "updated", "Note updated"
	case types.EventNoteDeleted:
		verb, subjectPrefix = "deleted", "Note deleted"
	default:
		return Message{}, fmt.Errorf("notifications: unknown event type %q", event.Type)
	}

	subject := fmt.Sprintf("%s: \"%s\"", subjectPrefix, truncateRunes(event.Title, subjectTitleRunes))
	body := fmt.Sprintf("User (ID: %s) %s note (ID: %s) titled: \"%s\".\nTimestamp: %s",
		event.UserID, verb, event.NoteID, event.Title, formatTimestamp(event.Timestamp))

	return Message{
		Event:   event,
		Subject: sanitizeSubject(subject),
		Body:    body,
	}, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "unknown"
	}
	return ts.UTC().Format(time.RFC3339)
}

// sanitizeSubject maps the subject onto printable ASCII and caps its length.
// Control characters become spaces and other non-ASCII runes become '?'.
func sanitizeSubject(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteByte(' ')
		case r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
		if b.Len() >= maxSubjectLen {
			break
		}
	}
	out := b.String()
	if len(out) > maxSubjectLen {
		out = out[:maxSubjectLen]
	}
	return out
}
