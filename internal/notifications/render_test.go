package notifications

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudnotes/internal/types"
)

func TestRender_Templates(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		eventType   types.EventType
		wantSubject string
		wantVerb    string
	}{
		{types.EventNoteCreated, `New note created: "Hello"`, "created"},
		{types.EventNoteUpdated, `Note updated: "Hello"`, "updated"},
		{types.EventNoteDeleted, `Note deleted: "Hello"`, "deleted"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			msg, err := Render(types.DomainEvent{
				Type: tt.eventType, UserID: "u1", NoteID: "n1", Title: "Hello", Timestamp: ts,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, msg.Subject)
			assert.Equal(t,
				`User (ID: u1) `+tt.wantVerb+` note (ID: n1) titled: "Hello".`+"\nTimestamp: 2026-03-01T12:00:00Z",
				msg.Body)
			assert.Equal(t, "n1", msg.Event.NoteID)
		})
	}
}

func TestRender_TitleWithQuotesIsNotEscaped(t *testing.T) {
	msg, err := Render(types.DomainEvent{
		Type: types.EventNoteCreated, UserID: "u1", NoteID: "n1", Title: `Say "hi"`,
	})
	require.NoError(t, err)

	assert.Equal(t, `New note created: "Say "hi""`, msg.Subject)
	assert.Contains(t, msg.Body, `titled: "Say "hi"".`)
	assert.NotContains(t, msg.Body, `\"`)
}

func TestRender_UnknownType(t *testing.T) {
	_, err := Render(types.DomainEvent{Type: "ARCHIVED", UserID: "u1", NoteID: "n1", Title: "x"})
	assert.Error(t, err)
}

func TestRender_TruncatesLongTitleInSubjectOnly(t *testing.T) {
	title := strings.Repeat("a", 40)
	msg, err := Render(types.DomainEvent{Type: types.EventNoteCreated, UserID: "u1", NoteID: "n1", Title: title})
	require.NoError(t, err)

	assert.Equal(t, `New note created: "`+strings.Repeat("a", 30)+`..."`, msg.Subject)
	assert.Contains(t, msg.Body, title)
	assert.Contains(t, msg.Body, "Timestamp: unknown")
}

func TestRender_SubjectIsPrintableASCII(t *testing.T) {
	msg, err := Render(types.DomainEvent{
		Type: types.EventNoteUpdated, UserID: "u1", NoteID: "n1", Title: "café\tnotes",
	})
	require.NoError(t, err)

	for _, r := range msg.Subject {
		assert.True(t, r >= 0x20 && r <= 0x7e, "unexpected rune %q in subject %q", r, msg.Subject)
	}
	assert.LessOrEqual(t, len(msg.Subject), maxSubjectLen)
	assert.Contains(t, msg.Body, "café")
}

func TestSanitizeSubject_CapsLength(t *testing.T) {
	out := sanitizeSubject(strings.Repeat("x", 250))
	assert.Len(t, out, maxSubjectLen)
}

func TestTruncateRunes_MultiByte(t *testing.T) {
	out := truncateRunes(strings.Repeat("é", 35), 30)
	assert.Equal(t, 33, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
}
