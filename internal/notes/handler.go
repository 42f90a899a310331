// Package notes serves per-user note CRUD and emits a domain event after each
// committed mutation.
package notes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cloudnotes/internal/core"
	"cloudnotes/internal/queue"
	"cloudnotes/internal/types"
)

// emitTimeout bounds the post-commit event send. The send is detached from
// the request so a client hanging up does not cancel it.
const emitTimeout = 5 * time.Second

// Store is the persistence contract implemented by db.NoteRepository.
type Store interface {
	Create(ctx context.Context, userID, title, content string) (*types.Note, error)
	ListByUser(ctx context.Context, userID string) ([]types.Note, error)
	Get(ctx context.Context, userID, id string) (*types.Note, error)
	Update(ctx context.Context, userID, id string, title, content *string) (*types.Note, error)
	Delete(ctx context.Context, userID, id string) (string, error)
}

type createNoteRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// updateNoteRequest treats an empty string the same as an absent field.
type updateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Handler implements the notes HTTP API.
type Handler struct {
	store     Store
	events    queue.Emitter
	validator *core.Validator
	logger    *slog.Logger
}

// NewHandler creates a Handler. events may be nil, in which case no domain
// events are produced.
func NewHandler(store Store, events queue.Emitter, v *core.Validator, logger *slog.Logger) *Handler {
	return &Handler{store: store, events: events, validator: v, logger: logger}
}

// RegisterRoutes mounts the notes routes. Every route requires a trusted
// identity.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notes", func(r chi.Router) {
		r.Use(core.RequireTrustedIdentity)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id := core.MustIdentity(r)

	notes, err := h.store.ListByUser(r.Context(), id.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: notes})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id := core.MustIdentity(r)

	var req createNoteRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	note, err := h.store.Create(r.Context(), id.ID, req.Title, req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "note created", "note_id", note.ID, "user_id", id.ID)

	h.notify(r, types.DomainEvent{
		Type:      types.EventNoteCreated,
		UserID:    id.ID,
		NoteID:    note.ID,
		Title:     note.Title,
		Timestamp: note.CreatedAt,
	})
	core.JSON(w, r, http.StatusCreated, note)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := core.MustIdentity(r)
	noteID, ok := noteIDParam(w, r)
	if !ok {
		return
	}

	note, err := h.store.Get(r.Context(), id.ID, noteID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, note)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := core.MustIdentity(r)
	noteID, ok := noteIDParam(w, r)
	if !ok {
		return
	}

	var req updateNoteRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	title, content := nonEmpty(req.Title), nonEmpty(req.Content)
	if title == nil && content == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"title or content is required", nil))
		return
	}

	note, err := h.store.Update(r.Context(), id.ID, noteID, title, content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "note updated", "note_id", note.ID, "user_id", id.ID)

	h.notify(r, types.DomainEvent{
		Type:      types.EventNoteUpdated,
		UserID:    id.ID,
		NoteID:    note.ID,
		Title:     note.Title,
		Timestamp: note.UpdatedAt,
	})
	core.JSON(w, r, http.StatusOK, note)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := core.MustIdentity(r)
	noteID, ok := noteIDParam(w, r)
	if !ok {
		return
	}

	title, err := h.store.Delete(r.Context(), id.ID, noteID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "note deleted", "note_id", noteID, "user_id", id.ID)

	h.notify(r, types.DomainEvent{
		Type:   types.EventNoteDeleted,
		UserID: id.ID,
		NoteID: noteID,
		Title:  title,
	})
	w.WriteHeader(http.StatusNoContent)
}

// notify must only run after the mutation has committed.
func (h *Handler) notify(r *http.Request, event types.DomainEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), emitTimeout)
	defer cancel()
	queue.Notify(ctx, h.events, h.logger, event)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if types.ErrorCodeOf(err).HTTPStatus() >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "note store failure", "error", err)
	}
	core.Error(w, r, err)
}

// noteIDParam rejects ids that are not UUIDs as not found, since no such
// note can exist.
func noteIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	parsed, err := uuid.Parse(raw)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundNote, "note not found", nil))
		return "", false
	}
	return parsed.String(), true
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
