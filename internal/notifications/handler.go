package notifications

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cloudnotes/internal/core"
	"cloudnotes/internal/types"
)

// HistoryLister is the read side used by the HTTP handler.
type HistoryLister interface {
	ListByRecipient(ctx context.Context, userID string, limit int) ([]types.NotificationRecord, error)
}

// Handler serves the notifications HTTP API.
type Handler struct {
	history HistoryLister
	logger  *slog.Logger
}

func NewHandler(history HistoryLister, logger *slog.Logger) *Handler {
	return &Handler{history: history, logger: logger}
}

// RegisterRoutes mounts the notifications routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.With(core.RequireTrustedIdentity).Get("/history", h.History)
		r.Post("/send", h.Send)
	})
}

// History lists the caller's notifications, newest first. The optional
// limit query parameter is capped at MaxHistoryLimit.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := core.MustIdentity(r)

	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidInput,
				"limit must be a positive integer", nil, map[string]any{"limit": raw}))
			return
		}
		limit = n
	}

	records, err := h.history.ListByRecipient(r.Context(), id.ID, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list notification history",
			"user_id", id.ID,
			"error", err,
		)
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalDocumentStore, "failed to load notification history", err))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: records})
}

// Send is kept so old clients get a clear answer. Notifications are produced
// from note events only.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	core.Error(w, r, types.NewAppError(types.ErrCodeMethodDeprecated,
		"direct send is no longer supported; notifications are sent when notes change", nil))
}
