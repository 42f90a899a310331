package files

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cloudnotes/internal/core"
	"cloudnotes/internal/types"
)

// formField is the multipart field carrying the upload.
const formField = "file"

// multipartOverhead is the allowance for boundaries and part headers on top
// of the file size limit.
const multipartOverhead = 1 << 20

// Uploader is implemented by Service.
type Uploader interface {
	Upload(ctx context.Context, userID string, up Upload) (*types.FileMetadata, error)
	List(ctx context.Context, userID string) ([]types.FileMetadata, error)
	Delete(ctx context.Context, userID, fileID string) error
}

type uploadResponse struct {
	Message     string `json:"message"`
	FileID      string `json:"fileId"`
	FileName    string `json:"fileName"`
	S3Key       string `json:"s3Key"`
	S3URL       string `json:"s3Url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Handler struct {
	files    Uploader
	maxBytes int64
	logger   *slog.Logger
}

func NewHandler(files Uploader, maxBytes int64, logger *slog.Logger) *Handler {
	return &Handler{files: files, maxBytes: maxBytes, logger: logger}
}

// RegisterRoutes mounts the files routes. Every route requires a trusted
// identity.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/files", func(r chi.Router) {
		r.Use(core.RequireTrustedIdentity)
		r.Post("/upload", h.Upload)
		r.Get("/", h.List)
		r.Delete("/{fileId}", h.Delete)
	})
}

// Upload accepts a multipart form with a single "file" part no larger than
// the configured limit.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	id := core.MustIdentity(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	up, err := h.readUpload(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	meta, err := h.files.Upload(r.Context(), id.ID, up)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "file upload failed", "user_id", id.ID, "error", err)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, uploadResponse{
		Message:     "file uploaded",
		FileID:      meta.FileID,
		FileName:    meta.OriginalName,
		S3Key:       meta.S3Key,
		S3URL:       meta.S3URL,
		ContentType: meta.ContentType,
		Size:        meta.Size,
	})
}

func (h *Handler) readUpload(r *http.Request) (Upload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return Upload{}, types.NewAppError(types.ErrCodeValidationInvalidInput, "expected a multipart/form-data body", err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return Upload{}, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
				"no file uploaded", nil, map[string]any{"field": formField})
		}
		if err != nil {
			return Upload{}, h.bodyError(err)
		}
		if part.FormName() != formField {
			_ = part.Close()
			continue
		}
		return h.readPart(part)
	}
}

func (h *Handler) readPart(part *multipart.Part) (Upload, error) {
	defer func() { _ = part.Close() }()

	data, err := io.ReadAll(io.LimitReader(part, h.maxBytes+1))
	if err != nil {
		return Upload{}, h.bodyError(err)
	}
	if int64(len(data)) > h.maxBytes {
		return Upload{}, h.tooLarge()
	}
	return Upload{
		Name:        part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *Handler) bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return h.tooLarge()
	}
	return types.NewAppError(types.ErrCodeValidationInvalidInput, "malformed multipart body", err)
}

func (h *Handler) tooLarge() error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationFileTooLarge,
		"file exceeds the upload size limit", nil, map[string]any{"max_bytes": h.maxBytes})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id := core.MustIdentity(r)

	files, err := h.files.List(r.Context(), id.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "file list failed", "user_id", id.ID, "error", err)
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: files})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := core.MustIdentity(r)
	fileID := chi.URLParam(r, "fileId")

	if err := h.files.Delete(r.Context(), id.ID, fileID); err != nil {
		if types.ErrorCodeOf(err).HTTPStatus() >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "file delete failed", "file_id", fileID, "error", err)
		}
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
