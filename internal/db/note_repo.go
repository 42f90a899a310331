package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cloudnotes/internal/types"
)

// NoteRepository provides data access for the notes table. Every query is
// scoped to the owning user; a note owned by someone else is reported as not
// found.
type NoteRepository struct {
	db DBTX
}

func NewNoteRepository(db DBTX) *NoteRepository {
	return &NoteRepository{db: db}
}

const noteColumns = `id, title, content, user_id, created_at, updated_at`

func scanNote(row pgx.Row) (*types.Note, error) {
	var n types.Note
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &n.UserID, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func errNoteNotFound() error {
	return types.NewAppError(types.ErrCodeNotFoundNote, "note not found", nil)
}

// Create inserts a note with a fresh id and returns the stored row.
func (r *NoteRepository) Create(ctx context.Context, userID, title, content string) (*types.Note, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO notes (id, title, content, user_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+noteColumns,
		uuid.NewString(), title, content, userID,
	)
	n, err := scanNote(row)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create note", err)
	}
	return n, nil
}

// ListByUser returns the user's notes, most recently updated first.
func (r *NoteRepository) ListByUser(ctx context.Context, userID string) ([]types.Note, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+noteColumns+`
		 FROM notes
		 WHERE user_id = $1
		 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list notes", err)
	}
	defer rows.Close()

	notes := []types.Note{}
	for rows.Next() {
		n, scanErr := scanNote(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan note row", scanErr)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating note rows", err)
	}
	return notes, nil
}

// Get returns one note owned by userID.
func (r *NoteRepository) Get(ctx context.Context, userID, id string) (*types.Note, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+noteColumns+`
		 FROM notes
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNoteNotFound()
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve note", err)
	}
	return n, nil
}

// Update changes the fields that are non-nil and bumps updated_at.
func (r *NoteRepository) Update(ctx context.Context, userID, id string, title, content *string) (*types.Note, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE notes
		 SET title = COALESCE($3, title),
		     content = COALESCE($4, content),
		     updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+noteColumns,
		id, userID, title, content,
	)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNoteNotFound()
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update note", err)
	}
	return n, nil
}

// Delete removes the note and returns its title, which the deletion event
// carries.
func (r *NoteRepository) Delete(ctx context.Context, userID, id string) (string, error) {
	var title string
	err := r.db.QueryRow(ctx,
		`DELETE FROM notes
		 WHERE id = $1 AND user_id = $2
		 RETURNING title`,
		id, userID,
	).Scan(&title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errNoteNotFound()
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to delete note", err)
	}
	return title, nil
}
