package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/pkg/errors"
)

type NoteRepository struct {
	db *sql.DB
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

const noteSelect = `
        SELECT n.id, n.user_id, n.category_id, c.name, n.title, n.content, n.note_type,
               n.color, n.is_pinned, n.tags, n.created_at, n.updated_at
        FROM notes n
        LEFT JOIN categories c ON c.id = n.category_id AND c.user_id = n.user_id
    `

func scanNote(s scanner) (*models.Note, error) {
	note := &models.Note{}
	var tags string
	err := s.Scan(
		&note.ID,
		&note.UserID,
		&note.CategoryID,
		&note.CategoryName,
		&note.Title,
		&note.Content,
		&note.NoteType,
		&note.Color,
		&note.IsPinned,
		&tags,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &note.Tags); err != nil || note.Tags == nil {
		note.Tags = []string{}
	}
	return note, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

// Create creates a new note
func (r *NoteRepository) Create(ctx context.Context, note *models.Note) error {
	query := `
        INSERT INTO notes (user_id, category_id, title, content, note_type, color, is_pinned, tags, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	tags, err := encodeTags(note.Tags)
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		note.UserID,
		note.CategoryID,
		note.Title,
		note.Content,
		note.NoteType,
		note.Color,
		note.IsPinned,
		tags,
		now,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get note ID: %w", err)
	}

	note.ID = int(id)
	note.CreatedAt = now
	note.UpdatedAt = now
	if note.Tags == nil {
		note.Tags = []string{}
	}

	return nil
}

// GetByID retrieves a note by ID
func (r *NoteRepository) GetByID(ctx context.Context, userID, id int) (*models.Note, error) {
	note, err := scanNote(r.db.QueryRowContext(ctx, noteSelect+` WHERE n.id = ? AND n.user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return note, nil
}

// List retrieves notes with filters
func (r *NoteRepository) List(ctx context.Context, filters models.NoteListFilters) ([]*models.Note, error) {
	query := noteSelect + `
        WHERE n.user_id = ?
          AND (? IS NULL OR n.category_id = ?)
          AND (? = '' OR n.note_type = ?)
          AND (? IS NULL OR n.is_pinned = ?)
          AND (? = '' OR instr(n.tags, ?) > 0)
          AND (? = '' OR instr(lower(n.title), lower(?)) > 0 OR instr(lower(n.content), lower(?)) > 0)
        ORDER BY n.is_pinned DESC, n.updated_at DESC, n.id DESC
        LIMIT ? OFFSET ?
    `

	filters.Normalize()

	var pinned any
	if filters.IsPinned != nil {
		pinned = *filters.IsPinned
	}
	tag := ""
	if filters.Tag != "" {
		quoted, _ := json.Marshal(filters.Tag)
		tag = string(quoted)
	}
	category := nullableInt(filters.CategoryID)

	rows, err := r.db.QueryContext(ctx, query,
		filters.UserID,
		category, category,
		filters.NoteType, filters.NoteType,
		pinned, pinned,
		tag, tag,
		filters.Search, filters.Search, filters.Search,
		filters.Limit, filters.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]*models.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return notes, nil
}

// Update writes every editable column of the merged note.
func (r *NoteRepository) Update(ctx context.Context, note *models.Note) error {
	query := `
        UPDATE notes
        SET category_id = ?, title = ?, content = ?, note_type = ?, color = ?, is_pinned = ?, tags = ?, updated_at = ?
        WHERE id = ? AND user_id = ?
    `

	tags, err := encodeTags(note.Tags)
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		note.CategoryID,
		note.Title,
		note.Content,
		note.NoteType,
		note.Color,
		note.IsPinned,
		tags,
		now,
		note.ID,
		note.UserID,
	)

	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	if err := requireAffected(result); err != nil {
		return err
	}

	note.UpdatedAt = now

	return nil
}

// Delete deletes a note
func (r *NoteRepository) Delete(ctx context.Context, userID, id int) error {
	query := `
        DELETE FROM notes
        WHERE id = ? AND user_id = ?
    `

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	return requireAffected(result)
}
