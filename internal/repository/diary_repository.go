package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/pkg/errors"
)

// DiaryRepository persists diary entries. Content is stored and returned
// in its encrypted form; callers own encryption.
type DiaryRepository struct {
	db *sql.DB
}

func NewDiaryRepository(db *sql.DB) *DiaryRepository {
	return &DiaryRepository{db: db}
}

const diarySelect = `
        SELECT id, user_id, title, content_encrypted, mood, entry_date, created_at, updated_at
        FROM diary_entries
    `

func scanDiaryEntry(s scanner) (*models.DiaryEntry, error) {
	entry := &models.DiaryEntry{}
	err := s.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Title,
		&entry.ContentEncrypted,
		&entry.Mood,
		&entry.EntryDate,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	return entry, err
}

func (r *DiaryRepository) Create(ctx context.Context, entry *models.DiaryEntry) error {
	query := `
        INSERT INTO diary_entries (user_id, title, content_encrypted, mood, entry_date, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		entry.UserID,
		entry.Title,
		entry.ContentEncrypted,
		entry.Mood,
		entry.EntryDate,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create diary entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get diary entry ID: %w", err)
	}

	entry.ID = int(id)
	entry.CreatedAt = now
	entry.UpdatedAt = now
	return nil
}

func (r *DiaryRepository) GetByID(ctx context.Context, userID, id int) (*models.DiaryEntry, error) {
	entry, err := scanDiaryEntry(r.db.QueryRowContext(ctx, diarySelect+` WHERE id = ? AND user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get diary entry: %w", err)
	}
	return entry, nil
}

// List filters on mood, a date range and the title. Content is
// encrypted and cannot be searched.
func (r *DiaryRepository) List(ctx context.Context, filters models.DiaryListFilters) ([]*models.DiaryEntry, error) {
	query := diarySelect + `
        WHERE user_id = ?
          AND (? = '' OR mood = ?)
          AND (? = '' OR entry_date >= ?)
          AND (? = '' OR entry_date <= ?)
          AND (? = '' OR instr(lower(title), lower(?)) > 0)
        ORDER BY entry_date DESC, id DESC
        LIMIT ? OFFSET ?
    `

	filters.Normalize()

	rows, err := r.db.QueryContext(ctx, query,
		filters.UserID,
		filters.Mood, filters.Mood,
		filters.From, filters.From,
		filters.To, filters.To,
		filters.Search, filters.Search,
		filters.Limit, filters.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list diary entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.DiaryEntry, 0)
	for rows.Next() {
		entry, err := scanDiaryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diary entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

func (r *DiaryRepository) Update(ctx context.Context, entry *models.DiaryEntry) error {
	query := `
        UPDATE diary_entries
        SET title = ?, content_encrypted = ?, mood = ?, entry_date = ?, updated_at = ?
        WHERE id = ? AND user_id = ?
    `

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		entry.Title,
		entry.ContentEncrypted,
		entry.Mood,
		entry.EntryDate,
		now,
		entry.ID,
		entry.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update diary entry: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	entry.UpdatedAt = now
	return nil
}

func (r *DiaryRepository) Delete(ctx context.Context, userID, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM diary_entries WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete diary entry: %w", err)
	}
	return requireAffected(result)
}
