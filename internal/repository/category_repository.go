package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/pkg/errors"
)

type CategoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categorySelect = `
        SELECT c.id, c.user_id, c.name, c.color, c.icon, c.created_at,
               (SELECT COUNT(*) FROM notes n WHERE n.user_id = c.user_id AND n.category_id = c.id),
               (SELECT COUNT(*) FROM todos t WHERE t.user_id = c.user_id AND t.category_id = c.id)
        FROM categories c
    `

func scanCategory(s scanner) (*models.Category, error) {
	category := &models.Category{}
	err := s.Scan(
		&category.ID,
		&category.UserID,
		&category.Name,
		&category.Color,
		&category.Icon,
		&category.CreatedAt,
		&category.NoteCount,
		&category.TodoCount,
	)
	return category, err
}

func duplicateCategory(name string) error {
	return errors.Conflict(fmt.Sprintf("category %q already exists", name))
}

func insertCategory(ctx context.Context, ex execer, category *models.Category, now time.Time) error {
	result, err := ex.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, color, icon, created_at) VALUES (?, ?, ?, ?, ?)`,
		category.UserID, category.Name, category.Color, category.Icon, now)
	if isUniqueViolation(err) {
		return duplicateCategory(category.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get category ID: %w", err)
	}

	category.ID = int(id)
	category.CreatedAt = now
	return nil
}

// Create creates a new category
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	return insertCategory(ctx, r.db, category, time.Now())
}

// GetByID retrieves a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, userID, id int) (*models.Category, error) {
	category, err := scanCategory(r.db.QueryRowContext(ctx, categorySelect+` WHERE c.id = ? AND c.user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

// List retrieves categories with filters
func (r *CategoryRepository) List(ctx context.Context, filters models.CategoryListFilters) ([]*models.Category, error) {
	query := categorySelect + `
        WHERE c.user_id = ?
          AND (? = '' OR instr(lower(c.name), lower(?)) > 0)
        ORDER BY c.name ASC, c.id ASC
        LIMIT ? OFFSET ?
    `

	filters.Normalize()

	rows, err := r.db.QueryContext(ctx, query,
		filters.UserID,
		filters.Search, filters.Search,
		filters.Limit, filters.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*models.Category, 0)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return categories, nil
}

// Update writes the merged category.
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ?, icon = ? WHERE id = ? AND user_id = ?`,
		category.Name, category.Color, category.Icon, category.ID, category.UserID)
	if isUniqueViolation(err) {
		return duplicateCategory(category.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a category that no note or todo references. A missing,
// foreign or still referenced category yields ErrRecordNotFound.
func (r *CategoryRepository) Delete(ctx context.Context, userID, id int) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM categories
		WHERE id = ? AND user_id = ?
		  AND NOT EXISTS (SELECT 1 FROM notes WHERE category_id = ?)
		  AND NOT EXISTS (SELECT 1 FROM todos WHERE category_id = ?)`,
		id, userID, id, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireAffected(result)
}
