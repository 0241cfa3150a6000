package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/daybook/internal/database"
	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/pkg/errors"
)

type TodoRepository struct {
	db *sql.DB
	tm *database.TransactionManager
}

// NewTodoRepository creates a new todo repository
func NewTodoRepository(db *sql.DB, tm *database.TransactionManager) *TodoRepository {
	return &TodoRepository{db: db, tm: tm}
}

const todoSelect = `
        SELECT t.id, t.user_id, t.category_id, c.name, t.title, t.description, t.priority, t.status,
               t.completed_at, t.due_date, t.reminder_datetime, t.position, t.created_at, t.updated_at
        FROM todos t
        LEFT JOIN categories c ON c.id = t.category_id AND c.user_id = t.user_id
    `

func scanTodo(s scanner) (*models.Todo, error) {
	todo := &models.Todo{}
	err := s.Scan(
		&todo.ID,
		&todo.UserID,
		&todo.CategoryID,
		&todo.CategoryName,
		&todo.Title,
		&todo.Description,
		&todo.Priority,
		&todo.Status,
		&todo.CompletedAt,
		&todo.DueDate,
		&todo.ReminderAt,
		&todo.Position,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	todo.IsCompleted = todo.Status == models.StatusCompleted
	return todo, nil
}

// NextPosition returns one past the highest position the user has.
func (r *TodoRepository) NextPosition(ctx context.Context, userID int) (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(position) FROM todos WHERE user_id = ?`, userID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read max position: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// Create creates a new todo
func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	query := `
        INSERT INTO todos (user_id, category_id, title, description, priority, status, completed_at,
                           due_date, reminder_datetime, position, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		todo.UserID,
		todo.CategoryID,
		todo.Title,
		todo.Description,
		todo.Priority,
		todo.Status,
		todo.CompletedAt,
		todo.DueDate,
		todo.ReminderAt,
		todo.Position,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get todo ID: %w", err)
	}

	todo.ID = int(id)
	todo.CreatedAt = now
	todo.UpdatedAt = now

	return nil
}

// GetByID retrieves a todo by ID
func (r *TodoRepository) GetByID(ctx context.Context, userID, id int) (*models.Todo, error) {
	todo, err := scanTodo(r.db.QueryRowContext(ctx, todoSelect+` WHERE t.id = ? AND t.user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return todo, nil
}

// List retrieves todos with filters
func (r *TodoRepository) List(ctx context.Context, filters models.TodoListFilters) ([]*models.Todo, error) {
	query := todoSelect + `
        WHERE t.user_id = ?
          AND (? IS NULL OR t.category_id = ?)
          AND (? = '' OR t.status = ?)
          AND (? = '' OR t.priority = ?)
          AND (? = '' OR t.due_date >= ?)
          AND (? = '' OR t.due_date <= ?)
          AND (? = '' OR instr(lower(t.title), lower(?)) > 0 OR instr(lower(t.description), lower(?)) > 0)
        ORDER BY t.position ASC, t.id ASC
        LIMIT ? OFFSET ?
    `

	filters.Normalize()
	category := nullableInt(filters.CategoryID)

	rows, err := r.db.QueryContext(ctx, query,
		filters.UserID,
		category, category,
		filters.Status, filters.Status,
		filters.Priority, filters.Priority,
		filters.DueFrom, filters.DueFrom,
		filters.DueTo, filters.DueTo,
		filters.Search, filters.Search, filters.Search,
		filters.Limit, filters.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]*models.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return todos, nil
}

// Update writes the merged todo, status and completed_at in one statement.
func (r *TodoRepository) Update(ctx context.Context, todo *models.Todo) error {
	query := `
        UPDATE todos
        SET category_id = ?, title = ?, description = ?, priority = ?, status = ?, completed_at = ?,
            due_date = ?, reminder_datetime = ?, position = ?, updated_at = ?
        WHERE id = ? AND user_id = ?
    `

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		todo.CategoryID,
		todo.Title,
		todo.Description,
		todo.Priority,
		todo.Status,
		todo.CompletedAt,
		todo.DueDate,
		todo.ReminderAt,
		todo.Position,
		now,
		todo.ID,
		todo.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	todo.UpdatedAt = now
	return nil
}

// Delete deletes a todo
func (r *TodoRepository) Delete(ctx context.Context, userID, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return requireAffected(result)
}

// Reorder assigns positions 0..n-1 in the order of ids. Either every
// todo moves or none does: an id the user does not own aborts with
// ErrRecordNotFound and the transaction is rolled back.
func (r *TodoRepository) Reorder(ctx context.Context, userID int, ids []int) error {
	return r.tm.Execute(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		for position, id := range ids {
			if err := setPosition(ctx, tx, userID, id, position, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func setPosition(ctx context.Context, ex execer, userID, id, position int, now time.Time) error {
	result, err := ex.ExecContext(ctx,
		`UPDATE todos SET position = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		position, now, id, userID)
	if err != nil {
		return fmt.Errorf("failed to set position of todo %d: %w", id, err)
	}
	return requireAffected(result)
}
