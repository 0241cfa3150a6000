package models

import "time"

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

var (
	Priorities   = []string{PriorityLow, PriorityMedium, PriorityHigh}
	TodoStatuses = []string{StatusPending, StatusInProgress, StatusCompleted}
)

type Todo struct {
	ID           int        `json:"id"`
	UserID       int        `json:"user_id"`
	CategoryID   *int       `json:"category_id"`
	CategoryName *string    `json:"category_name"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	IsCompleted  bool       `json:"is_completed"`
	CompletedAt  *time.Time `json:"completed_at"`
	DueDate      *string    `json:"due_date"`
	ReminderAt   *time.Time `json:"reminder_datetime"`
	Position     int        `json:"position"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SetStatus keeps CompletedAt in step with Status: stamped on the
// transition to completed, cleared for any other status.
func (t *Todo) SetStatus(status string, now time.Time) {
	if status == StatusCompleted {
		if t.Status != StatusCompleted || t.CompletedAt == nil {
			ts := now
			t.CompletedAt = &ts
		}
	} else {
		t.CompletedAt = nil
	}
	t.Status = status
	t.IsCompleted = status == StatusCompleted
}

type CreateTodoRequest struct {
	CategoryID  *int       `json:"category_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueDate     *string    `json:"due_date"`
	ReminderAt  *time.Time `json:"reminder_datetime"`
}

type UpdateTodoRequest struct {
	CategoryID  Nullable[int]       `json:"category_id"`
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Priority    *string             `json:"priority"`
	Status      *string             `json:"status"`
	DueDate     Nullable[string]    `json:"due_date"`
	ReminderAt  Nullable[time.Time] `json:"reminder_datetime"`
	Position    *int                `json:"position"`
}

func (r *UpdateTodoRequest) IsEmpty() bool {
	return !r.CategoryID.Set && r.Title == nil && r.Description == nil && r.Priority == nil &&
		r.Status == nil && !r.DueDate.Set && !r.ReminderAt.Set && r.Position == nil
}

type ReorderItem struct {
	ID int `json:"id"`
}

type ReorderTodosRequest struct {
	Todos []ReorderItem `json:"todos"`
}

type TodoListFilters struct {
	UserID     int
	CategoryID *int
	Status     string
	Priority   string
	DueFrom    string
	DueTo      string
	Search     string
	Pagination
}
