package models

import "time"

const (
	DefaultCategoryColor = "#6c757d"
	DefaultCategoryIcon  = "folder"
)

type Category struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	NoteCount int       `json:"note_count"`
	TodoCount int       `json:"todo_count"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultCategories are created for every new account.
var DefaultCategories = []Category{
	{Name: "Personal", Color: "#0d6efd", Icon: "user"},
	{Name: "Work", Color: "#198754", Icon: "briefcase"},
	{Name: "Ideas", Color: "#ffc107", Icon: "lightbulb"},
	{Name: "Shopping", Color: "#dc3545", Icon: "cart"},
}

type CreateCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type UpdateCategoryRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
	Icon  *string `json:"icon"`
}

func (r *UpdateCategoryRequest) IsEmpty() bool {
	return r.Name == nil && r.Color == nil && r.Icon == nil
}

type CategoryListFilters struct {
	UserID int
	Search string
	Pagination
}
