package models

import (
	"time"
)

const (
	DefaultNoteType  = "text"
	DefaultNoteColor = "default"
)

type Note struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	CategoryID   *int      `json:"category_id"`
	CategoryName *string   `json:"category_name"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	NoteType     string    `json:"note_type"`
	Color        string    `json:"color"`
	IsPinned     bool      `json:"is_pinned"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateNoteRequest struct {
	CategoryID *int     `json:"category_id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	NoteType   string   `json:"note_type"`
	Color      string   `json:"color"`
	IsPinned   bool     `json:"is_pinned"`
	Tags       []string `json:"tags"`
}

type UpdateNoteRequest struct {
	CategoryID Nullable[int] `json:"category_id"`
	Title      *string       `json:"title"`
	Content    *string       `json:"content"`
	NoteType   *string       `json:"note_type"`
	Color      *string       `json:"color"`
	IsPinned   *bool         `json:"is_pinned"`
	Tags       *[]string     `json:"tags"`
}

func (r *UpdateNoteRequest) IsEmpty() bool {
	return !r.CategoryID.Set && r.Title == nil && r.Content == nil && r.NoteType == nil &&
		r.Color == nil && r.IsPinned == nil && r.Tags == nil
}

type NoteListFilters struct {
	UserID     int
	CategoryID *int
	NoteType   string
	IsPinned   *bool
	Tag        string
	Search     string
	Pagination
}
