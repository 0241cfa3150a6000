package models

import (
	"fmt"
	"time"
)

const (
	ImageTypeNoteBackground = "note_background"
	ImageTypeProfile        = "profile"
)

var ImageTypes = []string{ImageTypeNoteBackground, ImageTypeProfile}

type Image struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"stored_name"`
	FilePath     string    `json:"-"`
	FileSize     int64     `json:"file_size"`
	MimeType     string    `json:"mime_type"`
	ImageType    string    `json:"image_type"`
	RelatedID    *int      `json:"related_id"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
}

func ImageURL(id int) string {
	return fmt.Sprintf("/api/images/%d/file", id)
}

type ImageListFilters struct {
	UserID    int
	ImageType string
	RelatedID *int
	Pagination
}
