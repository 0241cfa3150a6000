package service

import (
	"context"

	"github.com/amirk1998/daybook/internal/audit"
	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/internal/repository"
	"github.com/amirk1998/daybook/pkg/errors"
	"github.com/amirk1998/daybook/pkg/validator"
)

const maxTags = 20

type NoteService struct {
	noteRepo     *repository.NoteRepository
	categoryRepo *repository.CategoryRepository
	validator    *validator.Validator
	auditLogger  *audit.Logger
}

// NewNoteService creates a new note service
func NewNoteService(
	noteRepo *repository.NoteRepository,
	categoryRepo *repository.CategoryRepository,
	auditLogger *audit.Logger,
) *NoteService {
	return &NoteService{
		noteRepo:     noteRepo,
		categoryRepo: categoryRepo,
		validator:    validator.New(),
		auditLogger:  auditLogger,
	}
}

func (s *NoteService) cleanTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = s.validator.SanitizeString(tag)
		if tag == "" {
			continue
		}
		if err := s.validator.MaxLength("tags", tag, maxNameLength); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	if len(out) > maxTags {
		return nil, errors.Validation("tags must contain at most 20 entries")
	}
	return out, nil
}

func (s *NoteService) validateTitle(title string) error {
	return validator.First(
		s.validator.Required("title", title),
		s.validator.MaxLength("title", title, maxTitleLength),
	)
}

func (s *NoteService) List(ctx context.Context, filters models.NoteListFilters) ([]*models.Note, error) {
	return s.noteRepo.List(ctx, filters)
}

func (s *NoteService) Get(ctx context.Context, userID, id int) (*models.Note, error) {
	note, err := s.noteRepo.GetByID(ctx, userID, id)
	return note, notFound(err, "note")
}

// Create creates a new note
func (s *NoteService) Create(ctx context.Context, userID int, req *models.CreateNoteRequest) (*models.Note, error) {
	req.Title = s.validator.SanitizeString(req.Title)
	if err := s.validateTitle(req.Title); err != nil {
		return nil, err
	}
	if err := checkCategory(ctx, s.categoryRepo, userID, req.CategoryID); err != nil {
		return nil, err
	}

	tags, err := s.cleanTags(req.Tags)
	if err != nil {
		return nil, err
	}

	note := &models.Note{
		UserID:     userID,
		CategoryID: req.CategoryID,
		Title:      req.Title,
		Content:    req.Content,
		NoteType:   s.validator.SanitizeString(req.NoteType),
		Color:      s.validator.SanitizeString(req.Color),
		IsPinned:   req.IsPinned,
		Tags:       tags,
	}
	if note.NoteType == "" {
		note.NoteType = models.DefaultNoteType
	}
	if note.Color == "" {
		note.Color = models.DefaultNoteColor
	}

	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, err
	}

	return s.Get(ctx, userID, note.ID)
}

// Update merges the present fields onto the stored note.
func (s *NoteService) Update(ctx context.Context, userID, id int, req *models.UpdateNoteRequest) (*models.Note, error) {
	if req.IsEmpty() {
		return nil, errNoFields
	}

	note, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := s.validator.SanitizeString(*req.Title)
		if err := s.validateTitle(title); err != nil {
			return nil, err
		}
		note.Title = title
	}
	if req.Content != nil {
		note.Content = *req.Content
	}
	if req.NoteType != nil {
		if err := s.validator.Required("note_type", *req.NoteType); err != nil {
			return nil, err
		}
		note.NoteType = s.validator.SanitizeString(*req.NoteType)
	}
	if req.Color != nil {
		if err := s.validator.Required("color", *req.Color); err != nil {
			return nil, err
		}
		note.Color = s.validator.SanitizeString(*req.Color)
	}
	if req.IsPinned != nil {
		note.IsPinned = *req.IsPinned
	}
	if req.Tags != nil {
		tags, err := s.cleanTags(*req.Tags)
		if err != nil {
			return nil, err
		}
		note.Tags = tags
	}
	if req.CategoryID.Set {
		req.CategoryID.Apply(&note.CategoryID)
		if err := checkCategory(ctx, s.categoryRepo, userID, note.CategoryID); err != nil {
			return nil, err
		}
	}

	if err := s.noteRepo.Update(ctx, note); err != nil {
		return nil, notFound(err, "note")
	}

	return s.Get(ctx, userID, id)
}

// TogglePin flips is_pinned.
func (s *NoteService) TogglePin(ctx context.Context, userID, id int) (*models.Note, error) {
	note, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	pinned := !note.IsPinned
	return s.Update(ctx, userID, id, &models.UpdateNoteRequest{IsPinned: &pinned})
}

func (s *NoteService) Delete(ctx context.Context, userID, id int) error {
	if err := s.noteRepo.Delete(ctx, userID, id); err != nil {
		return notFound(err, "note")
	}
	s.auditLogger.Record(audit.UserEvent(userID, audit.ActionDelete, "notes", true))
	return nil
}
