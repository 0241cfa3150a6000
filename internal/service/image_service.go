package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/amirk1998/daybook/internal/audit"
	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/internal/repository"
	"github.com/amirk1998/daybook/internal/storage"
	"github.com/amirk1998/daybook/pkg/errors"
	"github.com/amirk1998/daybook/pkg/validator"
)

// UploadRequest is a single image upload as received from a form.
type UploadRequest struct {
	File         io.Reader
	OriginalName string
	ImageType    string
	RelatedID    *int
}

type ImageService struct {
	imageRepo   *repository.ImageRepository
	noteRepo    *repository.NoteRepository
	userRepo    *repository.UserRepository
	files       *storage.FileStore
	maxBytes    int64
	validator   *validator.Validator
	auditLogger *audit.Logger
}

func NewImageService(
	imageRepo *repository.ImageRepository,
	noteRepo *repository.NoteRepository,
	userRepo *repository.UserRepository,
	files *storage.FileStore,
	maxBytes int64,
	auditLogger *audit.Logger,
) *ImageService {
	return &ImageService{
		imageRepo:   imageRepo,
		noteRepo:    noteRepo,
		userRepo:    userRepo,
		files:       files,
		maxBytes:    maxBytes,
		validator:   validator.New(),
		auditLogger: auditLogger,
	}
}

// Upload stores the file and records it. A profile image becomes the
// user's profile icon.
func (s *ImageService) Upload(ctx context.Context, userID int, req *UploadRequest) (*models.Image, error) {
	imageType := s.validator.SanitizeString(req.ImageType)
	if imageType == "" {
		imageType = models.ImageTypeNoteBackground
	}
	if err := s.validator.OneOf("image_type", imageType, models.ImageTypes...); err != nil {
		return nil, err
	}

	relatedID := req.RelatedID
	switch imageType {
	case models.ImageTypeProfile:
		relatedID = &userID
	case models.ImageTypeNoteBackground:
		if relatedID != nil {
			if _, err := s.noteRepo.GetByID(ctx, userID, *relatedID); err != nil {
				if errors.Is(err, errors.ErrRecordNotFound) {
					return nil, errors.Validation(fmt.Sprintf("related_id %d does not refer to one of your notes", *relatedID))
				}
				return nil, err
			}
		}
	}

	originalName := filepath.Base(s.validator.SanitizeString(req.OriginalName))
	if err := s.validator.MaxLength("original_name", originalName, maxTitleLength); err != nil {
		return nil, err
	}

	stored, err := s.files.Save(req.File, s.maxBytes)
	if err != nil {
		return nil, err
	}

	image := &models.Image{
		UserID:       userID,
		OriginalName: originalName,
		StoredName:   stored.Name,
		FilePath:     stored.Path,
		FileSize:     stored.Size,
		MimeType:     stored.ContentType,
		ImageType:    imageType,
		RelatedID:    relatedID,
	}
	if err := s.imageRepo.Create(ctx, image); err != nil {
		s.removeFile(stored.Name)
		return nil, err
	}

	if imageType == models.ImageTypeProfile {
		if err := s.userRepo.UpdateProfileIcon(ctx, userID, image.URL); err != nil {
			if delErr := s.imageRepo.Delete(ctx, userID, image.ID); delErr != nil {
				log.Printf("[Storage] failed to drop image %d after profile update error: %v", image.ID, delErr)
			}
			s.removeFile(stored.Name)
			return nil, err
		}
	}

	return image, nil
}

func (s *ImageService) List(ctx context.Context, filters models.ImageListFilters) ([]*models.Image, error) {
	if filters.ImageType != "" {
		if err := s.validator.OneOf("image_type", filters.ImageType, models.ImageTypes...); err != nil {
			return nil, err
		}
	}
	return s.imageRepo.List(ctx, filters)
}

func (s *ImageService) Get(ctx context.Context, userID, id int) (*models.Image, error) {
	image, err := s.imageRepo.GetByID(ctx, userID, id)
	return image, notFound(err, "image")
}

// Open returns the image row and its file. The caller closes the file.
func (s *ImageService) Open(ctx context.Context, userID, id int) (*models.Image, *os.File, error) {
	image, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.files.Open(image.StoredName)
	if err != nil {
		return nil, nil, notFound(err, "image file")
	}
	return image, f, nil
}

// Delete removes the row, then the file.
func (s *ImageService) Delete(ctx context.Context, userID, id int) error {
	image, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.imageRepo.Delete(ctx, userID, id); err != nil {
		return notFound(err, "image")
	}
	s.removeFile(image.StoredName)

	s.auditLogger.Record(audit.UserEvent(userID, audit.ActionDelete, "images", true))
	return nil
}

// removeFile only logs failures.
func (s *ImageService) removeFile(name string) {
	if err := s.files.Remove(name); err != nil {
		log.Printf("[Storage] failed to remove %s: %v", name, err)
	}
}
