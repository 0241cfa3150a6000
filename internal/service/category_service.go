package service

import (
	"context"
	"fmt"

	"github.com/amirk1998/daybook/internal/audit"
	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/internal/repository"
	"github.com/amirk1998/daybook/pkg/errors"
	"github.com/amirk1998/daybook/pkg/validator"
)

type CategoryService struct {
	categoryRepo *repository.CategoryRepository
	validator    *validator.Validator
	auditLogger  *audit.Logger
}

func NewCategoryService(categoryRepo *repository.CategoryRepository, auditLogger *audit.Logger) *CategoryService {
	return &CategoryService{
		categoryRepo: categoryRepo,
		validator:    validator.New(),
		auditLogger:  auditLogger,
	}
}

func (s *CategoryService) validateName(name string) error {
	return validator.First(
		s.validator.Required("name", name),
		s.validator.MaxLength("name", name, maxNameLength),
	)
}

func (s *CategoryService) List(ctx context.Context, filters models.CategoryListFilters) ([]*models.Category, error) {
	return s.categoryRepo.List(ctx, filters)
}

func (s *CategoryService) Get(ctx context.Context, userID, id int) (*models.Category, error) {
	category, err := s.categoryRepo.GetByID(ctx, userID, id)
	return category, notFound(err, "category")
}

func (s *CategoryService) Create(ctx context.Context, userID int, req *models.CreateCategoryRequest) (*models.Category, error) {
	category := &models.Category{
		UserID: userID,
		Name:   s.validator.SanitizeString(req.Name),
		Color:  s.validator.SanitizeString(req.Color),
		Icon:   s.validator.SanitizeString(req.Icon),
	}
	if category.Color == "" {
		category.Color = models.DefaultCategoryColor
	}
	if category.Icon == "" {
		category.Icon = models.DefaultCategoryIcon
	}

	err := validator.First(
		s.validateName(category.Name),
		s.validator.Color("color", category.Color),
		s.validator.MaxLength("icon", category.Icon, maxNameLength),
	)
	if err != nil {
		return nil, err
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, userID, id int, req *models.UpdateCategoryRequest) (*models.Category, error) {
	if req.IsEmpty() {
		return nil, errNoFields
	}

	category, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := s.validator.SanitizeString(*req.Name)
		if err := s.validateName(name); err != nil {
			return nil, err
		}
		category.Name = name
	}
	if req.Color != nil {
		color := s.validator.SanitizeString(*req.Color)
		if err := s.validator.Color("color", color); err != nil {
			return nil, err
		}
		category.Color = color
	}
	if req.Icon != nil {
		icon := s.validator.SanitizeString(*req.Icon)
		if err := validator.First(
			s.validator.Required("icon", icon),
			s.validator.MaxLength("icon", icon, maxNameLength),
		); err != nil {
			return nil, err
		}
		category.Icon = icon
	}

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, notFound(err, "category")
	}
	return category, nil
}

// Delete refuses while notes or todos still reference the category. The
// usage check and the delete are one statement; counts are read only to
// explain a refusal.
func (s *CategoryService) Delete(ctx context.Context, userID, id int) error {
	err := s.categoryRepo.Delete(ctx, userID, id)
	if err == nil {
		s.auditLogger.Record(audit.UserEvent(userID, audit.ActionDelete, "categories", true))
		return nil
	}
	if !errors.Is(err, errors.ErrRecordNotFound) {
		return err
	}

	category, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	n := category.NoteCount + category.TodoCount
	return errors.Conflict(fmt.Sprintf(
		"Cannot delete category %q: it is used by %d item(s) (%d note(s), %d todo(s)). Reassign or delete them first.",
		category.Name, n, category.NoteCount, category.TodoCount))
}
