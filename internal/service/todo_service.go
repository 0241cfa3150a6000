package service

import (
	"context"
	"time"

	"github.com/amirk1998/daybook/internal/audit"
	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/internal/repository"
	"github.com/amirk1998/daybook/pkg/errors"
	"github.com/amirk1998/daybook/pkg/validator"
)

type TodoService struct {
	todoRepo     *repository.TodoRepository
	categoryRepo *repository.CategoryRepository
	validator    *validator.Validator
	auditLogger  *audit.Logger
	now          func() time.Time
}

func NewTodoService(
	todoRepo *repository.TodoRepository,
	categoryRepo *repository.CategoryRepository,
	auditLogger *audit.Logger,
) *TodoService {
	return &TodoService{
		todoRepo:     todoRepo,
		categoryRepo: categoryRepo,
		validator:    validator.New(),
		auditLogger:  auditLogger,
		now:          time.Now,
	}
}

func (s *TodoService) validateDueDate(due *string) error {
	if due == nil {
		return nil
	}
	return s.validator.Date("due_date", *due)
}

func (s *TodoService) List(ctx context.Context, filters models.TodoListFilters) ([]*models.Todo, error) {
	for _, f := range []struct{ field, value string }{{"due_from", filters.DueFrom}, {"due_to", filters.DueTo}} {
		if f.value != "" {
			if err := s.validator.Date(f.field, f.value); err != nil {
				return nil, err
			}
		}
	}
	if filters.Status != "" {
		if err := s.validator.OneOf("status", filters.Status, models.TodoStatuses...); err != nil {
			return nil, err
		}
	}
	if filters.Priority != "" {
		if err := s.validator.OneOf("priority", filters.Priority, models.Priorities...); err != nil {
			return nil, err
		}
	}
	return s.todoRepo.List(ctx, filters)
}

func (s *TodoService) Get(ctx context.Context, userID, id int) (*models.Todo, error) {
	todo, err := s.todoRepo.GetByID(ctx, userID, id)
	return todo, notFound(err, "todo")
}

// Create appends the todo after the user's last position.
func (s *TodoService) Create(ctx context.Context, userID int, req *models.CreateTodoRequest) (*models.Todo, error) {
	req.Title = s.validator.SanitizeString(req.Title)
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if req.Status == "" {
		req.Status = models.StatusPending
	}

	err := validator.First(
		s.validator.Required("title", req.Title),
		s.validator.MaxLength("title", req.Title, maxTitleLength),
		s.validator.OneOf("priority", req.Priority, models.Priorities...),
		s.validator.OneOf("status", req.Status, models.TodoStatuses...),
		s.validateDueDate(req.DueDate),
		checkCategory(ctx, s.categoryRepo, userID, req.CategoryID),
	)
	if err != nil {
		return nil, err
	}

	position, err := s.todoRepo.NextPosition(ctx, userID)
	if err != nil {
		return nil, err
	}

	todo := &models.Todo{
		UserID:      userID,
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		ReminderAt:  req.ReminderAt,
		Position:    position,
	}
	todo.SetStatus(req.Status, s.now())

	if err := s.todoRepo.Create(ctx, todo); err != nil {
		return nil, err
	}

	return s.Get(ctx, userID, todo.ID)
}

// Update merges the present fields. A status change stamps or clears
// completed_at in the same write.
func (s *TodoService) Update(ctx context.Context, userID, id int, req *models.UpdateTodoRequest) (*models.Todo, error) {
	if req.IsEmpty() {
		return nil, errNoFields
	}

	todo, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := s.validator.SanitizeString(*req.Title)
		if err := validator.First(
			s.validator.Required("title", title),
			s.validator.MaxLength("title", title, maxTitleLength),
		); err != nil {
			return nil, err
		}
		todo.Title = title
	}
	if req.Description != nil {
		todo.Description = *req.Description
	}
	if req.Priority != nil {
		if err := s.validator.OneOf("priority", *req.Priority, models.Priorities...); err != nil {
			return nil, err
		}
		todo.Priority = *req.Priority
	}
	if req.Status != nil {
		if err := s.validator.OneOf("status", *req.Status, models.TodoStatuses...); err != nil {
			return nil, err
		}
		todo.SetStatus(*req.Status, s.now())
	}
	if req.DueDate.Set {
		req.DueDate.Apply(&todo.DueDate)
		if err := s.validateDueDate(todo.DueDate); err != nil {
			return nil, err
		}
	}
	req.ReminderAt.Apply(&todo.ReminderAt)
	if req.Position != nil {
		if *req.Position < 0 {
			return nil, errors.Validation("position must not be negative")
		}
		todo.Position = *req.Position
	}
	if req.CategoryID.Set {
		req.CategoryID.Apply(&todo.CategoryID)
		if err := checkCategory(ctx, s.categoryRepo, userID, todo.CategoryID); err != nil {
			return nil, err
		}
	}

	if err := s.todoRepo.Update(ctx, todo); err != nil {
		return nil, notFound(err, "todo")
	}

	return s.Get(ctx, userID, id)
}

// Toggle flips between completed and pending.
func (s *TodoService) Toggle(ctx context.Context, userID, id int) (*models.Todo, error) {
	todo, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	status := models.StatusCompleted
	if todo.Status == models.StatusCompleted {
		status = models.StatusPending
	}
	return s.Update(ctx, userID, id, &models.UpdateTodoRequest{Status: &status})
}

// Reorder sets positions from the order of req.Todos, all or nothing.
func (s *TodoService) Reorder(ctx context.Context, userID int, req *models.ReorderTodosRequest) error {
	if len(req.Todos) == 0 {
		return errors.Validation("todos must contain at least one item")
	}

	ids := make([]int, 0, len(req.Todos))
	seen := make(map[int]bool, len(req.Todos))
	for _, item := range req.Todos {
		if item.ID <= 0 {
			return errors.Validation("todos must contain positive ids")
		}
		if seen[item.ID] {
			return errors.Validation("todos must not contain duplicate ids")
		}
		seen[item.ID] = true
		ids = append(ids, item.ID)
	}

	return notFound(s.todoRepo.Reorder(ctx, userID, ids), "todo")
}

func (s *TodoService) Delete(ctx context.Context, userID, id int) error {
	if err := s.todoRepo.Delete(ctx, userID, id); err != nil {
		return notFound(err, "todo")
	}
	s.auditLogger.Record(audit.UserEvent(userID, audit.ActionDelete, "todos", true))
	return nil
}
