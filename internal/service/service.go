package service

import (
	"context"
	"fmt"

	"github.com/amirk1998/daybook/internal/repository"
	"github.com/amirk1998/daybook/pkg/errors"
)

const (
	maxTitleLength    = 255
	maxNameLength     = 50
	maxFullNameLength = 100
)

// errNoFields is returned for a patch without any updatable field.
var errNoFields = errors.Validation("no updatable fields provided")

// notFound gives a missing row a resource-specific message.
func notFound(err error, resource string) error {
	if errors.Is(err, errors.ErrRecordNotFound) {
		return errors.NotFound(resource)
	}
	return err
}

// checkCategory rejects a category_id that does not name one of the
// user's categories. nil is always accepted.
func checkCategory(ctx context.Context, categories *repository.CategoryRepository, userID int, id *int) error {
	if id == nil {
		return nil
	}
	if _, err := categories.GetByID(ctx, userID, *id); err != nil {
		if errors.Is(err, errors.ErrRecordNotFound) {
			return errors.Validation(fmt.Sprintf("category_id %d does not refer to one of your categories", *id))
		}
		return err
	}
	return nil
}
