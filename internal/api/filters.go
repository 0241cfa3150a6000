package api

import (
	"net/http"

	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/pkg/errors"
)

func pagination(r *http.Request) (models.Pagination, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return models.Pagination{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return models.Pagination{}, err
	}
	if page < 0 || limit < 0 {
		return models.Pagination{}, errors.Validation("page and limit must not be negative")
	}
	return models.Pagination{Page: page, Limit: limit}, nil
}

func noteFilters(r *http.Request, userID int) (models.NoteListFilters, error) {
	var f models.NoteListFilters
	var err error

	if f.Pagination, err = pagination(r); err != nil {
		return f, err
	}
	if f.CategoryID, err = queryIntPtr(r, "category_id"); err != nil {
		return f, err
	}
	if f.IsPinned, err = queryBoolPtr(r, "pinned"); err != nil {
		return f, err
	}

	q := r.URL.Query()
	f.UserID = userID
	f.NoteType = q.Get("note_type")
	f.Tag = q.Get("tag")
	f.Search = q.Get("search")
	return f, nil
}

func todoFilters(r *http.Request, userID int) (models.TodoListFilters, error) {
	var f models.TodoListFilters
	var err error

	if f.Pagination, err = pagination(r); err != nil {
		return f, err
	}
	if f.CategoryID, err = queryIntPtr(r, "category_id"); err != nil {
		return f, err
	}

	q := r.URL.Query()
	f.UserID = userID
	f.Status = q.Get("status")
	f.Priority = q.Get("priority")
	f.DueFrom = q.Get("due_from")
	f.DueTo = q.Get("due_to")
	f.Search = q.Get("search")
	return f, nil
}

func categoryFilters(r *http.Request, userID int) (models.CategoryListFilters, error) {
	p, err := pagination(r)
	if err != nil {
		return models.CategoryListFilters{}, err
	}
	return models.CategoryListFilters{UserID: userID, Search: r.URL.Query().Get("search"), Pagination: p}, nil
}

func diaryFilters(r *http.Request, userID int) (models.DiaryListFilters, error) {
	p, err := pagination(r)
	if err != nil {
		return models.DiaryListFilters{}, err
	}

	q := r.URL.Query()
	return models.DiaryListFilters{
		UserID:     userID,
		Mood:       q.Get("mood"),
		From:       q.Get("from"),
		To:         q.Get("to"),
		Search:     q.Get("search"),
		Pagination: p,
	}, nil
}

func imageFilters(r *http.Request, userID int) (models.ImageListFilters, error) {
	var f models.ImageListFilters
	var err error

	if f.Pagination, err = pagination(r); err != nil {
		return f, err
	}
	if f.RelatedID, err = queryIntPtr(r, "related_id"); err != nil {
		return f, err
	}
	f.UserID = userID
	f.ImageType = r.URL.Query().Get("image_type")
	return f, nil
}
