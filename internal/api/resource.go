package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// crudService is the contract shared by every owner-scoped entity.
type crudService[T, C, U, F any] interface {
	List(ctx context.Context, filters F) ([]*T, error)
	Get(ctx context.Context, userID, id int) (*T, error)
	Create(ctx context.Context, userID int, req *C) (*T, error)
	Update(ctx context.Context, userID, id int, req *U) (*T, error)
	Delete(ctx context.Context, userID, id int) error
}

// resource serves list, get, create, update and delete for one entity.
type resource[T, C, U, F any] struct {
	name    string
	plural  string
	svc     crudService[T, C, U, F]
	filters func(r *http.Request, userID int) (F, error)
}

func (res resource[T, C, U, F]) routes(r chi.Router) {
	r.Get("/", res.list)
	r.Post("/", res.create)
	r.Get("/{id}", res.get)
	r.Put("/{id}", res.update)
	r.Delete("/{id}", res.delete)
}

func (res resource[T, C, U, F]) list(w http.ResponseWriter, r *http.Request) {
	filters, err := res.filters(r, userIDFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	items, err := res.svc.List(r.Context(), filters)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res.plural+" retrieved", items)
}

func (res resource[T, C, U, F]) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	item, err := res.svc.Get(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res.name+" retrieved", item)
}

func (res resource[T, C, U, F]) create(w http.ResponseWriter, r *http.Request) {
	var req C
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	item, err := res.svc.Create(r.Context(), userIDFrom(r.Context()), &req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, res.name+" created", item)
}

func (res resource[T, C, U, F]) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var req U
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	item, err := res.svc.Update(r.Context(), userIDFrom(r.Context()), id, &req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res.name+" updated", item)
}

func (res resource[T, C, U, F]) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := res.svc.Delete(r.Context(), userIDFrom(r.Context()), id); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res.name+" deleted", nil)
}
