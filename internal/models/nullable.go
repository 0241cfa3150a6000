package models

import (
	"bytes"
	"encoding/json"
)

// Nullable is a patch field for nullable columns. Set reports whether the
// key was present in the JSON body; Valid is false for an explicit null.
type Nullable[T any] struct {
	Set   bool
	Valid bool
	Value T
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		n.Valid = false
		n.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// NullOf builds a present, non-null value. Mostly useful in tests.
func NullOf[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Valid: true, Value: v}
}

// Null builds a present, explicit null.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// Apply writes the patch onto dst when the field was present.
func (n Nullable[T]) Apply(dst **T) {
	if !n.Set {
		return
	}
	if !n.Valid {
		*dst = nil
		return
	}
	v := n.Value
	*dst = &v
}

// Pagination is shared by every list filter.
type Pagination struct {
	Page  int
	Limit int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Normalize clamps page and limit into their valid ranges.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}
