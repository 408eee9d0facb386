// Package repository provides generic storage of entities.
//
// An entity is a plain struct whose persisted fields carry `db:"column"` tags.
// Every entity has a uuid column "id"; a time.Time column "criado_em" is
// stamped on insert. Two implementations exist: Postgres for production and
// Memory for tests and demo mode. Both share the same query semantics.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/apae-gestao/apae/core"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the requested item does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an item violates a uniqueness constraint
	ErrConflict = errors.New("conflict")
	// ErrReference is returned when an item references a missing item, or
	// when a referenced item is deleted
	ErrReference = errors.New("reference violation")
	// ErrInvalidQuery is returned for queries on unknown columns. It wraps
	// core.ErrValidation.
	ErrInvalidQuery = fmt.Errorf("%w: invalid query", core.ErrValidation)
)

// Repository stores items of type T
type Repository[T any] interface {
	// List returns all items matching the query
	List(ctx context.Context, q Query) ([]T, error)
	// Count returns the number of items matching the query, ignoring paging
	Count(ctx context.Context, q Query) (int, error)
	// Get returns the item with the given id or ErrNotFound
	Get(ctx context.Context, id uuid.UUID) (*T, error)
	// Insert stores a new item. Id and creation time are assigned when zero.
	Insert(ctx context.Context, item *T) error
	// Update replaces an existing item, the creation time is kept
	Update(ctx context.Context, item *T) error
	// Delete removes the item with the given id or returns ErrNotFound
	Delete(ctx context.Context, id uuid.UUID) error
	// Table returns the table description
	Table() *Table
}
