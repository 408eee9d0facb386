package gestao

import (
	"context"
	"errors"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/core/repository"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// CrudService provides the storage operations of one entity with validation
// and change notifications
type CrudService[T any] struct {
	name     string
	repo     repository.Repository[T]
	notifier core.Notifier

	// prepare validates and normalizes item before it is stored. existing is
	// nil on create.
	prepare func(ctx context.Context, item *T, existing *T) error
	// beforeDelete may veto the deletion of id
	beforeDelete func(ctx context.Context, id uuid.UUID) error
	// afterDelete cleans up after id was deleted, errors are only logged
	afterDelete func(ctx context.Context, id uuid.UUID) error
}

// NewCrudService returns a service for repo. The notifier is optional.
func NewCrudService[T any](name string, repo repository.Repository[T], notifier core.Notifier) *CrudService[T] {
	return &CrudService[T]{name: name, repo: repo, notifier: notifier}
}

// Table returns the table of the underlying repository
func (s *CrudService[T]) Table() *repository.Table {
	return s.repo.Table()
}

// List returns the items matching q
func (s *CrudService[T]) List(ctx context.Context, q repository.Query) ([]T, error) {
	return s.repo.List(ctx, q)
}

// Count returns the number of items matching q
func (s *CrudService[T]) Count(ctx context.Context, q repository.Query) (int, error) {
	return s.repo.Count(ctx, q)
}

// Get returns the item with id
func (s *CrudService[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a new item
func (s *CrudService[T]) Create(ctx context.Context, item *T) error {
	if s.prepare != nil {
		if err := s.prepare(ctx, item, nil); err != nil {
			return err
		}
	}
	if err := s.repo.Insert(ctx, item); err != nil {
		return err
	}
	s.notify(ctx, core.OperationCreate, s.repo.Table().ID(item), item)
	return nil
}

// Update validates and replaces an existing item
func (s *CrudService[T]) Update(ctx context.Context, item *T) error {
	id := s.repo.Table().ID(item)
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.prepare != nil {
		if err := s.prepare(ctx, item, existing); err != nil {
			return err
		}
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return err
	}
	s.notify(ctx, core.OperationUpdate, id, item)
	return nil
}

// Delete removes the item with id
func (s *CrudService[T]) Delete(ctx context.Context, id uuid.UUID) error {
	if s.beforeDelete != nil {
		if err := s.beforeDelete(ctx, id); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.afterDelete != nil {
		if err := s.afterDelete(ctx, id); err != nil {
			logger.FromContext(ctx).WithError(err).Errorf("Error 6001: cleanup after deleting %s %s", s.name, id)
		}
	}
	s.notify(ctx, core.OperationDelete, id, nil)
	return nil
}

// exists returns nil if id exists, otherwise an error wrapping repository.ErrReference
func (s *CrudService[T]) exists(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return referenceError("%s %s does not exist", s.name, id)
	}
	return err
}

func (s *CrudService[T]) notify(ctx context.Context, operation core.Operation, id uuid.UUID, item *T) {
	if s.notifier == nil {
		return
	}
	var payload []byte
	if item != nil {
		var err error
		payload, err = json.Marshal(item)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Errorf("Error 6002: cannot marshal %s notification", s.name)
			return
		}
	}
	s.notifier.Notify(ctx, s.name, operation, id, payload)
}
