// Package store defines the Remote Store Client contract: table-scoped
// operations against wherever the todo rows actually live.
package store

import (
	"context"
	"errors"

	"github.com/idilsaglam/todosync/internal/model"
)

// ErrNotFound is returned by UpdateByID and DeleteByID when the backend can
// tell that no row carries the id.
var ErrNotFound = errors.New("store: item not found")

// Store is implemented by every backend.
type Store interface {
	SelectAll(ctx context.Context) ([]model.Item, error)
	Insert(ctx context.Context, item model.NewItem) (model.Item, error)
	UpdateByID(ctx context.Context, id model.ID, patch model.Patch) error
	DeleteByID(ctx context.Context, id model.ID) error
}
