package products

import (
	"context"
	"errors"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/catalog"
)

// ErrInvalidInput marks a request rejected before reaching the store.
var ErrInvalidInput = errors.New("invalid input")

// ListFilter narrows a product listing. A nil IsActive matches both states.
type ListFilter struct {
	Search   string
	IsActive *bool
	Limit    int
	Offset   int
}

// ProductStore persists catalog items.
// Get, Update and Delete return catalog.ErrNotFound for unknown ids; Create
// returns catalog.ErrDuplicateSKU when the SKU is taken.
type ProductStore interface {
	Create(ctx context.Context, item *catalog.Item) error
	Get(ctx context.Context, id int64) (*catalog.Item, error)
	Update(ctx context.Context, item *catalog.Item) error
	// Delete removes the item and returns it as it was before deletion.
	Delete(ctx context.Context, id int64) (*catalog.Item, error)
	// List returns one page newest first plus the total number of matches.
	List(ctx context.Context, filter ListFilter) ([]catalog.Item, int, error)
}

// Truncator removes every catalog item.
type Truncator interface {
	DeleteAll(ctx context.Context) (int64, error)
}

// Purger schedules an asynchronous purge and returns its task id.
type Purger interface {
	EnqueuePurge(ctx context.Context) (int64, error)
}
