package order

import (
	"context"

	"github.com/google/uuid"
)

type OrderRepo interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context) ([]*Order, error)
	ListByTable(ctx context.Context, tableRef string) ([]*Order, error)
	ListByStatus(ctx context.Context, status string) ([]*Order, error)
	// Save persists the order iff its model_version still matches,
	// incrementing the version on success. A version conflict returns
	// ErrVersionConflict.
	Save(ctx context.Context, order *Order) error
}

// TicketStatusLister is the kitchen-side read the reconciler needs: the
// current status of every ticket belonging to an order.
type TicketStatusLister interface {
	ListStatusesByOrder(ctx context.Context, orderID uuid.UUID) ([]string, error)
}
