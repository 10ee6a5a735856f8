package catalog

import (
	"context"

	"github.com/google/uuid"
)

type MenuItemRepo interface {
	Create(ctx context.Context, item *MenuItem) error
	Get(ctx context.Context, id uuid.UUID) (*MenuItem, error)
	List(ctx context.Context) ([]*MenuItem, error)
	Save(ctx context.Context, item *MenuItem) error
}
