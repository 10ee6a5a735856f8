package kitchen

import (
	"context"

	"github.com/google/uuid"
)

type TicketFilter struct {
	Station *string
	Status  *string
	OrderID *uuid.UUID
	Limit   int
	Offset  int
}

type TicketRepository interface {
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, id uuid.UUID) (*Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]Ticket, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Ticket, error)
	// Save persists the ticket only when the stored model_version still
	// matches; it returns ErrVersionConflict otherwise.
	Save(ctx context.Context, t *Ticket) error
}
