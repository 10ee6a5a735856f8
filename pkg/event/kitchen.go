package event

import "time"

const (
	EventTicketCreated         = "kitchen.ticket.created"
	EventTicketStatusChanged   = "kitchen.ticket.status_changed"
	EventTicketPriorityChanged = "kitchen.ticket.priority_changed"
	EventTicketReady           = "kitchen.ticket.ready"
)

// TicketEventMetadata is shared by every ticket event.
type TicketEventMetadata struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	TicketID   string    `json:"ticket_id"`
	OrderID    string    `json:"order_id"`
	Station    string    `json:"station"`

	// Denormalized for display
	TableRef  string `json:"table_ref,omitempty"`
	OrderType string `json:"order_type,omitempty"`
}

// TicketLineSnapshot mirrors a ticket line's state at event time so that
// consumers can update order lines without a read back into the kitchen.
type TicketLineSnapshot struct {
	TicketLineID string `json:"ticket_line_id"`
	OrderLineID  string `json:"order_line_id"`
	Name         string `json:"name,omitempty"`
	Quantity     int    `json:"quantity"`
	Status       string `json:"status"`
}

type TicketCreatedEvent struct {
	TicketEventMetadata
	Status     string               `json:"status"`
	Priority   string               `json:"priority"`
	Additional bool                 `json:"additional"`
	Notes      string               `json:"notes,omitempty"`
	Lines      []TicketLineSnapshot `json:"lines"`
}

type TicketStatusChangedEvent struct {
	TicketEventMetadata
	NewStatus      string               `json:"new_status"`
	PreviousStatus string               `json:"previous_status"`
	Lines          []TicketLineSnapshot `json:"lines"`
	StartedAt      *time.Time           `json:"started_at,omitempty"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
	ServedAt       *time.Time           `json:"served_at,omitempty"`
}

type TicketPriorityChangedEvent struct {
	TicketEventMetadata
	Priority string `json:"priority"`
}
