package event

import "time"

const (
	EventOrderPlaced        = "order.placed"
	EventOrderItemsAdded    = "order.items_added"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderLinePayload carries one order line into the kitchen fan-out.
type OrderLinePayload struct {
	OrderLineID string            `json:"order_line_id"`
	MenuItemID  string            `json:"menu_item_id"`
	Name        string            `json:"name"`
	Quantity    int               `json:"quantity"`
	Station     string            `json:"station,omitempty"`
	Modifiers   []ModifierPayload `json:"modifiers,omitempty"`
	Notes       string            `json:"notes,omitempty"`
}

type ModifierPayload struct {
	Name            string  `json:"name"`
	AdditionalPrice float64 `json:"additional_price"`
}

// OrderPlacedEvent is published on placement and on append. On append only
// the newly added lines are included and Additional is set; the kitchen
// service cuts fresh tickets from exactly the lines it receives.
type OrderPlacedEvent struct {
	EventType   string             `json:"event_type"`
	OccurredAt  time.Time          `json:"occurred_at"`
	OrderID     string             `json:"order_id"`
	OrderType   string             `json:"order_type"`
	TableRef    string             `json:"table_ref,omitempty"`
	Notes       string             `json:"notes,omitempty"`
	Additional  bool               `json:"additional"`
	Lines       []OrderLinePayload `json:"lines"`
}

// OrderStatusChangedEvent is published to the order's status scope whenever
// the reconciler derives a different overall status.
type OrderStatusChangedEvent struct {
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	OrderID        string    `json:"order_id"`
	TableRef       string    `json:"table_ref,omitempty"`
	NewStatus      string    `json:"new_status"`
	PreviousStatus string    `json:"previous_status"`
	ProgressPct    int       `json:"progress_pct"`
}
