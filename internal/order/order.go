package order

import (
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/enums/linestatus"
	"github.com/comandaclub/comanda/pkg/enums/orderstatus"
)

const CurrentOrderSchemaVersion = 1

const (
	TypeDineIn   = "dine-in"
	TypeTakeaway = "takeaway"
	TypeDelivery = "delivery"
)

// Modifier is a priced customization on an order line.
type Modifier struct {
	Name            string  `json:"name" bson:"name"`
	AdditionalPrice float64 `json:"additional_price" bson:"additional_price"`
}

// OrderLine is one requested menu item. Unit price, total, station and prep
// time are computed from the catalog at order time and never revised when
// the catalog changes afterwards.
type OrderLine struct {
	ID              uuid.UUID  `json:"id" bson:"_id"`
	MenuItemID      uuid.UUID  `json:"menu_item_id" bson:"menu_item_id"`
	Name            string     `json:"name" bson:"name"`
	Quantity        int        `json:"quantity" bson:"quantity"`
	Modifiers       []Modifier `json:"modifiers,omitempty" bson:"modifiers,omitempty"`
	Notes           string     `json:"notes,omitempty" bson:"notes,omitempty"`
	UnitPrice       float64    `json:"unit_price" bson:"unit_price"`
	LineTotal       float64    `json:"line_total" bson:"line_total"`
	Station         string     `json:"station" bson:"station"`
	PrepTimeMinutes int        `json:"prep_time_minutes" bson:"prep_time_minutes"`
	Status          string     `json:"status" bson:"status"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
}

// Order is a customer's full set of requested items for one dining occasion.
type Order struct {
	ID       uuid.UUID   `json:"id" bson:"_id"`
	TableRef string      `json:"table_ref,omitempty" bson:"table_ref,omitempty"`
	Type     string      `json:"type" bson:"type"`
	Lines    []OrderLine `json:"lines" bson:"lines"`

	Subtotal         float64 `json:"subtotal" bson:"subtotal"`
	ServiceChargePct float64 `json:"service_charge_pct" bson:"service_charge_pct"`
	ServiceCharge    float64 `json:"service_charge" bson:"service_charge"`
	TaxPct           float64 `json:"tax_pct" bson:"tax_pct"`
	Tax              float64 `json:"tax" bson:"tax"`
	Tip              float64 `json:"tip" bson:"tip"`
	Discount         float64 `json:"discount" bson:"discount"`
	GrandTotal       float64 `json:"grand_total" bson:"grand_total"`

	Status                string `json:"status" bson:"status"`
	EstimatedPrepTime     int    `json:"estimated_prep_time" bson:"estimated_prep_time"`
	CustomerName          string `json:"customer_name,omitempty" bson:"customer_name,omitempty"`
	CustomerPhone         string `json:"customer_phone,omitempty" bson:"customer_phone,omitempty"`
	Notes                 string `json:"notes,omitempty" bson:"notes,omitempty"`

	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
	ModelVersion int       `json:"model_version" bson:"model_version"`
}

func (o *Order) GetID() uuid.UUID {
	return o.ID
}

func (o *Order) ResourceType() string {
	return "order"
}

func (o *Order) SetID(id uuid.UUID) {
	o.ID = id
}

func NewOrder() *Order {
	return &Order{
		ID:     aqm.GenerateNewID(),
		Type:   TypeDineIn,
		Status: orderstatus.Statuses.New.Code(),
	}
}

func (o *Order) EnsureID() {
	if o.ID == uuid.Nil {
		o.ID = aqm.GenerateNewID()
	}
}

func (o *Order) BeforeCreate() {
	o.EnsureID()
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.ModelVersion == 0 {
		o.ModelVersion = CurrentOrderSchemaVersion
	}
}

func (o *Order) BeforeUpdate() {
	o.UpdatedAt = time.Now()
}

// CurrentStatus resolves the stored status code to its enum value.
func (o *Order) CurrentStatus() orderstatus.Status {
	if s := orderstatus.ByName(o.Status); s != nil {
		return *s
	}
	return orderstatus.Statuses.New
}

// SetStatus moves the order to target, rejecting illegal transitions.
func (o *Order) SetStatus(target orderstatus.Status) error {
	current := o.CurrentStatus()
	if current.Code() == target.Code() {
		return nil
	}
	if !current.CanTransitionTo(target) {
		return fmt.Errorf("order %s: illegal transition %s -> %s: %w", o.ID, current.Code(), target.Code(), ErrIllegalTransition)
	}
	o.Status = target.Code()
	o.UpdatedAt = time.Now()
	return nil
}

// AppendLines adds validated lines and recomputes derived totals and the
// estimated preparation time.
func (o *Order) AppendLines(lines []OrderLine) {
	o.Lines = append(o.Lines, lines...)
	for _, line := range lines {
		if line.PrepTimeMinutes > o.EstimatedPrepTime {
			o.EstimatedPrepTime = line.PrepTimeMinutes
		}
	}
	o.Recalculate()
}

// Recalculate derives every financial field from the line totals. Tax is
// applied after the service charge; the discount is clamped so the grand
// total never goes negative.
func (o *Order) Recalculate() {
	subtotal := 0.0
	for _, line := range o.Lines {
		subtotal += line.LineTotal
	}

	o.Subtotal = subtotal
	o.ServiceCharge = subtotal * o.ServiceChargePct / 100
	o.Tax = (subtotal + o.ServiceCharge) * o.TaxPct / 100

	grandTotal := o.Subtotal + o.ServiceCharge + o.Tax + o.Tip - o.Discount
	if grandTotal < 0 {
		grandTotal = 0
	}
	o.GrandTotal = grandTotal
	o.UpdatedAt = time.Now()
}

// ProgressPct is the share of lines already ready or served, for the
// customer-facing status page.
func (o *Order) ProgressPct() int {
	if len(o.Lines) == 0 {
		return 0
	}
	done := 0
	for _, line := range o.Lines {
		if s := linestatus.ByName(line.Status); s != nil && s.IsDone() {
			done++
		}
	}
	return done * 100 / len(o.Lines)
}

// LineByID returns the line with the given id, or nil.
func (o *Order) LineByID(id uuid.UUID) *OrderLine {
	for i := range o.Lines {
		if o.Lines[i].ID == id {
			return &o.Lines[i]
		}
	}
	return nil
}
