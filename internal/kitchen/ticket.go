package kitchen

import (
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/enums/linestatus"
	"github.com/comandaclub/comanda/pkg/enums/priority"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"github.com/comandaclub/comanda/pkg/event"
)

const CurrentTicketSchemaVersion = 1

// TicketLine is one order line's share of a station ticket. It tracks its
// own lifecycle independently of the other lines on the ticket.
type TicketLine struct {
	ID          uuid.UUID  `json:"id" bson:"id"`
	OrderLineID uuid.UUID  `json:"order_line_id" bson:"order_line_id"`
	MenuItemID  uuid.UUID  `json:"menu_item_id" bson:"menu_item_id"`
	Name        string     `json:"name" bson:"name"`
	Quantity    int        `json:"quantity" bson:"quantity"`
	Modifiers   []string   `json:"modifiers,omitempty" bson:"modifiers,omitempty"`
	Notes       string     `json:"notes,omitempty" bson:"notes,omitempty"`
	Status      string     `json:"status" bson:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

func (l *TicketLine) currentStatus() linestatus.Status {
	if s := linestatus.ByName(l.Status); s != nil {
		return *s
	}
	return linestatus.Statuses.Pending
}

// Ticket is a station-scoped work order cut from one customer order.
// Membership is immutable after creation; later appends to the order
// produce fresh tickets marked Additional.
type Ticket struct {
	ID         uuid.UUID    `json:"id" bson:"_id"`
	OrderID    uuid.UUID    `json:"order_id" bson:"order_id"`
	Station    string       `json:"station" bson:"station"`
	TableRef   string       `json:"table_ref,omitempty" bson:"table_ref,omitempty"`
	OrderType  string       `json:"order_type,omitempty" bson:"order_type,omitempty"`
	Status     string       `json:"status" bson:"status"`
	Priority   string       `json:"priority" bson:"priority"`
	Additional bool         `json:"additional" bson:"additional"`
	Notes      string       `json:"notes,omitempty" bson:"notes,omitempty"`
	Lines      []TicketLine `json:"lines" bson:"lines"`

	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	ServedAt    *time.Time `json:"served_at,omitempty" bson:"served_at,omitempty"`

	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
	ModelVersion int       `json:"model_version" bson:"model_version"`
}

func (t *Ticket) GetID() uuid.UUID {
	return t.ID
}

func (t *Ticket) ResourceType() string {
	return "ticket"
}

func (t *Ticket) SetID(id uuid.UUID) {
	t.ID = id
}

func (t *Ticket) EnsureID() {
	if t.ID == uuid.Nil {
		t.ID = aqm.GenerateNewID()
	}
}

func (t *Ticket) BeforeCreate() {
	t.EnsureID()
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.ModelVersion == 0 {
		t.ModelVersion = CurrentTicketSchemaVersion
	}
	if t.Status == "" {
		t.Status = ticketstatus.Statuses.New.Code()
	}
	if t.Priority == "" {
		t.Priority = priority.Priorities.Normal.Code()
	}
}

func (t *Ticket) BeforeUpdate() {
	t.UpdatedAt = time.Now()
}

// CurrentStatus resolves the stored status code to its enum value.
func (t *Ticket) CurrentStatus() ticketstatus.Status {
	if s := ticketstatus.ByName(t.Status); s != nil {
		return *s
	}
	return ticketstatus.Statuses.New
}

// PriorityRank orders tickets rush-first on the kitchen display.
func (t *Ticket) PriorityRank() int {
	if p := priority.ByName(t.Priority); p != nil {
		return p.Rank
	}
	return priority.Priorities.Normal.Rank
}

// ElapsedSeconds is the time spent in preparation so far, for the KDS.
func (t *Ticket) ElapsedSeconds(now time.Time) int {
	if t.Status != ticketstatus.Statuses.Preparing.Code() || t.StartedAt == nil {
		return 0
	}
	return int(now.Sub(*t.StartedAt).Seconds())
}

// AllLinesReady reports whether every non-cancelled line reached ready or
// beyond. A ticket with only cancelled lines is not promotable.
func (t *Ticket) AllLinesReady() bool {
	active := 0
	for _, line := range t.Lines {
		switch line.Status {
		case linestatus.Statuses.Cancelled.Code():
			continue
		case linestatus.Statuses.Ready.Code(), linestatus.Statuses.Served.Code():
			active++
		default:
			return false
		}
	}
	return active > 0
}

// LineByID returns the line with the given id, or nil.
func (t *Ticket) LineByID(id uuid.UUID) *TicketLine {
	for i := range t.Lines {
		if t.Lines[i].ID == id {
			return &t.Lines[i]
		}
	}
	return nil
}

func (t *Ticket) setStatus(target ticketstatus.Status) error {
	current := t.CurrentStatus()
	if !current.CanTransitionTo(target) {
		return fmt.Errorf("ticket %s: illegal transition %s -> %s: %w", t.ID, current.Code(), target.Code(), ErrIllegalTransition)
	}
	t.Status = target.Code()
	t.UpdatedAt = time.Now()
	return nil
}

// Start moves the ticket into preparation and advances every pending line
// with it, stamping start times.
func (t *Ticket) Start(now time.Time) error {
	if err := t.setStatus(ticketstatus.Statuses.Preparing); err != nil {
		return err
	}
	t.StartedAt = &now
	for i := range t.Lines {
		if t.Lines[i].Status == linestatus.Statuses.Pending.Code() {
			t.Lines[i].Status = linestatus.Statuses.Preparing.Code()
			started := now
			t.Lines[i].StartedAt = &started
		}
	}
	return nil
}

// MarkReady moves the ticket to ready and pulls every unfinished line with
// it, stamping completion times.
func (t *Ticket) MarkReady(now time.Time) error {
	if err := t.setStatus(ticketstatus.Statuses.Ready); err != nil {
		return err
	}
	t.CompletedAt = &now
	for i := range t.Lines {
		switch t.Lines[i].Status {
		case linestatus.Statuses.Ready.Code(), linestatus.Statuses.Served.Code(), linestatus.Statuses.Cancelled.Code():
			continue
		}
		t.Lines[i].Status = linestatus.Statuses.Ready.Code()
		completed := now
		t.Lines[i].CompletedAt = &completed
	}
	return nil
}

// SetLineStatus transitions a single line. The ticket itself is promoted to
// ready only when the last line reaches ready; a single ready line never
// advances the ticket on its own.
func (t *Ticket) SetLineStatus(lineID uuid.UUID, target linestatus.Status, now time.Time) error {
	line := t.LineByID(lineID)
	if line == nil {
		return fmt.Errorf("ticket %s: line %s: %w", t.ID, lineID, ErrLineNotFound)
	}

	current := line.currentStatus()
	if current.Code() == target.Code() {
		return nil
	}
	if !current.CanTransitionTo(target) {
		return fmt.Errorf("ticket %s line %s: illegal transition %s -> %s: %w", t.ID, lineID, current.Code(), target.Code(), ErrIllegalTransition)
	}

	line.Status = target.Code()
	switch target.Code() {
	case linestatus.Statuses.Preparing.Code():
		started := now
		line.StartedAt = &started
	case linestatus.Statuses.Ready.Code():
		completed := now
		line.CompletedAt = &completed
	}
	t.UpdatedAt = now

	if t.AllLinesReady() && t.CurrentStatus().CanTransitionTo(ticketstatus.Statuses.Ready) {
		t.Status = ticketstatus.Statuses.Ready.Code()
		completed := now
		t.CompletedAt = &completed
	}
	return nil
}

// Bump marks the ticket and every line served; the terminal operator-facing
// action on the KDS. Bumping an already-served ticket is a no-op.
func (t *Ticket) Bump(now time.Time) error {
	if t.Status == ticketstatus.Statuses.Served.Code() {
		return nil
	}
	current := t.CurrentStatus()
	if current.Code() == ticketstatus.Statuses.Cancelled.Code() {
		return fmt.Errorf("ticket %s: illegal transition %s -> served: %w", t.ID, current.Code(), ErrIllegalTransition)
	}

	t.Status = ticketstatus.Statuses.Served.Code()
	t.ServedAt = &now
	t.UpdatedAt = now
	for i := range t.Lines {
		if t.Lines[i].Status == linestatus.Statuses.Cancelled.Code() {
			continue
		}
		t.Lines[i].Status = linestatus.Statuses.Served.Code()
	}
	return nil
}

// Recall pulls a served (or ready) ticket back to ready, clearing the
// served timestamp and resetting every non-cancelled line to ready. Used
// when the kitchen must redo an item after it left the pass.
func (t *Ticket) Recall(now time.Time) error {
	switch t.Status {
	case ticketstatus.Statuses.Served.Code(), ticketstatus.Statuses.Ready.Code():
	default:
		return fmt.Errorf("ticket %s: cannot recall from %s: %w", t.ID, t.Status, ErrIllegalTransition)
	}

	t.Status = ticketstatus.Statuses.Ready.Code()
	t.ServedAt = nil
	t.UpdatedAt = now
	for i := range t.Lines {
		if t.Lines[i].Status == linestatus.Statuses.Cancelled.Code() {
			continue
		}
		t.Lines[i].Status = linestatus.Statuses.Ready.Code()
	}
	return nil
}

// Cancel retires the ticket from any non-terminal state.
func (t *Ticket) Cancel(now time.Time) error {
	switch t.Status {
	case ticketstatus.Statuses.Served.Code(), ticketstatus.Statuses.Cancelled.Code():
		return fmt.Errorf("ticket %s: cannot cancel from %s: %w", t.ID, t.Status, ErrIllegalTransition)
	}

	t.Status = ticketstatus.Statuses.Cancelled.Code()
	t.UpdatedAt = now
	for i := range t.Lines {
		if t.Lines[i].currentStatus().IsTerminal() {
			continue
		}
		if t.Lines[i].Status == linestatus.Statuses.Served.Code() {
			continue
		}
		t.Lines[i].Status = linestatus.Statuses.Cancelled.Code()
	}
	return nil
}

// LineSnapshots captures the current line states for event payloads.
func (t *Ticket) LineSnapshots() []event.TicketLineSnapshot {
	snaps := make([]event.TicketLineSnapshot, 0, len(t.Lines))
	for _, line := range t.Lines {
		snaps = append(snaps, event.TicketLineSnapshot{
			TicketLineID: line.ID.String(),
			OrderLineID:  line.OrderLineID.String(),
			Name:         line.Name,
			Quantity:     line.Quantity,
			Status:       line.Status,
		})
	}
	return snaps
}
