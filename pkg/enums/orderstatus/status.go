package orderstatus

import "strings"

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "-")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	New       Status
	Confirmed Status
	Preparing Status
	Ready     Status
	Served    Status
	Completed Status
	Cancelled Status
	Paid      Status
}

var Statuses = Enum{
	New:       Status{Name: "new"},
	Confirmed: Status{Name: "confirmed"},
	Preparing: Status{Name: "preparing"},
	Ready:     Status{Name: "ready"},
	Served:    Status{Name: "served"},
	Completed: Status{Name: "completed"},
	Cancelled: Status{Name: "cancelled"},
	Paid:      Status{Name: "paid"},
}

var All = []Status{
	Statuses.New,
	Statuses.Confirmed,
	Statuses.Preparing,
	Statuses.Ready,
	Statuses.Served,
	Statuses.Completed,
	Statuses.Cancelled,
	Statuses.Paid,
}

// transitions is the closed set of legal status moves. The reconciler may
// move an order between the kitchen-driven states freely; the sticky states
// (served, completed, cancelled, paid) only move forward. Settlement may
// close an order from any live state: counter-service pays at placement,
// table service after the food lands.
var transitions = map[string][]string{
	"new":       {"confirmed", "preparing", "ready", "paid", "cancelled"},
	"confirmed": {"preparing", "ready", "paid", "cancelled"},
	"preparing": {"confirmed", "ready", "paid", "cancelled"},
	"ready":     {"confirmed", "preparing", "served", "paid", "cancelled"},
	"served":    {"completed", "paid", "cancelled"},
	"completed": {"paid"},
	"cancelled": {},
	"paid":      {},
}

// IsSticky reports whether the reconciler must never overwrite this status.
func (s Status) IsSticky() bool {
	switch s.Name {
	case "served", "completed", "cancelled", "paid":
		return true
	}
	return false
}

// IsClosed reports whether an order in this status accepts no more items.
func (s Status) IsClosed() bool {
	switch s.Name {
	case "completed", "cancelled", "paid":
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s.Name == "cancelled" || s.Name == "paid"
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s.Name] {
		if next == target.Name {
			return true
		}
	}
	return false
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}
