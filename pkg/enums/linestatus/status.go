package linestatus

import "strings"

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	if len(s.Name) == 0 {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

type Enum struct {
	Pending   Status
	Preparing Status
	Ready     Status
	Served    Status
	Cancelled Status
}

var Statuses = Enum{
	Pending:   Status{Name: "pending"},
	Preparing: Status{Name: "preparing"},
	Ready:     Status{Name: "ready"},
	Served:    Status{Name: "served"},
	Cancelled: Status{Name: "cancelled"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.Preparing,
	Statuses.Ready,
	Statuses.Served,
	Statuses.Cancelled,
}

// served -> ready is the recall path mirrored from the owning ticket.
var transitions = map[string][]string{
	"pending":   {"preparing", "ready", "cancelled"},
	"preparing": {"ready", "cancelled"},
	"ready":     {"preparing", "served", "cancelled"},
	"served":    {"ready"},
	"cancelled": {},
}

func (s Status) IsTerminal() bool {
	return s.Name == "cancelled"
}

// IsDone reports whether the line counts toward order progress.
func (s Status) IsDone() bool {
	return s.Name == "ready" || s.Name == "served"
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
