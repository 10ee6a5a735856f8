package ticketstatus

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
	Preparing Status
	Ready     Status
	Served    Status
	Cancelled Status
}

var Statuses = Enum{
	New:       Status{Name: "new"},
	Preparing: Status{Name: "preparing"},
	Ready:     Status{Name: "ready"},
	Served:    Status{Name: "served"},
	Cancelled: Status{Name: "cancelled"},
}

var All = []Status{
	Statuses.New,
	Statuses.Preparing,
	Statuses.Ready,
	Statuses.Served,
	Statuses.Cancelled,
}

// transitions is the closed set of legal ticket moves. served -> ready is
// the recall path; ready -> preparing covers a station restarting an item
// before it leaves the pass.
var transitions = map[string][]string{
	"new":       {"preparing", "ready", "cancelled"},
	"preparing": {"ready", "cancelled"},
	"ready":     {"preparing", "served", "cancelled"},
	"served":    {"ready"},
	"cancelled": {},
}

func (s Status) IsTerminal() bool {
	return s.Name == "cancelled"
}

// IsRetired reports whether the ticket left the active kitchen board.
func (s Status) IsRetired() bool {
	return s.Name == "served" || s.Name == "cancelled"
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
