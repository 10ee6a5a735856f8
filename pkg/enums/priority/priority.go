package priority

import "strings"

type Priority struct {
	Name string
	Rank int
}

func (p Priority) Code() string {
	return p.Name
}

func (p Priority) Label() string {
	if len(p.Name) == 0 {
		return ""
	}
	return strings.ToUpper(p.Name[:1]) + p.Name[1:]
}

type Enum struct {
	Rush   Priority
	Normal Priority
	Low    Priority
}

var Priorities = Enum{
	Rush:   Priority{Name: "rush", Rank: 2},
	Normal: Priority{Name: "normal", Rank: 1},
	Low:    Priority{Name: "low", Rank: 0},
}

var All = []Priority{
	Priorities.Rush,
	Priorities.Normal,
	Priorities.Low,
}

// ByName returns the priority for a given name, or nil if not found
func ByName(name string) *Priority {
	for _, p := range All {
		if p.Name == name {
			return &p
		}
	}
	return nil
}
