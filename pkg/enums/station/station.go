package station

import "strings"

type Station struct {
	Name string
}

func (s Station) Code() string {
	return s.Name
}

func (s Station) Label() string {
	if len(s.Name) == 0 {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

type Enum struct {
	Kitchen Station
	Grill   Station
	Cold    Station
	Dessert Station
	Bar     Station
	Coffee  Station
}

var Stations = Enum{
	Kitchen: Station{Name: "kitchen"},
	Grill:   Station{Name: "grill"},
	Cold:    Station{Name: "cold"},
	Dessert: Station{Name: "dessert"},
	Bar:     Station{Name: "bar"},
	Coffee:  Station{Name: "coffee"},
}

var All = []Station{
	Stations.Kitchen,
	Stations.Grill,
	Stations.Cold,
	Stations.Dessert,
	Stations.Bar,
	Stations.Coffee,
}

// Default is the fallback for menu items with no station assignment.
var Default = Stations.Kitchen

// ByName returns the station for a given name, or nil if not found
func ByName(name string) *Station {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}
