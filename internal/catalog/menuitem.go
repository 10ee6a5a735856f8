package catalog

import (
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/enums/station"
)

const CurrentMenuItemSchemaVersion = 1

const DefaultPrepTimeMinutes = 10

// MenuItem is a dish, drink or any orderable product. The catalog is
// managed externally; ordering only reads it and toggles availability.
type MenuItem struct {
	ID              uuid.UUID         `json:"id" bson:"_id"`
	ShortCode       string            `json:"short_code" bson:"short_code"`
	Name            map[string]string `json:"name" bson:"name"` // Localized names
	Price           float64           `json:"price" bson:"price"`
	DiscountedPrice *float64          `json:"discounted_price,omitempty" bson:"discounted_price,omitempty"`
	Station         string            `json:"station" bson:"station"`
	PrepTimeMinutes int               `json:"prep_time_minutes" bson:"prep_time_minutes"`
	Enabled         bool              `json:"enabled" bson:"enabled"`
	SoldOut         bool              `json:"sold_out" bson:"sold_out"`
	SchemaVersion   int               `json:"schema_version" bson:"schema_version"`
	CreatedAt       time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" bson:"updated_at"`
}

func (m *MenuItem) GetID() uuid.UUID {
	return m.ID
}

func (m *MenuItem) ResourceType() string {
	return "menu/item"
}

func (m *MenuItem) SetID(id uuid.UUID) {
	m.ID = id
}

func (m *MenuItem) EnsureID() {
	if m.ID == uuid.Nil {
		m.ID = aqm.GenerateNewID()
	}
}

func (m *MenuItem) BeforeCreate() {
	m.EnsureID()
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.SchemaVersion == 0 {
		m.SchemaVersion = CurrentMenuItemSchemaVersion
	}
	if m.Name == nil {
		m.Name = make(map[string]string)
	}
	if m.PrepTimeMinutes <= 0 {
		m.PrepTimeMinutes = DefaultPrepTimeMinutes
	}
}

func (m *MenuItem) BeforeUpdate() {
	m.UpdatedAt = time.Now()
}

// DisplayName prefers the given language and falls back to English, then to
// any available localization.
func (m *MenuItem) DisplayName(lang string) string {
	if name, ok := m.Name[lang]; ok && name != "" {
		return name
	}
	if name, ok := m.Name["en"]; ok && name != "" {
		return name
	}
	for _, name := range m.Name {
		if name != "" {
			return name
		}
	}
	return m.ShortCode
}

// EffectivePrice is the discounted price when one is set below the base.
func (m *MenuItem) EffectivePrice() float64 {
	if m.DiscountedPrice != nil && *m.DiscountedPrice >= 0 && *m.DiscountedPrice < m.Price {
		return *m.DiscountedPrice
	}
	return m.Price
}

// StationCode falls back to the default station when unassigned.
func (m *MenuItem) StationCode() string {
	if m.Station == "" {
		return station.Default.Code()
	}
	return m.Station
}

// Available reports whether the item can be ordered right now.
func (m *MenuItem) Available() bool {
	return m.Enabled && !m.SoldOut
}
