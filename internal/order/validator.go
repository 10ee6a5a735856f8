package order

import (
	"context"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/catalog"
	"github.com/comandaclub/comanda/pkg/enums/linestatus"
)

// LineRequest is one requested item as submitted by a client.
type LineRequest struct {
	MenuItemID uuid.UUID  `json:"menu_item_id"`
	Quantity   int        `json:"quantity"`
	Modifiers  []Modifier `json:"modifiers,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Validator checks requested lines against the menu catalog and prices them.
type Validator struct {
	catalog  catalog.MenuItemRepo
	language string
}

func NewValidator(repo catalog.MenuItemRepo, language string) *Validator {
	if language == "" {
		language = "en"
	}
	return &Validator{catalog: repo, language: language}
}

// Validate resolves every requested line against the catalog. Entries with
// quantity < 1 are dropped silently; every other failure produces a
// human-readable error. Callers reject the whole order when any error is
// returned, so no partially billed order is ever created.
func (v *Validator) Validate(ctx context.Context, reqs []LineRequest) ([]OrderLine, []string) {
	validated := make([]OrderLine, 0, len(reqs))
	var errs []string

	for _, req := range reqs {
		if req.Quantity < 1 {
			continue
		}

		item, err := v.catalog.Get(ctx, req.MenuItemID)
		if err != nil || item == nil {
			errs = append(errs, fmt.Sprintf("item not found: %s", req.MenuItemID))
			continue
		}

		name := item.DisplayName(v.language)

		if !item.Enabled {
			errs = append(errs, fmt.Sprintf("item not available: %s", name))
			continue
		}

		if item.SoldOut {
			errs = append(errs, fmt.Sprintf("item out of stock: %s", name))
			continue
		}

		unitPrice := item.EffectivePrice()
		for _, mod := range req.Modifiers {
			unitPrice += mod.AdditionalPrice
		}

		now := time.Now()
		validated = append(validated, OrderLine{
			ID:              aqm.GenerateNewID(),
			MenuItemID:      item.ID,
			Name:            name,
			Quantity:        req.Quantity,
			Modifiers:       req.Modifiers,
			Notes:           req.Notes,
			UnitPrice:       unitPrice,
			LineTotal:       unitPrice * float64(req.Quantity),
			Station:         item.StationCode(),
			PrepTimeMinutes: item.PrepTimeMinutes,
			Status:          linestatus.Statuses.Pending.Code(),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	return validated, errs
}
