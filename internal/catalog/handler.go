package catalog

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

// Handler exposes the read side of the menu catalog plus the availability
// toggle. Catalog management proper lives outside this service.
type Handler struct {
	repo   MenuItemRepo
	logger aqm.Logger
	config *aqm.Config
	tlm    *telemetry.HTTP
}

func NewHandler(repo MenuItemRepo, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		repo:   repo,
		logger: logger,
		config: config,
		tlm:    telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/menu/items", func(r chi.Router) {
		r.Get("/", h.ListMenuItems)
		r.Get("/{id}", h.GetMenuItem)
		r.Patch("/{id}/availability", h.UpdateAvailability)
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

func (h *Handler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListMenuItems")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	items, err := h.repo.List(ctx)
	if err != nil {
		log.Error("cannot list menu items", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not list menu items")
		return
	}

	if available := r.URL.Query().Get("available"); available == "true" {
		filtered := make([]*MenuItem, 0, len(items))
		for _, item := range items {
			if item.Available() {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"items": items,
	}, nil)
}

func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetMenuItem")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid menu item ID")
		return
	}

	item, err := h.repo.Get(ctx, id)
	if err != nil {
		log.Error("cannot load menu item", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load menu item")
		return
	}
	if item == nil {
		aqm.RespondError(w, http.StatusNotFound, "Menu item not found")
		return
	}

	aqm.Respond(w, http.StatusOK, item, nil)
}

func (h *Handler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateAvailability")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid menu item ID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	var payload struct {
		SoldOut *bool `json:"sold_out"`
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if payload.SoldOut == nil && payload.Enabled == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	item, err := h.repo.Get(ctx, id)
	if err != nil {
		log.Error("cannot load menu item", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load menu item")
		return
	}
	if item == nil {
		aqm.RespondError(w, http.StatusNotFound, "Menu item not found")
		return
	}

	if payload.SoldOut != nil {
		item.SoldOut = *payload.SoldOut
	}
	if payload.Enabled != nil {
		item.Enabled = *payload.Enabled
	}
	item.BeforeUpdate()

	if err := h.repo.Save(ctx, item); err != nil {
		log.Error("cannot update menu item", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update menu item")
		return
	}

	aqm.Respond(w, http.StatusOK, item, nil)
}
