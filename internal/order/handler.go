package order

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg"
	"github.com/comandaclub/comanda/pkg/enums/orderstatus"
	"github.com/comandaclub/comanda/pkg/event"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	logger     aqm.Logger
	config     *aqm.Config
	tlm        *telemetry.HTTP
	repo       OrderRepo
	validator  *Validator
	aggregator *Aggregator
	publisher  events.Publisher
	locks      *pkg.KeyedMutex
}

type HandlerDeps struct {
	Repo       OrderRepo
	Validator  *Validator
	Aggregator *Aggregator
	Publisher  events.Publisher
	Locks      *pkg.KeyedMutex
}

func NewHandler(hd HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	locks := hd.Locks
	if locks == nil {
		locks = pkg.NewKeyedMutex()
	}
	return &Handler{
		logger:     logger,
		config:     config,
		tlm:        telemetry.NewHTTP(),
		repo:       hd.Repo,
		validator:  hd.Validator,
		aggregator: hd.Aggregator,
		publisher:  hd.Publisher,
		locks:      locks,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.PlaceOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Get("/{id}/status", h.GetOrderStatus)
		r.Post("/{id}/items", h.AppendItems)
		r.Post("/{id}/close", h.CloseOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

type PlaceOrderRequest struct {
	TableRef      string        `json:"table_ref,omitempty"`
	Type          string        `json:"type,omitempty"`
	CustomerName  string        `json:"customer_name,omitempty"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	Tip           float64       `json:"tip,omitempty"`
	Discount      float64       `json:"discount,omitempty"`
	Lines         []LineRequest `json:"lines"`
}

type AppendItemsRequest struct {
	Lines []LineRequest `json:"lines"`
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PlaceOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	var req PlaceOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Lines) == 0 {
		aqm.RespondError(w, http.StatusBadRequest, "No items in order")
		return
	}

	lines, errs := h.validator.Validate(ctx, req.Lines)
	if len(errs) > 0 {
		// All-or-nothing: every problem is surfaced in one round-trip.
		aqm.Respond(w, http.StatusBadRequest, map[string]interface{}{
			"message": errs[0],
			"errors":  errs,
		}, nil)
		return
	}
	if len(lines) == 0 {
		aqm.RespondError(w, http.StatusBadRequest, "No items in order")
		return
	}

	o := h.aggregator.Build(req.TableRef, req.Type, lines)
	o.CustomerName = req.CustomerName
	o.CustomerPhone = req.CustomerPhone
	o.Notes = req.Notes
	if req.Tip > 0 || req.Discount > 0 {
		o.Tip = req.Tip
		o.Discount = req.Discount
		o.Recalculate()
	}

	if err := h.repo.Create(ctx, o); err != nil {
		log.Error("cannot create order", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not create order")
		return
	}

	h.publishOrderIntake(ctx, o, o.Lines, false)

	aqm.Respond(w, http.StatusCreated, map[string]interface{}{
		"order_id":       o.ID,
		"status":         o.Status,
		"grand_total":    o.GrandTotal,
		"estimated_time": o.EstimatedPrepTime,
	}, nil)
}

func (h *Handler) AppendItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AppendItems")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	var req AppendItemsRequest
	if !h.decode(w, r, &req) {
		return
	}

	unlock := h.locks.Lock(id)
	defer unlock()

	o, err := h.repo.Get(ctx, id)
	if err != nil {
		log.Error("error loading order", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load order")
		return
	}
	if o == nil {
		aqm.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}
	if o.CurrentStatus().IsClosed() {
		aqm.RespondError(w, http.StatusConflict, "Cannot modify this order")
		return
	}

	lines, errs := h.validator.Validate(ctx, req.Lines)
	if len(errs) > 0 {
		aqm.Respond(w, http.StatusBadRequest, map[string]interface{}{
			"message": errs[0],
			"errors":  errs,
		}, nil)
		return
	}

	if len(lines) > 0 {
		h.aggregator.Append(o, lines)
		if err := h.repo.Save(ctx, o); err != nil {
			log.Error("cannot update order", "error", err)
			aqm.RespondError(w, http.StatusInternalServerError, "Could not update order")
			return
		}
		// New lines fan out into fresh tickets; existing tickets are
		// append-only once created.
		h.publishOrderIntake(ctx, o, lines, true)
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"order_id":    o.ID,
		"grand_total": o.GrandTotal,
		"lines_count": len(o.Lines),
	}, nil)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.repo.Get(ctx, id)
	if err != nil {
		log.Error("error loading order", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load order")
		return
	}
	if o == nil {
		aqm.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}

	aqm.Respond(w, http.StatusOK, o, nil)
}

func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrderStatus")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.repo.Get(ctx, id)
	if err != nil {
		log.Error("error loading order", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load order")
		return
	}
	if o == nil {
		aqm.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}

	lines := make([]map[string]interface{}, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, map[string]interface{}{
			"name":     line.Name,
			"quantity": line.Quantity,
			"status":   line.Status,
		})
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"order_id":       o.ID,
		"status":         o.Status,
		"status_label":   o.CurrentStatus().Label(),
		"progress_pct":   o.ProgressPct(),
		"estimated_time": o.EstimatedPrepTime,
		"grand_total":    o.GrandTotal,
		"lines":          lines,
		"created_at":     o.CreatedAt,
	}, nil)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tableRef := r.URL.Query().Get("table_ref")
	status := r.URL.Query().Get("status")

	var orders []*Order
	var err error

	switch {
	case tableRef != "":
		orders, err = h.repo.ListByTable(ctx, tableRef)
	case status != "":
		orders, err = h.repo.ListByStatus(ctx, status)
	default:
		orders, err = h.repo.List(ctx)
	}

	if err != nil {
		log.Error("error retrieving orders", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not retrieve orders")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
	}, nil)
}

// CloseOrder marks the order paid. Payments themselves are settled by an
// external system; this is the cashier-facing terminal action.
func (h *Handler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	h.moveOrder(w, r, "Handler.CloseOrder", orderstatus.Statuses.Paid)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.moveOrder(w, r, "Handler.CancelOrder", orderstatus.Statuses.Cancelled)
}

func (h *Handler) moveOrder(w http.ResponseWriter, r *http.Request, span string, target orderstatus.Status) {
	w, r, finish := h.tlm.Start(w, r, span)
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	unlock := h.locks.Lock(id)
	defer unlock()

	o, err := h.repo.Get(ctx, id)
	if err != nil {
		log.Error("error loading order", "error", err, "id", id.String())
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load order")
		return
	}
	if o == nil {
		aqm.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}

	previous := o.Status
	if err := o.SetStatus(target); err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			aqm.RespondError(w, http.StatusConflict, "Cannot move order to "+target.Code())
			return
		}
		log.Error("cannot move order", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update order")
		return
	}

	if err := h.repo.Save(ctx, o); err != nil {
		log.Error("cannot update order", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update order")
		return
	}

	h.publishStatusChange(ctx, o, previous)

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"order_id": o.ID,
		"status":   o.Status,
	}, nil)
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	return true
}

// publishOrderIntake hands lines to the kitchen fan-out. Fires after the
// order is committed; a publish failure is logged, never surfaced.
func (h *Handler) publishOrderIntake(ctx context.Context, o *Order, lines []OrderLine, additional bool) {
	if h.publisher == nil {
		return
	}

	payloadLines := make([]event.OrderLinePayload, 0, len(lines))
	for _, line := range lines {
		mods := make([]event.ModifierPayload, 0, len(line.Modifiers))
		for _, m := range line.Modifiers {
			mods = append(mods, event.ModifierPayload{
				Name:            m.Name,
				AdditionalPrice: m.AdditionalPrice,
			})
		}
		payloadLines = append(payloadLines, event.OrderLinePayload{
			OrderLineID: line.ID.String(),
			MenuItemID:  line.MenuItemID.String(),
			Name:        line.Name,
			Quantity:    line.Quantity,
			Station:     line.Station,
			Modifiers:   mods,
			Notes:       line.Notes,
		})
	}

	eventType := event.EventOrderPlaced
	if additional {
		eventType = event.EventOrderItemsAdded
	}

	evt := event.OrderPlacedEvent{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		OrderID:    o.ID.String(),
		OrderType:  o.Type,
		TableRef:   o.TableRef,
		Notes:      o.Notes,
		Additional: additional,
		Lines:      payloadLines,
	}

	data, _ := json.Marshal(evt)
	if err := h.publisher.Publish(ctx, event.OrderIntakeTopic, data); err != nil {
		h.logger.Errorf("Failed to publish %s event: %v", eventType, err)
	}
}

func (h *Handler) publishStatusChange(ctx context.Context, o *Order, previousStatus string) {
	if h.publisher == nil {
		return
	}

	evt := event.OrderStatusChangedEvent{
		EventType:      event.EventOrderStatusChanged,
		OccurredAt:     time.Now().UTC(),
		OrderID:        o.ID.String(),
		TableRef:       o.TableRef,
		NewStatus:      o.Status,
		PreviousStatus: previousStatus,
		ProgressPct:    o.ProgressPct(),
	}

	data, _ := json.Marshal(evt)
	if err := h.publisher.Publish(ctx, event.OrderTopic(o.ID.String()), data); err != nil {
		h.logger.Errorf("Failed to publish order.status_changed event: %v", err)
	}
}
