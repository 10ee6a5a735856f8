package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg"
	"github.com/comandaclub/comanda/pkg/enums/linestatus"
	"github.com/comandaclub/comanda/pkg/enums/priority"
	"github.com/comandaclub/comanda/pkg/enums/station"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"github.com/comandaclub/comanda/pkg/event"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	logger    aqm.Logger
	config    *aqm.Config
	tlm       *telemetry.HTTP
	repo      TicketRepository
	cache     *TicketStateCache
	publisher events.Publisher
	notifier  events.Publisher
	locks     *pkg.KeyedMutex
}

type HandlerDeps struct {
	Repo      TicketRepository
	Cache     *TicketStateCache
	Publisher events.Publisher
	// Notifier carries role-scoped staff notifications. The ticket
	// publisher may be stream-bound to the kitchen subjects only, so
	// staff.* subjects need a plain connection. Falls back to Publisher.
	Notifier events.Publisher
	Locks    *pkg.KeyedMutex
}

func NewHandler(hd HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	locks := hd.Locks
	if locks == nil {
		locks = pkg.NewKeyedMutex()
	}
	notifier := hd.Notifier
	if notifier == nil {
		notifier = hd.Publisher
	}
	return &Handler{
		logger:    logger,
		config:    config,
		tlm:       telemetry.NewHTTP(),
		repo:      hd.Repo,
		cache:     hd.Cache,
		publisher: hd.Publisher,
		notifier:  notifier,
		locks:     locks,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", h.ListTickets)
		r.Get("/stats", h.TicketStats)
		r.Get("/{id}", h.GetTicket)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Patch("/{id}/bump", h.BumpTicket)
		r.Patch("/{id}/recall", h.RecallTicket)
		r.Patch("/{id}/priority", h.UpdatePriority)
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

// TicketView is a display-board row: the ticket plus derived fields the
// screens need on every refresh.
type TicketView struct {
	*Ticket
	ElapsedSeconds int `json:"elapsed_seconds"`
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListTickets")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	stationCode := r.URL.Query().Get("station")
	statusCode := r.URL.Query().Get("status")

	if stationCode != "" && station.ByName(stationCode) == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid station")
		return
	}
	if statusCode != "" && ticketstatus.ByName(statusCode) == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	var tickets []*Ticket
	if h.cache != nil {
		switch {
		case stationCode != "" && statusCode != "":
			tickets = h.cache.GetByStationAndStatusCode(stationCode, statusCode)
		case stationCode != "":
			tickets = h.cache.GetByStationCode(stationCode)
		case statusCode != "":
			tickets = h.cache.GetByStatusCode(statusCode)
		default:
			tickets = h.cache.GetAll()
		}
	} else {
		filter := TicketFilter{}
		if stationCode != "" {
			filter.Station = &stationCode
		}
		if statusCode != "" {
			filter.Status = &statusCode
		}
		stored, err := h.repo.List(ctx, filter)
		if err != nil {
			log.Errorf("cannot list tickets: %v", err)
			aqm.RespondError(w, http.StatusInternalServerError, "Could not list tickets")
			return
		}
		for i := range stored {
			tickets = append(tickets, &stored[i])
		}
	}

	now := time.Now()
	views := make([]TicketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, TicketView{Ticket: t, ElapsedSeconds: t.ElapsedSeconds(now)})
	}

	// Rush first, then oldest first inside the same priority band.
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].PriorityRank() != views[j].PriorityRank() {
			return views[i].PriorityRank() > views[j].PriorityRank()
		}
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"tickets": views,
	}, nil)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetTicket")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	ticket, err := h.repo.Get(ctx, id)
	if err != nil {
		log.Errorf("cannot find ticket: %v", err)
		aqm.RespondError(w, http.StatusNotFound, "Ticket not found")
		return
	}

	aqm.Respond(w, http.StatusOK, TicketView{Ticket: ticket, ElapsedSeconds: ticket.ElapsedSeconds(time.Now())}, nil)
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	LineID string `json:"line_id,omitempty"`
}

// UpdateStatus moves a ticket (or one of its lines when line_id is given)
// through the state machine. Illegal transitions are rejected, never
// written through.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateStatus")
	defer finish()

	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.LineID != "" {
		h.updateLineStatus(w, r, req)
		return
	}

	target := ticketstatus.ByName(req.Status)
	if target == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	h.mutate(w, r, func(t *Ticket, now time.Time) error {
		switch target.Code() {
		case ticketstatus.Statuses.Preparing.Code():
			return t.Start(now)
		case ticketstatus.Statuses.Ready.Code():
			return t.MarkReady(now)
		case ticketstatus.Statuses.Served.Code():
			return t.Bump(now)
		case ticketstatus.Statuses.Cancelled.Code():
			return t.Cancel(now)
		default:
			return t.setStatus(*target)
		}
	})
}

func (h *Handler) updateLineStatus(w http.ResponseWriter, r *http.Request, req UpdateStatusRequest) {
	lineID, err := uuid.Parse(req.LineID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid line ID")
		return
	}

	target := linestatus.ByName(req.Status)
	if target == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	h.mutate(w, r, func(t *Ticket, now time.Time) error {
		return t.SetLineStatus(lineID, *target, now)
	})
}

func (h *Handler) BumpTicket(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.BumpTicket")
	defer finish()

	h.mutate(w, r, func(t *Ticket, now time.Time) error {
		return t.Bump(now)
	})
}

func (h *Handler) RecallTicket(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RecallTicket")
	defer finish()

	h.mutate(w, r, func(t *Ticket, now time.Time) error {
		return t.Recall(now)
	})
}

type UpdatePriorityRequest struct {
	Priority string `json:"priority"`
}

func (h *Handler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdatePriority")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	var req UpdatePriorityRequest
	if !h.decode(w, r, &req) {
		return
	}

	level := priority.ByName(req.Priority)
	if level == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid priority")
		return
	}

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	unlock := h.locks.Lock(id)
	defer unlock()

	ticket, err := h.repo.Get(ctx, id)
	if err != nil {
		log.Errorf("cannot find ticket: %v", err)
		aqm.RespondError(w, http.StatusNotFound, "Ticket not found")
		return
	}

	if ticket.Priority == level.Code() {
		aqm.Respond(w, http.StatusOK, ticket, nil)
		return
	}

	ticket.Priority = level.Code()
	ticket.BeforeUpdate()

	if err := h.repo.Save(ctx, ticket); err != nil {
		log.Errorf("cannot update ticket: %v", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update ticket")
		return
	}

	if h.cache != nil {
		h.cache.Set(ticket)
	}

	h.publishPriorityChange(ctx, ticket)
	aqm.Respond(w, http.StatusOK, ticket, nil)
}

// TicketStats summarizes the board for the expo screen: open tickets per
// status and per station.
func (h *Handler) TicketStats(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.TicketStats")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	var tickets []*Ticket
	if h.cache != nil {
		tickets = h.cache.GetAll()
	} else {
		stored, err := h.repo.List(ctx, TicketFilter{})
		if err != nil {
			log.Errorf("cannot list tickets: %v", err)
			aqm.RespondError(w, http.StatusInternalServerError, "Could not compute stats")
			return
		}
		for i := range stored {
			tickets = append(tickets, &stored[i])
		}
	}

	byStatus := make(map[string]int)
	byStation := make(map[string]int)
	rush := 0
	for _, t := range tickets {
		byStatus[t.Status]++
		byStation[t.Station]++
		if t.Priority == priority.Priorities.Rush.Code() {
			rush++
		}
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"total":      len(tickets),
		"rush":       rush,
		"by_status":  byStatus,
		"by_station": byStation,
	}, nil)
}

// mutate runs the load / copy-mutate / versioned-save cycle under the
// ticket's keyed lock and publishes the resulting status change.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(*Ticket, time.Time) error) {
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	unlock := h.locks.Lock(id)
	defer unlock()

	ticket, err := h.repo.Get(ctx, id)
	if err != nil {
		log.Errorf("cannot find ticket: %v", err)
		aqm.RespondError(w, http.StatusNotFound, "Ticket not found")
		return
	}

	previousStatus := ticket.Status
	previousLines := lineStatusKey(ticket)
	if err := op(ticket, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, ErrLineNotFound):
			aqm.RespondError(w, http.StatusNotFound, "Ticket line not found")
		case errors.Is(err, ErrIllegalTransition):
			aqm.RespondError(w, http.StatusConflict, err.Error())
		default:
			log.Errorf("cannot apply transition: %v", err)
			aqm.RespondError(w, http.StatusInternalServerError, "Could not update ticket")
		}
		return
	}

	if ticket.Status == previousStatus && lineStatusKey(ticket) == previousLines {
		// Idempotent no-op (e.g. bumping a served ticket).
		aqm.Respond(w, http.StatusOK, ticket, nil)
		return
	}

	if err := h.repo.Save(ctx, ticket); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			aqm.RespondError(w, http.StatusConflict, "Ticket was modified concurrently")
			return
		}
		log.Errorf("cannot update ticket: %v", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update ticket")
		return
	}

	if h.cache != nil {
		// Served and cancelled tickets leave the board.
		if ticket.CurrentStatus().IsRetired() {
			h.cache.Remove(ticket.ID)
		} else {
			h.cache.Set(ticket)
		}
	}

	h.publishStatusChange(ctx, ticket, previousStatus)
	aqm.Respond(w, http.StatusOK, ticket, nil)
}

func lineStatusKey(t *Ticket) string {
	statuses := make([]string, 0, len(t.Lines))
	for _, line := range t.Lines {
		statuses = append(statuses, line.Status)
	}
	return strings.Join(statuses, ",")
}

func (h *Handler) ticketID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid ticket ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if len(body) == 0 {
		aqm.RespondError(w, http.StatusBadRequest, "Empty request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	return true
}

func (h *Handler) publishStatusChange(ctx context.Context, ticket *Ticket, previousStatus string) {
	eventPayload := event.TicketStatusChangedEvent{
		TicketEventMetadata: event.TicketEventMetadata{
			EventType:  event.EventTicketStatusChanged,
			OccurredAt: time.Now().UTC(),
			TicketID:   ticket.ID.String(),
			OrderID:    ticket.OrderID.String(),
			Station:    ticket.Station,
			TableRef:   ticket.TableRef,
			OrderType:  ticket.OrderType,
		},
		NewStatus:      ticket.Status,
		PreviousStatus: previousStatus,
		Lines:          ticket.LineSnapshots(),
		StartedAt:      ticket.StartedAt,
		CompletedAt:    ticket.CompletedAt,
		ServedAt:       ticket.ServedAt,
	}

	eventBytes, _ := json.Marshal(eventPayload)
	if err := h.publisher.Publish(ctx, event.StationTopic(ticket.Station), eventBytes); err != nil {
		h.logger.Errorf("Failed to publish status_changed event: %v", err)
	}

	// Waiters are paged exactly once, when the ticket first turns ready.
	if ticket.Status == ticketstatus.Statuses.Ready.Code() && previousStatus != ticket.Status {
		readyPayload := eventPayload
		readyPayload.EventType = event.EventTicketReady
		readyBytes, _ := json.Marshal(readyPayload)
		if err := h.notifier.Publish(ctx, event.RoleTopic(event.RoleWaiters), readyBytes); err != nil {
			h.logger.Errorf("Failed to publish ticket.ready notification: %v", err)
		}
	}
}

func (h *Handler) publishPriorityChange(ctx context.Context, ticket *Ticket) {
	eventPayload := event.TicketPriorityChangedEvent{
		TicketEventMetadata: event.TicketEventMetadata{
			EventType:  event.EventTicketPriorityChanged,
			OccurredAt: time.Now().UTC(),
			TicketID:   ticket.ID.String(),
			OrderID:    ticket.OrderID.String(),
			Station:    ticket.Station,
			TableRef:   ticket.TableRef,
			OrderType:  ticket.OrderType,
		},
		Priority: ticket.Priority,
	}

	eventBytes, _ := json.Marshal(eventPayload)
	if err := h.publisher.Publish(ctx, event.StationTopic(ticket.Station), eventBytes); err != nil {
		h.logger.Errorf("Failed to publish priority_changed event: %v", err)
	}
}
