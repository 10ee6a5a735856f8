package kitchen

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/event"
)

// TicketStateCache maintains an in-memory cache of kitchen tickets,
// indexed by station and status for efficient display board queries.
type TicketStateCache struct {
	mu sync.RWMutex
	// tickets indexed by ticket_id
	tickets map[uuid.UUID]*Ticket
	// index by station code -> ticket_id
	byStation map[string][]uuid.UUID
	// index by status code -> ticket_id
	byStatus map[string][]uuid.UUID

	stream events.StreamConsumer // For event replay on startup
	repo   TicketRepository      // Fallback to MongoDB if stream unavailable
	logger aqm.Logger
}

// NewTicketStateCache creates a new ticket cache.
func NewTicketStateCache(stream events.StreamConsumer, repo TicketRepository, logger aqm.Logger) *TicketStateCache {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &TicketStateCache{
		tickets:   make(map[uuid.UUID]*Ticket),
		byStation: make(map[string][]uuid.UUID),
		byStatus:  make(map[string][]uuid.UUID),
		stream:    stream,
		repo:      repo,
		logger:    logger,
	}
}

// Warm loads tickets into the cache using event replay from Stream.
// Falls back to loading from MongoDB if Stream is unavailable.
func (c *TicketStateCache) Warm(ctx context.Context) error {
	if c.stream != nil {
		if err := c.warmFromStream(ctx); err != nil {
			c.logger.Info("stream replay failed, falling back to MongoDB", "error", err)
		} else {
			c.removeRetiredTickets()
			return nil
		}
	}

	if c.repo == nil {
		c.logger.Info("neither stream nor repo configured, cache remains empty")
		return nil
	}

	return c.warmFromRepo(ctx)
}

// warmFromStream replays events from the persistent stream to rebuild cache state.
func (c *TicketStateCache) warmFromStream(ctx context.Context) error {
	// Stream implementations can panic on a half-configured connection
	defer func() {
		if r := recover(); r != nil {
			c.logger.Info("stream panic recovered, falling back to MongoDB", "panic", r)
		}
	}()

	c.logger.Info("warming cache from event stream")

	messages, err := c.stream.Fetch(ctx, 10000)
	if err != nil {
		return err
	}

	c.logger.Info("fetched events from stream", "count", len(messages))

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, msg := range messages {
		c.applyEventLocked(msg.Data)
	}

	c.logger.Info("cache warmed from stream", "tickets", len(c.tickets))
	return nil
}

// warmFromRepo loads tickets from MongoDB repository (fallback).
func (c *TicketStateCache) warmFromRepo(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Info("MongoDB panic recovered, cache will remain empty", "panic", r)
			err = nil
		}
	}()

	c.logger.Info("warming cache from MongoDB")

	tickets, dbErr := c.repo.List(ctx, TicketFilter{})
	if dbErr != nil {
		c.logger.Info("failed to warm ticket cache from MongoDB, cache will remain empty", "error", dbErr)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range tickets {
		ticket := &tickets[i]
		if ticket.CurrentStatus().IsRetired() {
			continue
		}
		c.setLocked(ticket)
	}

	c.logger.Info("cache warmed from MongoDB", "count", len(tickets))
	return nil
}

// applyEventLocked processes a single event and updates the cache.
// Must be called with c.mu locked.
func (c *TicketStateCache) applyEventLocked(data []byte) {
	var baseEvent struct {
		EventType string `json:"event_type"`
	}

	if err := json.Unmarshal(data, &baseEvent); err != nil {
		c.logger.Error("failed to unmarshal event type", "error", err)
		return
	}

	switch baseEvent.EventType {
	case event.EventTicketCreated:
		c.handleTicketCreatedLocked(data)
	case event.EventTicketStatusChanged:
		c.handleTicketStatusChangedLocked(data)
	case event.EventTicketPriorityChanged:
		c.handleTicketPriorityChangedLocked(data)
	default:
		// Silently ignore unknown event types (forward compatibility)
		return
	}
}

func (c *TicketStateCache) handleTicketCreatedLocked(data []byte) {
	var evt event.TicketCreatedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("failed to unmarshal ticket.created event", "error", err)
		return
	}

	ticketID, _ := uuid.Parse(evt.TicketID)
	orderID, _ := uuid.Parse(evt.OrderID)

	ticket := &Ticket{
		ID:         ticketID,
		OrderID:    orderID,
		Station:    evt.Station,
		TableRef:   evt.TableRef,
		OrderType:  evt.OrderType,
		Status:     evt.Status,
		Priority:   evt.Priority,
		Additional: evt.Additional,
		Notes:      evt.Notes,
		Lines:      linesFromSnapshots(evt.Lines),
		CreatedAt:  evt.OccurredAt,
		UpdatedAt:  evt.OccurredAt,
	}

	c.setLocked(ticket)
}

func (c *TicketStateCache) handleTicketStatusChangedLocked(data []byte) {
	var evt event.TicketStatusChangedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("failed to unmarshal ticket.status_changed event", "error", err)
		return
	}

	ticketID, _ := uuid.Parse(evt.TicketID)
	ticket := c.tickets[ticketID]
	if ticket == nil {
		// Create minimal entry if ticket doesn't exist
		orderID, _ := uuid.Parse(evt.OrderID)
		ticket = &Ticket{
			ID:        ticketID,
			OrderID:   orderID,
			Station:   evt.Station,
			TableRef:  evt.TableRef,
			OrderType: evt.OrderType,
			Lines:     linesFromSnapshots(evt.Lines),
			CreatedAt: evt.OccurredAt,
		}
	}

	ticket.Status = evt.NewStatus
	ticket.UpdatedAt = evt.OccurredAt
	ticket.StartedAt = evt.StartedAt
	ticket.CompletedAt = evt.CompletedAt
	ticket.ServedAt = evt.ServedAt
	mergeLineSnapshots(ticket, evt.Lines)

	c.setLocked(ticket)
}

func (c *TicketStateCache) handleTicketPriorityChangedLocked(data []byte) {
	var evt event.TicketPriorityChangedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("failed to unmarshal ticket.priority_changed event", "error", err)
		return
	}

	ticketID, _ := uuid.Parse(evt.TicketID)
	ticket := c.tickets[ticketID]
	if ticket == nil {
		return
	}

	ticket.Priority = evt.Priority
	ticket.UpdatedAt = evt.OccurredAt
	c.setLocked(ticket)
}

// removeRetiredTickets filters out served and cancelled tickets from the cache.
// This should be called after warming from stream to show only active tickets.
func (c *TicketStateCache) removeRetiredTickets() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	for id, ticket := range c.tickets {
		if ticket.CurrentStatus().IsRetired() {
			c.removeFromIndexStr(c.byStation, ticket.Station, id)
			c.removeFromIndexStr(c.byStatus, ticket.Status, id)
			delete(c.tickets, id)
			removed++
		}
	}

	c.logger.Info("removed retired tickets from cache", "count", removed)
}

// Set updates or adds a ticket to the cache.
// This should be called when handling real-time events.
func (c *TicketStateCache) Set(ticket *Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(ticket)
}

func (c *TicketStateCache) setLocked(ticket *Ticket) {
	if ticket == nil {
		return
	}

	ticketID := ticket.ID

	if old, exists := c.tickets[ticketID]; exists {
		c.removeFromIndexStr(c.byStation, old.Station, ticketID)
		c.removeFromIndexStr(c.byStatus, old.Status, ticketID)
	}

	c.tickets[ticketID] = ticket

	c.addToIndexStr(c.byStation, ticket.Station, ticketID)
	c.addToIndexStr(c.byStatus, ticket.Status, ticketID)
}

// Get retrieves a ticket by ID.
func (c *TicketStateCache) Get(ticketID uuid.UUID) *Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickets[ticketID]
}

// GetByStationCode returns all tickets for a given station code.
func (c *TicketStateCache) GetByStationCode(station string) []*Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ticketIDs := c.byStation[station]
	result := make([]*Ticket, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		if ticket := c.tickets[id]; ticket != nil {
			result = append(result, ticket)
		}
	}
	return result
}

// GetByStatusCode returns all tickets for a given status code.
func (c *TicketStateCache) GetByStatusCode(status string) []*Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ticketIDs := c.byStatus[status]
	result := make([]*Ticket, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		if ticket := c.tickets[id]; ticket != nil {
			result = append(result, ticket)
		}
	}
	return result
}

// GetByStationAndStatusCode returns tickets filtered by both station and status code.
func (c *TicketStateCache) GetByStationAndStatusCode(station string, status string) []*Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ticketIDs := c.byStation[station]
	result := make([]*Ticket, 0)
	for _, id := range ticketIDs {
		if ticket := c.tickets[id]; ticket != nil && ticket.Status == status {
			result = append(result, ticket)
		}
	}
	return result
}

// GetAll returns all cached tickets.
func (c *TicketStateCache) GetAll() []*Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Ticket, 0, len(c.tickets))
	for _, ticket := range c.tickets {
		result = append(result, ticket)
	}
	return result
}

// Remove deletes a ticket from the cache.
func (c *TicketStateCache) Remove(ticketID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ticket := c.tickets[ticketID]
	if ticket == nil {
		return
	}

	c.removeFromIndexStr(c.byStation, ticket.Station, ticketID)
	c.removeFromIndexStr(c.byStatus, ticket.Status, ticketID)
	delete(c.tickets, ticketID)
}

// Helper functions for index management

func (c *TicketStateCache) addToIndexStr(index map[string][]uuid.UUID, key string, ticketID uuid.UUID) {
	index[key] = append(index[key], ticketID)
}

func (c *TicketStateCache) removeFromIndexStr(index map[string][]uuid.UUID, key string, ticketID uuid.UUID) {
	ids := index[key]
	for i, id := range ids {
		if id == ticketID {
			index[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Count returns the number of tickets in the cache
func (c *TicketStateCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tickets)
}

// StatusCounts returns the number of cached tickets per status code.
func (c *TicketStateCache) StatusCounts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[string]int, len(c.byStatus))
	for status, ids := range c.byStatus {
		if len(ids) > 0 {
			counts[status] = len(ids)
		}
	}
	return counts
}

func linesFromSnapshots(snaps []event.TicketLineSnapshot) []TicketLine {
	lines := make([]TicketLine, 0, len(snaps))
	for _, snap := range snaps {
		lineID, _ := uuid.Parse(snap.TicketLineID)
		orderLineID, _ := uuid.Parse(snap.OrderLineID)
		lines = append(lines, TicketLine{
			ID:          lineID,
			OrderLineID: orderLineID,
			Name:        snap.Name,
			Quantity:    snap.Quantity,
			Status:      snap.Status,
		})
	}
	return lines
}

func mergeLineSnapshots(ticket *Ticket, snaps []event.TicketLineSnapshot) {
	for _, snap := range snaps {
		lineID, err := uuid.Parse(snap.TicketLineID)
		if err != nil {
			continue
		}
		if line := ticket.LineByID(lineID); line != nil {
			line.Status = snap.Status
		}
	}
}
