package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/event"
)

// OrderSubscriber consumes order intake events and cuts them into station
// tickets. Appends arrive on the same subject with Additional set and only
// the new lines attached, so every event fans out to fresh tickets.
type OrderSubscriber struct {
	subscriber events.Subscriber
	repo       TicketRepository
	cache      *TicketStateCache
	publisher  events.Publisher
	logger     aqm.Logger
}

func NewOrderSubscriber(
	subscriber events.Subscriber,
	repo TicketRepository,
	cache *TicketStateCache,
	publisher events.Publisher,
	logger aqm.Logger,
) *OrderSubscriber {
	return &OrderSubscriber{
		subscriber: subscriber,
		repo:       repo,
		cache:      cache,
		publisher:  publisher,
		logger:     logger,
	}
}

func (s *OrderSubscriber) Start(ctx context.Context) error {
	s.logger.Info("Starting OrderSubscriber for topic: " + event.OrderIntakeTopic)

	if err := s.subscriber.Subscribe(ctx, event.OrderIntakeTopic, s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", event.OrderIntakeTopic, err)
	}

	s.logger.Info("OrderSubscriber started successfully")
	return nil
}

func (s *OrderSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.OrderPlacedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Errorf("Failed to unmarshal order event: %v", err)
		return nil
	}

	switch evt.EventType {
	case event.EventOrderPlaced, event.EventOrderItemsAdded:
		return s.handleIntake(ctx, &evt)
	default:
		s.logger.Infof("Unknown event type: %s", evt.EventType)
	}

	return nil
}

func (s *OrderSubscriber) handleIntake(ctx context.Context, evt *event.OrderPlacedEvent) error {
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		s.logger.Errorf("Invalid order_id: %v", err)
		return nil
	}

	// Placement events are fanned out at most once per order. Appends are
	// always fresh tickets, so they skip this check.
	if !evt.Additional {
		existing, err := s.repo.ListByOrder(ctx, orderID)
		if err != nil {
			s.logger.Errorf("Error checking existing tickets: %v", err)
			return err
		}
		if len(existing) > 0 {
			return nil
		}
	}

	tickets := FanOut(evt, time.Now().UTC())
	if len(tickets) == 0 {
		return nil
	}

	for _, ticket := range tickets {
		if err := s.repo.Create(ctx, ticket); err != nil {
			s.logger.Errorf("Failed to create ticket for station %s: %v", ticket.Station, err)
			return err
		}

		if s.cache != nil {
			s.cache.Set(ticket)
		}

		s.logger.Infof("Created ticket %s for order %s at station %s", ticket.ID, evt.OrderID, ticket.Station)
		s.publishCreated(ctx, ticket)
	}

	return nil
}

func (s *OrderSubscriber) publishCreated(ctx context.Context, ticket *Ticket) {
	eventPayload := event.TicketCreatedEvent{
		TicketEventMetadata: event.TicketEventMetadata{
			EventType:  event.EventTicketCreated,
			OccurredAt: time.Now().UTC(),
			TicketID:   ticket.ID.String(),
			OrderID:    ticket.OrderID.String(),
			Station:    ticket.Station,
			TableRef:   ticket.TableRef,
			OrderType:  ticket.OrderType,
		},
		Status:     ticket.Status,
		Priority:   ticket.Priority,
		Additional: ticket.Additional,
		Notes:      ticket.Notes,
		Lines:      ticket.LineSnapshots(),
	}

	eventBytes, _ := json.Marshal(eventPayload)
	if err := s.publisher.Publish(ctx, event.StationTopic(ticket.Station), eventBytes); err != nil {
		s.logger.Errorf("Failed to publish ticket.created event: %v", err)
	}
}
