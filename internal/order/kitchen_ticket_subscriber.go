package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg"
	"github.com/comandaclub/comanda/pkg/enums/linestatus"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"github.com/comandaclub/comanda/pkg/event"
)

// KitchenTicketSubscriber listens to station-scoped ticket events, mirrors
// ticket line statuses onto the owning order's lines, and reconciles the
// overall order status after every ticket transition.
type KitchenTicketSubscriber struct {
	subscriber events.Subscriber
	repo       OrderRepo
	tickets    TicketStatusLister
	publisher  events.Publisher
	locks      *pkg.KeyedMutex
	logger     aqm.Logger
}

func NewKitchenTicketSubscriber(
	subscriber events.Subscriber,
	repo OrderRepo,
	tickets TicketStatusLister,
	publisher events.Publisher,
	locks *pkg.KeyedMutex,
	logger aqm.Logger,
) *KitchenTicketSubscriber {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if locks == nil {
		locks = pkg.NewKeyedMutex()
	}
	return &KitchenTicketSubscriber{
		subscriber: subscriber,
		repo:       repo,
		tickets:    tickets,
		publisher:  publisher,
		locks:      locks,
		logger:     logger,
	}
}

func (s *KitchenTicketSubscriber) Start(ctx context.Context) error {
	s.log().Info("starting kitchen ticket subscriber", "topic", event.KitchenTicketsWildcard)
	if s.subscriber == nil {
		return fmt.Errorf("kitchen ticket subscriber not configured")
	}
	return s.subscriber.Subscribe(ctx, event.KitchenTicketsWildcard, s.HandleEvent)
}

func (s *KitchenTicketSubscriber) HandleEvent(ctx context.Context, msg []byte) error {
	var metadata event.TicketEventMetadata
	if err := json.Unmarshal(msg, &metadata); err != nil {
		s.log().Info("invalid kitchen ticket event", "error", err)
		return nil
	}

	switch metadata.EventType {
	case event.EventTicketStatusChanged:
		return s.handleStatusChange(ctx, msg)
	case event.EventTicketCreated:
		// Ticket creation was triggered by our own intake event; the
		// order already reflects it.
		return nil
	default:
		return nil
	}
}

func (s *KitchenTicketSubscriber) handleStatusChange(ctx context.Context, msg []byte) error {
	var evt event.TicketStatusChangedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.log().Info("invalid status change event", "error", err)
		return nil
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		s.log().Info("invalid order_id in event", "order_id", evt.OrderID)
		return nil
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	if err := s.apply(ctx, orderID, &evt); errors.Is(err, ErrVersionConflict) {
		// One retry: the conflicting writer has committed, reload and
		// rederive. Reconciliation is precedence-driven, so replaying
		// on fresh state converges.
		return s.apply(ctx, orderID, &evt)
	} else if err != nil {
		return err
	}
	return nil
}

func (s *KitchenTicketSubscriber) apply(ctx context.Context, orderID uuid.UUID, evt *event.TicketStatusChangedEvent) error {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		s.log().Info("cannot load order for ticket event", "order_id", orderID, "error", err)
		return nil
	}
	if o == nil {
		s.log().Info("order not found for ticket event", "order_id", orderID)
		return nil
	}

	changed := s.mirrorLineStatuses(o, evt)

	previous := o.Status
	reconciled := s.reconcileStatus(ctx, o)
	if reconciled != "" && reconciled != o.Status {
		o.Status = reconciled
		o.BeforeUpdate()
		changed = true
	}

	if !changed {
		return nil
	}

	if err := s.repo.Save(ctx, o); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		s.log().Info("failed to save reconciled order", "order_id", orderID, "error", err)
		return err
	}

	if o.Status != previous {
		s.publishStatusChange(ctx, o, previous)
	}

	s.log().Info("order reconciled from ticket event",
		"order_id", orderID,
		"previous_status", previous,
		"new_status", o.Status,
		"ticket_id", evt.TicketID,
	)
	return nil
}

// mirrorLineStatuses copies ticket line statuses from the event snapshot
// onto the order lines. Reports whether anything changed.
func (s *KitchenTicketSubscriber) mirrorLineStatuses(o *Order, evt *event.TicketStatusChangedEvent) bool {
	changed := false
	for _, snap := range evt.Lines {
		lineID, err := uuid.Parse(snap.OrderLineID)
		if err != nil {
			continue
		}
		line := o.LineByID(lineID)
		if line == nil {
			continue
		}
		if line.Status == snap.Status {
			continue
		}
		if linestatus.ByName(snap.Status) == nil {
			continue
		}
		line.Status = snap.Status
		line.UpdatedAt = time.Now()
		changed = true
	}
	return changed
}

// reconcileStatus derives the order status from the full set of its
// tickets. Sticky statuses are never overwritten. Returns "" when the
// status must not move.
func (s *KitchenTicketSubscriber) reconcileStatus(ctx context.Context, o *Order) string {
	if o.CurrentStatus().IsSticky() {
		return ""
	}

	codes, err := s.tickets.ListStatusesByOrder(ctx, o.ID)
	if err != nil {
		s.log().Info("cannot list ticket statuses", "order_id", o.ID, "error", err)
		return ""
	}
	if len(codes) == 0 {
		return ""
	}

	statuses := make([]ticketstatus.Status, 0, len(codes))
	for _, code := range codes {
		if st := ticketstatus.ByName(code); st != nil {
			statuses = append(statuses, *st)
		}
	}

	return Reconcile(statuses).Code()
}

func (s *KitchenTicketSubscriber) publishStatusChange(ctx context.Context, o *Order, previousStatus string) {
	if s.publisher == nil {
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
	if err := s.publisher.Publish(ctx, event.OrderTopic(o.ID.String()), data); err != nil {
		s.logger.Errorf("Failed to publish order.status_changed event: %v", err)
	}
}

func (s *KitchenTicketSubscriber) log() aqm.Logger {
	return s.logger.With("component", "KitchenTicketSubscriber")
}
