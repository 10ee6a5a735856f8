package kitchen

import (
	"context"

	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"
)

// MockTicketRepository is a test mock for TicketRepository
type MockTicketRepository struct {
	tickets    map[uuid.UUID]*Ticket
	order      []uuid.UUID
	CreateFunc func(ctx context.Context, t *Ticket) error
	GetFunc    func(ctx context.Context, id uuid.UUID) (*Ticket, error)
	ListFunc   func(ctx context.Context, filter TicketFilter) ([]Ticket, error)
	SaveFunc   func(ctx context.Context, t *Ticket) error
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{
		tickets: make(map[uuid.UUID]*Ticket),
	}
}

func (m *MockTicketRepository) Create(ctx context.Context, t *Ticket) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	m.tickets[t.ID] = t
	m.order = append(m.order, t.ID)
	return nil
}

func (m *MockTicketRepository) Get(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	t, exists := m.tickets[id]
	if !exists {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

func (m *MockTicketRepository) List(ctx context.Context, filter TicketFilter) ([]Ticket, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	result := make([]Ticket, 0, len(m.tickets))
	for _, id := range m.order {
		t := m.tickets[id]
		if filter.Station != nil && t.Station != *filter.Station {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.OrderID != nil && t.OrderID != *filter.OrderID {
			continue
		}
		result = append(result, *t)
	}
	return result, nil
}

func (m *MockTicketRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Ticket, error) {
	return m.List(ctx, TicketFilter{OrderID: &orderID})
}

func (m *MockTicketRepository) Save(ctx context.Context, t *Ticket) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, t)
	}
	if _, exists := m.tickets[t.ID]; !exists {
		return ErrTicketNotFound
	}
	m.tickets[t.ID] = t
	return nil
}

// AddTicket is a helper to seed the mock repository
func (m *MockTicketRepository) AddTicket(t *Ticket) {
	m.tickets[t.ID] = t
	m.order = append(m.order, t.ID)
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	PublishedEvents []PublishedEvent
	PublishFunc     func(ctx context.Context, topic string, data []byte) error
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		PublishedEvents: make([]PublishedEvent, 0),
	}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	return nil
}

// Topics returns the topics published to, in order.
func (m *MockPublisher) Topics() []string {
	topics := make([]string, 0, len(m.PublishedEvents))
	for _, e := range m.PublishedEvents {
		topics = append(topics, e.Topic)
	}
	return topics
}

// MockSubscriber is a test mock for events.Subscriber
type MockSubscriber struct {
	Handlers map[string]events.HandlerFunc
}

func NewMockSubscriber() *MockSubscriber {
	return &MockSubscriber{
		Handlers: make(map[string]events.HandlerFunc),
	}
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	m.Handlers[topic] = handler
	return nil
}

// MockStreamConsumer is a test mock for events.StreamConsumer
type MockStreamConsumer struct {
	messages            []events.StreamMessage
	FetchFunc           func(ctx context.Context, maxMessages int) ([]events.StreamMessage, error)
	SubscribeStreamFunc func(ctx context.Context, handler events.HandlerFunc) error
}

func NewMockStreamConsumer() *MockStreamConsumer {
	return &MockStreamConsumer{
		messages: make([]events.StreamMessage, 0),
	}
}

func (m *MockStreamConsumer) Fetch(ctx context.Context, maxMessages int) ([]events.StreamMessage, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, maxMessages)
	}
	return m.messages, nil
}

func (m *MockStreamConsumer) SubscribeStream(ctx context.Context, handler events.HandlerFunc) error {
	if m.SubscribeStreamFunc != nil {
		return m.SubscribeStreamFunc(ctx, handler)
	}
	return nil
}

func (m *MockStreamConsumer) AddMessage(data []byte) {
	m.messages = append(m.messages, events.StreamMessage{Data: data})
}
