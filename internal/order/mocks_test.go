package order

import (
	"context"

	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/catalog"
)

// MockOrderRepo is a test mock for OrderRepo
type MockOrderRepo struct {
	orders   map[uuid.UUID]*Order
	inserted []uuid.UUID
	GetFunc  func(ctx context.Context, id uuid.UUID) (*Order, error)
	SaveFunc func(ctx context.Context, o *Order) error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{
		orders: make(map[uuid.UUID]*Order),
	}
}

func (m *MockOrderRepo) Create(ctx context.Context, o *Order) error {
	m.orders[o.ID] = o
	m.inserted = append(m.inserted, o.ID)
	return nil
}

func (m *MockOrderRepo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	// Return a copy so callers mutate loaded state, not the store.
	clone := *o
	clone.Lines = append([]OrderLine(nil), o.Lines...)
	return &clone, nil
}

func (m *MockOrderRepo) List(ctx context.Context) ([]*Order, error) {
	result := make([]*Order, 0, len(m.orders))
	for _, id := range m.inserted {
		result = append(result, m.orders[id])
	}
	return result, nil
}

func (m *MockOrderRepo) ListByTable(ctx context.Context, tableRef string) ([]*Order, error) {
	var result []*Order
	for _, id := range m.inserted {
		if o := m.orders[id]; o.TableRef == tableRef {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *MockOrderRepo) ListByStatus(ctx context.Context, status string) ([]*Order, error) {
	var result []*Order
	for _, id := range m.inserted {
		if o := m.orders[id]; o.Status == status {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *MockOrderRepo) Save(ctx context.Context, o *Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, o)
	}
	if _, exists := m.orders[o.ID]; !exists {
		return ErrOrderNotFound
	}
	m.orders[o.ID] = o
	return nil
}

// AddOrder is a helper to seed the mock repository
func (m *MockOrderRepo) AddOrder(o *Order) {
	m.orders[o.ID] = o
	m.inserted = append(m.inserted, o.ID)
}

// MockMenuItemRepo is a test mock for catalog.MenuItemRepo
type MockMenuItemRepo struct {
	items map[uuid.UUID]*catalog.MenuItem
}

func NewMockMenuItemRepo() *MockMenuItemRepo {
	return &MockMenuItemRepo{
		items: make(map[uuid.UUID]*catalog.MenuItem),
	}
}

func (m *MockMenuItemRepo) Create(ctx context.Context, item *catalog.MenuItem) error {
	m.items[item.ID] = item
	return nil
}

func (m *MockMenuItemRepo) Get(ctx context.Context, id uuid.UUID) (*catalog.MenuItem, error) {
	return m.items[id], nil
}

func (m *MockMenuItemRepo) List(ctx context.Context) ([]*catalog.MenuItem, error) {
	result := make([]*catalog.MenuItem, 0, len(m.items))
	for _, item := range m.items {
		result = append(result, item)
	}
	return result, nil
}

func (m *MockMenuItemRepo) Save(ctx context.Context, item *catalog.MenuItem) error {
	m.items[item.ID] = item
	return nil
}

// AddItem is a helper to seed the mock catalog
func (m *MockMenuItemRepo) AddItem(item *catalog.MenuItem) {
	m.items[item.ID] = item
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	PublishedEvents []PublishedEvent
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
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	return nil
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

// MockTicketStatusLister is a test mock for TicketStatusLister
type MockTicketStatusLister struct {
	Statuses map[uuid.UUID][]string
	Err      error
}

func NewMockTicketStatusLister() *MockTicketStatusLister {
	return &MockTicketStatusLister{
		Statuses: make(map[uuid.UUID][]string),
	}
}

func (m *MockTicketStatusLister) ListStatusesByOrder(ctx context.Context, orderID uuid.UUID) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Statuses[orderID], nil
}
