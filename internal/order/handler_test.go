package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"

	"github.com/comandaclub/comanda/internal/catalog"
	"github.com/comandaclub/comanda/pkg/enums/orderstatus"
	"github.com/comandaclub/comanda/pkg/event"
)

type handlerFixture struct {
	handler   *Handler
	router    chi.Router
	repo      *MockOrderRepo
	menu      *MockMenuItemRepo
	publisher *MockPublisher
	item      *catalog.MenuItem
}

func newHandlerFixture() *handlerFixture {
	repo := NewMockOrderRepo()
	menu := NewMockMenuItemRepo()
	publisher := NewMockPublisher()

	item := burgerItem()
	menu.AddItem(item)

	handler := NewHandler(HandlerDeps{
		Repo:       repo,
		Validator:  NewValidator(menu, "en"),
		Aggregator: NewAggregator(Fees{ServiceChargePct: 10, TaxPct: 15}),
		Publisher:  publisher,
	}, nil, aqm.NewNoopLogger())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return &handlerFixture{
		handler:   handler,
		router:    router,
		repo:      repo,
		menu:      menu,
		publisher: publisher,
		item:      item,
	}
}

func (f *handlerFixture) postJSON(t *testing.T, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *handlerFixture) getJSON(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to decode response envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		t.Fatalf("Failed to decode response data: %v", err)
	}
}

func TestPlaceOrder(t *testing.T) {
	f := newHandlerFixture()

	w := f.postJSON(t, "/orders", PlaceOrderRequest{
		TableRef: "T3",
		Lines: []LineRequest{
			{MenuItemID: f.item.ID, Quantity: 2},
		},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OrderID       string  `json:"order_id"`
		Status        string  `json:"status"`
		GrandTotal    float64 `json:"grand_total"`
		EstimatedTime int     `json:"estimated_time"`
	}
	decodeData(t, w, &resp)

	if resp.Status != "new" {
		t.Errorf("Expected status new, got %s", resp.Status)
	}
	// 25.00 subtotal + 10% service charge + 15% tax on both
	if !moneyEqual(resp.GrandTotal, 31.625) {
		t.Errorf("Expected grand total 31.625, got %v", resp.GrandTotal)
	}
	if resp.EstimatedTime != 15 {
		t.Errorf("Expected estimated time 15, got %d", resp.EstimatedTime)
	}

	if len(f.repo.inserted) != 1 {
		t.Fatalf("Expected 1 persisted order, got %d", len(f.repo.inserted))
	}

	if len(f.publisher.PublishedEvents) != 1 {
		t.Fatalf("Expected 1 published event, got %d", len(f.publisher.PublishedEvents))
	}
	published := f.publisher.PublishedEvents[0]
	if published.Topic != event.OrderIntakeTopic {
		t.Errorf("Expected topic %s, got %s", event.OrderIntakeTopic, published.Topic)
	}
	var evt event.OrderPlacedEvent
	if err := json.Unmarshal(published.Data, &evt); err != nil {
		t.Fatalf("Failed to decode published event: %v", err)
	}
	if evt.EventType != event.EventOrderPlaced {
		t.Errorf("Expected event type %s, got %s", event.EventOrderPlaced, evt.EventType)
	}
	if evt.Additional {
		t.Error("Placement event must not be marked additional")
	}
	if len(evt.Lines) != 1 {
		t.Errorf("Expected 1 line in event, got %d", len(evt.Lines))
	}
	if evt.Lines[0].Station != "grill" {
		t.Errorf("Expected station grill in event line, got %s", evt.Lines[0].Station)
	}
}

func TestPlaceOrderNoLines(t *testing.T) {
	f := newHandlerFixture()

	w := f.postJSON(t, "/orders", PlaceOrderRequest{TableRef: "T1"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if len(f.publisher.PublishedEvents) != 0 {
		t.Error("Expected no events for rejected order")
	}
}

func TestPlaceOrderValidationErrors(t *testing.T) {
	f := newHandlerFixture()
	f.item.SoldOut = true

	w := f.postJSON(t, "/orders", PlaceOrderRequest{
		Lines: []LineRequest{
			{MenuItemID: f.item.ID, Quantity: 1},
			{MenuItemID: aqm.GenerateNewID(), Quantity: 1},
		},
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}

	var resp struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	decodeData(t, w, &resp)

	if len(resp.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d: %v", len(resp.Errors), resp.Errors)
	}
	if resp.Message == "" {
		t.Error("Expected first error as message")
	}
	if len(f.repo.inserted) != 0 {
		t.Error("Expected no persisted order on validation failure")
	}
}

func TestPlaceOrderInvalidJSON(t *testing.T) {
	f := newHandlerFixture()

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader([]byte("{nope")))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestAppendItems(t *testing.T) {
	f := newHandlerFixture()

	w := f.postJSON(t, "/orders", PlaceOrderRequest{
		Lines: []LineRequest{{MenuItemID: f.item.ID, Quantity: 1}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Placement failed: %d", w.Code)
	}
	orderID := f.repo.inserted[0]
	f.publisher.PublishedEvents = nil

	w = f.postJSON(t, fmt.Sprintf("/orders/%s/items", orderID), AppendItemsRequest{
		Lines: []LineRequest{{MenuItemID: f.item.ID, Quantity: 2}},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OrderID    string  `json:"order_id"`
		GrandTotal float64 `json:"grand_total"`
		LinesCount int     `json:"lines_count"`
	}
	decodeData(t, w, &resp)

	if resp.LinesCount != 2 {
		t.Errorf("Expected 2 lines, got %d", resp.LinesCount)
	}

	if len(f.publisher.PublishedEvents) != 1 {
		t.Fatalf("Expected 1 append event, got %d", len(f.publisher.PublishedEvents))
	}
	var evt event.OrderPlacedEvent
	if err := json.Unmarshal(f.publisher.PublishedEvents[0].Data, &evt); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	if evt.EventType != event.EventOrderItemsAdded {
		t.Errorf("Expected event type %s, got %s", event.EventOrderItemsAdded, evt.EventType)
	}
	if !evt.Additional {
		t.Error("Append event must be marked additional")
	}
	if len(evt.Lines) != 1 {
		t.Errorf("Append event must carry only the new lines, got %d", len(evt.Lines))
	}
}

func TestAppendItemsNotFound(t *testing.T) {
	f := newHandlerFixture()

	w := f.postJSON(t, fmt.Sprintf("/orders/%s/items", aqm.GenerateNewID()), AppendItemsRequest{
		Lines: []LineRequest{{MenuItemID: f.item.ID, Quantity: 1}},
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestAppendItemsClosedOrder(t *testing.T) {
	f := newHandlerFixture()

	o := NewOrder()
	o.Status = orderstatus.Statuses.Paid.Code()
	o.BeforeCreate()
	f.repo.AddOrder(o)

	w := f.postJSON(t, fmt.Sprintf("/orders/%s/items", o.ID), AppendItemsRequest{
		Lines: []LineRequest{{MenuItemID: f.item.ID, Quantity: 1}},
	})

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for closed order, got %d", w.Code)
	}
	if len(f.publisher.PublishedEvents) != 0 {
		t.Error("Expected no events for rejected append")
	}
}

func TestGetOrder(t *testing.T) {
	f := newHandlerFixture()

	o := NewOrder()
	o.TableRef = "T7"
	o.BeforeCreate()
	f.repo.AddOrder(o)

	w := f.getJSON(t, fmt.Sprintf("/orders/%s", o.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var got Order
	decodeData(t, w, &got)
	if got.TableRef != "T7" {
		t.Errorf("Expected table ref T7, got %s", got.TableRef)
	}

	w = f.getJSON(t, fmt.Sprintf("/orders/%s", aqm.GenerateNewID()))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown order, got %d", w.Code)
	}

	w = f.getJSON(t, "/orders/not-a-uuid")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad id, got %d", w.Code)
	}
}

func TestGetOrderStatus(t *testing.T) {
	f := newHandlerFixture()

	o := NewOrder()
	o.Status = orderstatus.Statuses.Preparing.Code()
	o.Lines = []OrderLine{
		{ID: aqm.GenerateNewID(), Name: "Burger", Quantity: 1, Status: "ready"},
		{ID: aqm.GenerateNewID(), Name: "Fries", Quantity: 1, Status: "preparing"},
	}
	o.BeforeCreate()
	f.repo.AddOrder(o)

	w := f.getJSON(t, fmt.Sprintf("/orders/%s/status", o.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Status      string `json:"status"`
		StatusLabel string `json:"status_label"`
		ProgressPct int    `json:"progress_pct"`
		Lines       []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"lines"`
	}
	decodeData(t, w, &resp)

	if resp.Status != "preparing" {
		t.Errorf("Expected status preparing, got %s", resp.Status)
	}
	if resp.StatusLabel != "Preparing" {
		t.Errorf("Expected label Preparing, got %s", resp.StatusLabel)
	}
	if resp.ProgressPct != 50 {
		t.Errorf("Expected progress 50, got %d", resp.ProgressPct)
	}
	if len(resp.Lines) != 2 {
		t.Errorf("Expected 2 lines, got %d", len(resp.Lines))
	}
}

func TestListOrders(t *testing.T) {
	f := newHandlerFixture()

	a := NewOrder()
	a.TableRef = "T1"
	a.BeforeCreate()
	f.repo.AddOrder(a)

	b := NewOrder()
	b.TableRef = "T2"
	b.Status = orderstatus.Statuses.Ready.Code()
	b.BeforeCreate()
	f.repo.AddOrder(b)

	tests := []struct {
		name     string
		path     string
		expected int
	}{
		{name: "all", path: "/orders", expected: 2},
		{name: "byTable", path: "/orders?table_ref=T1", expected: 1},
		{name: "byStatus", path: "/orders?status=ready", expected: 1},
		{name: "noMatch", path: "/orders?table_ref=T9", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.getJSON(t, tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp struct {
				Orders []Order `json:"orders"`
			}
			decodeData(t, w, &resp)
			if len(resp.Orders) != tt.expected {
				t.Errorf("Expected %d orders, got %d", tt.expected, len(resp.Orders))
			}
		})
	}
}

func TestCloseOrder(t *testing.T) {
	f := newHandlerFixture()

	o := NewOrder()
	o.Status = orderstatus.Statuses.Served.Code()
	o.BeforeCreate()
	f.repo.AddOrder(o)

	w := f.postJSON(t, fmt.Sprintf("/orders/%s/close", o.ID), struct{}{})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
	}
	decodeData(t, w, &resp)
	if resp.Status != "paid" {
		t.Errorf("Expected status paid, got %s", resp.Status)
	}

	if len(f.publisher.PublishedEvents) != 1 {
		t.Fatalf("Expected 1 status change event, got %d", len(f.publisher.PublishedEvents))
	}
	if f.publisher.PublishedEvents[0].Topic != event.OrderTopic(o.ID.String()) {
		t.Errorf("Expected order status topic, got %s", f.publisher.PublishedEvents[0].Topic)
	}
}

func TestCloseOrderIllegal(t *testing.T) {
	f := newHandlerFixture()

	o := NewOrder()
	o.Status = orderstatus.Statuses.Cancelled.Code()
	o.BeforeCreate()
	f.repo.AddOrder(o)

	w := f.postJSON(t, fmt.Sprintf("/orders/%s/close", o.ID), struct{}{})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 closing a cancelled order, got %d", w.Code)
	}
	if len(f.publisher.PublishedEvents) != 0 {
		t.Error("Expected no events on rejected close")
	}
}

func TestCloseOrderBeforeService(t *testing.T) {
	f := newHandlerFixture()

	// Counter service settles up front, before the kitchen even starts.
	o := NewOrder()
	o.Type = TypeTakeaway
	o.BeforeCreate()
	f.repo.AddOrder(o)

	w := f.postJSON(t, fmt.Sprintf("/orders/%s/close", o.ID), struct{}{})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Status string `json:"status"`
	}
	decodeData(t, w, &resp)
	if resp.Status != "paid" {
		t.Errorf("Expected status paid, got %s", resp.Status)
	}
}

func TestCancelOrder(t *testing.T) {
	f := newHandlerFixture()

	o := NewOrder()
	o.BeforeCreate()
	f.repo.AddOrder(o)

	w := f.postJSON(t, fmt.Sprintf("/orders/%s/cancel", o.ID), struct{}{})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Status string `json:"status"`
	}
	decodeData(t, w, &resp)
	if resp.Status != "cancelled" {
		t.Errorf("Expected status cancelled, got %s", resp.Status)
	}

	// Cancelling again is idempotent.
	w = f.postJSON(t, fmt.Sprintf("/orders/%s/cancel", o.ID), struct{}{})
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 cancelling twice, got %d", w.Code)
	}
	decodeData(t, w, &resp)
	if resp.Status != "cancelled" {
		t.Errorf("Expected status cancelled, got %s", resp.Status)
	}
}
