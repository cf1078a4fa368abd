package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/appetiteclub/tavola/pkg"
	"github.com/appetiteclub/tavola/pkg/fault"
	"github.com/google/uuid"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDispatcherPlaceOrder(t *testing.T) {
	agent := testAgent("ravi", epoch)
	f := newDispatchFixture(agent)
	ctx := context.Background()

	result, err := f.dispatcher.PlaceOrder(ctx, pizzaOrder())
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}

	if result.TotalAmount != 25 {
		t.Errorf("TotalAmount = %v, want 25", result.TotalAmount)
	}
	if result.DeliveryBoy != agent.ID {
		t.Errorf("DeliveryBoy = %v, want %v", result.DeliveryBoy, agent.ID)
	}
	if result.Message != "Order placed and assigned to a delivery boy successfully." {
		t.Errorf("Message = %q", result.Message)
	}

	stored, err := f.orders.Get(ctx, result.OrderID)
	if err != nil || stored == nil {
		t.Fatalf("stored order = %v, %v", stored, err)
	}
	if stored.Status != StatusPending {
		t.Errorf("Status = %q, want pending", stored.Status)
	}
	if stored.CustomerID != customerEmail {
		t.Errorf("CustomerID = %q", stored.CustomerID)
	}
	if stored.AgentID == nil || *stored.AgentID != agent.ID {
		t.Errorf("AgentID = %v", stored.AgentID)
	}
	if len(stored.Items) != 2 || stored.Items[0].Name != "Margherita" || stored.Items[0].UnitPrice != 10 {
		t.Errorf("Items = %+v", stored.Items)
	}

	if f.agents.assigned(agent.ID) != 1 {
		t.Errorf("assigned orders = %d, want 1", f.agents.assigned(agent.ID))
	}
	if f.customers.orders(customerEmail) != 1 {
		t.Errorf("customer orders = %d, want 1", f.customers.orders(customerEmail))
	}

	var event pkg.OrderDispatchEvent
	if err := json.Unmarshal(f.publisher.Last(pkg.OrderDispatchTopic), &event); err != nil {
		t.Fatalf("cannot decode event: %v", err)
	}
	if event.EventType != pkg.EventOrderPlaced || event.OrderID != result.OrderID.String() || event.AgentID != agent.ID.String() {
		t.Errorf("event = %+v", event)
	}
}

func TestDispatcherPlaceOrderNormalizesInput(t *testing.T) {
	f := newDispatchFixture(testAgent("ravi", epoch))

	req := PlaceOrderRequest{
		CustomerName: "Demo@Tavola.Example",
		Items: []LineItemRequest{
			{MenuItemID: pizza.ID},
			{MenuItemID: bread.ID, Quantity: 1},
		},
	}

	result, err := f.dispatcher.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if result.TotalAmount != 15 {
		t.Errorf("TotalAmount = %v, want 15", result.TotalAmount)
	}

	stored, _ := f.orders.Get(context.Background(), result.OrderID)
	if stored.Items[0].Quantity != 1 {
		t.Errorf("Quantity = %d, want 1", stored.Items[0].Quantity)
	}
	if stored.CustomerID != customerEmail {
		t.Errorf("CustomerID = %q, want %q", stored.CustomerID, customerEmail)
	}
}

func TestDispatcherAgentCeiling(t *testing.T) {
	t.Run("eleventhOrderGoesToNextAgent", func(t *testing.T) {
		first := testAgent("ravi", epoch)
		second := testAgent("meera", epoch.Add(time.Hour))
		f := newDispatchFixture(first, second)

		for i := 0; i < DefaultAgentCapacity; i++ {
			result, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())
			if err != nil {
				t.Fatalf("order %d: PlaceOrder() error = %v", i+1, err)
			}
			if result.DeliveryBoy != first.ID {
				t.Fatalf("order %d went to %v, want oldest agent", i+1, result.DeliveryBoy)
			}
		}

		result, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())
		if err != nil {
			t.Fatalf("11th PlaceOrder() error = %v", err)
		}
		if result.DeliveryBoy != second.ID {
			t.Errorf("11th order went to %v, want %v", result.DeliveryBoy, second.ID)
		}
		if f.agents.assigned(first.ID) != DefaultAgentCapacity {
			t.Errorf("first agent holds %d orders", f.agents.assigned(first.ID))
		}
	})

	t.Run("eleventhOrderRejectedWithSingleAgent", func(t *testing.T) {
		agent := testAgent("ravi", epoch)
		f := newDispatchFixture(agent)

		for i := 0; i < DefaultAgentCapacity; i++ {
			if _, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder()); err != nil {
				t.Fatalf("order %d: PlaceOrder() error = %v", i+1, err)
			}
		}

		_, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())
		if !errors.Is(err, ErrNoAvailableAgent) {
			t.Fatalf("11th PlaceOrder() error = %v, want ErrNoAvailableAgent", err)
		}
		if err.Error() != "No available delivery boy with less than 10 orders." {
			t.Errorf("error message = %q", err.Error())
		}
		if fault.Status(err) != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", fault.Status(err))
		}
		if f.orders.count() != DefaultAgentCapacity {
			t.Errorf("stored orders = %d, want %d", f.orders.count(), DefaultAgentCapacity)
		}
	})

	t.Run("deliveredOrderFreesSlot", func(t *testing.T) {
		agent := testAgent("ravi", epoch)
		f := newDispatchFixture(agent)

		var first uuid.UUID
		for i := 0; i < DefaultAgentCapacity; i++ {
			result, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())
			if err != nil {
				t.Fatalf("order %d: PlaceOrder() error = %v", i+1, err)
			}
			if i == 0 {
				first = result.OrderID
			}
		}

		if _, _, err := f.dispatcher.ChangeStatus(context.Background(), first, ChangeStatusRequest{Status: StatusDelivered}); err != nil {
			t.Fatalf("ChangeStatus() error = %v", err)
		}
		if _, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder()); err != nil {
			t.Errorf("PlaceOrder() after delivery error = %v", err)
		}
	})

	t.Run("inactiveAgentSkipped", func(t *testing.T) {
		inactive := testAgent("ravi", epoch)
		inactive.Status = AgentInactive
		f := newDispatchFixture(inactive)

		_, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())
		if !errors.Is(err, ErrNoAvailableAgent) {
			t.Errorf("PlaceOrder() error = %v, want ErrNoAvailableAgent", err)
		}
	})
}

func TestDispatcherConcurrentPlacement(t *testing.T) {
	first := testAgent("ravi", epoch)
	second := testAgent("meera", epoch.Add(time.Hour))
	f := newDispatchFixture(first, second)

	const attempts = 30
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		rejected int
	)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, ErrNoAvailableAgent):
				rejected++
			default:
				t.Errorf("PlaceOrder() unexpected error = %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if placed != 2*DefaultAgentCapacity {
		t.Errorf("placed = %d, want %d", placed, 2*DefaultAgentCapacity)
	}
	if rejected != attempts-2*DefaultAgentCapacity {
		t.Errorf("rejected = %d, want %d", rejected, attempts-2*DefaultAgentCapacity)
	}
	for _, a := range []*Agent{first, second} {
		if n := f.agents.assigned(a.ID); n != DefaultAgentCapacity {
			t.Errorf("agent %s holds %d orders, want %d", a.FirstName, n, DefaultAgentCapacity)
		}
	}
}

func TestDispatcherPlaceOrderRejections(t *testing.T) {
	tests := []struct {
		name       string
		req        PlaceOrderRequest
		wantErr    error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "emptyRequest",
			req:        PlaceOrderRequest{},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid order data.",
		},
		{
			name:       "missingCustomer",
			req:        PlaceOrderRequest{Items: []LineItemRequest{{MenuItemID: pizza.ID}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missingItems",
			req:        PlaceOrderRequest{CustomerID: customerEmail},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negativeQuantity",
			req:        PlaceOrderRequest{CustomerID: customerEmail, Items: []LineItemRequest{{MenuItemID: pizza.ID, Quantity: -1}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknownCustomer",
			req:        PlaceOrderRequest{CustomerID: "ghost@tavola.example", Items: []LineItemRequest{{MenuItemID: pizza.ID}}},
			wantErr:    ErrCustomerNotFound,
			wantStatus: http.StatusNotFound,
			wantMsg:    "Customer not found: ghost@tavola.example",
		},
		{
			name:       "unknownItem",
			req:        PlaceOrderRequest{CustomerID: customerEmail, Items: []LineItemRequest{{MenuItemID: uuid.MustParse("9f0c2c77-7a9b-4e7f-9a7d-111111111111")}}},
			wantErr:    ErrItemNotFound,
			wantStatus: http.StatusNotFound,
			wantMsg:    "Menu item not found: 9f0c2c77-7a9b-4e7f-9a7d-111111111111",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := testAgent("ravi", epoch)
			f := newDispatchFixture(agent)

			_, err := f.dispatcher.PlaceOrder(context.Background(), tt.req)
			if err == nil {
				t.Fatal("PlaceOrder() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if got := fault.Status(err); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}

			if f.orders.count() != 0 {
				t.Errorf("stored orders = %d, want 0", f.orders.count())
			}
			if f.agents.assigned(agent.ID) != 0 {
				t.Errorf("assigned orders = %d, want 0", f.agents.assigned(agent.ID))
			}
			if f.publisher.Count(pkg.OrderDispatchTopic) != 0 {
				t.Error("event published for rejected order")
			}
		})
	}
}

func TestDispatcherPlaceOrderRollback(t *testing.T) {
	t.Run("createFailureReleasesAgent", func(t *testing.T) {
		agent := testAgent("ravi", epoch)
		f := newDispatchFixture(agent)
		f.orders.CreateFunc = func(ctx context.Context, order *Order) error {
			return errors.New("write concern timeout")
		}

		_, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())
		if fault.KindOf(err) != fault.Unexpected {
			t.Fatalf("error kind = %v, want unexpected", fault.KindOf(err))
		}
		if f.agents.assigned(agent.ID) != 0 {
			t.Errorf("assigned orders = %d, want 0", f.agents.assigned(agent.ID))
		}
	})

	t.Run("customerUpdateFailureUndoesOrder", func(t *testing.T) {
		agent := testAgent("ravi", epoch)
		f := newDispatchFixture(agent)
		f.customers.AppendOrderFunc = func(ctx context.Context, customerID, orderID uuid.UUID) error {
			return errors.New("connection reset")
		}

		_, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())
		if fault.Status(err) != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", fault.Status(err))
		}
		if f.orders.count() != 0 {
			t.Errorf("stored orders = %d, want 0", f.orders.count())
		}
		if f.agents.assigned(agent.ID) != 0 {
			t.Errorf("assigned orders = %d, want 0", f.agents.assigned(agent.ID))
		}
		if f.publisher.Count(pkg.OrderDispatchTopic) != 0 {
			t.Error("event published for rolled back order")
		}
	})
}

func TestDispatcherChangeStatus(t *testing.T) {
	t.Run("deliveredCompletesOrder", func(t *testing.T) {
		agent := testAgent("ravi", epoch)
		f := newDispatchFixture(agent)
		placed, _ := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())

		order, updated, err := f.dispatcher.ChangeStatus(context.Background(), placed.OrderID, ChangeStatusRequest{Status: StatusDelivered})
		if err != nil {
			t.Fatalf("ChangeStatus() error = %v", err)
		}
		if order.Status != StatusDelivered {
			t.Errorf("order status = %q", order.Status)
		}
		if len(updated.AssignedOrders) != 0 {
			t.Errorf("assigned orders = %v, want none", updated.AssignedOrders)
		}
		if len(updated.CompletedOrders) != 1 || updated.CompletedOrders[0] != placed.OrderID {
			t.Errorf("completed orders = %v", updated.CompletedOrders)
		}

		if f.publisher.Count(pkg.OrderDispatchTopic) != 2 {
			t.Errorf("events = %d, want 2", f.publisher.Count(pkg.OrderDispatchTopic))
		}
		var event pkg.OrderDispatchEvent
		_ = json.Unmarshal(f.publisher.Last(pkg.OrderDispatchTopic), &event)
		if event.EventType != pkg.EventOrderStatusChanged || event.PreviousStatus != StatusPending || event.Status != StatusDelivered {
			t.Errorf("event = %+v", event)
		}
	})

	t.Run("canceledReleasesAgent", func(t *testing.T) {
		agent := testAgent("ravi", epoch)
		f := newDispatchFixture(agent)
		placed, _ := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())

		order, updated, err := f.dispatcher.ChangeStatus(context.Background(), placed.OrderID, ChangeStatusRequest{NewStatus: StatusCanceled})
		if err != nil {
			t.Fatalf("ChangeStatus() error = %v", err)
		}
		if order.Status != StatusCanceled {
			t.Errorf("order status = %q", order.Status)
		}
		if len(updated.AssignedOrders) != 0 || len(updated.CompletedOrders) != 0 {
			t.Errorf("agent orders = %v / %v, want none", updated.AssignedOrders, updated.CompletedOrders)
		}
	})

	t.Run("terminalOrderRejected", func(t *testing.T) {
		f := newDispatchFixture(testAgent("ravi", epoch))
		placed, _ := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())
		if _, _, err := f.dispatcher.ChangeStatus(context.Background(), placed.OrderID, ChangeStatusRequest{Status: StatusDelivered}); err != nil {
			t.Fatalf("ChangeStatus() error = %v", err)
		}

		_, _, err := f.dispatcher.ChangeStatus(context.Background(), placed.OrderID, ChangeStatusRequest{Status: StatusCanceled})
		if !errors.Is(err, ErrOrderClosed) {
			t.Fatalf("error = %v, want ErrOrderClosed", err)
		}
		if err.Error() != "Cannot change the status of a completed or canceled order" {
			t.Errorf("message = %q", err.Error())
		}
		if fault.Status(err) != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", fault.Status(err))
		}
	})

	t.Run("shippedNotAllowed", func(t *testing.T) {
		f := newDispatchFixture(testAgent("ravi", epoch))
		placed, _ := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())

		_, _, err := f.dispatcher.ChangeStatus(context.Background(), placed.OrderID, ChangeStatusRequest{Status: StatusShipped})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("error = %v, want ErrInvalidTransition", err)
		}
		if err.Error() != "Invalid status transition" {
			t.Errorf("message = %q", err.Error())
		}

		stored, _ := f.orders.Get(context.Background(), placed.OrderID)
		if stored.Status != StatusPending {
			t.Errorf("status = %q, want pending", stored.Status)
		}
	})

	t.Run("unknownStatus", func(t *testing.T) {
		f := newDispatchFixture(testAgent("ravi", epoch))
		placed, _ := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())

		_, _, err := f.dispatcher.ChangeStatus(context.Background(), placed.OrderID, ChangeStatusRequest{Status: "lost"})
		if fault.KindOf(err) != fault.Validation {
			t.Errorf("error kind = %v, want validation", fault.KindOf(err))
		}
	})

	t.Run("unknownOrder", func(t *testing.T) {
		f := newDispatchFixture(testAgent("ravi", epoch))

		_, _, err := f.dispatcher.ChangeStatus(context.Background(), uuid.New(), ChangeStatusRequest{Status: StatusDelivered})
		if !errors.Is(err, ErrOrderNotFound) {
			t.Errorf("error = %v, want ErrOrderNotFound", err)
		}
	})

	t.Run("orderWithoutAgent", func(t *testing.T) {
		f := newDispatchFixture()
		orphan := NewOrder()
		orphan.CustomerID = customerEmail
		orphan.BeforeCreate()
		_ = f.orders.Create(context.Background(), orphan)

		_, _, err := f.dispatcher.ChangeStatus(context.Background(), orphan.ID, ChangeStatusRequest{Status: StatusDelivered})
		if !errors.Is(err, ErrAgentNotFound) {
			t.Fatalf("error = %v, want ErrAgentNotFound", err)
		}
		if fault.Status(err) != http.StatusNotFound {
			t.Errorf("status = %d, want 404", fault.Status(err))
		}
	})
}

func TestDispatcherChangeStatusAgentFailure(t *testing.T) {
	tests := []struct {
		name   string
		target string
		fail   func(m *MockAgentRepository, calls *int)
	}{
		{
			name:   "completeFails",
			target: StatusDelivered,
			fail: func(m *MockAgentRepository, calls *int) {
				m.CompleteFunc = func(ctx context.Context, agentID, orderID uuid.UUID) error {
					*calls++
					return errors.New("primary stepped down")
				}
			},
		},
		{
			name:   "releaseFails",
			target: StatusCanceled,
			fail: func(m *MockAgentRepository, calls *int) {
				m.ReleaseFunc = func(ctx context.Context, agentID, orderID uuid.UUID) error {
					*calls++
					return errors.New("primary stepped down")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := testAgent("ravi", epoch)
			f := newDispatchFixture(agent)
			placed, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder())
			if err != nil {
				t.Fatalf("PlaceOrder() error = %v", err)
			}

			var calls int
			tt.fail(f.agents, &calls)

			_, _, err = f.dispatcher.ChangeStatus(context.Background(), placed.OrderID, ChangeStatusRequest{Status: tt.target})
			if fault.Status(err) != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", fault.Status(err))
			}
			stored, _ := f.orders.Get(context.Background(), placed.OrderID)
			if stored.Status != StatusPending {
				t.Errorf("order status = %q, want %q", stored.Status, StatusPending)
			}

			f.agents.CompleteFunc = nil
			f.agents.ReleaseFunc = nil

			order, updated, err := f.dispatcher.ChangeStatus(context.Background(), placed.OrderID, ChangeStatusRequest{Status: tt.target})
			if err != nil {
				t.Fatalf("retry error = %v", err)
			}
			if order.Status != tt.target {
				t.Errorf("order status = %q, want %q", order.Status, tt.target)
			}
			if len(updated.AssignedOrders) != 0 {
				t.Errorf("assigned orders = %d, want 0", len(updated.AssignedOrders))
			}
			if calls != 1 {
				t.Errorf("failing agent calls = %d, want 1", calls)
			}
		})
	}
}

func TestDispatcherListByCustomer(t *testing.T) {
	f := newDispatchFixture(testAgent("ravi", epoch))
	for i := 0; i < 3; i++ {
		if _, err := f.dispatcher.PlaceOrder(context.Background(), pizzaOrder()); err != nil {
			t.Fatalf("PlaceOrder() error = %v", err)
		}
	}

	orders, err := f.dispatcher.ListByCustomer(context.Background(), "DEMO@tavola.example")
	if err != nil {
		t.Fatalf("ListByCustomer() error = %v", err)
	}
	if len(orders) != 3 {
		t.Errorf("orders = %d, want 3", len(orders))
	}

	_, err = f.dispatcher.ListByCustomer(context.Background(), "ghost@tavola.example")
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Errorf("unknown customer error = %v, want ErrCustomerNotFound", err)
	}

	pending, err := f.dispatcher.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("pending = %d, want 3", len(pending))
	}
}

func TestDispatcherConfiguredCapacity(t *testing.T) {
	agent := testAgent("ravi", epoch)
	repos := Repos{
		OrderRepo:    NewMockOrderRepository(),
		AgentRepo:    NewMockAgentRepository(agent),
		MenuItemRepo: NewMockMenuItemRepository(copyItem(pizza)),
		CustomerRepo: NewMockCustomerRepository(testCustomer()),
	}
	d := NewDispatcher(repos, nil, DispatcherConfig{AgentCapacity: 2}, nil)
	req := PlaceOrderRequest{CustomerID: customerEmail, Items: []LineItemRequest{{MenuItemID: pizza.ID}}}

	for i := 0; i < 2; i++ {
		if _, err := d.PlaceOrder(context.Background(), req); err != nil {
			t.Fatalf("PlaceOrder() error = %v", err)
		}
	}

	_, err := d.PlaceOrder(context.Background(), req)
	if err == nil || err.Error() != "No available delivery boy with less than 2 orders." {
		t.Errorf("error = %v", err)
	}
}
