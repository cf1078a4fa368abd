package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/tavola/pkg"
	"github.com/appetiteclub/tavola/pkg/fault"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"
)

const eventSource = "order-service"

type DispatcherConfig struct {
	// AgentCapacity is the number of open orders an agent may hold.
	AgentCapacity int
	MenuTTL       time.Duration
}

// Dispatcher places orders and assigns them to delivery agents. Agent
// selection is a single conditional update on the agent document, so two
// orders racing for the last slot of an agent cannot both get it.
type Dispatcher struct {
	orders    OrderRepo
	agents    AgentRepo
	customers CustomerRepo
	menu      *MenuCache
	menuRepo  MenuItemRepo
	capacity  int
	publisher events.Publisher
	logger    aqm.Logger
}

func NewDispatcher(repos Repos, publisher events.Publisher, cfg DispatcherConfig, logger aqm.Logger) *Dispatcher {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	capacity := cfg.AgentCapacity
	if capacity <= 0 {
		capacity = DefaultAgentCapacity
	}
	return &Dispatcher{
		orders:    repos.OrderRepo,
		agents:    repos.AgentRepo,
		customers: repos.CustomerRepo,
		menu:      NewMenuCache(repos.MenuItemRepo, cfg.MenuTTL, logger),
		menuRepo:  repos.MenuItemRepo,
		capacity:  capacity,
		publisher: publisher,
		logger:    logger,
	}
}

func (d *Dispatcher) Capacity() int {
	return d.capacity
}

func (d *Dispatcher) Menu() *MenuCache {
	return d.menu
}

// PlaceOrder prices the items, resolves the customer, claims an agent slot
// and stores the order. Nothing is written until the customer and every
// item are known.
func (d *Dispatcher) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlacementResult, error) {
	if errs := ValidatePlaceOrder(ctx, req); len(errs) > 0 {
		return nil, fault.Validationf("%s", strings.Join(errs, "; "))
	}

	order := NewOrder()
	order.CustomerID = strings.ToLower(req.Customer())

	for _, line := range req.Items {
		item, err := d.menu.Ensure(ctx, line.MenuItemID)
		if err != nil {
			return nil, fault.Unexpectedf(err, "cannot load menu item")
		}
		if item == nil {
			return nil, ErrItemNotFound.With(fmt.Sprintf("Menu item not found: %s", line.MenuItemID))
		}

		quantity := line.Quantity
		if quantity == 0 {
			quantity = 1
		}
		order.Items = append(order.Items, LineItem{
			MenuItemID: item.ID,
			Name:       item.Name,
			UnitPrice:  item.Price,
			Quantity:   quantity,
		})
	}
	order.TotalAmount = order.Total()

	customer, err := d.customers.GetByEmail(ctx, order.CustomerID)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot load customer")
	}
	if customer == nil {
		return nil, ErrCustomerNotFound.With(fmt.Sprintf("Customer not found: %s", order.CustomerID))
	}

	agent, err := d.agents.Claim(ctx, order.ID, d.capacity)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot assign delivery agent")
	}
	if agent == nil {
		return nil, ErrNoAvailableAgent.With(fmt.Sprintf("No available delivery boy with less than %d orders.", d.capacity))
	}
	agentID := agent.ID
	order.AgentID = &agentID
	order.BeforeCreate()

	if err := d.orders.Create(ctx, order); err != nil {
		d.release(ctx, agentID, order.ID)
		return nil, fault.Unexpectedf(err, "cannot create order")
	}

	if err := d.customers.AppendOrder(ctx, customer.ID, order.ID); err != nil {
		d.release(ctx, agentID, order.ID)
		if derr := d.orders.Delete(ctx, order.ID); derr != nil {
			d.logger.Error("cannot roll back order", "error", derr, "order_id", order.ID.String())
		}
		return nil, fault.Unexpectedf(err, "cannot record customer order")
	}

	d.publish(ctx, pkg.EventOrderPlaced, order, "")

	return &PlacementResult{
		OrderID:     order.ID,
		TotalAmount: order.TotalAmount,
		DeliveryBoy: agentID,
		Message:     "Order placed and assigned to a delivery boy successfully.",
	}, nil
}

// ChangeStatus settles a pending order as delivered or canceled and updates
// the agent's order sets to match.
func (d *Dispatcher) ChangeStatus(ctx context.Context, id uuid.UUID, req ChangeStatusRequest) (*Order, *Agent, error) {
	if errs := ValidateChangeStatus(ctx, req); len(errs) > 0 {
		return nil, nil, fault.Validationf("%s", strings.Join(errs, "; "))
	}
	target := req.Target()

	order, err := d.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if order.AgentID == nil {
		return nil, nil, ErrAgentNotFound
	}
	agent, err := d.agents.Get(ctx, *order.AgentID)
	if err != nil {
		return nil, nil, fault.Unexpectedf(err, "cannot load delivery agent")
	}
	if agent == nil {
		return nil, nil, ErrAgentNotFound
	}

	if order.IsTerminal() {
		return nil, nil, ErrOrderClosed
	}
	if !CanTransition(order.Status, target) {
		return nil, nil, ErrInvalidTransition
	}

	applied, err := d.orders.UpdateStatus(ctx, order.ID, order.Status, target)
	if err != nil {
		return nil, nil, fault.Unexpectedf(err, "cannot update order status")
	}
	if !applied {
		return nil, nil, ErrOrderClosed
	}
	previous := order.Status
	order.Status = target
	order.BeforeUpdate()

	switch target {
	case StatusDelivered:
		err = d.agents.Complete(ctx, agent.ID, order.ID)
	case StatusCanceled:
		err = d.agents.Release(ctx, agent.ID, order.ID)
	}
	if err != nil {
		if _, rerr := d.orders.UpdateStatus(ctx, order.ID, target, previous); rerr != nil {
			d.logger.Error("cannot restore order status", "error", rerr, "order_id", order.ID.String(), "status", previous)
		}
		return nil, nil, fault.Unexpectedf(err, "cannot update delivery agent")
	}

	agent, err = d.agents.Get(ctx, agent.ID)
	if err != nil {
		return nil, nil, fault.Unexpectedf(err, "cannot load delivery agent")
	}

	d.publish(ctx, pkg.EventOrderStatusChanged, order, previous)
	return order, agent, nil
}

func (d *Dispatcher) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := d.orders.Get(ctx, id)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot load order")
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (d *Dispatcher) List(ctx context.Context) ([]*Order, error) {
	return d.list(ctx, OrderFilter{})
}

func (d *Dispatcher) ListPending(ctx context.Context) ([]*Order, error) {
	return d.list(ctx, OrderFilter{Status: StatusPending})
}

// ListByCustomer returns the orders placed under a customer identifier.
// Identifiers compare case insensitively.
func (d *Dispatcher) ListByCustomer(ctx context.Context, customerID string) ([]*Order, error) {
	customerID = strings.ToLower(strings.TrimSpace(customerID))
	customer, err := d.customers.GetByEmail(ctx, customerID)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot load customer")
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}
	return d.list(ctx, OrderFilter{CustomerID: customerID})
}

func (d *Dispatcher) MenuItems(ctx context.Context) ([]*MenuItem, error) {
	if d.menuRepo == nil {
		return []*MenuItem{}, nil
	}
	items, err := d.menuRepo.List(ctx)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot list menu items")
	}
	for _, item := range items {
		d.menu.Set(item)
	}
	return items, nil
}

func (d *Dispatcher) list(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	orders, err := d.orders.List(ctx, filter)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot list orders")
	}
	return orders, nil
}

func (d *Dispatcher) release(ctx context.Context, agentID, orderID uuid.UUID) {
	if err := d.agents.Release(ctx, agentID, orderID); err != nil {
		d.logger.Error("cannot release agent slot", "error", err, "agent_id", agentID.String(), "order_id", orderID.String())
	}
}

func (d *Dispatcher) publish(ctx context.Context, eventType string, order *Order, previousStatus string) {
	if d.publisher == nil || order == nil {
		return
	}

	event := pkg.OrderDispatchEvent{
		EventType:      eventType,
		OrderID:        order.ID.String(),
		CustomerID:     order.CustomerID,
		TotalAmount:    order.TotalAmount,
		Status:         order.Status,
		PreviousStatus: previousStatus,
		OccurredAt:     time.Now().UTC(),
	}
	if order.AgentID != nil {
		event.AgentID = order.AgentID.String()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("cannot marshal order event", "error", err, "order_id", order.ID.String())
		return
	}

	if err := d.publisher.Publish(ctx, pkg.OrderDispatchTopic, payload); err != nil {
		d.logger.Error("cannot publish order event", "error", err, "order_id", order.ID.String())
	}
}
