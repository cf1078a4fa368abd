package order

import (
	"context"

	"github.com/google/uuid"
)

type OrderFilter struct {
	Status     string
	CustomerID string
}

type OrderRepo interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*Order, error)
	// UpdateStatus moves the order to status only if it is still in from.
	// It reports whether the update applied.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AgentRepo interface {
	Create(ctx context.Context, agent *Agent) error
	Get(ctx context.Context, id uuid.UUID) (*Agent, error)
	List(ctx context.Context) ([]*Agent, error)
	// Claim atomically appends orderID to the assigned orders of the oldest
	// available agent holding fewer than capacity orders. It returns nil
	// when no agent qualifies.
	Claim(ctx context.Context, orderID uuid.UUID, capacity int) (*Agent, error)
	// Release removes orderID from the agent's assigned orders.
	Release(ctx context.Context, agentID, orderID uuid.UUID) error
	// Complete moves orderID from assigned to completed orders.
	Complete(ctx context.Context, agentID, orderID uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type MenuItemRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*MenuItem, error)
	List(ctx context.Context) ([]*MenuItem, error)
	// Save inserts or replaces the item.
	Save(ctx context.Context, item *MenuItem) error
}

type CustomerRepo interface {
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	AppendOrder(ctx context.Context, customerID, orderID uuid.UUID) error
	// Save inserts or replaces the customer.
	Save(ctx context.Context, customer *Customer) error
}

type Repos struct {
	OrderRepo    OrderRepo
	AgentRepo    AgentRepo
	MenuItemRepo MenuItemRepo
	CustomerRepo CustomerRepo
}
