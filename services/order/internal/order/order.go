package order

import (
	"math"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCanceled  = "canceled"
)

// LineItem snapshots a menu item at placement time.
type LineItem struct {
	MenuItemID uuid.UUID `json:"menuId" bson:"menu_item_id"`
	Name       string    `json:"name" bson:"name"`
	UnitPrice  float64   `json:"unitPrice" bson:"unit_price"`
	Quantity   int       `json:"quantity" bson:"quantity"`
}

func (l LineItem) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

type Order struct {
	ID          uuid.UUID  `json:"id" bson:"_id"`
	Items       []LineItem `json:"items" bson:"items"`
	TotalAmount float64    `json:"totalAmount" bson:"total_amount"`
	// CustomerID is an opaque customer identifier, usually an email.
	CustomerID string     `json:"customerId" bson:"customer_id"`
	Status     string     `json:"status" bson:"status"`
	AgentID    *uuid.UUID `json:"deliveryBoy,omitempty" bson:"agent_id,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" bson:"updated_at"`
}

func NewOrder() *Order {
	return &Order{
		ID:     aqm.GenerateNewID(),
		Items:  []LineItem{},
		Status: StatusPending,
	}
}

func (o *Order) GetID() uuid.UUID {
	return o.ID
}

func (o *Order) ResourceType() string {
	return "order"
}

func (o *Order) EnsureID() {
	if o.ID == uuid.Nil {
		o.ID = aqm.GenerateNewID()
	}
}

func (o *Order) BeforeCreate() {
	o.EnsureID()
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
}

func (o *Order) BeforeUpdate() {
	o.UpdatedAt = time.Now().UTC()
}

// Total sums the line items, rounded to cents.
func (o *Order) Total() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return math.Round(total*100) / 100
}

func (o *Order) IsTerminal() bool {
	return IsTerminalStatus(o.Status)
}

func IsTerminalStatus(status string) bool {
	return status == StatusDelivered || status == StatusCanceled
}

// CanTransition reports whether an order may move from one status to
// another. Only pending orders move, and only to delivered or canceled.
func CanTransition(from, to string) bool {
	return from == StatusPending && (to == StatusDelivered || to == StatusCanceled)
}
