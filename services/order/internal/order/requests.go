package order

import (
	"strings"

	"github.com/google/uuid"
)

type LineItemRequest struct {
	MenuItemID uuid.UUID `json:"menuId"`
	// Quantity defaults to 1 when zero.
	Quantity int `json:"quantity" validate:"min=0,max=100"`
}

type PlaceOrderRequest struct {
	CustomerID string `json:"customerId"`
	// CustomerName is the legacy name of CustomerID.
	CustomerName string            `json:"customerName,omitempty"`
	Items        []LineItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

// Customer returns the customer identifier, falling back to the legacy
// field.
func (r PlaceOrderRequest) Customer() string {
	if id := strings.TrimSpace(r.CustomerID); id != "" {
		return id
	}
	return strings.TrimSpace(r.CustomerName)
}

// ChangeStatusRequest accepts the target status as status or newStatus.
type ChangeStatusRequest struct {
	Status    string `json:"status,omitempty"`
	NewStatus string `json:"newStatus,omitempty"`
}

func (r ChangeStatusRequest) Target() string {
	if r.Status != "" {
		return r.Status
	}
	return r.NewStatus
}

// PlacementResult is what a placed order reports back.
type PlacementResult struct {
	OrderID     uuid.UUID `json:"orderId"`
	TotalAmount float64   `json:"totalAmount"`
	DeliveryBoy uuid.UUID `json:"deliveryBoy"`
	Message     string    `json:"message"`
}

type AgentCreateRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	FirstName string  `json:"firstName" validate:"required"`
	LastName  string  `json:"lastName" validate:"required"`
	Phone     string  `json:"phone" validate:"required"`
	ImageURL  string  `json:"imageURL" validate:"omitempty,url"`
	Rating    float64 `json:"rating" validate:"min=0,max=5"`
}

type AgentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available on_delivery inactive"`
}
