package pkg

import "time"

const (
	// ReservationTopic carries reservation lifecycle changes.
	ReservationTopic = "reservations.events"
	// OrderDispatchTopic carries order placement and delivery outcomes.
	OrderDispatchTopic = "orders.dispatch"

	EventReservationCreated       = "reservation.created"
	EventReservationUpdated       = "reservation.updated"
	EventReservationStatusChanged = "reservation.status.changed"
	EventReservationCancelled     = "reservation.cancelled"

	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status.changed"
)

// ReservationEvent is the payload published on ReservationTopic.
type ReservationEvent struct {
	EventType       string    `json:"event_type"`
	ReservationID   string    `json:"reservation_id"`
	ReservationCode string    `json:"reservation_code"`
	BranchID        string    `json:"branch_id"`
	TableNumber     int       `json:"table_number"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	PartySize       int       `json:"party_size"`
	Status          string    `json:"status"`
	PreviousStatus  string    `json:"previous_status,omitempty"`
	Source          string    `json:"source,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// OrderDispatchEvent is the payload published on OrderDispatchTopic.
type OrderDispatchEvent struct {
	EventType      string    `json:"event_type"`
	OrderID        string    `json:"order_id"`
	CustomerID     string    `json:"customer_id"`
	AgentID        string    `json:"agent_id,omitempty"`
	TotalAmount    float64   `json:"total_amount"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
