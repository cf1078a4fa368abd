package order

import (
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

const (
	AgentAvailable  = "available"
	AgentOnDelivery = "on_delivery"
	AgentInactive   = "inactive"

	DefaultAgentCapacity = 10
)

// Agent is a delivery agent. AssignedOrders holds the open orders counted
// against the capacity ceiling. Only available agents receive orders, and
// dispatch never changes the status itself.
type Agent struct {
	ID              uuid.UUID   `json:"id" bson:"_id"`
	Email           string      `json:"email" bson:"email"`
	FirstName       string      `json:"firstName" bson:"first_name"`
	LastName        string      `json:"lastName" bson:"last_name"`
	Phone           string      `json:"phone" bson:"phone"`
	Status          string      `json:"status" bson:"status"`
	AssignedOrders  []uuid.UUID `json:"assignedOrders" bson:"assigned_orders"`
	CompletedOrders []uuid.UUID `json:"completedOrders" bson:"completed_orders"`
	Rating          float64     `json:"rating" bson:"rating"`
	ImageURL        string      `json:"imageURL" bson:"image_url"`
	CreatedAt       time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" bson:"updated_at"`
}

func NewAgent() *Agent {
	return &Agent{
		ID:              aqm.GenerateNewID(),
		Status:          AgentAvailable,
		AssignedOrders:  []uuid.UUID{},
		CompletedOrders: []uuid.UUID{},
	}
}

func (a *Agent) GetID() uuid.UUID {
	return a.ID
}

func (a *Agent) ResourceType() string {
	return "agent"
}

func (a *Agent) EnsureID() {
	if a.ID == uuid.Nil {
		a.ID = aqm.GenerateNewID()
	}
}

func (a *Agent) BeforeCreate() {
	a.EnsureID()
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Phone = strings.TrimSpace(a.Phone)
	if a.Status == "" {
		a.Status = AgentAvailable
	}
	if a.AssignedOrders == nil {
		a.AssignedOrders = []uuid.UUID{}
	}
	if a.CompletedOrders == nil {
		a.CompletedOrders = []uuid.UUID{}
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
}

func (a *Agent) BeforeUpdate() {
	a.UpdatedAt = time.Now().UTC()
}

// HasHeadroom reports whether the agent can take another order.
func (a *Agent) HasHeadroom(capacity int) bool {
	return a.Status == AgentAvailable && len(a.AssignedOrders) < capacity
}

func (a *Agent) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}
