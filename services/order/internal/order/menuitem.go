package order

import (
	"time"

	"github.com/google/uuid"
)

// MenuItem is read by dispatch to price line items. The menu itself is
// managed elsewhere.
type MenuItem struct {
	ID          uuid.UUID `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Category    string    `json:"category" bson:"category"`
	Price       float64   `json:"price" bson:"price"`
	Description string    `json:"description" bson:"description"`
	ImageURL    string    `json:"imageURL" bson:"image_url"`
	Likes       int       `json:"likes" bson:"likes"`
	Dislikes    int       `json:"dislikes" bson:"dislikes"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

// Customer is the reference the dispatch needs: who they are and which
// orders they placed.
type Customer struct {
	ID        uuid.UUID   `json:"id" bson:"_id"`
	Email     string      `json:"email" bson:"email"`
	FirstName string      `json:"firstName" bson:"first_name"`
	LastName  string      `json:"lastName" bson:"last_name"`
	Orders    []uuid.UUID `json:"orders" bson:"orders"`
	CreatedAt time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time   `json:"updatedAt" bson:"updated_at"`
}
