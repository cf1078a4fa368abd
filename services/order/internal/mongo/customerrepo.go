package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/tavola/services/order/internal/order"
)

type CustomerRepo struct {
	collection *mongo.Collection
}

func NewCustomerRepo(db *mongo.Database) *CustomerRepo {
	return &CustomerRepo{
		collection: db.Collection("customers"),
	}
}

func (r *CustomerRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("cannot create customer indexes: %w", err)
	}
	return nil
}

func (r *CustomerRepo) GetByEmail(ctx context.Context, email string) (*order.Customer, error) {
	var customer order.Customer
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&customer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get customer: %w", err)
	}
	return &customer, nil
}

func (r *CustomerRepo) AppendOrder(ctx context.Context, customerID, orderID uuid.UUID) error {
	update := bson.M{
		"$addToSet": bson.M{"orders": orderID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": customerID}, update)
	if err != nil {
		return fmt.Errorf("cannot append customer order: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("customer not found")
	}
	return nil
}

func (r *CustomerRepo) Save(ctx context.Context, customer *order.Customer) error {
	if customer == nil {
		return fmt.Errorf("customer is nil")
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": customer.ID}, customer, opts); err != nil {
		return fmt.Errorf("cannot save customer: %w", err)
	}
	return nil
}
