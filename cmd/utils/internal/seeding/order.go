package seeding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const demoMarker = "demo-seed"

type OrderOptions struct {
	Count    int
	Capacity int
}

type menuItem struct {
	ID    uuid.UUID `bson:"_id"`
	Name  string    `bson:"name"`
	Price float64   `bson:"price"`
}

type customer struct {
	ID    uuid.UUID `bson:"_id"`
	Email string    `bson:"email"`
}

type agent struct {
	ID uuid.UUID `bson:"_id"`
}

// SeedOrders places demo orders for the first seeded customer. Items rotate
// through the menu and each order claims an agent slot the same way the
// order service does, so the capacity ceiling holds. It stops early when no
// agent has room.
func SeedOrders(ctx context.Context, db *mongo.Database, opts OrderOptions) (int, error) {
	if opts.Count <= 0 {
		return 0, nil
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 10
	}

	var items []menuItem
	cursor, err := db.Collection("menu_items").Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return 0, fmt.Errorf("cannot fetch menu items: %w", err)
	}
	if err := cursor.All(ctx, &items); err != nil {
		return 0, fmt.Errorf("cannot decode menu items: %w", err)
	}
	if len(items) == 0 {
		return 0, errors.New("no menu items found; start the order service to apply its seeds first")
	}

	var cust customer
	err = db.Collection("customers").FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})).Decode(&cust)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, errors.New("no customers found; start the order service to apply its seeds first")
		}
		return 0, fmt.Errorf("cannot fetch customer: %w", err)
	}

	now := time.Now().UTC()
	placed := 0
	for i := 0; i < opts.Count; i++ {
		orderID := uuid.New()
		agentID, err := claimAgent(ctx, db, orderID, opts.Capacity)
		if err != nil {
			return placed, err
		}
		if agentID == uuid.Nil {
			break
		}

		lines, total := demoLines(items, i)
		createdAt := now.Add(-time.Duration(opts.Count-i) * 7 * time.Minute)
		order := bson.M{
			"_id":          orderID,
			"items":        lines,
			"total_amount": total,
			"customer_id":  cust.Email,
			"status":       "pending",
			"agent_id":     agentID,
			"created_at":   createdAt,
			"updated_at":   createdAt,
			"created_by":   demoMarker,
		}
		if _, err := db.Collection("orders").InsertOne(ctx, order); err != nil {
			_ = releaseAgent(ctx, db, agentID, orderID)
			return placed, fmt.Errorf("cannot create demo order %d: %w", i+1, err)
		}

		_, err = db.Collection("customers").UpdateOne(ctx,
			bson.M{"_id": cust.ID},
			bson.M{"$addToSet": bson.M{"orders": orderID}})
		if err != nil {
			return placed, fmt.Errorf("cannot record demo order %d: %w", i+1, err)
		}
		placed++
	}

	return placed, nil
}

// ClearOrders deletes demo orders and removes them from agents and
// customers.
func ClearOrders(ctx context.Context, db *mongo.Database) (int64, error) {
	var docs []struct {
		ID uuid.UUID `bson:"_id"`
	}
	cursor, err := db.Collection("orders").Find(ctx, bson.M{"created_by": demoMarker}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, fmt.Errorf("cannot find demo orders: %w", err)
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("cannot decode demo orders: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make(bson.A, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}

	pull := bson.M{"$pull": bson.M{
		"assigned_orders":  bson.M{"$in": ids},
		"completed_orders": bson.M{"$in": ids},
	}}
	if _, err := db.Collection("agents").UpdateMany(ctx, bson.M{}, pull); err != nil {
		return 0, fmt.Errorf("cannot release demo orders: %w", err)
	}
	if _, err := db.Collection("customers").UpdateMany(ctx, bson.M{}, bson.M{"$pull": bson.M{"orders": bson.M{"$in": ids}}}); err != nil {
		return 0, fmt.Errorf("cannot detach demo orders: %w", err)
	}

	result, err := db.Collection("orders").DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("cannot delete demo orders: %w", err)
	}
	return result.DeletedCount, nil
}

func claimAgent(ctx context.Context, db *mongo.Database, orderID uuid.UUID, capacity int) (uuid.UUID, error) {
	filter := bson.M{
		"status": "available",
		"$expr": bson.M{
			"$lt": bson.A{
				bson.M{"$size": bson.M{"$ifNull": bson.A{"$assigned_orders", bson.A{}}}},
				capacity,
			},
		},
	}
	update := bson.M{"$push": bson.M{"assigned_orders": orderID}}
	opts := options.FindOneAndUpdate().SetSort(bson.D{{Key: "created_at", Value: 1}})

	var a agent
	err := db.Collection("agents").FindOneAndUpdate(ctx, filter, update, opts).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("cannot claim agent: %w", err)
	}
	return a.ID, nil
}

func releaseAgent(ctx context.Context, db *mongo.Database, agentID, orderID uuid.UUID) error {
	_, err := db.Collection("agents").UpdateOne(ctx,
		bson.M{"_id": agentID},
		bson.M{"$pull": bson.M{"assigned_orders": orderID}})
	return err
}

// demoLines picks one or two menu items starting at offset.
func demoLines(items []menuItem, offset int) (bson.A, float64) {
	lines := bson.A{}
	var total float64
	for j := 0; j <= offset%2; j++ {
		item := items[(offset+j)%len(items)]
		quantity := 1 + (offset+j)%3
		lines = append(lines, bson.M{
			"menu_item_id": item.ID,
			"name":         item.Name,
			"unit_price":   item.Price,
			"quantity":     quantity,
		})
		total += item.Price * float64(quantity)
	}
	return lines, math.Round(total*100) / 100
}
