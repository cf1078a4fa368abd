package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/tavola/services/order/internal/order"
)

type AgentRepo struct {
	collection *mongo.Collection
}

func NewAgentRepo(db *mongo.Database) *AgentRepo {
	return &AgentRepo{
		collection: db.Collection("agents"),
	}
}

func (r *AgentRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("agent_email"),
		},
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("agent_phone"),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("cannot create agent indexes: %w", err)
	}
	return nil
}

func (r *AgentRepo) Create(ctx context.Context, agent *order.Agent) error {
	if agent == nil {
		return fmt.Errorf("agent is nil")
	}

	if _, err := r.collection.InsertOne(ctx, agent); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "agent_phone") {
				return order.ErrAgentExists.With("Phone already exists.").Wrap(err)
			}
			return order.ErrAgentExists.Wrap(err)
		}
		return fmt.Errorf("cannot create agent: %w", err)
	}
	return nil
}

func (r *AgentRepo) Get(ctx context.Context, id uuid.UUID) (*order.Agent, error) {
	var agent order.Agent
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&agent)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get agent: %w", err)
	}
	return &agent, nil
}

func (r *AgentRepo) List(ctx context.Context) ([]*order.Agent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list agents: %w", err)
	}
	defer cursor.Close(ctx)

	result := []*order.Agent{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode agents: %w", err)
	}
	return result, nil
}

// Claim pushes orderID onto the first available agent whose assigned orders
// are below capacity. The filter and the push run as one document update.
func (r *AgentRepo) Claim(ctx context.Context, orderID uuid.UUID, capacity int) (*order.Agent, error) {
	filter := bson.M{
		"status": order.AgentAvailable,
		"$expr": bson.M{
			"$lt": bson.A{
				bson.M{"$size": bson.M{"$ifNull": bson.A{"$assigned_orders", bson.A{}}}},
				capacity,
			},
		},
	}
	update := bson.M{
		"$push": bson.M{"assigned_orders": orderID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetReturnDocument(options.After)

	var agent order.Agent
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&agent)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot claim agent: %w", err)
	}
	return &agent, nil
}

func (r *AgentRepo) Release(ctx context.Context, agentID, orderID uuid.UUID) error {
	update := bson.M{
		"$pull": bson.M{"assigned_orders": orderID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	return r.updateOne(ctx, agentID, update, "cannot release agent order")
}

func (r *AgentRepo) Complete(ctx context.Context, agentID, orderID uuid.UUID) error {
	update := bson.M{
		"$pull":     bson.M{"assigned_orders": orderID},
		"$addToSet": bson.M{"completed_orders": orderID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	return r.updateOne(ctx, agentID, update, "cannot complete agent order")
}

func (r *AgentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}
	return r.updateOne(ctx, id, update, "cannot update agent status")
}

func (r *AgentRepo) updateOne(ctx context.Context, id uuid.UUID, update bson.M, msg string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%s: agent not found", msg)
	}
	return nil
}
