package mongo

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/tavola/services/table/internal/tables"
)

type BranchRepo struct {
	db         *mongo.Database
	collection *mongo.Collection
}

func NewBranchRepo(db *mongo.Database) *BranchRepo {
	return &BranchRepo{
		db:         db,
		collection: db.Collection("branches"),
	}
}

func (r *BranchRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "address.city", Value: 1}, {Key: "is_active", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("cannot create branch indexes: %w", err)
	}
	return nil
}

func (r *BranchRepo) GetDatabase() *mongo.Database {
	return r.db
}

func (r *BranchRepo) Create(ctx context.Context, branch *tables.Branch) error {
	if branch == nil {
		return fmt.Errorf("branch is nil")
	}

	if _, err := r.collection.InsertOne(ctx, branch); err != nil {
		return fmt.Errorf("cannot create branch: %w", err)
	}
	return nil
}

func (r *BranchRepo) Get(ctx context.Context, id uuid.UUID) (*tables.Branch, error) {
	var branch tables.Branch
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&branch)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get branch: %w", err)
	}
	return &branch, nil
}

func (r *BranchRepo) List(ctx context.Context, filter tables.BranchFilter) ([]*tables.Branch, error) {
	query := bson.M{}
	if filter.City != "" {
		query["address.city"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.City) + "$", Options: "i"}
	}
	if filter.ActiveOnly {
		query["is_active"] = true
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list branches: %w", err)
	}
	defer cursor.Close(ctx)

	result := []*tables.Branch{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode branches: %w", err)
	}
	return result, nil
}

func (r *BranchRepo) Save(ctx context.Context, branch *tables.Branch) error {
	if branch == nil {
		return fmt.Errorf("branch is nil")
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": branch.ID}, branch)
	if err != nil {
		return fmt.Errorf("cannot update branch: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("branch not found")
	}
	return nil
}

func (r *BranchRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cannot delete branch: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("branch not found")
	}
	return nil
}
