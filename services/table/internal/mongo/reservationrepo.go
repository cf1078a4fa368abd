package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/tavola/services/table/internal/tables"
)

type ReservationRepo struct {
	collection *mongo.Collection
}

func NewReservationRepo(db *mongo.Database) *ReservationRepo {
	return &ReservationRepo{
		collection: db.Collection("reservations"),
	}
}

func (r *ReservationRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reservation_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "branch_id", Value: 1}, {Key: "starts_at", Value: 1}}},
		{Keys: bson.D{{Key: "customer.email", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("cannot create reservation indexes: %w", err)
	}
	return nil
}

func (r *ReservationRepo) Create(ctx context.Context, reservation *tables.Reservation) error {
	if reservation == nil {
		return fmt.Errorf("reservation is nil")
	}

	if _, err := r.collection.InsertOne(ctx, reservation); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tables.ErrCodeTaken.Wrap(err)
		}
		return fmt.Errorf("cannot create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepo) Get(ctx context.Context, id uuid.UUID) (*tables.Reservation, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ReservationRepo) GetByCode(ctx context.Context, code string) (*tables.Reservation, error) {
	return r.findOne(ctx, bson.M{"reservation_code": code})
}

func (r *ReservationRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"reservation_code": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("cannot check reservation code: %w", err)
	}
	return n > 0, nil
}

func (r *ReservationRepo) List(ctx context.Context, filter tables.ReservationFilter) ([]*tables.Reservation, int64, error) {
	query := bson.M{}
	if filter.BranchID != uuid.Nil {
		query["branch_id"] = filter.BranchID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Date != nil {
		day := filter.Date.UTC()
		query["date"] = bson.M{"$gte": day, "$lt": day.Add(24 * time.Hour)}
	}
	if filter.CustomerEmail != "" {
		query["customer.email"] = filter.CustomerEmail
	}

	order := -1
	if filter.Ascending {
		order = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: order}, {Key: "time", Value: order}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot count reservations: %w", err)
	}

	result, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *ReservationRepo) ListOverlapping(ctx context.Context, branchID uuid.UUID, window tables.Interval) ([]*tables.Reservation, error) {
	query := bson.M{
		"branch_id": branchID,
		"status":    bson.M{"$in": tables.BlockingStatuses},
		"starts_at": bson.M{"$lt": window.End},
		"ends_at":   bson.M{"$gt": window.Start},
	}
	return r.find(ctx, query, options.Find())
}

func (r *ReservationRepo) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*tables.Reservation, error) {
	query := bson.M{
		"date":   bson.M{"$gte": from},
		"status": bson.M{"$in": tables.BlockingStatuses},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, query, opts)
}

func (r *ReservationRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("cannot count reservations by status: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("cannot decode reservation counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *ReservationRepo) CountBetween(ctx context.Context, from, to time.Time) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"date": bson.M{"$gte": from, "$lt": to}})
	if err != nil {
		return 0, fmt.Errorf("cannot count reservations: %w", err)
	}
	return n, nil
}

func (r *ReservationRepo) Save(ctx context.Context, reservation *tables.Reservation, from string) (bool, error) {
	if reservation == nil {
		return false, fmt.Errorf("reservation is nil")
	}

	filter := bson.M{"_id": reservation.ID, "status": from}
	result, err := r.collection.ReplaceOne(ctx, filter, reservation)
	if err != nil {
		return false, fmt.Errorf("cannot update reservation: %w", err)
	}
	return result.MatchedCount == 1, nil
}

func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("cannot update reservation status: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *ReservationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cannot delete reservation: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("reservation not found")
	}
	return nil
}

func (r *ReservationRepo) findOne(ctx context.Context, filter bson.M) (*tables.Reservation, error) {
	var reservation tables.Reservation
	err := r.collection.FindOne(ctx, filter).Decode(&reservation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get reservation: %w", err)
	}
	return &reservation, nil
}

func (r *ReservationRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*tables.Reservation, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list reservations: %w", err)
	}
	defer cursor.Close(ctx)

	result := []*tables.Reservation{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode reservations: %w", err)
	}
	return result, nil
}
