package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// SlotGuard runs slot claims inside a transaction that first bumps a per
// branch ledger document. Two claims on the same branch write the same
// document, so one of them hits a write conflict and is retried by the
// driver after the other commits, seeing its reservation.
// Requires a replica set or sharded cluster.
type SlotGuard struct {
	client *mongo.Client
	ledger *mongo.Collection
}

func NewSlotGuard(db *mongo.Database) *SlotGuard {
	return &SlotGuard{
		client: db.Client(),
		ledger: db.Collection("booking_ledgers"),
	}
}

func (g *SlotGuard) WithSlot(ctx context.Context, branchID uuid.UUID, fn func(ctx context.Context) error) error {
	session, err := g.client.StartSession()
	if err != nil {
		return fmt.Errorf("cannot start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		update := bson.M{
			"$inc": bson.M{"version": 1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		}
		opts := options.Update().SetUpsert(true)
		// Returned unwrapped so the driver sees the transient error label.
		if _, err := g.ledger.UpdateOne(sessCtx, bson.M{"_id": branchID}, update, opts); err != nil {
			return nil, err
		}
		return nil, fn(sessCtx)
	}, txnOpts)
	return err
}
