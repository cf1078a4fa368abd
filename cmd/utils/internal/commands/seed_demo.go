package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/tavola/cmd/utils/internal/seeding"
	"github.com/appetiteclub/tavola/pkg"
	"github.com/aquamarinepk/aqm"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const demoOrdersSeedID = "demo_orders_v1"

func newSeedDemoCmd(opts *globalOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Place demo orders against the seeded menu, customer and agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, mongoURL, err := opts.setup()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := connect(ctx, mongoURL, logger)
			if err != nil {
				return err
			}
			defer client.Disconnect(ctx)

			capacity := pkg.ConfigInt(config, "dispatch.agent.capacity", 10)
			return seedOrderDemo(ctx, client.Database(orderDatabase), count, capacity, logger)
		},
	}
	cmd.Flags().IntVar(&count, "orders", 5, "number of demo orders to place")
	return cmd
}

func seedOrderDemo(ctx context.Context, db *mongo.Database, count, capacity int, logger aqm.Logger) error {
	seeds := db.Collection("_seeds")
	n, err := seeds.CountDocuments(ctx, bson.M{"_id": demoOrdersSeedID})
	if err != nil {
		return fmt.Errorf("check seed status: %w", err)
	}
	if n > 0 {
		logger.Info("Order demo seeds already applied, skipping")
		return nil
	}

	placed, err := seeding.SeedOrders(ctx, db, seeding.OrderOptions{Count: count, Capacity: capacity})
	if err != nil {
		return fmt.Errorf("seed orders: %w", err)
	}

	_, err = seeds.InsertOne(ctx, bson.M{
		"_id":         demoOrdersSeedID,
		"description": "Place demo orders assigned to seeded delivery agents",
		"applied_at":  time.Now().UTC(),
	})
	if err != nil {
		logger.Info("Cannot mark order demo seed as applied", "error", err)
	}

	logger.Info("Order demo seeds applied", "orders", placed)
	return nil
}
