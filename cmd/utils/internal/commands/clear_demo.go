package commands

import (
	"fmt"

	"github.com/appetiteclub/tavola/cmd/utils/internal/seeding"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
)

func newClearDemoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-demo",
		Short: "Remove demo orders and release their agent slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, mongoURL, err := opts.setup()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := connect(ctx, mongoURL, logger)
			if err != nil {
				return err
			}
			defer client.Disconnect(ctx)

			db := client.Database(orderDatabase)
			removed, err := seeding.ClearOrders(ctx, db)
			if err != nil {
				return fmt.Errorf("clear demo orders: %w", err)
			}
			logger.Info("Deleted demo orders", "count", removed)

			result, err := db.Collection("_seeds").DeleteOne(ctx, bson.M{"_id": demoOrdersSeedID})
			if err != nil {
				return fmt.Errorf("delete order seed tracker: %w", err)
			}
			logger.Info("Cleared order seed tracker", "deleted", result.DeletedCount)
			return nil
		},
	}
}
