package commands

import (
	"errors"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
)

var allDatabases = []string{
	tableDatabase,
	orderDatabase,
}

func newResetDBCmd(opts *globalOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset-db",
		Short: "Drop every tavola database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("reset-db drops all data; rerun with --yes to confirm")
			}

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

			for _, dbName := range allDatabases {
				logger.Info("Dropping database", "database", dbName)
				result := client.Database(dbName).RunCommand(ctx, bson.D{{Key: "dropDatabase", Value: 1}})
				if result.Err() != nil {
					logger.Info("Cannot drop database", "database", dbName, "error", result.Err())
					continue
				}
				logger.Info("Database dropped", "database", dbName)
			}

			logger.Info("Database reset completed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm dropping all databases")
	return cmd
}
