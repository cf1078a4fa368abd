package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/appetiteclub/tavola/pkg"
	"github.com/aquamarinepk/aqm"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	appName      = "tavola-utils"
	appNamespace = "UTILS"

	tableDatabase = "tavola_table"
	orderDatabase = "tavola_order"

	defaultMongoURL = "mongodb://localhost:27017"
)

var (
	Version   = "dev"
	CommitSHA = "none"
)

type globalOptions struct {
	mongoURL string
	logLevel string
}

func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "tavola-utils",
		Short:         "Operator utilities for the tavola services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.mongoURL, "mongo-url", "", "MongoDB connection string (overrides UTILS_DB_MONGO_URL)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newSeedDemoCmd(opts))
	root.AddCommand(newClearDemoCmd(opts))
	root.AddCommand(newResetDBCmd(opts))

	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the UTILS configuration and applies flag overrides.
func (o *globalOptions) setup() (*aqm.Config, aqm.Logger, string, error) {
	config, err := aqm.LoadConfig(appNamespace, []string{})
	if err != nil {
		return nil, nil, "", fmt.Errorf("cannot load config: %w", err)
	}

	level := o.logLevel
	if level == "" {
		level = pkg.ConfigString(config, "log.level", "info")
	}
	logger := aqm.NewLogger(level)

	mongoURL := o.mongoURL
	if mongoURL == "" {
		mongoURL = pkg.ConfigString(config, "db.mongo.url", defaultMongoURL)
	}
	return config, logger, mongoURL, nil
}

func connect(ctx context.Context, mongoURL string, logger aqm.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	logger.Info("Connected to MongoDB")
	return client, nil
}
