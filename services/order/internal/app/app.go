package app

import (
	"context"
	"embed"
	"errors"

	"github.com/appetiteclub/tavola/pkg"
	"github.com/appetiteclub/tavola/services/order/internal/mongo"
	"github.com/appetiteclub/tavola/services/order/internal/order"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"
	"github.com/aquamarinepk/aqm/seed"
)

const (
	AppName    = "order"
	AppVersion = "0.1.0"
)

// App wires the order service: placement, agent dispatch and settlement.
type App struct {
	config   *aqm.Config
	logger   aqm.Logger
	seedFS   embed.FS
	micro    *aqm.Micro
	baseRepo *mongo.BaseRepo
}

func New(config *aqm.Config, logger aqm.Logger, seedFS embed.FS) (*App, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	return &App{
		config: config,
		logger: logger,
		seedFS: seedFS,
	}, nil
}

// Initialize connects the store and builds the micro service.
func (a *App) Initialize(ctx context.Context, seedCtx context.Context, cancelSeeds context.CancelFunc) error {
	a.baseRepo = mongo.NewBaseRepo(a.config, a.logger)
	if err := a.baseRepo.Start(ctx); err != nil {
		return err
	}

	db := a.baseRepo.GetDatabase()
	if db == nil {
		return errors.New("cannot get order database")
	}

	orderRepo := mongo.NewOrderRepo(db)
	agentRepo := mongo.NewAgentRepo(db)
	customerRepo := mongo.NewCustomerRepo(db)
	menuItemRepo := mongo.NewMenuItemRepo(db)

	if err := orderRepo.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := agentRepo.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := customerRepo.EnsureIndexes(ctx); err != nil {
		return err
	}

	repos := order.Repos{
		OrderRepo:    orderRepo,
		AgentRepo:    agentRepo,
		MenuItemRepo: menuItemRepo,
		CustomerRepo: customerRepo,
	}

	natsURL := pkg.ConfigString(a.config, "nats.url", "nats://localhost:4222")
	publisher, err := pkg.NewNATSPublisher(natsURL, AppName)
	if err != nil {
		return err
	}

	handler := order.NewHandler(order.HandlerDeps{
		Repos:     repos,
		Publisher: publisher,
	}, a.config, a.logger)

	tracker := seed.NewMongoTracker(db)

	lifecycles := []interface{}{
		aqm.LifecycleHooks{OnStop: a.baseRepo.Stop},
		aqm.LifecycleHooks{
			OnStop: func(context.Context) error { return publisher.Close() },
		},
		aqm.LifecycleHooks{
			OnStart: order.SeedingFunc(seedCtx, repos, tracker, a.seedFS, handler.Dispatcher().Menu(), a.logger),
			OnStop:  order.StopFunc(cancelSeeds),
		},
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})
	if pkg.ConfigBool(a.config, "web.internal", true) {
		stack = append(stack, middleware.InternalOnly())
	}

	options := []aqm.Option{
		aqm.WithConfig(a.config),
		aqm.WithLogger(a.logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(AppName),
	}

	a.micro = aqm.NewMicro(options...)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		_ = a.baseRepo.Stop(context.Background())
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}
