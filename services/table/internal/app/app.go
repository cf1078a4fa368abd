package app

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/appetiteclub/tavola/pkg"
	"github.com/appetiteclub/tavola/services/table/internal/mongo"
	"github.com/appetiteclub/tavola/services/table/internal/redislock"
	"github.com/appetiteclub/tavola/services/table/internal/tables"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"
	"github.com/go-redis/redis/v8"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

const (
	AppName    = "table"
	AppVersion = "0.1.0"
)

// App wires the table service: branch catalog, availability and reservations.
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

// Initialize connects the stores and builds the micro service.
func (a *App) Initialize(ctx context.Context, seedCtx context.Context, cancelSeeds context.CancelFunc) error {
	a.baseRepo = mongo.NewBaseRepo(a.config, a.logger)
	if err := a.baseRepo.Start(ctx); err != nil {
		return err
	}

	db := a.baseRepo.GetDatabase()
	if db == nil {
		return errors.New("cannot get table database")
	}

	branchRepo := mongo.NewBranchRepo(db)
	reservationRepo := mongo.NewReservationRepo(db)
	if err := branchRepo.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := reservationRepo.EnsureIndexes(ctx); err != nil {
		return err
	}

	lifecycles := []interface{}{
		aqm.LifecycleHooks{OnStop: a.baseRepo.Stop},
	}

	guard, guardHooks, err := a.slotGuard(ctx, db)
	if err != nil {
		return err
	}
	if guardHooks != nil {
		lifecycles = append(lifecycles, *guardHooks)
	}

	natsURL := pkg.ConfigString(a.config, "nats.url", "nats://localhost:4222")
	publisher, err := pkg.NewNATSPublisher(natsURL, AppName)
	if err != nil {
		return err
	}
	lifecycles = append(lifecycles, aqm.LifecycleHooks{
		OnStop: func(context.Context) error { return publisher.Close() },
	})

	handler := tables.NewHandler(tables.HandlerDeps{
		Repos: tables.Repos{
			BranchRepo:      branchRepo,
			ReservationRepo: reservationRepo,
		},
		Guard:     guard,
		Publisher: publisher,
	}, a.config, a.logger)

	seedingFunc := tables.SeedingFunc(seedCtx, branchRepo, a.seedFS, a.logger)
	if pkg.ConfigBool(a.config, "seeding.demo", false) {
		a.logger.Info("Demo seeding enabled for table service")
		seedingFunc = tables.DemoSeedingFunc(seedCtx, branchRepo, handler.Reservations(), a.seedFS, a.logger)
	}
	lifecycles = append(lifecycles, aqm.LifecycleHooks{
		OnStart: seedingFunc,
		OnStop:  tables.StopFunc(cancelSeeds),
	})

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger: a.logger,
	})

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

// slotGuard picks the guard named by reservations.guard. Redis is chosen
// implicitly when redis.url is set.
func (a *App) slotGuard(ctx context.Context, db *mongodriver.Database) (tables.SlotGuard, *aqm.LifecycleHooks, error) {
	redisURL := pkg.ConfigString(a.config, "redis.url", "")
	kind := pkg.ConfigString(a.config, "reservations.guard", "")
	if kind == "" {
		kind = "mongo"
		if redisURL != "" {
			kind = "redis"
		}
	}

	switch kind {
	case "local":
		a.logger.Info("Using in-process slot guard")
		return tables.NewLocalSlotGuard(), nil, nil

	case "redis":
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, nil, err
		}
		if password := pkg.ConfigString(a.config, "redis.password", ""); password != "" {
			opts.Password = password
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		a.logger.Info("Using Redis slot guard", "addr", opts.Addr)

		guard := redislock.NewGuard(client, redislock.Options{
			Wait: pkg.ConfigDuration(a.config, "reservations.lock.wait", 3*time.Second),
		}, a.logger)
		hooks := &aqm.LifecycleHooks{
			OnStop: func(context.Context) error { return client.Close() },
		}
		return guard, hooks, nil

	default:
		a.logger.Info("Using MongoDB transactional slot guard")
		return mongo.NewSlotGuard(db), nil, nil
	}
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
