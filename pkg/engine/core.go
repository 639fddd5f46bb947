package engine

import (
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/extract"
	"github.com/tirta-dwh/dwhetl/pkg/history"
	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/postgres"
	"github.com/tirta-dwh/dwhetl/pkg/runlock"
	"github.com/tirta-dwh/dwhetl/pkg/source"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// Core holds the components shared by the service and the CLI: both
// databases, the history log and the orchestrator.
type Core struct {
	log logrus.FieldLogger

	SourceClient    postgres.ClientInterface
	WarehouseClient postgres.ClientInterface
	Store           *warehouse.PostgresStore
	History         *history.Service
	Orchestrator    *orchestrator.Orchestrator

	// Redis is nil when no Redis URL is configured
	Redis *goredis.Client
}

// NewCore builds the shared components. Database pools connect on Start.
func NewCore(log logrus.FieldLogger, cfg *Config, clock clockwork.Clock) (*Core, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	sourceClient, err := postgres.NewClient(log, "source", &cfg.Source.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to create source client: %w", err)
	}

	warehouseClient, err := postgres.NewClient(log, "warehouse", &cfg.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse client: %w", err)
	}

	reader, err := source.NewPostgresReader(log, sourceClient, &cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to create source reader: %w", err)
	}

	core := &Core{
		log:             log.WithField("component", "core"),
		SourceClient:    sourceClient,
		WarehouseClient: warehouseClient,
		Store:           warehouse.NewPostgresStore(log, warehouseClient),
	}

	var (
		cache *history.PageCache
		lock  runlock.Locker = runlock.NewLocal()
	)

	if cfg.Redis.URL != "" {
		opts, err := cfg.Redis.Options()
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}

		core.Redis = goredis.NewClient(opts)
		cache = history.NewPageCache(core.Redis, cfg.History.CacheTTL)
		lock = runlock.NewRedis(log, core.Redis, cfg.RunLock, clock)
	}

	core.History = history.NewService(log, core.Store, cache, clock, cfg.History)

	orch, err := orchestrator.New(log, extract.NewExtractor(log, reader), core.Store, core.History, lock, clock, cfg.ETL)
	if err != nil {
		return nil, err
	}

	core.Orchestrator = orch

	return core, nil
}

// Start connects both database pools
func (c *Core) Start() error {
	if err := c.SourceClient.Start(); err != nil {
		return fmt.Errorf("failed to start source client: %w", err)
	}

	if err := c.WarehouseClient.Start(); err != nil {
		return fmt.Errorf("failed to start warehouse client: %w", err)
	}

	return nil
}

// Stop closes the pools and the Redis client
func (c *Core) Stop() error {
	var errs []error

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	if err := c.SourceClient.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}

	if err := c.WarehouseClient.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("warehouse: %w", err))
	}

	return errors.Join(errs...)
}
