// Package app assembles the service graph shared by the server, worker and
// operator binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/campaign-targeting/internal/config"
	"github.com/ignite/campaign-targeting/internal/history"
	"github.com/ignite/campaign-targeting/internal/pkg/distlock"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
	"github.com/ignite/campaign-targeting/internal/service/campaign"
	"github.com/ignite/campaign-targeting/internal/service/tenant"
	"github.com/ignite/campaign-targeting/internal/snowflake"
	"github.com/ignite/campaign-targeting/internal/storage"
	"github.com/ignite/campaign-targeting/internal/worker"
	_ "github.com/lib/pq" // PostgreSQL driver for advisory locks
	"github.com/redis/go-redis/v9"
)

// App holds every long-lived dependency. Optional collaborators are nil
// when their configuration is absent.
type App struct {
	Config    *config.Config
	Warehouse *snowflake.Client
	Store     *storage.Store
	Reporter  *storage.Reporter
	Redis     *redis.Client
	LockDB    *sql.DB
	Locks     *distlock.Factory
	Tenants   *tenant.Resolver
	Campaigns *campaign.Service
	Fleet     *worker.FleetRunner
	Scheduler *worker.Scheduler
	Recorder  *history.Recorder
	Publisher *history.Publisher
	Consumer  *history.Consumer
}

// WarehouseConfig turns the snowflake config section into a client config.
// A connection string, when present, wins over the discrete fields.
func WarehouseConfig(c config.SnowflakeConfig) snowflake.Config {
	var sc snowflake.Config
	if c.ConnectionString != "" {
		sc = snowflake.ParseConnectionString(c.ConnectionString)
	} else {
		sc = snowflake.Config{
			Account:   c.Account,
			User:      c.User,
			Password:  c.Password,
			Warehouse: c.Warehouse,
			Role:      c.Role,
		}
	}
	if sc.Schema == "" {
		sc.Schema = c.Schema
	}
	sc.MaxOpenConns = c.MaxOpenConns
	sc.QueryTimeout = c.QueryTimeout()
	return sc
}

// New connects to every configured backend. Failures are fatal to startup;
// the returned App must be closed by the caller.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	wh, err := snowflake.NewClient(WarehouseConfig(cfg.Snowflake))
	if err != nil {
		return nil, fmt.Errorf("warehouse: %w", err)
	}
	a.Warehouse = wh

	awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{
		Region:          cfg.Storage.AWSRegion,
		Profile:         cfg.Storage.GetAWSProfile(),
		AccessKeyID:     cfg.Storage.AWSAccessKey,
		SecretAccessKey: cfg.Storage.AWSSecretKey,
		Endpoint:        cfg.Storage.AWSEndpoint,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("aws config: %w", err)
	}
	a.Store = storage.NewStoreFromConfig(awsCfg, cfg.Storage.DynamoDBTable)
	if cfg.Storage.ReportBucket != "" {
		a.Reporter = storage.NewReporterFromConfig(awsCfg, cfg.Storage.ReportBucket, cfg.Storage.ReportPrefix)
	}

	if cfg.Redis.Enabled() {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Locks.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.Locks.PostgresURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("lock database: %w", err)
		}
		db.SetMaxOpenConns(16)
		db.SetConnMaxIdleTime(time.Minute)
		a.LockDB = db
	}
	a.Locks = distlock.NewFactory(a.Redis, a.LockDB, cfg.Locks.TTL())
	logger.Info("Stage locks configured", "backend", a.Locks.Backend())

	a.Tenants = tenant.NewResolver(a.Store)
	a.Campaigns = campaign.NewService(a.Warehouse, a.Store, a.Locks, campaign.Options{
		LockWait: cfg.Locks.Wait(),
	})
	if a.Reporter != nil {
		a.Campaigns.WithReporter(a.Reporter)
	}

	a.Recorder = history.NewRecorder(a.Warehouse, a.Tenants)
	if cfg.Messaging.StagedQueueURL != "" || cfg.Messaging.EventsQueueURL != "" {
		client := sqs.NewFromConfig(awsCfg)
		if cfg.Messaging.StagedQueueURL != "" {
			a.Publisher = history.NewPublisher(client, cfg.Messaging.StagedQueueURL)
			a.Campaigns.WithNotifier(a.Publisher)
		}
		if cfg.Messaging.EventsQueueURL != "" {
			a.Consumer = history.NewConsumer(client, cfg.Messaging.EventsQueueURL, a.Recorder)
		}
	}

	a.Fleet = worker.NewFleetRunner(a.Tenants, a.Campaigns,
		cfg.Scheduler.MaxConcurrentTenants, cfg.Scheduler.TenantTimeout())
	// The fleet lock outlives a stage lock: it is held for a whole run and
	// expires no later than the next tick.
	fleetLocks := distlock.NewFactory(a.Redis, a.LockDB, cfg.Scheduler.Interval())
	a.Scheduler = worker.NewScheduler(a.Fleet, fleetLocks, cfg.Scheduler.Interval())

	return a, nil
}

// Close releases every connection the App opened.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Consumer != nil {
		a.Consumer.Stop()
	}
	if a.Warehouse != nil {
		if err := a.Warehouse.Close(); err != nil {
			logger.Warn("Closing warehouse", "error", err)
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.LockDB != nil {
		_ = a.LockDB.Close()
	}
}
