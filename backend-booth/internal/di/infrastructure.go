package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/handler"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/repository"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/service"
	"github.com/prohmpiriya/booth-rush/pkg/config"
	"github.com/prohmpiriya/booth-rush/pkg/database"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/prohmpiriya/booth-rush/pkg/mongodb"
	"github.com/prohmpiriya/booth-rush/pkg/natsbus"
	pkgredis "github.com/prohmpiriya/booth-rush/pkg/redis"
	"github.com/prohmpiriya/booth-rush/pkg/retry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Infrastructure holds external connections opened for one process
type Infrastructure struct {
	Store          repository.VenueStore
	EventPublisher service.EventPublisher
	Redis          *pkgredis.Client
	HealthChecks   map[string]handler.HealthCheck

	closers []func(ctx context.Context) error
}

// OpenInfrastructure connects the configured store and event backends.
// Connections opened before a failure are closed again.
func OpenInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) (infra *Infrastructure, err error) {
	infra = &Infrastructure{HealthChecks: map[string]handler.HealthCheck{}}
	defer func() {
		if err != nil {
			err = multierr.Append(err, infra.Close(context.Background()))
			infra = nil
		}
	}()

	if cfg.UsesRedis() {
		if err := infra.openRedis(ctx, cfg, log); err != nil {
			return infra, err
		}
	}
	if err := infra.openStore(ctx, cfg, log); err != nil {
		return infra, err
	}
	infra.openPublisher(ctx, cfg, log)

	return infra, nil
}

func (i *Infrastructure) onClose(fn func(ctx context.Context) error) {
	i.closers = append(i.closers, fn)
}

// Close releases connections in reverse opening order
func (i *Infrastructure) Close(ctx context.Context) error {
	var err error
	for n := len(i.closers) - 1; n >= 0; n-- {
		err = multierr.Append(err, i.closers[n](ctx))
	}
	i.closers = nil
	return err
}

func (i *Infrastructure) openRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		PoolTimeout:   4 * time.Second,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
	}
	client, err := pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	i.Redis = client
	i.HealthChecks["redis"] = client.HealthCheck
	i.onClose(func(context.Context) error { return client.Close() })
	log.Info("Redis connected",
		zap.String("addr", redisCfg.Addr()),
		zap.Int("pool_size", redisCfg.PoolSize),
	)
	return nil
}

func (i *Infrastructure) openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		store := repository.NewRedisVenueStore(i.Redis)
		if err := store.LoadScripts(ctx); err != nil {
			log.Warn("failed to pre-load Lua scripts", zap.Error(err))
		}
		i.Store = store

	case config.StorePostgres:
		dbCfg := &database.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnectTimeout:  5 * time.Second,
			MaxRetries:      3,
			RetryInterval:   time.Second,
			EnableTracing:   cfg.OTel.Enabled,
		}
		db, err := database.NewPostgres(ctx, dbCfg)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		i.onClose(func(context.Context) error { db.Close(); return nil })
		i.HealthChecks["postgres"] = db.HealthCheck

		store := repository.NewPostgresVenueStore(db.Pool(), log)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("venue schema: %w", err)
		}
		i.onClose(func(context.Context) error { store.Close(); return nil })
		i.Store = store
		log.Info("Database connected",
			zap.String("host", dbCfg.Host),
			zap.Int32("max_conns", dbCfg.MaxConns),
		)

	case config.StoreMongo:
		client, err := mongodb.Connect(ctx, &mongodb.Config{
			URI:            cfg.MongoDB.URI,
			Database:       cfg.MongoDB.Database,
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    50,
		})
		if err != nil {
			return fmt.Errorf("mongodb connection failed: %w", err)
		}
		i.onClose(client.Close)
		i.HealthChecks["mongodb"] = client.HealthCheck

		store := repository.NewMongoVenueStore(client.Collection(cfg.MongoDB.Collection), log)
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("venue indexes: %w", err)
		}
		i.onClose(func(context.Context) error { store.Close(); return nil })
		i.Store = store
		log.Info("MongoDB connected",
			zap.String("database", cfg.MongoDB.Database),
			zap.String("collection", cfg.MongoDB.Collection),
		)

	default:
		i.Store = repository.NewMemoryVenueStore()
		log.Warn("using in-memory venue store, state is lost on restart")
	}

	store := i.Store
	i.HealthChecks["store"] = func(ctx context.Context) error {
		_, err := store.List(ctx)
		return err
	}
	return nil
}

// openPublisher never fails startup: an unreachable broker degrades to the
// no-op publisher
func (i *Infrastructure) openPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) {
	switch cfg.Events.Backend {
	case config.EventsKafka:
		pub, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: cfg.App.Name,
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			log.Warn("Kafka connection failed, using no-op publisher", zap.Error(err))
			break
		}
		i.EventPublisher = pub
		i.onClose(func(context.Context) error { return pub.Close() })
		log.Info("Kafka event publisher connected", zap.Strings("brokers", cfg.Kafka.Brokers))

	case config.EventsNATS:
		bus, err := natsbus.Connect(&natsbus.Config{
			URL:           cfg.NATS.URL,
			Name:          cfg.App.Name,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,
		})
		if err != nil {
			log.Warn("NATS connection failed, using no-op publisher", zap.Error(err))
			break
		}
		pub := service.NewNATSEventPublisher(bus, cfg.App.Name)
		i.EventPublisher = pub
		i.HealthChecks["nats"] = func(context.Context) error { return bus.HealthCheck() }
		i.onClose(func(context.Context) error { return pub.Close() })
		log.Info("NATS event publisher connected", zap.String("url", cfg.NATS.URL))
	}

	if i.EventPublisher == nil {
		i.EventPublisher = service.NewNoOpEventPublisher()
	}
}

// RetryConfig maps engine tuning onto the commit retry policy
func RetryConfig(cfg config.EngineConfig) *retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries
	if cfg.RetryInitial > 0 {
		rc.InitialInterval = cfg.RetryInitial
	}
	if cfg.RetryMax > 0 {
		rc.MaxInterval = cfg.RetryMax
	}
	return rc
}

// ServiceConfig maps engine tuning onto service settings
func ServiceConfig(cfg config.EngineConfig) *service.Config {
	return &service.Config{
		OrderExpiry:       cfg.OrderExpiry,
		TicketHistorySize: cfg.TicketHistorySize,
		BulkParallelism:   cfg.BulkParallelism,
	}
}
