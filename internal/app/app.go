// Package app wires configuration into a ready scheduling service: the
// ledger backend, the provider lock and the event publisher.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/events"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

// ProviderRegistry is the write side of the provider directory mirror.
type ProviderRegistry interface {
	UpsertProvider(ctx context.Context, p scheduling.Provider) error
	ListProviderIDs(ctx context.Context) ([]uuid.UUID, error)
}

type Runtime struct {
	Config    config.Config
	Service   *scheduling.Service
	Providers ProviderRegistry
	PgPool    *pgxpool.Pool
	PgStore   *scheduling.PgStore
	Memory    *scheduling.MemoryStore
	Redis     *redis.Client
	Publisher events.Publisher

	closers []func()
}

// Build connects every configured dependency. Redis and Kafka are optional:
// without them the process falls back to an in-process lock and drops events.
func Build(ctx context.Context, cfg config.Config, source string) (*Runtime, error) {
	rt := &Runtime{Config: cfg}

	var stores scheduling.Stores
	switch cfg.StoreBackend {
	case config.BackendMemory:
		rt.Memory = scheduling.NewMemoryStore()
		rt.Providers = rt.Memory
		stores = rt.Memory.Stores()
		log.Warn().Msg("using in-memory store, data is lost on exit")
	default:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		rt.PgPool = pool
		rt.closers = append(rt.closers, pool.Close)
		rt.PgStore = scheduling.NewPgStore(pool)
		rt.Providers = rt.PgStore
		stores = rt.PgStore.Stores()
		log.Info().Msg("connected to Postgres")
	}

	var locker redisclient.Locker
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, cfg)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		rt.Redis = rdb
		rt.closers = append(rt.closers, func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		})
		locker = redisclient.NewRedisProviderLocker(rdb, cfg.LockTTL, cfg.LockWait)
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	} else {
		locker = redisclient.NewLocalLocker(cfg.LockWait)
		log.Warn().Msg("REDIS_ADDR not set, provider locks are local to this process")
	}

	rt.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, source)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		rt.Publisher = pub
		rt.closers = append(rt.closers, func() {
			if err := pub.Close(); err != nil && !errors.Is(err, events.ErrPublisherClosed) {
				log.Error().Err(err).Msg("error closing kafka publisher")
			}
		})
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing booking events")
	}

	rt.Service = scheduling.NewService(stores, locker, rt.Publisher, cfg)
	return rt, nil
}

// Close releases dependencies in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
