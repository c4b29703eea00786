package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/jot/internal/config"
	"github.com/MrSnakeDoc/jot/internal/export"
	"github.com/MrSnakeDoc/jot/internal/logger"
	"github.com/MrSnakeDoc/jot/internal/redis"
	"github.com/MrSnakeDoc/jot/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/jot/internal/store/redis"
	"github.com/MrSnakeDoc/jot/internal/workspace"
)

// Store is what both binaries need from the configured store.
type Store interface {
	workspace.Backend
	Ping(ctx context.Context) error
}

// Backend is the opened store plus the resources behind it.
type Backend struct {
	Kind  string
	Store Store

	memory      *memory.Store
	redisStore  *redisstore.Store
	redisClient *goredis.Client
	logger      logger.Logger
}

// OpenBackend connects the store selected by cfg.Store. Redis is retried
// until cfg.RedisConnectTimeout runs out.
func OpenBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (*Backend, error) {
	b := &Backend{Kind: cfg.Store, logger: log}

	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using the in-memory store, data is lost on exit")
		return NewMemoryBackend(memory.New(memory.Options{
			SessionTTL: cfg.SessionTTL,
			BcryptCost: cfg.BcryptCost,
		}), log), nil

	case config.StoreRedis:
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, err
		}
		b.redisClient = client
		b.redisStore = redisstore.NewStore(client, redisstore.Options{
			SessionTTL: cfg.SessionTTL,
			BcryptCost: cfg.BcryptCost,
		}, log)
		b.Store = b.redisStore

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return b, nil
}

// NewMemoryBackend wraps an in-memory store.
func NewMemoryBackend(st *memory.Store, log logger.Logger) *Backend {
	return &Backend{Kind: config.StoreMemory, Store: st, memory: st, logger: log}
}

// WatchSessions starts delivering provider-side session expiry. With Redis
// this subscribes to keyspace notifications, enabling them first when
// enable is set; managed servers that refuse CONFIG only get a warning.
func (b *Backend) WatchSessions(ctx context.Context, enable bool) error {
	if b.redisStore == nil {
		return nil
	}
	if enable {
		if err := redis.EnableExpiryEvents(ctx, b.redisClient); err != nil {
			b.logger.Warn("could not enable keyspace notifications, sessions expire silently",
				logger.Error(err))
		}
	}
	return b.redisStore.Start(ctx)
}

// SessionSweeper returns the memory store when sessions must be expired by
// the process, nil otherwise.
func (b *Backend) SessionSweeper() interface{ SweepSessions() int } {
	if b.memory == nil {
		return nil
	}
	return b.memory
}

// Close releases the store.
func (b *Backend) Close() {
	if b.redisStore != nil {
		b.redisStore.Stop()
	}
	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			b.logger.Warnf("failed to close redis: %v", err)
		} else {
			b.logger.Info("✅ Redis closed cleanly")
		}
	}
}

// NewExporter builds the export pipeline from the PDF settings.
func NewExporter(cfg *config.Config, log logger.Logger) *export.Exporter {
	acq := export.NewFontAcquirer(export.AcquirerOptions{
		StyleFile: cfg.PDFStyleFile,
		FontDir:   cfg.PDFFontDir,
		FontURL:   cfg.PDFFontURL,
		Timeout:   cfg.PDFFetchTimeout,
	}, log)
	return export.NewExporter(acq, log)
}
