// Package bootstrap connects the storage backend and Redis chosen by configuration.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"jobboard/internal/cache"
	"jobboard/internal/config"
	"jobboard/internal/database"
	"jobboard/internal/middleware"
	"jobboard/internal/storage"

	"github.com/redis/go-redis/v9"
)

// Runtime holds the connections shared by the server and commands.
type Runtime struct {
	KV    storage.KV
	Redis *redis.Client
}

// InitRuntime connects Redis (when REDIS_URL is set) and the configured
// STORAGE_BACKEND. A redis backend requires a reachable Redis.
func InitRuntime(cfg *config.Config) (*Runtime, error) {
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		// may be nil when unreachable; rate limits and pub/sub then degrade
		rdb = cache.InitRedis(cfg.RedisURL)
	}

	kv, err := openKV(cfg, rdb)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}

	middleware.Logger.Info("Storage backend ready",
		slog.String("backend", kv.Backend()),
		slog.String("key", cfg.StorageKey),
		slog.Bool("redis", rdb != nil),
	)
	return &Runtime{KV: kv, Redis: rdb}, nil
}

func openKV(cfg *config.Config, rdb *redis.Client) (storage.KV, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory, "":
		return storage.NewMemory(), nil
	case config.BackendRedis:
		if rdb == nil {
			return nil, errors.New("STORAGE_BACKEND=redis requires a reachable REDIS_URL")
		}
		return storage.NewRedis(rdb), nil
	case config.BackendSQL:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		return storage.NewSQL(db), nil
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

// Close releases the storage backend and Redis. With the redis backend both
// share one client, which is closed once.
func (r *Runtime) Close() error {
	var errs []error
	if r.KV != nil {
		if err := r.KV.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Redis != nil && (r.KV == nil || r.KV.Backend() != config.BackendRedis) {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
