package storage

import (
	"context"
	"errors"
	"fmt"

	"jobboard/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Redis stores values as plain Redis strings without expiry.
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps an initialized Redis client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	defer observability.TrackStorage("get", r.Backend())()
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	defer observability.TrackStorage("set", r.Backend())()
	if err := r.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Backend() string { return "redis" }
