// Package storage provides the key/value stores that hold the persisted board.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// KV is a minimal string-keyed byte store. Implementations must make a single
// Set visible atomically to subsequent Gets.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
	// Backend names the implementation for logs and metrics.
	Backend() string
}
