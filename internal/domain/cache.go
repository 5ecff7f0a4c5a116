package domain

import (
	"context"
	"time"
)

// Cache is a simple byte-oriented cache plus an atomic windowed
// counter, used by internal/velocity to track live (cross-batch)
// transaction velocity. internal/api's result cache for GET
// /batches/{id} is a separate instance of this interface.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// IncrementCounter atomically increments a windowed counter and
	// returns its new value. Used for live velocity checks.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
