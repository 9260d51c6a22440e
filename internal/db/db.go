// Package db defines the narrow key-value contract consumed by the
// cache layer. The durable relational store is accessed through sqlx
// repositories directly and is not part of this interface.
package db

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound signals a cache miss.
var ErrKeyNotFound = errors.New("key not found")

// KVStore provides the key-value operations the post-vector cache needs.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close()
}
