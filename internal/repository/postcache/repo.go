// Package postcache is a read-through Redis cache in front of the post
// repository. Post embeddings are immutable once written, so cached
// vectors never go stale within their TTL; cache failures degrade to
// the inner repository instead of failing the request.
package postcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/feedworks/prefeed/internal/db"
	"github.com/feedworks/prefeed/internal/domain"
)

const keyPrefix = "prefeed:post_vec:"

// source is the consumer interface for the inner post repository.
type source interface {
	Vector(ctx context.Context, postID int64) (domain.Vector, error)
	Sample(ctx context.Context, limit int) ([]domain.Post, error)
}

// kv is the consumer interface for the cache backend.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Repo decorates a post repository with vector caching.
type Repo struct {
	inner      source
	store      kv
	ttl        time.Duration
	dim        int
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates the caching decorator. cacheTotal is a counter vec with
// label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner source,
	store kv,
	ttl time.Duration,
	dim int,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Repo {
	return &Repo{
		inner:      inner,
		store:      store,
		ttl:        ttl,
		dim:        dim,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Vector returns a cached embedding or falls through to the inner repo.
func (r *Repo) Vector(ctx context.Context, postID int64) (domain.Vector, error) {
	key := fmt.Sprintf("%s%d", keyPrefix, postID)

	if vec, ok := r.getFromCache(ctx, key); ok {
		r.incCache("hit")
		return vec, nil
	}
	r.incCache("miss")

	vec, err := r.inner.Vector(ctx, postID)
	if err != nil {
		return nil, err
	}

	r.putToCache(ctx, key, vec)
	return vec, nil
}

// Sample passes through; candidate sampling must stay random per call.
func (r *Repo) Sample(ctx context.Context, limit int) ([]domain.Post, error) {
	return r.inner.Sample(ctx, limit)
}

func (r *Repo) incCache(result string) {
	if r.cacheTotal != nil {
		r.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (r *Repo) getFromCache(ctx context.Context, key string) (domain.Vector, bool) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			r.logger.Warn("Failed to read cached post vector", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	vec, err := domain.ParseVector(string(data), r.dim)
	if err != nil {
		r.logger.Warn("Failed to parse cached post vector", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (r *Repo) putToCache(ctx context.Context, key string, vec domain.Vector) {
	if err := r.store.SetWithTTL(ctx, key, []byte(domain.EncodeVector(vec)), r.ttl); err != nil {
		r.logger.Warn("Failed to cache post vector", zap.String("key", key), zap.Error(err))
	}
}
