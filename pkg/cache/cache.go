// Package cache stores resolved charts per shop and product.
//
// Every key embeds the shop's generation number. Writes to a shop's templates
// or assignments bump the generation, which orphans all of that shop's entries
// at once; the orphans expire on their TTL.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/shop"
)

const keyPrefix = "fern"

// Key identifies one cached resolution.
type Key struct {
	Shop      string
	ProductID string
	// Kind is the requested chart kind, empty for "any".
	Kind string
	// Generation must be read with Generation before the data it caches.
	Generation int64
}

// ChartCache caches resolution results as opaque bytes.
type ChartCache interface {
	// Generation returns the shop's current generation. ok is false when the
	// cache is unavailable, in which case Get and Set must be skipped.
	Generation(ctx context.Context, shopName string) (generation int64, ok bool)
	Get(ctx context.Context, key Key) ([]byte, bool)
	Set(ctx context.Context, key Key, value []byte)
	Invalidate(ctx context.Context, shopName string)
}

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// RedisCache implements ChartCache on Redis. Redis failures are logged and
// treated as misses.
type RedisCache struct {
	store  Store
	ttl    time.Duration
	logger ectologger.Logger
}

func NewRedisCache(store Store, ttl time.Duration, logger ectologger.Logger) *RedisCache {
	return &RedisCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

func generationKey(handle string) string {
	return fmt.Sprintf("%s:gen:%s", keyPrefix, handle)
}

func entryKey(key Key) string {
	kind := key.Kind
	if kind == "" {
		kind = "any"
	}
	return fmt.Sprintf("%s:chart:%s:%d:%s:%s", keyPrefix, shop.Handle(key.Shop), key.Generation, key.ProductID, kind)
}

func (c *RedisCache) Generation(ctx context.Context, shopName string) (int64, bool) {
	value, err := c.store.Get(ctx, generationKey(shop.Handle(shopName)))
	if err != nil {
		if redis.IsNil(err) {
			return 0, true
		}
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to read cache generation")
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return 0, false
	}
	generation, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Unreadable cache generation")
		return 0, false
	}
	return generation, true
}

// Get reads an entry of the generation in key.
func (c *RedisCache) Get(ctx context.Context, key Key) ([]byte, bool) {
	value, err := c.store.Get(ctx, entryKey(key))
	if err != nil {
		if !redis.IsNil(err) {
			c.logger.WithContext(ctx).WithError(err).Warn("Failed to read cached chart")
			metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			return nil, false
		}
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return []byte(value), true
}

// Set stores an entry under the generation in key. An invalidation that
// happened after that generation was read leaves the entry orphaned.
func (c *RedisCache) Set(ctx context.Context, key Key, value []byte) {
	if err := c.store.Set(ctx, entryKey(key), value, c.ttl); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to cache chart")
	}
}

// Invalidate drops every cached resolution of a shop.
func (c *RedisCache) Invalidate(ctx context.Context, shopName string) {
	handle := shop.Handle(shopName)

	generation, err := c.store.Incr(ctx, generationKey(handle))
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("shop", handle).Warn("Failed to invalidate chart cache")
		return
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"shop":       handle,
		"generation": generation,
	}).Debug("Invalidated chart cache")
}

// NoopCache is used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Generation(context.Context, string) (int64, bool) { return 0, false }
func (NoopCache) Get(context.Context, Key) ([]byte, bool)          { return nil, false }
func (NoopCache) Set(context.Context, Key, []byte)                 {}
func (NoopCache) Invalidate(context.Context, string)               {}
