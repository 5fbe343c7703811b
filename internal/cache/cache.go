// Package cache provides the Redis-backed read-through cache used by every read path.
//
// Keys follow the {domain}.{EntityType}.{identifier} scheme, e.g.
// "Reservation.Reservation.<id>" or "Reservation.Ticket.<code>".
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nekogravitycat/reservation-backend/internal/metrics"
)

// Domain prefixes every key written by this service.
const Domain = "Reservation"

// Entity types used in keys.
const (
	EntityReservation = "Reservation"
	EntityTicket      = "Ticket"
	EntityStatus      = "Status"
	EntityStats       = "Stats"
)

// Key builds a cache key for the entity type and identifier.
func Key(entity, id string) string {
	return Domain + "." + entity + "." + id
}

// Cache wraps a Redis client. A nil *Cache, or one without a client, passes every lookup straight to the factory.
type Cache struct {
	rdb     *redis.Client
	group   singleflight.Group
	metrics *metrics.Registry
	logger  *zap.Logger
}

// New creates a cache on top of rdb. rdb may be nil to disable caching.
func New(rdb *redis.Client, m *metrics.Registry, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{rdb: rdb, metrics: m, logger: logger}
}

// GetOrCreate returns the cached value for key, or loads it with factory and stores it for ttl.
// Concurrent misses on the same key share one factory call.
// Redis failures are logged and degrade to the factory; factory errors are never cached.
func GetOrCreate[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, factory func(ctx context.Context) (T, error)) (T, error) {
	if c == nil || c.rdb == nil {
		return factory(ctx)
	}
	entity := entityOf(key)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			c.metrics.CacheLookup(entity, "hit")
			return v, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
		c.metrics.CacheLookup(entity, "corrupt")
	case errors.Is(err, redis.Nil):
		c.metrics.CacheLookup(entity, "miss")
	default:
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		c.metrics.CacheLookup(entity, "error")
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, err := factory(ctx)
		if err != nil {
			return val, err
		}
		payload, err := json.Marshal(val)
		if err != nil {
			c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
			return val, nil
		}
		if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate removes the given keys. Empty keys are ignored.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	filtered := keys[:0:0]
	for _, k := range keys {
		if k != "" {
			filtered = append(filtered, k)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, filtered...).Err(); err != nil {
		return fmt.Errorf("cache invalidate failed: %w", err)
	}
	return nil
}

// InvalidatePrefix removes every key starting with prefix. Used for aggregated statistics,
// whose keys embed a hash of the filter and cannot be enumerated by the writer.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan failed: %w", err)
	}
	return c.Invalidate(ctx, keys...)
}

func entityOf(key string) string {
	parts := strings.SplitN(key, ".", 3)
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[1]
}
