// Package cache is a small JSON-over-Redis cache used for job status records.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ncobase/jobpanel/job/structs"
	"github.com/redis/go-redis/v9"
)

// Cache stores JSON encoded values of T in Redis.
type Cache[T any] struct {
	rc  *redis.Client
	key func(field string) string
}

// NewCache creates a new Cache instance whose keys are "prefix:field".
func NewCache[T any](rc *redis.Client, prefix string) *Cache[T] {
	return &Cache[T]{
		rc: rc,
		key: func(field string) string {
			if prefix == "" {
				return field
			}
			return fmt.Sprintf("%s:%s", prefix, field)
		},
	}
}

// Key returns the Redis key of a field.
func (c *Cache[T]) Key(field string) string {
	return c.key(field)
}

// Get retrieves a single item from cache. A miss returns nil, nil.
func (c *Cache[T]) Get(ctx context.Context, field string) (*T, error) {
	if c.rc == nil {
		return nil, errors.New("redis client is nil, cannot get cache")
	}

	result, err := c.rc.Get(ctx, c.Key(field)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var row T
	if err = json.Unmarshal([]byte(result), &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &row, nil
}

// Set saves a single item into cache
func (c *Cache[T]) Set(ctx context.Context, field string, data *T, expire ...time.Duration) error {
	if c.rc == nil {
		return errors.New("redis client is nil, cannot set cache")
	}

	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	exp := time.Duration(0)
	if len(expire) > 0 {
		exp = expire[0]
	}
	if err := c.rc.Set(ctx, c.Key(field), bytes, exp).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// StatusCache stores job status records under "scrape:{id}:status".
type StatusCache struct {
	cache *Cache[structs.StatusInfo]
	ttl   time.Duration
}

// NewStatusCache returns a status cache whose entries expire after ttl.
func NewStatusCache(rc *redis.Client, ttl time.Duration) *StatusCache {
	c := NewCache[structs.StatusInfo](rc, "scrape")
	c.key = func(id string) string { return fmt.Sprintf("scrape:%s:status", id) }
	return &StatusCache{cache: c, ttl: ttl}
}

// Get returns the cached status, nil on a miss.
func (s *StatusCache) Get(ctx context.Context, id string) (*structs.StatusInfo, error) {
	return s.cache.Get(ctx, id)
}

// Set caches the status.
func (s *StatusCache) Set(ctx context.Context, id string, status *structs.StatusInfo) error {
	return s.cache.Set(ctx, id, status, s.ttl)
}
