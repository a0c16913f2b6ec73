package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/clickmap/pkg/geocode"
)

const redisKeyPrefix = "clickmap:geocode:"

// RedisCache is a geocode.Cache backed by Redis. Entries expire after ttl;
// zero keeps them forever.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// OpenRedis creates a client for addr. It returns nil when addr is empty.
func OpenRedis(addr, password string, dbIndex int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: dbIndex})
}

// NewRedisCache wraps client as a geocode cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return eris.Wrap(c.client.Ping(ctx).Err(), "redis: ping")
}

// GetLocation implements geocode.Cache.
func (c *RedisCache) GetLocation(ctx context.Context, key string) (*geocode.Result, error) {
	s, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "redis: get location")
	}
	var r geocode.Result
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, eris.Wrap(err, "redis: unmarshal location")
	}
	return &r, nil
}

// PutLocation implements geocode.Cache.
func (c *RedisCache) PutLocation(ctx context.Context, key, _ string, result *geocode.Result) error {
	b, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "redis: marshal location")
	}
	return eris.Wrap(c.client.Set(ctx, redisKeyPrefix+key, b, c.ttl).Err(), "redis: put location")
}

// ClearLocations deletes every cached location.
func (c *RedisCache) ClearLocations(ctx context.Context) (int64, error) {
	var deleted int64
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, eris.Wrap(err, "redis: delete location")
		}
		deleted += n
	}
	return deleted, eris.Wrap(iter.Err(), "redis: scan locations")
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// TieredCache reads through a fast cache in front of a durable one. Durable
// hits are copied into the fast tier.
type TieredCache struct {
	fast    geocode.Cache
	durable geocode.Cache
}

// NewTieredCache layers fast over durable.
func NewTieredCache(fast, durable geocode.Cache) *TieredCache {
	return &TieredCache{fast: fast, durable: durable}
}

// GetLocation implements geocode.Cache.
func (t *TieredCache) GetLocation(ctx context.Context, key string) (*geocode.Result, error) {
	if r, err := t.fast.GetLocation(ctx, key); err == nil && r != nil {
		return r, nil
	}
	r, err := t.durable.GetLocation(ctx, key)
	if err != nil || r == nil {
		return r, err
	}
	_ = t.fast.PutLocation(ctx, key, "", r)
	return r, nil
}

// PutLocation implements geocode.Cache.
func (t *TieredCache) PutLocation(ctx context.Context, key, label string, result *geocode.Result) error {
	if err := t.durable.PutLocation(ctx, key, label, result); err != nil {
		return err
	}
	return t.fast.PutLocation(ctx, key, label, result)
}
