package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"vox-be/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache stores products as JSON under catalog:product:<id>.
type RedisCache struct {
	client  redis.Cmdable
	baseTTL time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, baseTTL: ttl}
}

func (c *RedisCache) Get(ctx context.Context, id string) (*Product, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product failed: %w", err)
	}
	return &p, nil
}

func (c *RedisCache) Set(ctx context.Context, p *Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}

	// jitter keeps a warm cache from expiring all at once
	ttl := c.baseTTL + time.Duration(rand.Int63n(int64(c.baseTTL/5)+1))
	if err := c.client.Set(ctx, cacheKey(p.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(id string) string {
	return fmt.Sprintf("catalog:product:%s", id)
}

// CachedLookup reads through the cache. Cache failures fall back to the
// underlying lookup; they never fail a checkout.
type CachedLookup struct {
	next  Lookup
	cache *RedisCache
}

func NewCachedLookup(next Lookup, cache *RedisCache) *CachedLookup {
	return &CachedLookup{next: next, cache: cache}
}

func (c *CachedLookup) GetProduct(ctx context.Context, id string) (*Product, error) {
	log := logger.FromCtx(ctx).With(zap.String("product_id", id))

	p, err := c.cache.Get(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Warn("catalog cache read failed", zap.Error(err))
	}

	p, err = c.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, p); err != nil {
		log.Warn("catalog cache write failed", zap.Error(err))
	}
	return p, nil
}
