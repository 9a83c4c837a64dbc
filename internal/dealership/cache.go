package dealership

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// Reader is the profile lookup surface the cache fronts.
type Reader interface {
	Get(ctx context.Context, id string) (*Dealership, error)
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*Dealership, error)
}

// CachedStore fronts a Reader with a Redis look-aside cache. Cache failures
// fall through to the underlying store; a broken Redis never breaks lookups.
type CachedStore struct {
	inner  Reader
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedStore wraps inner with a Redis cache.
func NewCachedStore(inner Reader, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedStore {
	if inner == nil {
		panic("dealership: inner store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedStore{inner: inner, redis: redisClient, ttl: ttl, logger: logger}
}

func profileKey(id string) string { return fmt.Sprintf("dealership:profile:%s", id) }

func phoneKey(phone string) string { return fmt.Sprintf("dealership:phone:%s", phone) }

// Get fetches a dealership by id, from cache when possible.
func (c *CachedStore) Get(ctx context.Context, id string) (*Dealership, error) {
	if d := c.cached(ctx, profileKey(id)); d != nil {
		return d, nil
	}
	d, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, profileKey(id), d)
	return d, nil
}

// GetByPhoneNumber resolves a dealership by its SMS number, from cache when
// possible.
func (c *CachedStore) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*Dealership, error) {
	if d := c.cached(ctx, phoneKey(phoneNumber)); d != nil {
		return d, nil
	}
	d, err := c.inner.GetByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	c.store(ctx, phoneKey(phoneNumber), d)
	return d, nil
}

// Invalidate drops the cached profile for a dealership.
func (c *CachedStore) Invalidate(ctx context.Context, d *Dealership) {
	if c.redis == nil || d == nil {
		return
	}
	if err := c.redis.Del(ctx, profileKey(d.ID), phoneKey(d.PhoneNumber)).Err(); err != nil {
		c.logger.Warn("dealership cache invalidate failed", "error", err, "dealership_id", d.ID)
	}
}

func (c *CachedStore) cached(ctx context.Context, key string) *Dealership {
	if c.redis == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.Warn("dealership cache read failed", "error", err, "key", key)
		return nil
	}
	var d Dealership
	if err := json.Unmarshal(data, &d); err != nil {
		c.logger.Warn("dealership cache entry corrupt", "error", err, "key", key)
		return nil
	}
	return &d
}

func (c *CachedStore) store(ctx context.Context, key string, d *Dealership) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("dealership cache write failed", "error", err, "key", key)
	}
}
