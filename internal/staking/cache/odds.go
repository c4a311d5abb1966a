// Package cache serves survival odds from Redis so hot odds reads skip the
// pool stores. Entries are short-lived and invalidated on every pool change;
// the cache is advisory and every failure degrades to a store read.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "soulledger/pkg/domain"
)

const oddsKeyPrefix = "odds:soul:"

// DefaultTTL bounds staleness when an invalidation is lost.
const DefaultTTL = 30 * time.Second

// OddsCache is a Redis-backed survival odds cache.
type OddsCache struct {
	client *redis.Client
	ttl    time.Duration
}

type Option func(*OddsCache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *OddsCache) {
		c.ttl = ttl
	}
}

// New constructs an odds cache over an established Redis client.
func New(client *redis.Client, opts ...Option) *OddsCache {
	cache := &OddsCache{
		client: client,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Get returns the cached odds for the soul and whether they were present.
func (c *OddsCache) Get(ctx context.Context, soulID id.SoulID) (uint64, bool, error) {
	value, err := c.client.Get(ctx, oddsKey(soulID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	odds, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		// A corrupt entry reads as a miss; the next Set repairs it.
		return 0, false, nil
	}
	return odds, true, nil
}

// Set caches the odds for the soul until the TTL expires or a pool change
// invalidates them.
func (c *OddsCache) Set(ctx context.Context, soulID id.SoulID, odds uint64) error {
	return c.client.Set(ctx, oddsKey(soulID), strconv.FormatUint(odds, 10), c.ttl).Err()
}

// Invalidate drops the cached odds after a pool change.
func (c *OddsCache) Invalidate(ctx context.Context, soulID id.SoulID) error {
	return c.client.Del(ctx, oddsKey(soulID)).Err()
}

func oddsKey(soulID id.SoulID) string {
	return oddsKeyPrefix + soulID.String()
}
