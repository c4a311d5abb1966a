//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulledger/internal/staking/cache"
	"soulledger/pkg/testutil/containers"
)

type OddsCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.OddsCache
}

func TestOddsCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OddsCacheSuite))
}

func (s *OddsCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = cache.New(s.redis.Client)
}

func (s *OddsCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *OddsCacheSuite) TestSetGetRoundTrip() {
	ctx := context.Background()

	_, ok, err := s.cache.Get(ctx, 1)
	s.Require().NoError(err)
	s.False(ok, "cold cache misses")

	s.Require().NoError(s.cache.Set(ctx, 1, 6500))

	odds, ok, err := s.cache.Get(ctx, 1)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(uint64(6500), odds)
}

func (s *OddsCacheSuite) TestInvalidate() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, 7, 4200))

	s.Require().NoError(s.cache.Invalidate(ctx, 7))

	_, ok, err := s.cache.Get(ctx, 7)
	s.Require().NoError(err)
	s.False(ok, "invalidation drops the entry")
}

func (s *OddsCacheSuite) TestEntriesAreScopedPerSoul() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, 1, 1000))
	s.Require().NoError(s.cache.Set(ctx, 2, 9000))

	s.Require().NoError(s.cache.Invalidate(ctx, 1))

	odds, ok, err := s.cache.Get(ctx, 2)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(uint64(9000), odds)
}

func (s *OddsCacheSuite) TestTTLExpiry() {
	ctx := context.Background()
	short := cache.New(s.redis.Client, cache.WithTTL(100*time.Millisecond))

	s.Require().NoError(short.Set(ctx, 3, 5000))
	time.Sleep(250 * time.Millisecond)

	_, ok, err := short.Get(ctx, 3)
	s.Require().NoError(err)
	s.False(ok, "entry expires with its TTL")
}

func (s *OddsCacheSuite) TestCorruptEntryReadsAsMiss() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, "odds:soul:9", "not-a-number", 0).Err())

	_, ok, err := s.cache.Get(ctx, 9)
	s.Require().NoError(err)
	s.False(ok)
}
