//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"medverify/internal/ratelimit"
	"medverify/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestLimitIsSharedAcrossInstances() {
	ctx := context.Background()
	a := ratelimit.NewRedisStore(s.redis.Client)
	b := ratelimit.NewRedisStore(s.redis.Client)

	res, err := a.Allow(ctx, "ip:203.0.113.7", 2, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(1, res.Remaining)

	res, err = b.Allow(ctx, "ip:203.0.113.7", 2, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)

	res, err = a.Allow(ctx, "ip:203.0.113.7", 2, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
}

func (s *RedisStoreSuite) TestRejectedRequestsAreNotCounted() {
	ctx := context.Background()
	store := ratelimit.NewRedisStore(s.redis.Client)

	_, err := store.Allow(ctx, "k", 1, 300*time.Millisecond)
	s.Require().NoError(err)
	for range 3 {
		res, err := store.Allow(ctx, "k", 1, 300*time.Millisecond)
		s.Require().NoError(err)
		s.False(res.Allowed)
	}

	s.Eventually(func() bool {
		res, err := store.Allow(ctx, "k", 1, 300*time.Millisecond)
		return err == nil && res.Allowed
	}, 2*time.Second, 50*time.Millisecond)
}
