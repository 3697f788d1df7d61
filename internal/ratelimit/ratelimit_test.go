package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilComponentsWithoutRedis(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
	assert.Nil(t, NewTokenBucket(nil))

	limiter, err := NewCalculateLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, CalculateRate: 1, CalculateBurst: 1}}, nil)
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowOrg(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestAcquireValidatesInput(t *testing.T) {
	var missing *Locker
	lease, err := missing.Acquire(context.Background(), "k", time.Second)
	assert.Nil(t, lease)
	assert.ErrorIs(t, err, ErrLockNotConfigured)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	locker := NewLocker(client)

	_, err = locker.Acquire(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyLockKey)
	_, err = locker.Acquire(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrInvalidLockTTL)

	var held *Lease
	assert.NoError(t, held.Release(context.Background()))
}

func TestCalculateLimiterRejectsBadConfig(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	_, err := NewCalculateLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}, client)
	assert.Error(t, err)
}

func TestTokenBucketValidatesInput(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	bucket := NewTokenBucket(client)

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, ErrEmptyLimiterKey)
	_, err = bucket.Allow(context.Background(), "key", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidLimiterRate)
}

func TestBuildResult(t *testing.T) {
	denied := buildResult(false, 0.5, 1_000, 2, 10)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 10, denied.Limit)
	assert.Equal(t, 0, denied.Remaining)
	assert.Equal(t, 250*time.Millisecond, denied.RetryAfter)
	assert.Equal(t, time.UnixMilli(1_250), denied.ResetTime)

	allowed := buildResult(true, 7.9, 1_000, 2, 10)
	assert.True(t, allowed.Allowed)
	assert.Equal(t, 7, allowed.Remaining)
	assert.Zero(t, allowed.RetryAfter)
}

func TestReplyConversions(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(42), toInt("42"))
	assert.InDelta(t, 3.25, toFloat("3.25"), 1e-9)
	assert.InDelta(t, 2.0, toFloat(int64(2)), 1e-9)
	assert.Equal(t, 4*time.Second, bucketTTL(5, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestStatusSweepLockDefaults(t *testing.T) {
	key, ttl := StatusSweepLock(config.Config{})
	assert.Equal(t, "pricerules:status_sweep:lock", key)
	assert.Equal(t, time.Minute, ttl)
}
