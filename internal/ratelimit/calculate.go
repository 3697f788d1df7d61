package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pricerules/internal/config"
)

const (
	keyCalculateOrg = "pricerules:calculate:org:%s"
	keyStatusSweep  = "pricerules:status_sweep:lock"
)

// CalculateLimiter throttles price calculations per organization.
type CalculateLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewCalculateLimiter returns nil when rate limiting is disabled or Redis is
// not configured.
func NewCalculateLimiter(cfg config.Config, client *redis.Client) (*CalculateLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil, nil
	}
	if limitCfg.CalculateRate <= 0 || limitCfg.CalculateBurst <= 0 {
		return nil, errors.New("calculate rate limit must be positive")
	}

	return &CalculateLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.CalculateRate,
		burst:  limitCfg.CalculateBurst,
	}, nil
}

func (l *CalculateLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *CalculateLimiter) AllowOrg(ctx context.Context, orgID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyCalculateOrg, strings.TrimSpace(orgID)), l.rate, l.burst)
}

// StatusSweepLock reports the key and TTL the status sweeper holds while it runs.
func StatusSweepLock(cfg config.Config) (string, time.Duration) {
	ttl := time.Duration(cfg.RateLimit.SweepLockTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	return keyStatusSweep, ttl
}
