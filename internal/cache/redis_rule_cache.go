package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/snappy"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/smallbiznis/pricerules/internal/observability/metrics"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"go.uber.org/zap"
)

const (
	keyRuleVersion = "pricerules:rules:%s:version"
	keyRuleSet     = "pricerules:rules:%s:v%d:%s"
)

// redisRuleCache shares candidate sets between replicas. Invalidation bumps a
// per-organization version so stale keys age out on their own TTL.
type redisRuleCache struct {
	client  *redis.Client
	pricing *config.PricingConfigHolder
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewRedisRuleCache(client *redis.Client, pricing *config.PricingConfigHolder, m *metrics.Metrics, log *zap.Logger) domain.RuleCache {
	return &redisRuleCache{
		client:  client,
		pricing: pricing,
		metrics: m,
		log:     log.Named("rule.cache"),
	}
}

func (c *redisRuleCache) Get(ctx context.Context, orgID snowflake.ID, key string) ([]domain.PriceRule, bool) {
	rules, err := c.get(ctx, orgID, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("rule cache read failed", zap.String("org_id", orgID.String()), zap.Error(err))
		}
		c.metrics.RecordCacheLookup(ctx, backendRedis, false)
		return nil, false
	}
	c.metrics.RecordCacheLookup(ctx, backendRedis, true)
	return rules, true
}

func (c *redisRuleCache) get(ctx context.Context, orgID snowflake.ID, key string) ([]domain.PriceRule, error) {
	version, err := c.version(ctx, orgID)
	if err != nil {
		return nil, err
	}
	payload, err := c.client.Get(ctx, fmt.Sprintf(keyRuleSet, orgID.String(), version, key)).Bytes()
	if err != nil {
		return nil, err
	}
	return decodeRules(payload)
}

// Generation returns -1 when the version cannot be read; Set ignores it.
func (c *redisRuleCache) Generation(ctx context.Context, orgID snowflake.ID) int64 {
	version, err := c.version(ctx, orgID)
	if err != nil {
		c.log.Warn("rule cache version read failed", zap.String("org_id", orgID.String()), zap.Error(err))
		return -1
	}
	return version
}

// Set writes under the generation observed before the store read. After an
// Invalidate that key belongs to a retired version and is never read again.
func (c *redisRuleCache) Set(ctx context.Context, orgID snowflake.ID, key string, generation int64, rules []domain.PriceRule) {
	ttl := ruleTTL(c.pricing)
	if ttl <= 0 || generation < 0 {
		return
	}
	payload, err := encodeRules(rules)
	if err != nil {
		c.log.Warn("rule cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, fmt.Sprintf(keyRuleSet, orgID.String(), generation, key), payload, ttl).Err(); err != nil {
		c.log.Warn("rule cache write failed", zap.String("org_id", orgID.String()), zap.Error(err))
	}
}

func (c *redisRuleCache) Invalidate(ctx context.Context, orgID snowflake.ID) {
	if err := c.client.Incr(ctx, fmt.Sprintf(keyRuleVersion, orgID.String())).Err(); err != nil {
		c.log.Warn("rule cache invalidate failed", zap.String("org_id", orgID.String()), zap.Error(err))
	}
}

// version returns 0 with redis.Nil when the org has never been invalidated.
func (c *redisRuleCache) version(ctx context.Context, orgID snowflake.ID) (int64, error) {
	version, err := c.client.Get(ctx, fmt.Sprintf(keyRuleVersion, orgID.String())).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

func encodeRules(rules []domain.PriceRule) ([]byte, error) {
	raw, err := json.Marshal(rules)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func decodeRules(payload []byte) ([]domain.PriceRule, error) {
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, err
	}
	var rules []domain.PriceRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}
