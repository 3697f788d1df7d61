package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pricerules/internal/clock"
	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/smallbiznis/pricerules/internal/observability/metrics"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
)

const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

// memoryRuleCache keeps candidate rule sets in process. TTL is read from the
// pricing config on every Set so reloads take effect without a restart.
type memoryRuleCache struct {
	rules   Cache[string, []domain.PriceRule]
	pricing *config.PricingConfigHolder
	metrics *metrics.Metrics

	// mu orders Set against Invalidate so a superseded generation never lands.
	mu          sync.Mutex
	generations map[snowflake.ID]int64
}

func NewMemoryRuleCache(clk clock.Clock, pricing *config.PricingConfigHolder, m *metrics.Metrics) domain.RuleCache {
	return &memoryRuleCache{
		rules:       NewTTLCacheWithClock[string, []domain.PriceRule](clk),
		pricing:     pricing,
		metrics:     m,
		generations: make(map[snowflake.ID]int64),
	}
}

func (c *memoryRuleCache) Get(ctx context.Context, orgID snowflake.ID, key string) ([]domain.PriceRule, bool) {
	rules, ok := c.rules.Get(cacheKey(orgID.String(), key))
	c.metrics.RecordCacheLookup(ctx, backendMemory, ok)
	if !ok {
		return nil, false
	}
	return cloneRules(rules), true
}

func (c *memoryRuleCache) Generation(ctx context.Context, orgID snowflake.ID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[orgID]
}

func (c *memoryRuleCache) Set(ctx context.Context, orgID snowflake.ID, key string, generation int64, rules []domain.PriceRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[orgID] != generation {
		return
	}
	c.rules.Set(cacheKey(orgID.String(), key), cloneRules(rules), ruleTTL(c.pricing))
}

func (c *memoryRuleCache) Invalidate(ctx context.Context, orgID snowflake.ID) {
	prefix := orgID.String() + "|"
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[orgID]++
	c.rules.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func ruleTTL(pricing *config.PricingConfigHolder) time.Duration {
	if pricing == nil {
		return config.DefaultPricingConfig().RuleCacheTTL
	}
	return pricing.Get().RuleCacheTTL
}

func cloneRules(rules []domain.PriceRule) []domain.PriceRule {
	if rules == nil {
		return nil
	}
	out := make([]domain.PriceRule, len(rules))
	copy(out, rules)
	return out
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, "|")
}
