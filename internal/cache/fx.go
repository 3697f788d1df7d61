package cache

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pricerules/internal/clock"
	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/smallbiznis/pricerules/internal/observability/metrics"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rule.cache",
	fx.Provide(ProvideRuleCache),
)

type Params struct {
	fx.In

	Client  *redis.Client    `optional:"true"`
	Clock   clock.Clock
	Pricing *config.PricingConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
	Log     *zap.Logger
}

// ProvideRuleCache prefers Redis when a client is configured.
func ProvideRuleCache(p Params) domain.RuleCache {
	if p.Client != nil {
		p.Log.Info("rule cache backend", zap.String("backend", backendRedis))
		return NewRedisRuleCache(p.Client, p.Pricing, p.Metrics, p.Log)
	}
	p.Log.Info("rule cache backend", zap.String("backend", backendMemory))
	return NewMemoryRuleCache(p.Clock, p.Pricing, p.Metrics)
}
