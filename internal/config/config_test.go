package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DEPLOYMENT_ENV", "production")
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("DATABASE_SLOW_QUERY_MS", "50")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_ENABLED", "yes")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("RATE_LIMIT_CALCULATE_RATE", "12.5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("SEED_ORG_ID", " 1001 ")
	t.Setenv("SEED_OWNER_USER_ID", "2002")
	t.Setenv("SEED_RULES_FILE", "rules.yml")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 50, cfg.DBSlowQueryMs)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.OtelEnabled)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 12.5, cfg.RateLimit.CalculateRate)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, SeedConfig{OrgID: "1001", OwnerUserID: "2002", RulesFile: "rules.yml"}, cfg.Seed)
}

func TestLoadFallsBackOnBadValues(t *testing.T) {
	t.Setenv("DATABASE_MAX_OPEN_CONN", "many")
	t.Setenv("REDIS_ENABLED", "maybe")
	t.Setenv("RATE_LIMIT_CALCULATE_BURST", "")

	cfg := Load()

	assert.Equal(t, 20, cfg.DBMaxOpenConn)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.CalculateBurst)
}
