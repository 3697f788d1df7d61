package observability

import (
	"testing"

	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:  "production",
		OTLPEndpoint: " collector:4317 ",
		Observability: config.ObservabilityConfig{
			LogFormat:         "CONSOLE",
			OtelProtocol:      "HTTP",
			OtelSamplingRatio: 3,
		},
	})

	assert.Equal(t, "pricerules", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestConfigDerivesComponentConfigs(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:     "rules",
		AppVersion:  "1.2.0",
		Environment: "local",
		Observability: config.ObservabilityConfig{
			LogLevel:          "warn",
			OtelEnabled:       true,
			OtelProtocol:      "grpc",
			OtelSamplingRatio: 0.5,
		},
	})

	assert.True(t, cfg.Debug())
	assert.Equal(t, "warn", cfg.Logger().Level)
	assert.True(t, cfg.Logger().Debug)
	assert.Equal(t, "rules", cfg.Tracing().ServiceName)
	assert.Equal(t, 0.5, cfg.Tracing().SamplingRatio)
	assert.True(t, cfg.Metrics().Enabled)
	assert.Equal(t, "1.2.0", cfg.Tracing().ServiceVersion)
}
