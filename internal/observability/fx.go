package observability

import (
	"github.com/smallbiznis/pricerules/internal/observability/logger"
	"github.com/smallbiznis/pricerules/internal/observability/metrics"
	"github.com/smallbiznis/pricerules/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module wires the zap logger, the tracer provider and the pricing metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
