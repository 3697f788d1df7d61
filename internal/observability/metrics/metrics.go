package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	calculations  metric.Int64Counter
	rulesApplied  metric.Int64Counter
	ruleMutations metric.Int64Counter
	redemptions   metric.Int64Counter
	cacheLookups  metric.Int64Counter
	statusChanges metric.Int64Counter
	rateLimits    metric.Int64Counter
	sweepRuns     metric.Int64Counter
	sweepDuration metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New registers the pricing instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "pricerules"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		name string
		dst  *metric.Int64Counter
	}{
		{"pricerules_calculations_total", &m.calculations},
		{"pricerules_rules_applied_total", &m.rulesApplied},
		{"pricerules_rule_mutations_total", &m.ruleMutations},
		{"pricerules_promotion_redemptions_total", &m.redemptions},
		{"pricerules_rule_cache_lookups_total", &m.cacheLookups},
		{"pricerules_status_changes_total", &m.statusChanges},
		{"pricerules_rate_limit_decisions_total", &m.rateLimits},
		{"pricerules_scheduler_job_runs_total", &m.sweepRuns},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	var err error
	m.sweepDuration, err = meter.Float64Histogram("pricerules_scheduler_job_duration_seconds", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCalculation increments price calculation counts.
func (m *Metrics) RecordCalculation(ctx context.Context, orgID string, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.calculations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRuleApplied increments per-type rule application counts.
func (m *Metrics) RecordRuleApplied(ctx context.Context, ruleType, calculationType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("rule_type", strings.TrimSpace(ruleType)),
		attribute.String("calculation_type", strings.TrimSpace(calculationType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.rulesApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRuleMutation increments create/update/delete counts.
func (m *Metrics) RecordRuleMutation(ctx context.Context, orgID, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.ruleMutations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRedemption increments promotion redemption counts.
func (m *Metrics) RecordRedemption(ctx context.Context, orgID, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.redemptions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheLookup increments rule cache hit or miss counts.
func (m *Metrics) RecordCacheLookup(ctx context.Context, backend string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	attrs := FilterAttributes(
		attribute.String("backend", strings.TrimSpace(backend)),
		attribute.String("outcome", outcome),
	)
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStatusChange increments status sweep transitions.
func (m *Metrics) RecordStatusChange(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
	)
	m.statusChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed counts requests that passed the limiter.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, orgID, endpoint string) {
	m.recordRateLimit(ctx, orgID, endpoint, "allowed", "")
}

// RecordRateLimitDenied counts rejected requests; reason is "limited" or "error".
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, orgID, endpoint, reason string) {
	m.recordRateLimit(ctx, orgID, endpoint, "denied", reason)
}

func (m *Metrics) recordRateLimit(ctx context.Context, orgID, endpoint, outcome, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	)
	m.rateLimits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordJobRun counts a scheduler job run; outcome is "ok", "error", "timeout" or "skipped".
func (m *Metrics) RecordJobRun(ctx context.Context, job, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("job", strings.TrimSpace(job)),
		attribute.String("outcome", outcome),
	)
	m.sweepRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.sweepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":           {},
	"outcome":          {},
	"rule_type":        {},
	"calculation_type": {},
	"action":           {},
	"backend":          {},
	"from_status":      {},
	"to_status":        {},
	"status_code":      {},
	"endpoint":         {},
	"reason":           {},
	"job":              {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
