package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org_id", "123"),
		attribute.String("item_id", "456"),
		attribute.String("rule_type", "PROMOTION"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("org_id"), attrs[0].Key)
	assert.Equal(t, attribute.Key("rule_type"), attrs[1].Key)
}

func TestRecordersAreNilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordCalculation(ctx, "1", "ok")
	m.RecordRuleApplied(ctx, "ITEM", "FIXED", "APPLIED")
	m.RecordCacheLookup(ctx, "memory", true)
	m.RecordRateLimitDenied(ctx, "1", "calculate", "limited")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordRuleMutation(context.Background(), "1", "create")
	m.RecordStatusChange(context.Background(), "SCHEDULED", "ACTIVE")
	m.RecordRateLimitAllowed(context.Background(), "1", "calculate")
}

func TestHTTPMetricsMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetricsWithRegistry(reg)
	require.NoError(t, err)

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/price-rules/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/price-rules/1", nil))
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	counter := findFamily(families, "pricerules_http_requests_total")
	require.NotNil(t, counter)
	require.Len(t, counter.GetMetric(), 1)
	assert.Equal(t, 2.0, counter.GetMetric()[0].GetCounter().GetValue())

	labels := map[string]string{}
	for _, lp := range counter.GetMetric()[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	assert.Equal(t, "/api/price-rules/:id", labels["route"])
	assert.Equal(t, "200", labels["status_code"])
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}
