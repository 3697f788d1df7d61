package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pricerules/internal/observability/logger"
	"github.com/smallbiznis/pricerules/internal/orgcontext"
	"github.com/smallbiznis/pricerules/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitReasonLimited = "limited"
	rateLimitReasonError   = "error"
)

// CalculateRateLimit throttles price calculations per organization.
func (s *Server) CalculateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.calculateLimiter == nil || !s.calculateLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		orgID, ok := orgcontext.OrgIDFromContext(ctx)
		if !ok || orgID == 0 {
			AbortWithError(c, ErrOrgRequired)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.calculateLimiter.AllowOrg(ctx, orgID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("calculate rate limit check failed", zap.Error(err))
			s.obsMetrics.RecordRateLimitDenied(ctx, orgID.String(), endpoint, rateLimitReasonError)
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		setRateLimitHeaders(c, result)
		if !result.Allowed {
			logger.FromContext(ctx).Warn("calculate rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.Duration("retry_after", result.RetryAfter),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, orgID.String(), endpoint, rateLimitReasonLimited)
			c.Header("Retry-After", retryAfterSeconds(result.RetryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, orgID.String(), endpoint)
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *ratelimit.Result) {
	if result == nil || result.Limit <= 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if !result.ResetTime.IsZero() {
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
	}
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int64(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
