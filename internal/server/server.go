package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/pricerules/internal/audit"
	auditdomain "github.com/smallbiznis/pricerules/internal/audit/domain"
	"github.com/smallbiznis/pricerules/internal/authorization"
	"github.com/smallbiznis/pricerules/internal/cache"
	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/smallbiznis/pricerules/internal/observability"
	obsmiddleware "github.com/smallbiznis/pricerules/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/pricerules/internal/observability/metrics"
	obstracing "github.com/smallbiznis/pricerules/internal/observability/tracing"
	"github.com/smallbiznis/pricerules/internal/pricerule"
	priceruledomain "github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"github.com/smallbiznis/pricerules/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	authorization.Module,
	audit.Module,
	cache.Module,
	ratelimit.Module,
	pricerule.Module,
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine           *gin.Engine
	cfg              config.Config
	log              *zap.Logger
	authzSvc         authorization.Service
	auditSvc         auditdomain.Service
	ruleSvc          priceruledomain.Service
	obsMetrics       *obsmetrics.Metrics
	calculateLimiter *ratelimit.CalculateLimiter
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	Log              *zap.Logger
	AuthzSvc         authorization.Service       `optional:"true"`
	AuditSvc         auditdomain.Service
	RuleSvc          priceruledomain.Service
	ObsMetrics       *obsmetrics.Metrics         `optional:"true"`
	CalculateLimiter *ratelimit.CalculateLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		log:              p.Log.Named("http.server"),
		authzSvc:         p.AuthzSvc,
		auditSvc:         p.AuditSvc,
		ruleSvc:          p.RuleSvc,
		obsMetrics:       p.ObsMetrics,
		calculateLimiter: p.CalculateLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.OrgContext())
	api.Use(s.ActorContext())

	// -------- Price Rules --------
	rules := api.Group("/price-rules")
	{
		rules.POST("", s.authorizeOrgAction(authorization.ObjectPriceRule, authorization.ActionPriceRuleCreate), s.CreatePriceRule)
		rules.GET("", s.authorizeOrgAction(authorization.ObjectPriceRule, authorization.ActionPriceRuleView), s.ListPriceRules)
		rules.GET("/applicable", s.authorizeOrgAction(authorization.ObjectPriceRule, authorization.ActionPriceRuleView), s.GetApplicableRules)
		rules.POST("/calculate",
			s.authorizeOrgAction(authorization.ObjectPriceRule, authorization.ActionPriceRuleCalculate),
			s.CalculateRateLimit(),
			s.CalculatePrice,
		)
		rules.GET("/:id", s.authorizeOrgAction(authorization.ObjectPriceRule, authorization.ActionPriceRuleView), s.GetPriceRule)
		rules.PATCH("/:id", s.authorizeOrgAction(authorization.ObjectPriceRule, authorization.ActionPriceRuleUpdate), s.UpdatePriceRule)
		rules.DELETE("/:id", s.authorizeOrgAction(authorization.ObjectPriceRule, authorization.ActionPriceRuleDelete), s.DeletePriceRule)
		rules.POST("/:id/redeem", s.authorizeOrgAction(authorization.ObjectPriceRule, authorization.ActionPriceRuleRedeem), s.RedeemPromotion)
	}

	// -------- Supplier List Prices --------
	api.PUT("/supplier-list-prices",
		s.authorizeOrgAction(authorization.ObjectSupplierListPrice, authorization.ActionSupplierListPriceManage),
		s.UpsertSupplierListPrice,
	)

	// -------- Audit Logs --------
	api.GET("/audit-logs", s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
