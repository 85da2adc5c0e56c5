package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ticketflow/ingress/internal/audit"
	"github.com/ticketflow/ingress/internal/config"
	"github.com/ticketflow/ingress/internal/handler"
	"github.com/ticketflow/ingress/internal/middleware"
	"github.com/ticketflow/ingress/internal/pipeline"
	"github.com/ticketflow/ingress/internal/queue"
	"github.com/ticketflow/ingress/internal/ratelimit"
	"github.com/ticketflow/ingress/internal/replay"
	"github.com/ticketflow/ingress/internal/service"
	"github.com/ticketflow/ingress/internal/storage"
	"github.com/ticketflow/ingress/internal/tenant"
)

type Server struct {
	router         *gin.Engine
	config         *config.Config
	logger         *slog.Logger
	redis          *storage.RedisClient
	postgres       *storage.Postgres
	webhookHandler *handler.WebhookHandler
	tenantHandler  *handler.TenantHandler
	httpServer     *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, redis *storage.RedisClient, postgres *storage.Postgres) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	repo := tenant.NewRepository(postgres)
	resolver := tenant.NewResolver(repo, redis, cfg.Admission.SecretCacheTTL())
	tenantService := service.NewTenantService(repo, resolver)

	sink := audit.NewSink(postgres, 1024)
	recorder := audit.NewRecorder(logger, sink)

	guard := replay.NewGuard(cfg.Admission.StalenessTolerance(), cfg.Admission.ClockSkewTolerance())

	class := cfg.FindClass("ticket")
	limiter := ratelimit.NewLimiter(redis, class.Algorithm, class.Limit, class.Window(), class.FailOpen)

	gateway := queue.NewGateway(redis, cfg.Queue.Name)

	admission := pipeline.New(resolver, guard, limiter, gateway, recorder)

	s := &Server{
		router:         router,
		config:         cfg,
		logger:         logger,
		redis:          redis,
		postgres:       postgres,
		webhookHandler: handler.NewWebhookHandler(admission, recorder, cfg),
		tenantHandler:  handler.NewTenantHandler(tenantService),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.CorrelationID())
	s.router.Use(middleware.Logger(s.logger))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/webhook/ticket", s.webhookHandler.Receive)

	admin := s.router.Group("/admin")
	admin.Use(middleware.AdminAuth(s.config.Admin.TokenHash))
	{
		admin.POST("/tenants", s.tenantHandler.Create)
		admin.GET("/tenants", s.tenantHandler.List)
		admin.POST("/tenants/:id/rotate", s.tenantHandler.Rotate)
		admin.PATCH("/tenants/:id", s.tenantHandler.SetActive)
		admin.DELETE("/tenants/:id", s.tenantHandler.Delete)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	redisHealthy := true
	if err := s.redis.Ping(ctx); err != nil {
		redisHealthy = false
		s.logger.Warn("redis health check failed", slog.Any("error", err))
	}

	dbHealthy := true
	if err := s.postgres.Ping(ctx); err != nil {
		dbHealthy = false
		s.logger.Warn("database health check failed", slog.Any("error", err))
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "ticket-ingress",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	s.logger.Info("starting ingress gateway",
		slog.String("addr", addr),
		slog.String("environment", s.config.Server.Environment),
	)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
