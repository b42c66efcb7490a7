package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rail-service/crosschain_transfer/internal/api/handlers"
	"github.com/rail-service/crosschain_transfer/internal/api/middleware"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/di"
	"github.com/rail-service/crosschain_transfer/pkg/idempotency"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
	"github.com/rail-service/crosschain_transfer/pkg/tracing"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// RouterConfig is everything the HTTP surface needs
type RouterConfig struct {
	Controller      handlers.TransferController
	Logger          *logger.Logger
	HealthChecks    map[string]handlers.CheckFunc
	AllowedOrigins  []string
	RateLimitPerMin int

	// Idempotency defaults to an in-memory store
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
}

// SetupRoutes configures all application routes from the container
func SetupRoutes(container *di.Container) *gin.Engine {
	checks := make(map[string]handlers.CheckFunc)
	for name, fn := range container.HealthChecks() {
		checks[name] = fn
	}

	return NewRouter(RouterConfig{
		Controller:      container.Controller,
		Logger:          container.Logger,
		HealthChecks:    checks,
		AllowedOrigins:  container.Config.Server.AllowedOrigins,
		RateLimitPerMin: container.Config.Server.RateLimitPerMin,
		Idempotency:     container.Idempotency,
		IdempotencyTTL:  container.Config.Server.IdempotencyTTLDuration(),
	})
}

// NewRouter builds the gin engine
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks, cfg.Logger.Zap(), Version)
	transferHandlers := handlers.NewTransferHandlers(cfg.Controller, cfg.Logger)
	balanceHandlers := handlers.NewBalanceHandlers(cfg.Controller, cfg.Logger)

	store := cfg.Idempotency
	if store == nil {
		store = idempotency.NewMemoryStore()
	}

	// Health checks and metrics (not rate limited)
	router.GET("/health", healthHandler.Readiness)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.RateLimitPerMin))
	{
		// Retried POSTs with the same Idempotency-Key never burn twice
		transfers := v1.Group("/transfers")
		transfers.Use(idempotency.Middleware(store, cfg.IdempotencyTTL, cfg.Logger.Zap()))
		{
			transfers.POST("/validate", transferHandlers.ValidateTransfer)
			transfers.POST("/resume", transferHandlers.ResumeTransfer)
			transfers.POST("", transferHandlers.InitiateTransfer)
			transfers.GET("", transferHandlers.ListTransfers)
			transfers.GET("/:id", transferHandlers.GetTransfer)
			transfers.POST("/:id/status", transferHandlers.CheckStatus)
			transfers.POST("/:id/mint", transferHandlers.CompleteMint)
			transfers.POST("/:id/burn/retry", transferHandlers.RetryBurn)
			transfers.DELETE("/:id", transferHandlers.ClearTransfer)
		}

		balances := v1.Group("/balances")
		{
			balances.GET("", balanceHandlers.GetBalances)
			balances.POST("/refresh", balanceHandlers.RefreshBalances)
			balances.GET("/:address", balanceHandlers.GetBalances)
			balances.POST("/:address/refresh", balanceHandlers.RefreshBalances)
		}
	}

	return router
}
