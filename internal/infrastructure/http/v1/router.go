// Package v1 wires the HTTP API.
package v1

import (
	"github.com/gin-gonic/gin"

	"chargegate/internal/infrastructure/http/v1/handlers"
	"chargegate/internal/infrastructure/http/v1/middleware"
	"chargegate/internal/infrastructure/storage/postgres"
	"chargegate/pkg/logger"
)

// RouterConfig collects the router's dependencies.
type RouterConfig struct {
	Pool    *postgres.Pool
	Charger handlers.Charger
	Cache   handlers.ReplayCache
	Scope   string
	Reports *handlers.ReportsHandler
	Logger  *logger.Logger
	DevMode bool
}

// NewRouter builds the gin engine with the full middleware chain.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.Trace(),
		middleware.Logger(cfg.Logger),
		middleware.ErrorHandler(),
		middleware.Recovery(),
	)

	health := handlers.NewHealthHandler(cfg.Pool)
	router.GET("/healthz", health.Live)
	router.GET("/readyz", health.Ready)

	payments := handlers.NewPaymentHandler(cfg.Charger, cfg.Cache, cfg.Scope)

	api := router.Group("/api")
	{
		api.POST("/payments/charges", payments.Charge)
		api.GET("/payments/:id", payments.Get)
		api.GET("/payments", payments.List)

		if cfg.Reports != nil {
			api.GET("/reports/charges", cfg.Reports.ChargeVolume)
			api.GET("/reports/outbox", cfg.Reports.Outbox)
		}
	}

	return router
}
