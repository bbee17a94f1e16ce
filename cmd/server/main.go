// Package main is the entry point for the chargegate API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"chargegate/internal/config"
	"chargegate/internal/domain/payment"
	"chargegate/internal/domain/reports"
	"chargegate/internal/infrastructure/cache"
	v1 "chargegate/internal/infrastructure/http/v1"
	"chargegate/internal/infrastructure/http/v1/handlers"
	"chargegate/internal/infrastructure/processor"
	"chargegate/internal/infrastructure/storage/postgres"
	"chargegate/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting chargegate server")

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Stores ---
	locker := postgres.NewAdvisoryLocker(txManager)
	idempotencyStore := postgres.NewIdempotencyStore(txManager)
	paymentRepo := postgres.NewPaymentRepo(txManager)
	outboxStore := postgres.NewOutboxStore(txManager)
	reportRepo := postgres.NewReportRepo(txManager)

	// --- Response cache (optional accelerator) ---
	var responseCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warnw("redis unavailable, response cache disabled", "error", err)
		} else {
			responseCache = cache.New(rdb, cfg.Cache.TTL)
			defer rdb.Close()
			log.Infow("response cache enabled", "ttl", cfg.Cache.TTL)
		}
	}

	// --- Services ---
	chargeService := payment.NewService(
		txManager,
		locker,
		idempotencyStore,
		paymentRepo,
		outboxStore,
		processor.NewStub(),
		serviceCache(responseCache),
		payment.ServiceConfig{
			Scope:                cfg.Idempotency.Scope,
			StaleInProgressAfter: cfg.Idempotency.StaleInProgressAfter,
		},
	)

	reportService := reports.NewService(reportRepo, txManager)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:    pool,
		Charger: chargeService,
		Cache:   replayCache(responseCache),
		Scope:   cfg.Idempotency.Scope,
		Reports: handlers.NewReportsHandler(reportService),
		Logger:  log,
		DevMode: cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("http server failed", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
	log.Info("server stopped")
}

// serviceCache converts the concrete cache into the domain's write
// interface, keeping the typed-nil pitfall out of the service.
func serviceCache(c *cache.ResponseCache) payment.ResponseCache {
	if c == nil {
		return nil
	}
	return c
}

// replayCache converts the concrete cache into the handler's read
// interface.
func replayCache(c *cache.ResponseCache) handlers.ReplayCache {
	if c == nil {
		return nil
	}
	return c
}
