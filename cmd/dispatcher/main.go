// Package main is the entry point for the chargegate outbox dispatcher.
// Multiple instances may run against the same database: the skip-locked
// batch claim keeps their workloads disjoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"chargegate/internal/config"
	"chargegate/internal/domain/outbox"
	"chargegate/internal/infrastructure/bus"
	"chargegate/internal/infrastructure/dispatcher"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting chargegate outbox dispatcher")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	outboxStore := postgres.NewOutboxStore(txManager)

	publisher, err := bus.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Outbox.SendTimeout)
	if err != nil {
		log.Fatalw("failed to connect to kafka", "brokers", cfg.Kafka.Brokers, "error", err)
	}
	defer publisher.Close()

	d := dispatcher.New(txManager, outboxStore, publisher, dispatcher.Config{
		Topic:           cfg.Outbox.Topic,
		BatchSize:       cfg.Outbox.BatchSize,
		PublishInterval: cfg.Outbox.PublishInterval,
		SendTimeout:     cfg.Outbox.SendTimeout,
		Retry: outbox.RetryPolicy{
			MaxAttempts: cfg.Outbox.MaxAttempts,
			BaseBackoff: cfg.Outbox.BaseBackoff,
			MaxBackoff:  cfg.Outbox.MaxBackoff,
		},
	}, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down dispatcher...")
	cancel()
	wg.Wait()
	log.Info("dispatcher stopped")
}
