package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/crosschain_transfer/internal/api/routes"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/config"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/di"
	"github.com/rail-service/crosschain_transfer/pkg/graceful"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
	"github.com/rail-service/crosschain_transfer/pkg/metrics"
	"github.com/rail-service/crosschain_transfer/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	container, err := di.NewContainer(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}
	log.Info("Transfer engine ready",
		"networks", container.Networks(),
		"holder", container.Controller.HolderAddress(),
	)

	// Sessions left in flight by the previous process resume polling here
	restored, err := container.Controller.Restore(ctx)
	if err != nil {
		log.Warn("Failed to restore stranded sessions", "error", err)
	} else if restored > 0 {
		log.Info("Restored stranded sessions", "count", restored)
	}

	if container.RecoveryWorker != nil {
		if err := container.RecoveryWorker.Start(); err != nil {
			log.Fatal("Failed to start stranded recovery worker", "error", err)
		}
		log.Info("Stranded recovery worker started", "schedule", cfg.Recovery.Schedule)
	}

	router := routes.SetupRoutes(container)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("Starting server",
			"addr", server.Addr,
			"environment", cfg.Environment,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	statsCtx, stopStats := context.WithCancel(ctx)
	if container.DB != nil {
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-statsCtx.Done():
					return
				case <-ticker.C:
					stats := container.DB.Stats()
					metrics.DatabaseConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
					metrics.DatabaseConnections.WithLabelValues("idle").Set(float64(stats.Idle))
					metrics.DatabaseConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
				}
			}
		}()
	}

	shutdown := graceful.NewShutdownManager(server, 30*time.Second, log)
	shutdown.Register("db stats", func(context.Context) error {
		stopStats()
		return nil
	})
	if container.RecoveryWorker != nil {
		shutdown.Register("stranded recovery", func(context.Context) error {
			container.RecoveryWorker.Stop()
			return nil
		})
	}
	shutdown.Register("container", func(context.Context) error {
		container.Close()
		return nil
	})
	shutdown.Register("tracer", tracingShutdown)

	shutdown.WaitForShutdown(ctx)
}
