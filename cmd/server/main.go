package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/syncora/syncora/application/usecase"
	"github.com/syncora/syncora/infrastructure/adapter/external"
	"github.com/syncora/syncora/infrastructure/adapter/postgres"
	"github.com/syncora/syncora/infrastructure/adapter/redisqueue"
	"github.com/syncora/syncora/infrastructure/config"
	syncorahttp "github.com/syncora/syncora/infrastructure/http"
	"github.com/syncora/syncora/infrastructure/http/handler"
	"github.com/syncora/syncora/infrastructure/http/middleware"
	"github.com/syncora/syncora/infrastructure/service/cache"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	structuredLogger := logger.NewStructuredLogger(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "syncora",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env": cfg.Environment,
	})

	// Connect to database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		structuredLogger.Error(ctx, "Failed to ping database", err, nil)
		log.Fatalf("Failed to ping database: %v", err)
	}
	structuredLogger.Info(ctx, "Database connection established", nil)

	// Connect to the event queue
	queue, err := redisqueue.NewEventQueueAdapter(cfg.RedisURL, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to connect to Redis", err, map[string]interface{}{
			"redis_url": cfg.RedisURL,
		})
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer queue.Close()

	// Initialize repositories
	mappingRepo := postgres.NewMappingRepositoryAdapter(db)
	stateRepo := postgres.NewSyncStateRepositoryAdapter(db, structuredLogger)
	transactionRepo := postgres.NewTransactionRepositoryAdapter(db)

	// Initialize external clients
	canvasClient := external.NewCanvasClientAdapter(cfg.CanvasBaseURL, cfg.CanvasToken, cfg.ClientTimeout, structuredLogger)
	discourseClient := external.NewDiscourseClientAdapter(cfg.DiscourseBaseURL, cfg.DiscourseToken, cfg.ClientTimeout, structuredLogger)

	// Initialize use cases
	mapper := usecase.NewEntityMapper(mappingRepo, cache.NewMappingCache(), structuredLogger)
	orchestrator := usecase.NewSyncOrchestrator(mapper, stateRepo, transactionRepo, queue, canvasClient, discourseClient, structuredLogger)
	monitor := usecase.NewSyncMonitor(stateRepo, transactionRepo, queue, structuredLogger)

	dispatcher := usecase.NewDispatcher(queue, stateRepo, orchestrator, structuredLogger, usecase.DispatcherConfig{
		Workers:     cfg.SyncWorkers,
		MaxAttempts: cfg.SyncMaxAttempts,
		BaseDelay:   cfg.SyncRetryBaseDelay,
	})
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	dispatcher.Start(dispatchCtx)

	// Initialize HTTP surface
	monitorHandler := handler.NewMonitorHandler(monitor, structuredLogger)
	authMiddleware := middleware.NewAuthMiddleware(cfg.MonitorJWTSecret, cfg.MonitorAuthEnabled)
	router := syncorahttp.NewRouter(monitorHandler, authMiddleware, structuredLogger)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		structuredLogger.Info(ctx, "Starting server", map[string]interface{}{
			"addr": cfg.ListenAddr(),
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			structuredLogger.Error(ctx, "Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	structuredLogger.Info(ctx, "Shutting down...", nil)

	stopDispatch()
	dispatcher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "Server forced to shutdown", err, nil)
	}
	structuredLogger.Info(ctx, "Server exited", nil)
}
