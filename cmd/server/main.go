package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	syncapp "github.com/storesync/backend/internal/application/sync"
	"github.com/storesync/backend/internal/infrastructure/cache"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/infrastructure/marketplace"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
	"github.com/storesync/backend/internal/interfaces/http/handler"
	"github.com/storesync/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting StoreSync Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection with a GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}
	log.Info("Database connected and migrated")

	// Idempotency store for webhook delivery dedup
	dedup, err := cache.NewIdempotencyStore(cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		if err := dedup.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Initialize repositories
	storeRepo := persistence.NewGormStoreRepository(db.DB)
	ruleRepo := persistence.NewGormSyncRuleRepository(db.DB)
	logRepo := persistence.NewGormSyncLogRepository(db.DB)
	mappingRepo := persistence.NewGormMappingRepository(db.DB)
	webhookRepo := persistence.NewGormWebhookRepository(db.DB)

	// Marketplace connectors
	registry := marketplace.NewRegistry(
		marketplace.NewShopifyConnector(),
		marketplace.NewLazadaConnector(),
		marketplace.NewShopeeConnector(),
		marketplace.NewWooCommerceConnector(),
	)

	// Worker pool. The executor is bound after the application services
	// exist; the service enqueues onto the pool and the pool executes
	// through the runner.
	syncScheduler, err := scheduler.NewScheduler(scheduler.Config{
		Workers:    cfg.Sync.MaxConcurrentSyncs,
		QueueSize:  scheduler.DefaultConfig().QueueSize,
		JobTimeout: scheduler.DefaultConfig().JobTimeout,
	}, nil, log)
	if err != nil {
		log.Fatal("Failed to initialize sync scheduler", zap.Error(err))
	}

	// Initialize application services
	limiter := rate.NewLimiter(rate.Limit(cfg.Sync.RequestsPerSecond), 1)
	orchestrator := syncapp.NewOrchestrator(storeRepo, mappingRepo, logRepo, registry, limiter, log)
	reconciler := syncapp.NewReconciler(orchestrator, ruleRepo, dedup, log)
	service := syncapp.NewService(ruleRepo, logRepo, storeRepo, webhookRepo, registry, syncScheduler, syncapp.RetryPolicy{
		RetryFailedSync:  cfg.Sync.RetryFailedSync,
		MaxRetryAttempts: cfg.Sync.MaxRetryAttempts,
		RetryDelay:       cfg.Sync.RetryDelay,
		LogRetentionDays: cfg.Sync.LogRetentionDays,
	}, log)
	runner := syncapp.NewRunner(orchestrator, reconciler, service, ruleRepo, logRepo, log)
	syncScheduler.SetExecutor(runner)

	if err := syncScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncScheduler.Stop(stopCtx); err != nil {
			log.Error("Error stopping sync scheduler", zap.Error(err))
		}
	}()
	log.Info("Sync scheduler started",
		zap.Int("workers", cfg.Sync.MaxConcurrentSyncs),
	)

	// Periodic trigger drives scheduled passes, retry sweeps, and log
	// retention
	trigger, err := scheduler.NewPeriodicTrigger(scheduler.TriggerConfig{
		ProductInterval:    cfg.Sync.ProductSyncInterval,
		InventoryInterval:  cfg.Sync.InventorySyncInterval,
		OrderInterval:      cfg.Sync.OrderSyncInterval,
		InterRuleDelay:     cfg.Sync.InterRuleDelay,
		RetrySweepInterval: scheduler.DefaultTriggerConfig().RetrySweepInterval,
		RetentionSweepHour: cfg.Sync.RetentionSweepHour,
	}, syncScheduler, ruleRepo, service, log)
	if err != nil {
		log.Fatal("Failed to initialize periodic trigger", zap.Error(err))
	}
	if err := trigger.Start(context.Background()); err != nil {
		log.Fatal("Failed to start periodic trigger", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := trigger.Stop(stopCtx); err != nil {
			log.Error("Error stopping periodic trigger", zap.Error(err))
		}
	}()
	log.Info("Periodic trigger started",
		zap.Duration("product_interval", cfg.Sync.ProductSyncInterval),
		zap.Duration("inventory_interval", cfg.Sync.InventorySyncInterval),
		zap.Duration("order_interval", cfg.Sync.OrderSyncInterval),
	)

	// Initialize HTTP layer
	engine := router.NewEngine(log)
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewSyncRuleHandler(service, cfg.App.PublicURL))
	r.Register(handler.NewSyncLogHandler(service))
	r.RegisterRoot(handler.NewWebhookHandler(storeRepo, webhookRepo, registry, syncScheduler, cfg.App.PublicURL, log))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
