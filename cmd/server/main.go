package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	agentapp "github.com/erp/syncengine/internal/application/agent"
	"github.com/erp/syncengine/internal/application/metrics"
	reconapp "github.com/erp/syncengine/internal/application/recon"
	syncapp "github.com/erp/syncengine/internal/application/sync"
	domainsync "github.com/erp/syncengine/internal/domain/sync"
	"github.com/erp/syncengine/internal/infrastructure/agentclient"
	"github.com/erp/syncengine/internal/infrastructure/breaker"
	"github.com/erp/syncengine/internal/infrastructure/cache"
	"github.com/erp/syncengine/internal/infrastructure/config"
	"github.com/erp/syncengine/internal/infrastructure/logger"
	"github.com/erp/syncengine/internal/infrastructure/persistence"
	"github.com/erp/syncengine/internal/infrastructure/queue"
	"github.com/erp/syncengine/internal/infrastructure/scheduler"
	"github.com/erp/syncengine/internal/interfaces/http/handler"
	"github.com/erp/syncengine/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting sync engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories
	jobRepo := persistence.NewSyncJobRepository(db.DB)
	dlqRepo := persistence.NewDeadLetterRepository(db.DB)
	agentRepo := persistence.NewAgentRepository(db.DB)
	reconRepo := persistence.NewReconciliationRepository(db.DB)
	taskRepo := queue.NewGormTaskRepository(db.DB)

	// Idempotency cache: Redis when enabled, process-local otherwise
	var idempotency domainsync.IdempotencyStore
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisIdempotencyStore(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = redisStore.Close()
		}()
		idempotency = redisStore
		log.Info("Redis idempotency cache connected", zap.String("addr", cfg.Redis.Addr()))
	} else {
		idempotency = cache.NewInMemoryIdempotencyStore()
	}

	// Queue processor
	processor := queue.NewProcessor(taskRepo, queue.ProcessorConfig{
		Workers:          cfg.Queue.Workers,
		BatchSize:        cfg.Queue.BatchSize,
		PollInterval:     cfg.Queue.PollInterval,
		CleanupEnabled:   cfg.Queue.CleanupEnabled,
		CleanupRetention: cfg.Queue.CleanupRetention,
		CleanupInterval:  cfg.Queue.CleanupInterval,
	}, logger.Named(log, "queue"))

	// Circuit breakers, one per (vendor, API type)
	breakers := breaker.NewRegistry(breaker.Config{
		MinVolume:    cfg.Breaker.MinVolume,
		ErrorPercent: cfg.Breaker.ErrorPercent,
		Window:       cfg.Breaker.Window,
		ResetTimeout: cfg.Breaker.ResetTimeout,
	}, logger.Named(log, "breaker"))

	// Application services
	jobPolicy := syncapp.JobServiceConfig{
		MaxAttempts: cfg.Queue.MaxAttempts,
		BackoffBase: cfg.Queue.BackoffBase,
	}
	jobService := syncapp.NewJobService(jobRepo, processor, idempotency, jobPolicy, logger.Named(log, "jobs"))
	dlqService := syncapp.NewDeadLetterService(dlqRepo, processor, jobPolicy, logger.Named(log, "dlq"))
	registryService := agentapp.NewRegistryService(agentRepo, logger.Named(log, "agents"))
	reconService := reconapp.NewLogService(reconRepo, logger.Named(log, "recon"))
	metricsService := metrics.NewService(jobRepo, dlqRepo, reconRepo, agentRepo, logger.Named(log, "metrics"))

	// Dispatcher wiring: vendor-sync tasks flow through the breaker to
	// the vendor's agent; exhausted tasks land in the dead letter queue.
	agentClient := agentclient.NewHTTPClient(agentclient.Config{
		Timeout: cfg.HTTP.AgentTimeout,
	}, logger.Named(log, "agentclient"))
	dispatcher := syncapp.NewDispatcher(jobService, agentRepo, agentClient, breakers, syncapp.DispatcherConfig{
		AgentTimeout: cfg.HTTP.AgentTimeout,
	}, logger.Named(log, "dispatcher"))
	processor.Register(syncapp.TaskVendorSync, dispatcher.Handle)
	processor.OnExhausted(syncapp.NewExhaustedHook(dlqService, logger.Named(log, "dlq")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := processor.Start(ctx); err != nil {
		log.Fatal("Failed to start queue processor", zap.Error(err))
	}

	// Maintenance jobs
	sched := scheduler.New(logger.Named(log, "scheduler"))
	if cfg.AgentHealth.SweepEnabled {
		sched.Register("agent-health-sweep", cfg.AgentHealth.SweepInterval, func(ctx context.Context) {
			registryService.CheckHealth(ctx)
		})
	}
	if cfg.Reconciliation.PruneEnabled {
		sched.Register("reconciliation-prune", cfg.Reconciliation.PruneInterval, func(ctx context.Context) {
			reconService.Prune(ctx, cfg.Reconciliation.Retention)
		})
	}
	sched.Register("expired-job-cleanup", 6*time.Hour, func(ctx context.Context) {
		if deleted, err := jobRepo.DeleteExpired(ctx, time.Now()); err != nil {
			log.Error("Failed to delete expired jobs", zap.Error(err))
		} else if deleted > 0 {
			log.Info("Deleted expired jobs", zap.Int64("deleted", deleted))
		}
	})
	sched.Start(ctx)

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(router.Handlers{
		Agent:          handler.NewAgentHandler(registryService),
		Job:            handler.NewJobHandler(jobService),
		DeadLetter:     handler.NewDeadLetterHandler(dlqService),
		Breaker:        handler.NewBreakerHandler(breakers),
		Metrics:        handler.NewMetricsHandler(metricsService),
		Reconciliation: handler.NewReconciliationHandler(reconService),
		Health:         handler.NewHealthHandler(db, version),
	}, logger.Named(log, "http"))

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler shutdown failed", zap.Error(err))
	}
	if err := processor.Stop(shutdownCtx); err != nil {
		log.Error("Queue processor shutdown failed", zap.Error(err))
	}

	log.Info("Shutdown complete")
	os.Exit(0)
}
