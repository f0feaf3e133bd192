package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/NTGClarityPK/ntg-tickets-sub002/internal/api/http"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/api/http/handlers"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/auth"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/cache"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/config"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/events"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/observability"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/persistence"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/repository"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/service"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics(metricsNamespace(cfg.App.Name))

	var (
		pg           *persistence.Postgres
		workflowRepo repository.WorkflowRepository
		ticketRepo   repository.TicketRepository
	)
	if cfg.Postgres.DSN != "" {
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		workflowRepo = repository.NewWorkflowRepository(pg.PoolHandle(), cfg.Workflow.TxMaxRetries, logger)
		ticketRepo = repository.NewTicketRepository(pg.PoolHandle())
	} else {
		logger.Warn("POSTGRES_DSN not provided; using in-memory store")
		store := repository.NewMemoryStore()
		workflowRepo = store.Workflows()
		ticketRepo = store.Tickets()
	}

	var (
		redis       *persistence.Redis
		activeCache = cache.Noop()
	)
	if cfg.Redis.Addr != "" {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		activeCache = cache.NewRedisActiveWorkflowCache(redis.Client, cfg.Workflow.ActiveCacheTTL(), logger)
	}

	dispatcher := events.NewInMemoryDispatcher(ctx, logger)

	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		WorkflowRepo: workflowRepo,
		Cache:        activeCache,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	ticketService := service.NewTicketWorkflowService(service.TicketWorkflowDependencies{
		TicketRepo: ticketRepo,
		Workflows:  workflowService,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	reportService := service.NewReportService(ticketRepo, workflowService, cfg.Workflow.ReportWorkers, cfg.Workflow.ReportBatchSize, logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService, logger)

	if repairs, err := workflowService.EnsureSystemDefault(ctx, cfg.Workflow.DeploymentID); err != nil {
		logger.Fatal("failed to prepare workflows", zap.Error(err))
	} else if len(repairs) > 0 {
		logger.Warn("workflow set repaired at startup",
			zap.String("deployment_id", cfg.Workflow.DeploymentID),
			zap.Strings("repairs", repairs))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, nil, cfg.Workflow.DeploymentID)

	app := fiber.New(httptransport.AppConfig())
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Workflows:      handlers.NewWorkflowsHandler(workflowService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Reports:        handlers.NewReportsHandler(reportService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	if err := dispatcher.Close(); err != nil {
		logger.Warn("closing event dispatcher", zap.Error(err))
	}
}

// metricsNamespace turns the app name into a valid Prometheus namespace.
func metricsNamespace(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
