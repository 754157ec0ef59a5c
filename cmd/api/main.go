package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/triage-bot/internal/api/http"
	"github.com/spec-kit/triage-bot/internal/api/http/handlers"
	"github.com/spec-kit/triage-bot/internal/auth"
	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/duplicate"
	"github.com/spec-kit/triage-bot/internal/events"
	"github.com/spec-kit/triage-bot/internal/gemini"
	"github.com/spec-kit/triage-bot/internal/jira"
	"github.com/spec-kit/triage-bot/internal/observability"
	"github.com/spec-kit/triage-bot/internal/orchestrator"
	"github.com/spec-kit/triage-bot/internal/persistence"
	"github.com/spec-kit/triage-bot/internal/quality"
	"github.com/spec-kit/triage-bot/internal/repository"
	"github.com/spec-kit/triage-bot/internal/scan"
	"github.com/spec-kit/triage-bot/internal/scheduler"
	"github.com/spec-kit/triage-bot/internal/service"
	"github.com/spec-kit/triage-bot/internal/transition"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	jiraClient := jira.NewClient(cfg.Jira, logger)
	geminiClient := gemini.NewClient(cfg.Gemini, logger)
	engine := quality.NewEngine(cfg.Quality, logger)
	resolver := transition.NewResolver(cfg.Transitions)
	detector := duplicate.NewDetector(jiraClient, logger)
	runRepo := repository.NewRunRepository(pg.PoolHandle())

	pipeline := orchestrator.New(cfg.Jira, orchestrator.Dependencies{
		Store:      jiraClient,
		Engine:     engine,
		Duplicates: detector,
		Generator:  geminiClient,
		Resolver:   resolver,
	}, logger)

	sched := scheduler.New(cfg.Queue, scheduler.Dependencies{
		Redis:      redis.Client,
		Runner:     pipeline,
		Archiver:   runRepo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	sched.Start(ctx)
	defer sched.Stop()

	notifications := service.NewNotificationService(cfg.Notification, logger)
	notifications.Register(dispatcher)

	scanner := scan.New(*cfg, jiraClient, sched, logger)
	if err := scanner.Start(ctx); err != nil {
		logger.Fatal("failed to start scan schedule", zap.Error(err))
	}
	defer scanner.Stop()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Webhook:        handlers.NewWebhookHandler(*cfg, sched, logger),
		Tasks:          handlers.NewTasksHandler(sched, metrics),
		Quality:        handlers.NewQualityHandler(engine),
		Runs:           handlers.NewRunsHandler(runRepo),
		Admin:          handlers.NewAdminHandler(cfg.Auth, tokens),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
