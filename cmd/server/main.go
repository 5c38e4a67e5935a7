package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"propflow/internal/api"
	"propflow/internal/api/handlers"
	"propflow/internal/api/middleware"
	"propflow/internal/engine/actions"
	"propflow/internal/engine/events"
	"propflow/internal/engine/rules"
	"propflow/internal/engine/webhooks"
	"propflow/internal/pkg/logger"
	"propflow/internal/platform/audit"
	"propflow/internal/platform/auth"
	"propflow/internal/platform/config"
	"propflow/internal/platform/database"
	"propflow/internal/platform/repositories"
	"propflow/internal/platform/secrets"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db, "up"); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// Repositories
	sealer := secrets.NewSealer(cfg.Secrets.SealingKey)
	ruleRepo := repositories.NewRuleRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db, sealer)
	deliveryRepo := repositories.NewDeliveryLogRepository(db)
	auditLogger := audit.NewLogger(db)

	// Automation core
	registry := actions.NewDefaultRegistry(actions.Dependencies{
		Email:         cfg.Email,
		Notifications: repositories.NewNotificationRepository(db),
		Tasks:         repositories.NewTaskRepository(db),
		FeatureFlags:  repositories.NewFeatureFlagRepository(db),
	})
	engine := rules.NewEngine(ruleRepo, registry, rules.Options{Workers: cfg.Automation.Workers})
	dispatcher := webhooks.NewDispatcher(webhookRepo, deliveryRepo, webhooks.Options{
		Workers:         cfg.Webhooks.Workers,
		RequestTimeout:  cfg.Webhooks.RequestTimeout,
		MaxResponseBody: cfg.Webhooks.MaxResponseBody,
		Backoff:         webhooks.BackoffByName(cfg.Webhooks.Backoff),
		BackoffUnit:     cfg.Webhooks.BackoffUnit,
	})
	ingestor := events.NewIngestor(engine, dispatcher, cfg.Automation.TriggerMap())

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)

	// Handlers
	eventsHandler := handlers.NewEventsHandler(ingestor, engine, dispatcher)
	rulesHandler := handlers.NewRulesHandler(ruleRepo, auditLogger, cfg.Automation.DefaultCooldownMinutes)
	webhookHandler := handlers.NewWebhookHandler(webhookRepo, deliveryRepo, dispatcher, auditLogger, cfg.Webhooks)

	// Middleware
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.EventsPerMinute)
	defer rateLimiter.Stop()

	router := api.NewRouter(&api.Dependencies{
		EventsHandler:    eventsHandler,
		RulesHandler:     rulesHandler,
		WebhookHandler:   webhookHandler,
		AuditHandler:     handlers.NewAuditHandler(auditLogger),
		HealthHandler:    handlers.NewHealthHandler(db),
		MetricsHandler:   handlers.NewMetricsHandler(),
		AuthMiddleware:   middleware.NewAuthMiddleware(tokenSvc),
		TenantMiddleware: middleware.NewTenantMiddleware(),
		RateLimiter:      rateLimiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	eventsHandler.Wait()
}
