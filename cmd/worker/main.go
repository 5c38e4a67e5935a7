package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"propflow/internal/pkg/logger"
	"propflow/internal/platform/config"
	"propflow/internal/platform/database"
	"propflow/internal/platform/repositories"
	"propflow/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	once := flag.Bool("once", false, "Run every job once and exit")
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

	deliveryRepo := repositories.NewDeliveryLogRepository(db)
	prune := func(ctx context.Context) error {
		_, err := workers.PruneDeliveryAttempts(ctx, deliveryRepo, cfg.Retention.DeliveryAttemptsDays, time.Now())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := prune(ctx); err != nil {
			log.Fatal().Err(err).Msg("delivery retention failed")
		}
		return
	}

	log.Info().Str("schedule", cfg.Retention.Schedule).Msg("starting background workers")
	if err := workers.Schedule(ctx, "delivery_retention", cfg.Retention.Schedule, prune); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}
