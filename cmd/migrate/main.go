package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"propflow/internal/pkg/logger"
	"propflow/internal/platform/config"
	"propflow/internal/platform/database"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up, down or status")
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

	if err := database.Migrate(db, *direction); err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migration failed")
	}
	log.Info().Str("direction", *direction).Msg("migration completed")
}
