// Command migrate applies database migrations and exits. The server applies
// them on startup too; this exists for operating on a database without
// starting a server.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/vetriapp/vetri-backend/internal/config"
	"github.com/vetriapp/vetri-backend/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	sourceURL := "file://migrations"
	if v := os.Getenv("MIGRATIONS_URL"); v != "" {
		sourceURL = v
	}

	if err := store.RunMigrations(cfg.Database.DSN(), sourceURL); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	log.Info().Msg("migrations applied")
}
