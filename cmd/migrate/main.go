package main

import (
	"errors"
	"flag"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	"github.com/tidynest/selenas/internal/config"
	"github.com/tidynest/selenas/migrations"
	"github.com/tidynest/selenas/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	down := flag.Bool("down", false, "roll back one migration instead of migrating up")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}

	// The pgx driver registers under the pgx5 scheme.
	dbURL := cfg.DatabaseURL
	if after, ok := strings.CutPrefix(dbURL, "postgres://"); ok {
		dbURL = "pgx5://" + after
	} else if after, ok := strings.CutPrefix(dbURL, "postgresql://"); ok {
		dbURL = "pgx5://" + after
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		logger.Error("failed to initialize migrator", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to apply")
			return
		}
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")
}
