package main

// Run database migrations:
//   go run ./cmd/migrate

import (
	"context"
	"os"

	"medstudy-backend/internal/shared/config"
	"medstudy-backend/internal/shared/storage/db"
	"medstudy-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	_ = telemetry.Init(cfg.Env)
	defer telemetry.Sync()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	telemetry.Info("migrate.done", nil)
}
