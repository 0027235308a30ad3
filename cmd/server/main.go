// Package main runs the assessment engine API server. It loads
// configuration, wires the task engine and the batch validation pipeline to
// their stores and serves the HTTP API until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/assessment-engine/internal/config"
	"github.com/phrazzld/assessment-engine/internal/platform/logger"
	"github.com/phrazzld/assessment-engine/internal/platform/postgres"
	"github.com/phrazzld/assessment-engine/internal/redact"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, reset, status, version) and exit")
	tokenSubject := flag.String("issue-token", "",
		"print a bearer token for the given subject and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *migrateCmd, *tokenSubject); err != nil {
		slog.Error("assessment engine exited with error", "error", redact.Error(err))
		stop()
		os.Exit(1)
	}
}

// run performs one of the three modes: issue a token, run a migration
// command, or serve.
func run(ctx context.Context, migrateCmd, tokenSubject string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	if tokenSubject != "" {
		return issueToken(ctx, cfg.Auth, tokenSubject, os.Stdout)
	}

	db, err := setupAppDatabase(ctx, cfg.Database, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			l.Error("error closing database connection", "error", err)
		}
	}()

	if migrateCmd != "" {
		return postgres.Migrate(ctx, db, migrateCmd, l)
	}

	app, err := newApplication(ctx, cfg, l, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// loadAppConfig loads the configuration and logs a redacted summary of it.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"snapshot_backend", cfg.Snapshot.Backend,
		"max_concurrent", cfg.Scheduler.MaxConcurrent)
	slog.Debug("database configuration", "url", redact.String(cfg.Database.URL))
	return cfg, nil
}
