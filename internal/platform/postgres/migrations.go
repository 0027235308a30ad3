package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pressly/goose/v3"
)

// MigrationTableName is the table goose records applied versions in.
const MigrationTableName = "schema_migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationDir = "migrations"

// MigrationCommands lists the commands Migrate accepts.
var MigrationCommands = []string{"up", "down", "reset", "status", "version"}

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf forwards goose progress output at info level.
func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level. It does not exit; Migrate returns the error.
func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// Migrate runs a goose command against db using the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, l *slog.Logger) error {
	if !slices.Contains(MigrationCommands, command) {
		return fmt.Errorf("unknown migration command: %s (expected one of %v)", command, MigrationCommands)
	}
	if l == nil {
		l = slog.Default()
	}
	log := l.With("component", "migrations", "command", command)

	goose.SetBaseFS(migrationFS)
	goose.SetLogger(&slogGooseLogger{logger: log})
	goose.SetTableName(MigrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	start := time.Now()
	log.Info("starting migration command")

	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, migrationDir)
	case "down":
		err = goose.DownContext(ctx, db, migrationDir)
	case "reset":
		err = goose.ResetContext(ctx, db, migrationDir)
	case "status":
		err = goose.StatusContext(ctx, db, migrationDir)
	case "version":
		err = goose.VersionContext(ctx, db, migrationDir)
	}
	if err != nil {
		log.Error("migration command failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("migration command '%s' failed: %w", command, err)
	}

	log.Info("migration command finished", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
