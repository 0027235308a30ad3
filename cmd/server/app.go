package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/assessment-engine/internal/config"
	"github.com/phrazzld/assessment-engine/internal/platform/mongostore"
	"github.com/phrazzld/assessment-engine/internal/platform/postgres"
	"github.com/phrazzld/assessment-engine/internal/service/auth"
	"github.com/phrazzld/assessment-engine/internal/store"
	"github.com/phrazzld/assessment-engine/internal/task"
	"github.com/phrazzld/assessment-engine/internal/validation"
)

// shutdownTimeout bounds how long Run waits for running tasks on exit.
const shutdownTimeout = 30 * time.Second

// application holds the wired dependencies and owns their shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	jwtService auth.JWTService
	engine     *task.Engine
	pipeline   *validation.Pipeline
	snapshots  store.SnapshotStore

	// closers run in order after the engine has stopped
	closers []func(context.Context) error
}

// newApplication builds every component and starts the task engine.
func newApplication(ctx context.Context, cfg *config.Config, l *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{config: cfg, logger: l}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	rules, err := loadRuleSets(cfg.Validation)
	if err != nil {
		return nil, err
	}

	app.engine, err = task.New(engineConfig(cfg.Scheduler), l)
	if err != nil {
		return nil, fmt.Errorf("failed to create task engine: %w", err)
	}

	snapshots, closer, err := setupSnapshotStore(ctx, cfg.Snapshot, db, l)
	if err != nil {
		return nil, err
	}
	app.snapshots = snapshots
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	pipelineCfg := validation.DefaultPipelineConfig()
	pipelineCfg.ChunkSize = cfg.Validation.ChunkSize
	app.pipeline, err = validation.NewPipeline(
		app.engine,
		rules,
		postgres.NewPostgresPropertyStore(db, l),
		snapshots,
		validation.LogNotifier(l.With("component", "notifier")),
		pipelineCfg,
		l,
	)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("failed to create validation pipeline: %w", err)
	}

	if err := app.engine.Start(); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("failed to start task engine: %w", err)
	}

	l.Info("application initialized",
		"snapshot_backend", cfg.Snapshot.Backend,
		"chunk_size", pipelineCfg.ChunkSize)
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then stops the engine and
// releases resources.
func (app *application) Run(ctx context.Context) error {
	serveErr := app.startHTTPServer(ctx, app.setupRouter())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	stopErr := app.engine.Stop(shutdownCtx)
	app.close(shutdownCtx)

	return errors.Join(serveErr, stopErr)
}

func (app *application) close(ctx context.Context) {
	for _, c := range app.closers {
		if err := c(ctx); err != nil {
			app.logger.Error("error releasing resource", "error", err)
		}
	}
	app.closers = nil
}

// engineConfig converts the scheduler section to a task.Config.
func engineConfig(c config.SchedulerConfig) task.Config {
	return task.Config{
		MaxConcurrent:   c.MaxConcurrent,
		QueueSize:       c.QueueSize,
		RetentionWindow: time.Duration(c.RetentionMinutes) * time.Minute,
		SweepSchedule:   c.SweepSchedule,
	}
}

// loadRuleSets reads the rule document. Without a rules file the built-in
// rules are used with the configured default tolerance.
func loadRuleSets(c config.ValidationConfig) (*validation.RuleSets, error) {
	rc, err := validation.LoadRuleConfig(c.RulesFile)
	if err != nil {
		return nil, err
	}
	if c.RulesFile == "" && c.DefaultTolerance > 0 {
		rc.Tolerance = c.DefaultTolerance
	}
	rules, err := validation.NewRuleSets(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule sets: %w", err)
	}
	return rules, nil
}

// setupSnapshotStore picks the snapshot backend. The returned closer is nil
// when the store shares the SQL pool.
func setupSnapshotStore(
	ctx context.Context,
	c config.SnapshotConfig,
	db *sql.DB,
	l *slog.Logger,
) (store.SnapshotStore, func(context.Context) error, error) {
	switch c.Backend {
	case "mongo":
		s, err := mongostore.Connect(ctx, mongostore.Config{URI: c.MongoURI, Database: c.MongoDatabase}, l)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up snapshot store: %w", err)
		}
		return s, s.Close, nil
	case "postgres", "":
		return postgres.NewPostgresSnapshotStore(db, l), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown snapshot backend %q", c.Backend)
	}
}
