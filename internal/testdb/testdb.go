// Package testdb provides the database used by integration tests. Tests
// that need it are built with the integration tag and are skipped when no
// database URL is configured.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/assessment-engine/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// TestTimeout bounds setup operations against the test database.
const TestTimeout = 10 * time.Second

// URLEnv names the variable holding the integration database URL.
// DATABASE_URL is used when it is unset.
const URLEnv = "ASSESS_TEST_DATABASE_URL"

// URL returns the configured integration database URL, or "".
func URL() string {
	if u := os.Getenv(URLEnv); u != "" {
		return u
	}
	return os.Getenv("DATABASE_URL")
}

// Open connects to the integration database and applies every migration.
// The test is skipped when no URL is configured.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := URL()
	if dbURL == "" {
		t.Skipf("integration database not configured, set %s", URLEnv)
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "failed to ping test database")

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, postgres.Migrate(ctx, db, "up", quiet), "failed to migrate test database")
	return db
}

// WithTx runs fn inside a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Errorf("failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}
