package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/phrazzld/assessment-engine/internal/platform/logger"
	"github.com/phrazzld/assessment-engine/internal/store"
)

// DB is what the snapshot store needs from a connection pool: plain queries
// plus the ability to open a transaction. *sql.DB satisfies it.
type DB interface {
	store.DBTX
	store.TxBeginner
}

const selectSnapshots = `SELECT id, batch_id, task_id, validation_type, total_items, processed_items,
	valid_items, invalid_items, warning_count, error_type_counts, execution_error,
	start_time, end_time, duration_ms, submitted_by, filter, created_at
FROM quality_snapshots`

// PostgresSnapshotStore implements the store.SnapshotStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSnapshotStore struct {
	db     DB
	logger *slog.Logger
}

// NewPostgresSnapshotStore creates a new PostgreSQL implementation of the SnapshotStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresSnapshotStore(db DB, logger *slog.Logger) *PostgresSnapshotStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSnapshotStore{
		db:     db,
		logger: logger.With(slog.String("component", "snapshot_store")),
	}
}

var _ store.SnapshotStore = (*PostgresSnapshotStore)(nil)

// Append implements store.SnapshotStore.Append.
// The snapshot row and its per-error-type counts are written atomically.
// Returns store.ErrSnapshotExists if the batch already has a snapshot.
func (s *PostgresSnapshotStore) Append(ctx context.Context, snapshot domain.QualitySnapshot) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("snapshot_id", snapshot.ID.String()),
		slog.String("batch_id", snapshot.BatchID.String()))

	counts, err := json.Marshal(nonNilCounts(snapshot.ErrorTypeCounts))
	if err != nil {
		return fmt.Errorf("failed to encode error type counts: %w", err)
	}
	filter, err := json.Marshal(snapshot.Filter)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot filter: %w", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO quality_snapshots (
				id, batch_id, task_id, validation_type, total_items, processed_items,
				valid_items, invalid_items, warning_count, error_type_counts, execution_error,
				start_time, end_time, duration_ms, submitted_by, filter, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			snapshot.ID,
			snapshot.BatchID,
			snapshot.TaskID,
			string(snapshot.ValidationType),
			snapshot.TotalItems,
			snapshot.ProcessedItems,
			snapshot.ValidItems,
			snapshot.InvalidItems,
			snapshot.WarningCount,
			counts,
			snapshot.ExecutionError,
			snapshot.StartTime,
			snapshot.EndTime,
			snapshot.Duration.Milliseconds(),
			snapshot.SubmittedBy,
			filter,
			snapshot.CreatedAt,
		)
		if err != nil {
			return err
		}

		for _, errorType := range sortedKeys(snapshot.ErrorTypeCounts) {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO quality_snapshot_error_counts (snapshot_id, error_type, count)
				VALUES ($1, $2, $3)`,
				snapshot.ID, errorType, snapshot.ErrorTypeCounts[errorType])
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("quality snapshot already recorded for batch")
			return store.ErrSnapshotExists
		}
		log.Error("failed to append quality snapshot", slog.String("error", err.Error()))
		return store.NewStoreError("quality_snapshot", "append", "insert failed", MapError(err))
	}

	log.Info("quality snapshot recorded",
		slog.String("validation_type", string(snapshot.ValidationType)),
		slog.Int("total_items", snapshot.TotalItems))
	return nil
}

// GetByTaskID implements store.SnapshotStore.GetByTaskID.
func (s *PostgresSnapshotStore) GetByTaskID(ctx context.Context, taskID uuid.UUID) (domain.QualitySnapshot, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, selectSnapshots+`
		WHERE task_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, taskID)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("quality snapshot not found", slog.String("task_id", taskID.String()))
			return domain.QualitySnapshot{}, store.ErrSnapshotNotFound
		}
		log.Error("failed to get quality snapshot",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return domain.QualitySnapshot{}, store.NewStoreError("quality_snapshot", "get", "query failed", MapError(err))
	}
	return snapshot, nil
}

// ListRecent implements store.SnapshotStore.ListRecent.
// An empty validationType lists every type.
func (s *PostgresSnapshotStore) ListRecent(
	ctx context.Context,
	validationType domain.ValidationType,
	limit int,
) ([]domain.QualitySnapshot, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := selectSnapshots + `
		WHERE ($1 = '' OR validation_type = $1)
		ORDER BY created_at DESC, id
		LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, string(validationType), limit)
	if err != nil {
		log.Error("failed to list quality snapshots", slog.String("error", err.Error()))
		return nil, store.NewStoreError("quality_snapshot", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	out := make([]domain.QualitySnapshot, 0, limit)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			log.Error("failed to scan quality snapshot", slog.String("error", err.Error()))
			return nil, store.NewStoreError("quality_snapshot", "list", "scan failed", err)
		}
		out = append(out, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("quality_snapshot", "list", "row iteration failed", MapError(err))
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (domain.QualitySnapshot, error) {
	var (
		snap           domain.QualitySnapshot
		validationType string
		counts, filter []byte
		durationMS     int64
	)
	err := row.Scan(
		&snap.ID,
		&snap.BatchID,
		&snap.TaskID,
		&validationType,
		&snap.TotalItems,
		&snap.ProcessedItems,
		&snap.ValidItems,
		&snap.InvalidItems,
		&snap.WarningCount,
		&counts,
		&snap.ExecutionError,
		&snap.StartTime,
		&snap.EndTime,
		&durationMS,
		&snap.SubmittedBy,
		&filter,
		&snap.CreatedAt,
	)
	if err != nil {
		return domain.QualitySnapshot{}, err
	}

	snap.ValidationType = domain.ValidationType(validationType)
	snap.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal(counts, &snap.ErrorTypeCounts); err != nil {
		return domain.QualitySnapshot{}, fmt.Errorf("decoding error type counts: %w", err)
	}
	if err := json.Unmarshal(filter, &snap.Filter); err != nil {
		return domain.QualitySnapshot{}, fmt.Errorf("decoding snapshot filter: %w", err)
	}
	return snap, nil
}

func nonNilCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
