//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/phrazzld/assessment-engine/internal/platform/postgres"
	"github.com/phrazzld/assessment-engine/internal/store"
	"github.com/phrazzld/assessment-engine/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertProperty(t *testing.T, tx *sql.Tx, id, ptype string, total float64) {
	t.Helper()
	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO properties (id, parcel_number, property_type, land_use_code, assessment_year,
			land_value, improvement_value, total_value, last_updated)
		VALUES ($1, '101-202-303', $2, 'R1', 2025, $3, 0, $3, $4)`,
		id, ptype, total, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
}

func TestPropertyStore_FetchIntegration(t *testing.T) {
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		prefix := uuid.NewString()[:8]
		insertProperty(t, tx, prefix+"-a", "RESIDENTIAL", 100_000)
		insertProperty(t, tx, prefix+"-b", "COMMERCIAL", 900_000)
		insertProperty(t, tx, prefix+"-c", "RESIDENTIAL", 2_000_000)

		s := postgres.NewPostgresPropertyStore(tx, nil)
		got, err := s.Fetch(context.Background(), domain.ValidationFilter{
			PropertyTypes: []string{"RESIDENTIAL"},
			ParcelNumbers: []string{"101-202-303"},
			ValueRange:    &domain.ValueRange{Min: 0, Max: 1_000_000},
		})
		require.NoError(t, err)

		var ids []string
		for _, p := range got {
			if len(p.ID) > 8 && p.ID[:8] == prefix {
				ids = append(ids, p.ID)
			}
		}
		assert.Equal(t, []string{prefix + "-a"}, ids)
	})
}

func TestSnapshotStore_Integration(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	s := postgres.NewPostgresSnapshotStore(db, nil)

	now := time.Now().UTC().Truncate(time.Millisecond)
	snap := domain.QualitySnapshot{
		ID:              uuid.New(),
		BatchID:         uuid.New(),
		TaskID:          uuid.New(),
		ValidationType:  domain.ValidationCodes,
		TotalItems:      4,
		ProcessedItems:  4,
		ValidItems:      3,
		InvalidItems:    1,
		ErrorTypeCounts: map[string]int{domain.ErrorTypeInvalidCode: 1},
		StartTime:       now.Add(-time.Second),
		EndTime:         now,
		Duration:        time.Second,
		SubmittedBy:     "integration",
		CreatedAt:       now,
	}
	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, `DELETE FROM quality_snapshots WHERE id = $1`, snap.ID)
	})

	require.NoError(t, s.Append(ctx, snap))
	assert.ErrorIs(t, s.Append(ctx, snap), store.ErrSnapshotExists)

	got, err := s.GetByTaskID(ctx, snap.TaskID)
	require.NoError(t, err)
	assert.Equal(t, snap.BatchID, got.BatchID)
	assert.Equal(t, 1, got.ErrorTypeCounts[domain.ErrorTypeInvalidCode])
	assert.Equal(t, time.Second, got.Duration)

	recent, err := s.ListRecent(ctx, domain.ValidationCodes, 50)
	require.NoError(t, err)
	var found bool
	for _, r := range recent {
		found = found || r.ID == snap.ID
	}
	assert.True(t, found)

	_, err = s.GetByTaskID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrSnapshotNotFound)
}
