package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/domain"
)

// SnapshotStore persists quality snapshots. Append satisfies the batch
// pipeline's sink; the read methods back the reporting endpoints.
type SnapshotStore interface {
	// Append records a snapshot. Snapshots are immutable once written.
	Append(ctx context.Context, snapshot domain.QualitySnapshot) error

	// GetByTaskID returns the snapshot written by a task, or ErrSnapshotNotFound.
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (domain.QualitySnapshot, error)

	// ListRecent returns up to limit snapshots, newest first, optionally
	// restricted to one validation type.
	ListRecent(ctx context.Context, validationType domain.ValidationType, limit int) ([]domain.QualitySnapshot, error)
}
