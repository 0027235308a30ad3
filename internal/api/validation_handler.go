package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/api/shared"
	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/phrazzld/assessment-engine/internal/platform/logger"
	"github.com/phrazzld/assessment-engine/internal/task"
	"github.com/phrazzld/assessment-engine/internal/validation"
)

// BatchSubmitter starts batch validations.
type BatchSubmitter interface {
	SubmitBatchValidation(ctx context.Context, req validation.BatchRequest) (uuid.UUID, error)
}

// SnapshotReader reads recorded quality snapshots.
type SnapshotReader interface {
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (domain.QualitySnapshot, error)
	ListRecent(ctx context.Context, validationType domain.ValidationType, limit int) ([]domain.QualitySnapshot, error)
}

// ValidationHandler serves batch submission and the quality snapshot history.
type ValidationHandler struct {
	pipeline  BatchSubmitter
	snapshots SnapshotReader
	logger    *slog.Logger
}

// NewValidationHandler creates a ValidationHandler.
func NewValidationHandler(pipeline BatchSubmitter, snapshots SnapshotReader, l *slog.Logger) *ValidationHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ValidationHandler{
		pipeline:  pipeline,
		snapshots: snapshots,
		logger:    l.With("component", "validation_handler"),
	}
}

// SubmitValidation handles POST /api/validations. The batch runs in the
// background; the response points at the task status endpoint.
func (h *ValidationHandler) SubmitValidation(w http.ResponseWriter, r *http.Request) {
	submitter, ok := requireSubmitter(w, r)
	if !ok {
		return
	}

	var req SubmitValidationRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	validationType, err := domain.ParseValidationType(req.ValidationType)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	priority, err := task.ParsePriority(req.Priority)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	id, err := h.pipeline.SubmitBatchValidation(r.Context(), validation.BatchRequest{
		ValidationType: validationType,
		Filter:         req.Filter,
		Params:         req.Params,
		Priority:       priority,
		SubmittedBy:    submitter,
		Notify:         req.Notify,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("batch validation accepted",
		"task_id", id,
		"validation_type", validationType,
		"priority", priority)

	statusURL := fmt.Sprintf("/api/tasks/%s", id)
	w.Header().Set("Location", statusURL)
	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitValidationResponse{
		TaskID:    id,
		Status:    task.StatusPending,
		StatusURL: statusURL,
	})
}

// ListSnapshots handles GET /api/snapshots.
func (h *ValidationHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	var validationType domain.ValidationType
	if raw := r.URL.Query().Get("validation_type"); raw != "" {
		vt, err := domain.ParseValidationType(raw)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		validationType = vt
	}
	limit, err := parseLimit(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	snapshots, err := h.snapshots.ListRecent(r.Context(), validationType, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list quality snapshots")
		return
	}
	if snapshots == nil {
		snapshots = []domain.QualitySnapshot{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, SnapshotListResponse{
		Snapshots: snapshots,
		Count:     len(snapshots),
	})
}

// GetTaskSnapshot handles GET /api/tasks/{id}/snapshot.
func (h *ValidationHandler) GetTaskSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	snapshot, err := h.snapshots.GetByTaskID(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, snapshot)
}
