package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/phrazzld/assessment-engine/internal/redact"
	"github.com/phrazzld/assessment-engine/internal/task"
	"github.com/phrazzld/assessment-engine/internal/validation"
)

// SubmitValidationRequest is the payload of POST /api/validations.
type SubmitValidationRequest struct {
	ValidationType string                  `json:"validation_type"    validate:"required"`
	Filter         domain.ValidationFilter `json:"filter"`
	Params         validation.Params       `json:"params"`
	Priority       string                  `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`
	Notify         bool                    `json:"notify,omitempty"`
}

// SubmitValidationResponse acknowledges an accepted batch.
type SubmitValidationResponse struct {
	TaskID    uuid.UUID   `json:"task_id"`
	Status    task.Status `json:"status"`
	StatusURL string      `json:"status_url"`
}

// TaskResponse is the public view of a task. The result is served
// separately by GET /api/tasks/{id}/result.
type TaskResponse struct {
	ID                  uuid.UUID         `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	Status              task.Status       `json:"status"`
	Priority            task.Priority     `json:"priority"`
	Progress            int               `json:"progress"`
	ProgressMessage     string            `json:"progress_message,omitempty"`
	Error               string            `json:"error,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	StartedAt           *time.Time        `json:"started_at,omitempty"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`
	EstimatedDurationMS int64             `json:"estimated_duration_ms,omitempty"`
	SubmittedBy         string            `json:"submitted_by,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// TaskListResponse wraps GET /api/tasks.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Count int            `json:"count"`
}

// TaskResultResponse wraps the value produced by a completed task.
type TaskResultResponse struct {
	TaskID uuid.UUID   `json:"task_id"`
	Status task.Status `json:"status"`
	Result any         `json:"result"`
}

// SnapshotListResponse wraps GET /api/snapshots.
type SnapshotListResponse struct {
	Snapshots []domain.QualitySnapshot `json:"snapshots"`
	Count     int                      `json:"count"`
}

// taskToResponse converts a task snapshot, redacting its error text.
func taskToResponse(info task.Info) TaskResponse {
	return TaskResponse{
		ID:                  info.ID,
		Name:                info.Name,
		Description:         info.Description,
		Status:              info.Status,
		Priority:            info.Priority,
		Progress:            info.Progress,
		ProgressMessage:     info.ProgressMessage,
		Error:               redact.String(info.Error),
		CreatedAt:           info.CreatedAt,
		StartedAt:           info.StartedAt,
		CompletedAt:         info.CompletedAt,
		EstimatedDurationMS: info.EstimatedDuration.Milliseconds(),
		SubmittedBy:         info.SubmittedBy,
		Metadata:            info.Metadata,
	}
}
