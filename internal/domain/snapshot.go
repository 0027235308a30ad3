package domain

import (
	"time"

	"github.com/google/uuid"
)

// QualitySnapshot is the immutable summary of one batch validation run,
// appended to the quality-reporting store.
type QualitySnapshot struct {
	ID              uuid.UUID        `json:"id"`
	BatchID         uuid.UUID        `json:"batch_id"`
	TaskID          uuid.UUID        `json:"task_id"`
	ValidationType  ValidationType   `json:"validation_type"`
	TotalItems      int              `json:"total_items"`
	ProcessedItems  int              `json:"processed_items"`
	ValidItems      int              `json:"valid_items"`
	InvalidItems    int              `json:"invalid_items"`
	WarningCount    int              `json:"warning_count"`
	ErrorTypeCounts map[string]int   `json:"error_type_counts"`
	ExecutionError  bool             `json:"execution_error"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time"`
	Duration        time.Duration    `json:"duration"`
	SubmittedBy     string           `json:"submitted_by"`
	Filter          ValidationFilter `json:"filter"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewQualitySnapshot derives a snapshot from a (possibly partial) result.
func NewQualitySnapshot(
	result BatchValidationResult,
	taskID uuid.UUID,
	submittedBy string,
	filter ValidationFilter,
	now time.Time,
) QualitySnapshot {
	return QualitySnapshot{
		ID:              uuid.New(),
		BatchID:         result.BatchID,
		TaskID:          taskID,
		ValidationType:  result.ValidationType,
		TotalItems:      result.TotalItems,
		ProcessedItems:  result.ProcessedItems,
		ValidItems:      result.ValidItems,
		InvalidItems:    result.InvalidItems,
		WarningCount:    result.WarningCount,
		ErrorTypeCounts: result.ErrorTypeCounts(),
		ExecutionError:  result.HasExecutionError(),
		StartTime:       result.StartTime,
		EndTime:         result.EndTime,
		Duration:        result.Duration,
		SubmittedBy:     submittedBy,
		Filter:          filter,
		CreatedAt:       now.UTC(),
	}
}
