package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationType selects which rule set a batch run applies.
type ValidationType string

// Supported validation types. FullAssessment is the union of all the others.
const (
	ValidationRequiredFields   ValidationType = "REQUIRED_FIELDS"
	ValidationValueConsistency ValidationType = "VALUE_CONSISTENCY"
	ValidationCodes            ValidationType = "CODE_VALIDATION"
	ValidationFormat           ValidationType = "FORMAT_VALIDATION"
	ValidationCategorySanity   ValidationType = "CATEGORY_SANITY"
	ValidationFullAssessment   ValidationType = "FULL_ASSESSMENT"
)

// ComponentValidationTypes lists every non-composite type in the order their
// findings appear under FULL_ASSESSMENT.
func ComponentValidationTypes() []ValidationType {
	return []ValidationType{
		ValidationRequiredFields,
		ValidationValueConsistency,
		ValidationCodes,
		ValidationFormat,
		ValidationCategorySanity,
	}
}

// IsValid reports whether t is a known validation type.
func (t ValidationType) IsValid() bool {
	if t == ValidationFullAssessment {
		return true
	}
	for _, c := range ComponentValidationTypes() {
		if t == c {
			return true
		}
	}
	return false
}

// ParseValidationType converts a tag into a ValidationType.
func ParseValidationType(s string) (ValidationType, error) {
	t := ValidationType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidValidationType, s)
	}
	return t, nil
}

// Severity grades a finding.
type Severity string

// ERROR makes an item invalid; WARNING flags it but leaves it valid.
const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Error type tags used in BatchValidationError.ErrorType.
const (
	ErrorTypeMissingRequiredField       = "MISSING_REQUIRED_FIELD"
	ErrorTypeValueInconsistency         = "VALUE_INCONSISTENCY"
	ErrorTypeInvalidCode                = "INVALID_CODE"
	ErrorTypeInvalidPropertyType        = "INVALID_PROPERTY_TYPE"
	ErrorTypeInvalidFormat              = "INVALID_FORMAT"
	ErrorTypeUnexpectedImprovementValue = "UNEXPECTED_IMPROVEMENT_VALUE"
	ErrorTypeMissingImprovementValue    = "MISSING_IMPROVEMENT_VALUE"
	ErrorTypeNegativeValue              = "NEGATIVE_VALUE"
	ErrorTypeExecutionError             = "EXECUTION_ERROR"
)

// ExecutionErrorItemID is the item id of the synthetic entry recording a
// pipeline orchestration failure.
const ExecutionErrorItemID = "BATCH"

// BatchValidationError is one finding about one item. It is data, never a
// control-flow signal.
type BatchValidationError struct {
	ItemID         string   `json:"item_id"`
	ErrorType      string   `json:"error_type"`
	Message        string   `json:"message"`
	Severity       Severity `json:"severity"`
	Field          string   `json:"field,omitempty"`
	ExpectedValue  any      `json:"expected_value,omitempty"`
	ActualValue    any      `json:"actual_value,omitempty"`
	Suggestion     string   `json:"suggestion,omitempty"`
	SuggestedValue any      `json:"suggested_value,omitempty"`
}

// BatchValidationResult aggregates one batch validation run.
type BatchValidationResult struct {
	BatchID        uuid.UUID              `json:"batch_id"`
	ValidationType ValidationType         `json:"validation_type"`
	TotalItems     int                    `json:"total_items"`
	ProcessedItems int                    `json:"processed_items"`
	ValidItems     int                    `json:"valid_items"`
	InvalidItems   int                    `json:"invalid_items"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        time.Time              `json:"end_time"`
	Duration       time.Duration          `json:"duration"`
	Errors         []BatchValidationError `json:"errors"`
	// WarningCount sums the WARNING findings of valid items only. Warnings
	// raised on an item that also has an ERROR finding stay in Errors but
	// are not counted here.
	WarningCount   int                    `json:"warning_count"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
}

// HasExecutionError reports whether the run recorded an orchestration failure.
func (r BatchValidationResult) HasExecutionError() bool {
	for _, e := range r.Errors {
		if e.ItemID == ExecutionErrorItemID && e.ErrorType == ErrorTypeExecutionError {
			return true
		}
	}
	return false
}

// ErrorTypeCounts returns how many findings of each error type were recorded.
func (r BatchValidationResult) ErrorTypeCounts() map[string]int {
	counts := make(map[string]int)
	for _, e := range r.Errors {
		counts[e.ErrorType]++
	}
	return counts
}

// CloneResult lets the task engine store and hand out copies of a result.
func (r BatchValidationResult) CloneResult() any {
	return r.Clone()
}

// Clone returns a deep copy so the caller can't alias the error list or metadata.
func (r BatchValidationResult) Clone() BatchValidationResult {
	out := r
	if r.Errors != nil {
		out.Errors = make([]BatchValidationError, len(r.Errors))
		copy(out.Errors, r.Errors)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
