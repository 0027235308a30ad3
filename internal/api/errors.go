package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/assessment-engine/internal/api/shared"
	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/phrazzld/assessment-engine/internal/store"
	"github.com/phrazzld/assessment-engine/internal/task"
	"github.com/phrazzld/assessment-engine/internal/validation"
)

// Errors raised by the handlers themselves.
var (
	// ErrTaskNotFound is returned when no task has the requested id, or it
	// has been swept.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotPending is returned when cancelling a task that already started.
	ErrTaskNotPending = errors.New("task is no longer pending")

	// ErrTaskNotCompleted is returned when asking for the result of a task
	// that has not completed successfully.
	ErrTaskNotCompleted = errors.New("task has not completed")

	// ErrTaskNotOwned is returned when cancelling another submitter's task.
	ErrTaskNotOwned = errors.New("task belongs to another submitter")
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, ErrTaskNotOwned):
		return http.StatusForbidden

	case errors.Is(err, ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrTaskNotPending),
		errors.Is(err, ErrTaskNotCompleted),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, validation.ErrInvalidRequest),
		errors.Is(err, task.ErrInvalidOptions),
		errors.Is(err, task.ErrInvalidPriority),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidValidationType),
		errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrEngineStopped):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return SanitizeValidationError(verrs)
	}
	var fieldErr *domain.ValidationError
	if errors.As(err, &fieldErr) {
		return fmt.Sprintf("Invalid %s: %s", fieldErr.Field, fieldErr.Message)
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"
	case errors.Is(err, ErrTaskNotOwned):
		return "Task was submitted by someone else"
	case errors.Is(err, ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrSnapshotNotFound):
		return "Quality snapshot not found"
	case errors.Is(err, ErrTaskNotPending):
		return "Only pending tasks can be cancelled"
	case errors.Is(err, ErrTaskNotCompleted):
		return "Task has not completed"
	case errors.Is(err, domain.ErrInvalidValidationType):
		return "Unknown validation type"
	case errors.Is(err, task.ErrInvalidPriority):
		return "Priority must be high, medium or low"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID format"
	case errors.Is(err, domain.ErrInvalidFilter):
		return "Invalid filter"
	case errors.Is(err, validation.ErrInvalidRequest),
		errors.Is(err, task.ErrInvalidOptions),
		errors.Is(err, domain.ErrValidation):
		return "Invalid request"
	case errors.Is(err, task.ErrQueueFull):
		return "Too many pending tasks, try again later"
	case errors.Is(err, task.ErrEngineStopped):
		return "Service is shutting down"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a short message naming
// the first offending field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fieldPath(fe.Namespace()), getValidationTagMessage(fe.Tag()))
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte", "gt":
		return "too small"
	case "max", "lte", "lt":
		return "too large"
	case "oneof":
		return "invalid value"
	case "gtefield":
		return "must not precede its lower bound"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the error reply for err. A non-empty message
// overrides the derived safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
