package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/api/shared"
	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/phrazzld/assessment-engine/internal/task"
)

// Paging bounds for list endpoints.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// getPathUUID parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}
	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// requireSubmitter returns the authenticated subject or writes a 401.
func requireSubmitter(w http.ResponseWriter, r *http.Request) (string, bool) {
	submitter, ok := shared.GetSubmitter(r.Context())
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return "", false
	}
	return submitter, true
}

// taskFilter builds the List predicate from ?status= and ?submitted_by=.
// submitted_by=me selects the caller's own tasks.
func taskFilter(r *http.Request) (func(task.Info) bool, error) {
	q := r.URL.Query()

	status := task.Status(q.Get("status"))
	if status != "" && !status.IsValid() {
		return nil, domain.NewValidationError("status", "must be pending, running, completed, failed or cancelled",
			domain.ErrValidation)
	}

	submittedBy := q.Get("submitted_by")
	if submittedBy == "me" {
		submittedBy, _ = shared.GetSubmitter(r.Context())
	}

	return func(info task.Info) bool {
		if status != "" && info.Status != status {
			return false
		}
		if submittedBy != "" && info.SubmittedBy != submittedBy {
			return false
		}
		return true
	}, nil
}

// parseLimit reads ?limit=, defaulting and capping it.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.NewValidationError("limit", "must be a positive integer", domain.ErrValidation)
	}
	return min(n, maxListLimit), nil
}
