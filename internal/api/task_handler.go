package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/api/shared"
	"github.com/phrazzld/assessment-engine/internal/platform/logger"
	"github.com/phrazzld/assessment-engine/internal/task"
)

// TaskEngine is the part of the task engine the HTTP layer reads and cancels through.
type TaskEngine interface {
	Status(id uuid.UUID) (task.Info, bool)
	Result(id uuid.UUID) (any, bool)
	List(pred func(task.Info) bool) []task.Info
	Cancel(id uuid.UUID) bool
}

// TaskHandler serves the task status endpoints.
type TaskHandler struct {
	engine TaskEngine
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(engine TaskEngine, l *slog.Logger) *TaskHandler {
	if l == nil {
		l = slog.Default()
	}
	return &TaskHandler{
		engine: engine,
		logger: l.With("component", "task_handler"),
	}
}

// ListTasks handles GET /api/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	pred, err := taskFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	infos := h.engine.List(pred)
	resp := TaskListResponse{Tasks: make([]TaskResponse, 0, len(infos)), Count: len(infos)}
	for _, info := range infos {
		resp.Tasks = append(resp.Tasks, taskToResponse(info))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	info, ok := h.lookup(w, r)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(info))
}

// GetTaskResult handles GET /api/tasks/{id}/result. Only completed tasks
// have a result.
func (h *TaskHandler) GetTaskResult(w http.ResponseWriter, r *http.Request) {
	info, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if info.Status != task.StatusCompleted {
		HandleAPIError(w, r, ErrTaskNotCompleted, "")
		return
	}

	result, ok := h.engine.Result(info.ID)
	if !ok {
		// swept between the two reads
		HandleAPIError(w, r, ErrTaskNotFound, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskResultResponse{
		TaskID: info.ID,
		Status: info.Status,
		Result: result,
	})
}

// CancelTask handles DELETE /api/tasks/{id}. Only the submitter may cancel,
// and only while the task is still pending.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	submitter, ok := requireSubmitter(w, r)
	if !ok {
		return
	}
	info, ok := h.lookup(w, r)
	if !ok {
		return
	}
	log := logger.FromContextOrDefault(r.Context(), h.logger).With("task_id", info.ID)

	if info.SubmittedBy != "" && info.SubmittedBy != submitter {
		HandleAPIError(w, r, ErrTaskNotOwned, "")
		return
	}
	if !h.engine.Cancel(info.ID) {
		HandleAPIError(w, r, ErrTaskNotPending, "")
		return
	}

	log.Info("task cancelled", "submitted_by", submitter)
	if updated, ok := h.engine.Status(info.ID); ok {
		info = updated
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(info))
}

// lookup resolves the {id} path parameter, writing the error response itself.
func (h *TaskHandler) lookup(w http.ResponseWriter, r *http.Request) (task.Info, bool) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return task.Info{}, false
	}
	info, ok := h.engine.Status(id)
	if !ok {
		HandleAPIError(w, r, ErrTaskNotFound, "")
		return task.Info{}, false
	}
	return info, true
}
