package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/markvault/markvault/internal/api/shared"
	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/store"
	"github.com/markvault/markvault/internal/task"
)

// TaskHandler handles task management HTTP requests.
type TaskHandler struct {
	store    *store.TaskStore
	executor *task.Executor
	logger   *slog.Logger

	// resync is called after any mutation that can change the alarm set,
	// typically the scheduler's Sync. Optional.
	resync func(ctx context.Context) error
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	taskStore *store.TaskStore,
	executor *task.Executor,
	resync func(ctx context.Context) error,
	logger *slog.Logger,
) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		store:    taskStore,
		executor: executor,
		resync:   resync,
		logger:   logger.With(slog.String("component", "task_handler")),
	}
}

// afterMutation re-syncs the schedule after a task mutation. Sync failures
// are logged, not surfaced: the mutation itself already succeeded.
func (h *TaskHandler) afterMutation(ctx context.Context) {
	if h.resync == nil {
		return
	}
	if err := h.resync(ctx); err != nil {
		h.logger.Error("failed to re-sync schedule after task mutation", "error", err)
	}
}

// ListTasks handles GET /tasks requests. An optional status query parameter
// (comma-separated) filters the result.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := domain.TaskStatus(strings.TrimSpace(s))
			if !status.Valid() {
				shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown task status: "+string(status))
				return
			}
			statuses = append(statuses, status)
		}
	}

	tasks, err := h.store.GetTasksByStatus(r.Context(), statuses...)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	// Map-backed storage has no order; present tasks oldest first.
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt != tasks[j].CreatedAt {
			return tasks[i].CreatedAt < tasks[j].CreatedAt
		}
		return tasks[i].ID < tasks[j].ID
	})

	storage, err := h.store.GetTasks(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Tasks:       tasks,
		LastUpdated: storage.LastUpdated,
	})
}

// CreateTask handles POST /tasks requests.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	partial, err := req.toPartialTask()
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid trigger or action", err)
		return
	}

	created, err := h.store.CreateTask(r.Context(), partial)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	h.afterMutation(r.Context())
	shared.RespondWithJSON(w, r, http.StatusCreated, created)
}

// GetTask handles GET /tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetTaskByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// UpdateTask handles PUT /tasks/{id} requests.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	update, err := req.toUpdate()
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid trigger or action", err)
		return
	}

	updated, err := h.store.UpdateTask(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	h.afterMutation(r.Context())
	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}

// DeleteTask handles DELETE /tasks/{id} requests.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	h.afterMutation(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// EnableTask handles POST /tasks/{id}/enable requests.
func (h *TaskHandler) EnableTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.EnableTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	h.afterMutation(r.Context())
	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// DisableTask handles POST /tasks/{id}/disable requests.
func (h *TaskHandler) DisableTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.DisableTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	h.afterMutation(r.Context())
	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// RunTask handles POST /tasks/{id}/run requests. The run is synchronous; the
// response carries the execution result either way. State rejections (already
// executing, wrong status) map to 409, unknown tasks to 404.
func (h *TaskHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result := h.executor.ExecuteTask(r.Context(), id)

	status := http.StatusOK
	if !result.Success {
		switch {
		case strings.Contains(result.Error, "not found"):
			status = http.StatusNotFound
		case strings.Contains(result.Error, "already executing"),
			strings.Contains(result.Error, "invalid task state"):
			status = http.StatusConflict
		}
	}
	h.afterMutation(r.Context())
	shared.RespondWithJSON(w, r, status, result)
}

// GetTaskHistory handles GET /tasks/{id}/history requests.
func (h *TaskHandler) GetTaskHistory(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetTaskByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	executions := t.History.Executions
	if executions == nil {
		executions = []domain.ExecutionResult{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, HistoryResponse{
		TaskID:     t.ID,
		Executions: executions,
	})
}
