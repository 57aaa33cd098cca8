package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markvault/markvault/internal/action"
	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/events"
	"github.com/markvault/markvault/internal/kv"
	"github.com/markvault/markvault/internal/store"
	"github.com/markvault/markvault/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

type apiFixture struct {
	store    *store.TaskStore
	registry *action.Registry
	executor *task.Executor
	emitter  *events.InMemoryEmitter
	router   http.Handler
	resyncs  atomic.Int32
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := testLogger()
	taskStore := store.NewTaskStore(kv.NewMemory(), logger)
	registry := action.NewRegistry()
	executor := task.NewExecutor(taskStore, registry, task.DefaultExecutorConfig(), logger)
	dispatcher := task.NewDispatcher(taskStore, executor, logger)
	emitter := events.NewInMemoryEmitter(logger)
	emitter.RegisterHandler(dispatcher)

	f := &apiFixture{
		store:    taskStore,
		registry: registry,
		executor: executor,
		emitter:  emitter,
	}
	taskHandler := NewTaskHandler(taskStore, executor, func(ctx context.Context) error {
		f.resyncs.Add(1)
		return nil
	}, logger)
	f.router = NewRouter(taskHandler, NewEventHandler(emitter, logger))
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) *domain.Task {
	t.Helper()
	var out domain.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return &out
}

func TestCreateTask(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"name":   "nightly backup",
		"status": "ENABLED",
		"trigger": map[string]any{
			"type":     "time",
			"schedule": "DAILY",
			"hour":     2,
			"minute":   30,
		},
		"action": map[string]any{
			"type":      "backup",
			"operation": "backup",
			"target":    "octocat/bookmarks",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeTask(t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "nightly backup", created.Name)
	assert.Equal(t, domain.TaskStatusEnabled, created.Status)
	trigger, ok := created.Trigger.(domain.TimeTrigger)
	require.True(t, ok)
	assert.Equal(t, domain.ScheduleDaily, trigger.Schedule)
	assert.Equal(t, 2, trigger.Hour)
	assert.Equal(t, int32(1), f.resyncs.Load(), "creation re-syncs the schedule")
}

func TestCreateTaskDefaults(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tasks", map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeTask(t, rec)
	assert.Equal(t, "New task", created.Name)
	assert.Equal(t, domain.TaskStatusDisabled, created.Status)
}

func TestCreateTaskRejectsBadPayloads(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"trigger": map[string]any{"type": "lunar"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"status": "SLEEPING",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTask(t *testing.T) {
	f := newAPIFixture(t)
	created, err := f.store.CreateTask(context.Background(), domain.Task{Name: "lookup me"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lookup me", decodeTask(t, rec).Name)

	rec = f.do(t, http.MethodGet, "/api/tasks/task-0-ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Task not found")
}

func TestListTasksWithStatusFilter(t *testing.T) {
	ctx := context.Background()
	f := newAPIFixture(t)
	_, err := f.store.CreateTask(ctx, domain.Task{Name: "on", Status: domain.TaskStatusEnabled})
	require.NoError(t, err)
	_, err = f.store.CreateTask(ctx, domain.Task{Name: "off", Status: domain.TaskStatusDisabled})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/tasks?status=ENABLED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list TaskListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "on", list.Tasks[0].Name)
	assert.NotZero(t, list.LastUpdated)

	rec = f.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Tasks, 2)

	rec = f.do(t, http.MethodGet, "/api/tasks?status=SLEEPING", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTask(t *testing.T) {
	f := newAPIFixture(t)
	created, err := f.store.CreateTask(context.Background(), domain.Task{Name: "before"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{
		"name": "after",
		"trigger": map[string]any{
			"type": "event", "event": "BOOKMARK_CREATED",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decodeTask(t, rec)
	assert.Equal(t, "after", updated.Name)
	assert.Equal(t, created.ID, updated.ID, "ID never changes on update")
	_, ok := updated.Trigger.(domain.EventTrigger)
	assert.True(t, ok)
}

func TestDeleteTask(t *testing.T) {
	f := newAPIFixture(t)
	created, err := f.store.CreateTask(context.Background(), domain.Task{Name: "doomed"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnableDisableTask(t *testing.T) {
	f := newAPIFixture(t)
	created, err := f.store.CreateTask(context.Background(), domain.Task{Name: "toggled"})
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusDisabled, created.Status)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%s/enable", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.TaskStatusEnabled, decodeTask(t, rec).Status)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%s/disable", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.TaskStatusDisabled, decodeTask(t, rec).Status)
}

func TestRunTask(t *testing.T) {
	f := newAPIFixture(t)
	f.registry.RegisterCustom("echo", action.HandlerFunc(
		func(ctx context.Context, task *domain.Task) (string, error) {
			return "ran via api", nil
		}))
	created, err := f.store.CreateTask(context.Background(), domain.Task{
		Name:    "runnable",
		Status:  domain.TaskStatusEnabled,
		Trigger: domain.ManualTrigger{},
		Action:  domain.CustomAction{Handler: "echo"},
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%s/run", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result domain.ExecutionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "ran via api", result.Details)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/tasks/%s/history", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, created.ID, history.TaskID)
	require.Len(t, history.Executions, 1)
	assert.True(t, history.Executions[0].Success)
}

func TestRunTaskStateConflicts(t *testing.T) {
	f := newAPIFixture(t)
	created, err := f.store.CreateTask(context.Background(), domain.Task{
		Name:    "disabled",
		Trigger: domain.ManualTrigger{},
		Action:  domain.CustomAction{Handler: "missing"},
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%s/run", created.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tasks/task-0-ghost/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostEvent(t *testing.T) {
	f := newAPIFixture(t)

	var ran atomic.Int32
	f.registry.RegisterCustom("on-create", action.HandlerFunc(
		func(ctx context.Context, task *domain.Task) (string, error) {
			ran.Add(1)
			return "triggered", nil
		}))
	_, err := f.store.CreateTask(context.Background(), domain.Task{
		Name:   "reacts to bookmarks",
		Status: domain.TaskStatusEnabled,
		Trigger: domain.EventTrigger{
			Event:      domain.EventBookmarkCreated,
			Conditions: &domain.EventConditions{URLContains: "example.com"},
		},
		Action: domain.CustomAction{Handler: "on-create"},
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/events/BOOKMARK_CREATED", map[string]any{
		"data": map[string]string{"url": "https://example.com/a"},
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int32(1), ran.Load())

	// Non-matching payload: accepted, nothing fires.
	rec = f.do(t, http.MethodPost, "/api/events/BOOKMARK_CREATED", map[string]any{
		"data": map[string]string{"url": "https://other.net/b"},
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int32(1), ran.Load())

	rec = f.do(t, http.MethodPost, "/api/events/BOOKMARK_EXPLODED", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
