package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/kv"
)

// StorageKey is the fixed key the TaskStorage aggregate lives under.
const StorageKey = "markvault.tasks"

// TaskUpdate describes a shallow merge over an existing task. Nil fields are
// left unchanged. The task ID can never be updated.
type TaskUpdate struct {
	Name        *string
	Description *string
	Status      *domain.TaskStatus
	Trigger     domain.Trigger
	Action      domain.Action
}

// TaskStore owns the canonical task collection. It caches the persisted
// aggregate in memory and writes through to the key-value store on every
// mutation. A failed write invalidates the cache so the next read reloads
// from durable storage instead of diverging from it.
type TaskStore struct {
	kv     kv.Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache *domain.TaskStorage
}

// NewTaskStore creates a task store backed by the given key-value store.
func NewTaskStore(kvStore kv.Store, logger *slog.Logger) *TaskStore {
	return &TaskStore{
		kv:     kvStore,
		logger: logger.With("component", "task_store"),
		now:    time.Now,
	}
}

// SetClock overrides the store's clock. Tests only.
func (s *TaskStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// load returns the cached aggregate, reading it from the KV store on a cache
// miss. A missing key initializes and persists an empty aggregate. Callers
// must hold s.mu.
func (s *TaskStore) load(ctx context.Context) (*domain.TaskStorage, error) {
	if s.cache != nil {
		return s.cache, nil
	}

	raw, err := s.kv.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, kv.ErrKeyNotFound):
		s.cache = domain.NewTaskStorage(s.now())
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
		return s.cache, nil
	case err != nil:
		return nil, newStorageError("load task storage", err)
	}

	var storage domain.TaskStorage
	if err := json.Unmarshal(raw, &storage); err != nil {
		return nil, newStorageError("decode task storage", err)
	}
	if storage.Tasks == nil {
		storage.Tasks = make(map[string]*domain.Task)
	}
	s.cache = &storage
	return s.cache, nil
}

// persist writes the cached aggregate through to the KV store. On failure
// the cache is dropped to force a clean reload on the next read. Callers
// must hold s.mu.
func (s *TaskStore) persist(ctx context.Context) error {
	s.cache.LastUpdated = s.now().UnixMilli()
	raw, err := json.Marshal(s.cache)
	if err != nil {
		s.cache = nil
		return newStorageError("encode task storage", err)
	}
	if err := s.kv.Set(ctx, StorageKey, raw); err != nil {
		s.cache = nil
		return newStorageError("persist task storage", err)
	}
	return nil
}

// cloneTask deep-copies a task through its JSON form so callers can never
// mutate the cache behind the store's back.
func cloneTask(t *domain.Task) (*domain.Task, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("clone task: %w", err)
	}
	var out domain.Task
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone task: %w", err)
	}
	return &out, nil
}

// GetTasks returns a copy of the full persisted aggregate.
func (s *TaskStore) GetTasks(ctx context.Context) (*domain.TaskStorage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := &domain.TaskStorage{
		Tasks:       make(map[string]*domain.Task, len(storage.Tasks)),
		LastUpdated: storage.LastUpdated,
	}
	for id, t := range storage.Tasks {
		clone, err := cloneTask(t)
		if err != nil {
			return nil, err
		}
		out.Tasks[id] = clone
	}
	return out, nil
}

// GetTaskByID returns the task with the given ID, or domain.ErrTaskNotFound.
func (s *TaskStore) GetTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := storage.Tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return cloneTask(t)
}

// GetTasksByStatus returns tasks matching any of the given statuses. With no
// statuses it returns every task. Order is not guaranteed; the collection is
// backed by a map.
func (s *TaskStore) GetTasksByStatus(
	ctx context.Context,
	statuses ...domain.TaskStatus,
) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	matches := func(status domain.TaskStatus) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, want := range statuses {
			if status == want {
				return true
			}
		}
		return false
	}

	out := make([]*domain.Task, 0, len(storage.Tasks))
	for _, t := range storage.Tasks {
		if !matches(t.Status) {
			continue
		}
		clone, err := cloneTask(t)
		if err != nil {
			return nil, err
		}
		out = append(out, clone)
	}
	return out, nil
}

// defaultTask builds the task every creation starts from: disabled, a daily
// 09:00 schedule, and a backup-to-github action.
func defaultTask(now time.Time) *domain.Task {
	return &domain.Task{
		ID:        domain.NewTaskID(now),
		Name:      "New task",
		Status:    domain.TaskStatusDisabled,
		CreatedAt: now.UnixMilli(),
		UpdatedAt: now.UnixMilli(),
		Trigger: domain.TimeTrigger{
			Schedule: domain.ScheduleDaily,
			Hour:     9,
			Minute:   0,
		},
		Action: domain.BackupAction{
			Operation: domain.BackupOperationBackup,
			Target:    "github",
		},
		History: domain.TaskHistory{Executions: []domain.ExecutionResult{}},
	}
}

// CreateTask merges the given partial fields over a freshly built default
// task and persists it. The new task always gets a freshly minted
// time-seeded ID; a caller-supplied ID is deliberately ignored so caller
// input can never collide with (and silently overwrite) an existing task.
func (s *TaskStore) CreateTask(
	ctx context.Context,
	partial domain.Task,
) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	t := defaultTask(s.now())
	if partial.Name != "" {
		t.Name = partial.Name
	}
	if partial.Description != "" {
		t.Description = partial.Description
	}
	if partial.Status != "" {
		if !partial.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown task status %q",
				domain.ErrValidation, partial.Status)
		}
		t.Status = partial.Status
	}
	if partial.Trigger != nil {
		t.Trigger = partial.Trigger
	}
	if partial.Action != nil {
		t.Action = partial.Action
	}

	storage.Tasks[t.ID] = t
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("task created", "task_id", t.ID, "task_name", t.Name)
	return cloneTask(t)
}

// UpdateTask shallow-merges update into the task with the given ID, bumps
// its UpdatedAt timestamp, and persists. The ID itself never changes.
func (s *TaskStore) UpdateTask(
	ctx context.Context,
	id string,
	update TaskUpdate,
) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	current, ok := storage.Tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown task status %q",
			domain.ErrValidation, *update.Status)
	}

	// Merge into a copy so a failed update never leaves partial mutations
	// behind in the cache.
	t, err := cloneTask(current)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		t.Name = *update.Name
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.Trigger != nil {
		t.Trigger = update.Trigger
	}
	if update.Action != nil {
		t.Action = update.Action
	}
	t.UpdatedAt = s.now().UnixMilli()

	storage.Tasks[id] = t
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return cloneTask(t)
}

// DeleteTask removes the task from the aggregate. There is no tombstone; a
// deleted task is gone.
func (s *TaskStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := storage.Tasks[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	delete(storage.Tasks, id)
	if err := s.persist(ctx); err != nil {
		return err
	}
	s.logger.Info("task deleted", "task_id", id)
	return nil
}

// SetTaskStatus updates only the task's status.
func (s *TaskStore) SetTaskStatus(
	ctx context.Context,
	id string,
	status domain.TaskStatus,
) (*domain.Task, error) {
	return s.UpdateTask(ctx, id, TaskUpdate{Status: &status})
}

// EnableTask marks the task ENABLED.
func (s *TaskStore) EnableTask(ctx context.Context, id string) (*domain.Task, error) {
	return s.SetTaskStatus(ctx, id, domain.TaskStatusEnabled)
}

// DisableTask marks the task DISABLED.
func (s *TaskStore) DisableTask(ctx context.Context, id string) (*domain.Task, error) {
	return s.SetTaskStatus(ctx, id, domain.TaskStatusDisabled)
}

// UpdateTaskExecutionHistory prepends result to the task's history (capped)
// and derives the new persisted status from the outcome: success re-enables
// the task, failure marks it FAILED. This is the single place where
// execution outcomes translate into persisted status; the executor always
// routes through here rather than setting status directly after a run.
func (s *TaskStore) UpdateTaskExecutionHistory(
	ctx context.Context,
	id string,
	result domain.ExecutionResult,
) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := storage.Tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}

	t.RecordExecution(result)
	if result.Success {
		t.Status = domain.TaskStatusEnabled
	} else {
		t.Status = domain.TaskStatusFailed
	}
	t.UpdatedAt = s.now().UnixMilli()

	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return cloneTask(t)
}

// ClearAllTasks replaces the aggregate with a fresh empty one.
func (s *TaskStore) ClearAllTasks(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(ctx); err != nil {
		return err
	}
	s.cache = domain.NewTaskStorage(s.now())
	return s.persist(ctx)
}
