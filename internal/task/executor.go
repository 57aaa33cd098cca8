package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/markvault/markvault/internal/action"
	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/store"
)

// ExecutorConfig holds the executor's timeout and retry policy.
type ExecutorConfig struct {
	// Timeout bounds a single action run. The run is abandoned when it
	// expires; its context is cancelled so the handler stops touching
	// shared state.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt, so a
	// task whose action keeps failing transiently is attempted
	// MaxRetries+1 times in total.
	MaxRetries int

	// RetryDelay is the constant delay between attempts. Deliberately not
	// exponential: transient remote failures here are short-lived and the
	// schedule cadence is minutes, not milliseconds.
	RetryDelay time.Duration
}

// DefaultExecutorConfig returns the standard policy.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// Executor runs exactly one task's action end-to-end with timeout, retry,
// and status transitions, and guarantees at most one concurrent execution
// per task ID within the process.
type Executor struct {
	store    *store.TaskStore
	registry *action.Registry
	config   ExecutorConfig
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	executing map[string]struct{}
}

// NewExecutor creates an executor over the given store and handler registry.
func NewExecutor(
	taskStore *store.TaskStore,
	registry *action.Registry,
	config ExecutorConfig,
	logger *slog.Logger,
) *Executor {
	if config.Timeout <= 0 {
		config.Timeout = DefaultExecutorConfig().Timeout
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultExecutorConfig().RetryDelay
	}
	return &Executor{
		store:     taskStore,
		registry:  registry,
		config:    config,
		logger:    logger.With("component", "task_executor"),
		now:       time.Now,
		executing: make(map[string]struct{}),
	}
}

// SetClock overrides the executor's clock. Tests only.
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// Init performs crash recovery: any task still marked RUNNING at process
// start was necessarily interrupted by an abrupt termination, so it gets an
// interruption entry in its history and ends up FAILED.
func (e *Executor) Init(ctx context.Context) error {
	running, err := e.store.GetTasksByStatus(ctx, domain.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("scan for interrupted tasks: %w", err)
	}
	for _, t := range running {
		e.logger.Warn("recovering interrupted task", "task_id", t.ID, "task_name", t.Name)
		_, err := e.store.UpdateTaskExecutionHistory(ctx, t.ID, domain.ExecutionResult{
			Success:   false,
			Timestamp: e.now().UnixMilli(),
			Error:     "execution interrupted by unexpected shutdown",
		})
		if err != nil {
			return fmt.Errorf("mark interrupted task %s failed: %w", t.ID, err)
		}
	}
	return nil
}

// tryBegin adds taskID to the in-flight set. It reports false when the task
// is already executing; there is no queuing and no blocking.
func (e *Executor) tryBegin(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, inflight := e.executing[taskID]; inflight {
		return false
	}
	e.executing[taskID] = struct{}{}
	return true
}

func (e *Executor) end(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.executing, taskID)
}

// ExecuteTask runs the task's action under the executor's policy and always
// returns an ExecutionResult; it never propagates an error past its own
// boundary. Transient failures are retried with a constant delay, the
// in-flight guard released between attempts. The final failure (or the
// success) is persisted to the task's history, which is also where the
// FAILED/ENABLED status transition happens.
func (e *Executor) ExecuteTask(ctx context.Context, taskID string) domain.ExecutionResult {
	var (
		last    domain.ExecutionResult
		ran     bool
		attempt int
	)

	backoff := retry.WithMaxRetries(
		uint64(e.config.MaxRetries),
		retry.NewConstant(e.config.RetryDelay),
	)
	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, didRun := e.runOnce(ctx, taskID, attempt)
		attempt++
		last, ran = res, didRun
		if res.Success || !didRun {
			return nil
		}
		if IsRetryableError(res.Error) {
			e.logger.Info("task failed with retryable error",
				"task_id", taskID,
				"attempt", attempt,
				"error", res.Error)
			return retry.RetryableError(errors.New(res.Error))
		}
		return nil
	})

	if ran && !last.Success {
		e.persistResult(ctx, taskID, last)
	}
	return last
}

// runOnce performs a single attempt. ran reports whether the task actually
// entered RUNNING: rejections (already executing, not found, bad state)
// never mutate history and are never retried.
func (e *Executor) runOnce(
	ctx context.Context,
	taskID string,
	attempt int,
) (result domain.ExecutionResult, ran bool) {
	if !e.tryBegin(taskID) {
		return domain.ExecutionResult{
			Success:   false,
			Timestamp: e.now().UnixMilli(),
			Error:     fmt.Sprintf("task %s is already executing", taskID),
		}, false
	}
	defer e.end(taskID)

	t, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return domain.ExecutionResult{
			Success:   false,
			Timestamp: e.now().UnixMilli(),
			Error:     err.Error(),
		}, false
	}

	// Only ENABLED and FAILED tasks may start a run. Retry attempts see the
	// RUNNING status their own first attempt wrote, which is fine; a
	// competing run is excluded by the in-flight guard, not by status.
	switch t.Status {
	case domain.TaskStatusEnabled, domain.TaskStatusFailed:
	case domain.TaskStatusRunning:
		if attempt == 0 {
			return e.rejectState(t), false
		}
	default:
		return e.rejectState(t), false
	}

	if t.Status != domain.TaskStatusRunning {
		if _, err := e.store.SetTaskStatus(ctx, taskID, domain.TaskStatusRunning); err != nil {
			return domain.ExecutionResult{
				Success:   false,
				Timestamp: e.now().UnixMilli(),
				Error:     fmt.Sprintf("mark task running: %v", err),
			}, false
		}
	}

	start := e.now()
	details, runErr := e.dispatch(ctx, t)
	finished := e.now()

	result = domain.ExecutionResult{
		Success:   runErr == nil,
		Timestamp: finished.UnixMilli(),
		Duration:  finished.Sub(start).Milliseconds(),
		Details:   details,
	}
	if runErr != nil {
		result.Error = runErr.Error()
		return result, true
	}

	e.persistResult(ctx, taskID, result)
	return result, true
}

func (e *Executor) rejectState(t *domain.Task) domain.ExecutionResult {
	return domain.ExecutionResult{
		Success:   false,
		Timestamp: e.now().UnixMilli(),
		Error: fmt.Sprintf("%v: cannot execute task in status %s",
			domain.ErrInvalidState, t.Status),
	}
}

// dispatch resolves the task's handler and races it against the timeout.
// When the timeout wins the action context is cancelled and the run is
// abandoned; a late result from the abandoned goroutine is discarded.
func (e *Executor) dispatch(ctx context.Context, t *domain.Task) (string, error) {
	// A restore can silently overwrite the user's live bookmarks, so it is
	// never allowed to fire from a schedule or an event.
	if backup, ok := t.Action.(domain.BackupAction); ok &&
		backup.Operation == domain.BackupOperationRestore {
		if t.Trigger.TriggerType() != domain.TriggerTypeManual {
			return "", errors.New("restore tasks must be manually triggered")
		}
	}

	handler, err := e.registry.Resolve(t.Action)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	type outcome struct {
		details string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		details, err := handler.Run(runCtx, t)
		done <- outcome{details, err}
	}()

	select {
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("task execution timed out after %s", e.config.Timeout)
		}
		return "", runCtx.Err()
	case o := <-done:
		return o.details, o.err
	}
}

// persistResult records the outcome through the store, which derives the new
// status. A result is discarded when the task is no longer RUNNING: someone
// disabled or deleted the task while the run was in flight, and a stale run
// must not clobber that.
func (e *Executor) persistResult(
	ctx context.Context,
	taskID string,
	result domain.ExecutionResult,
) {
	current, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		e.logger.Error("cannot persist execution result",
			"task_id", taskID,
			"error", err)
		return
	}
	if current.Status != domain.TaskStatusRunning {
		e.logger.Warn("discarding stale execution result",
			"task_id", taskID,
			"status", current.Status)
		return
	}

	updated, err := e.store.UpdateTaskExecutionHistory(ctx, taskID, result)
	if err != nil {
		e.logger.Error("failed to persist execution result",
			"task_id", taskID,
			"error", err)
		return
	}

	// One-shot schedules end in COMPLETED instead of ENABLED after a
	// successful run.
	if result.Success && domain.IsOnceSchedule(updated.Trigger) {
		if _, err := e.store.SetTaskStatus(ctx, taskID, domain.TaskStatusCompleted); err != nil {
			e.logger.Error("failed to complete one-shot task",
				"task_id", taskID,
				"error", err)
		}
	}
}
