package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/events"
	"github.com/markvault/markvault/internal/store"
)

// Dispatcher bridges external occurrences, alarm firings, browser lifecycle
// and bookmark mutation events, to task execution.
type Dispatcher struct {
	store    *store.TaskStore
	executor *Executor
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given store and executor.
func NewDispatcher(
	taskStore *store.TaskStore,
	executor *Executor,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:    taskStore,
		executor: executor,
		logger:   logger.With("component", "trigger_dispatcher"),
	}
}

// Init performs startup recovery of FAILED tasks.
func (d *Dispatcher) Init(ctx context.Context) error {
	return d.RecoverFailedTasks(ctx)
}

// RecoverFailedTasks scans FAILED tasks and optimistically re-enables those
// whose last failure does not look credential-related, assuming the failure
// was transient (network, timeout) and has cleared. The task is not re-run.
// Credential failures stay FAILED: they need the user to re-authenticate.
//
// Note this re-enables without re-verifying the underlying cause, so a
// persistently broken non-credential task will oscillate FAILED->ENABLED
// until fixed. Kept deliberately; see DESIGN.md.
func (d *Dispatcher) RecoverFailedTasks(ctx context.Context) error {
	failed, err := d.store.GetTasksByStatus(ctx, domain.TaskStatusFailed)
	if err != nil {
		return fmt.Errorf("scan failed tasks: %w", err)
	}

	recovered := 0
	for _, t := range failed {
		last := t.History.LastExecution
		if last != nil && IsCredentialFailure(last.Error) {
			d.logger.Info("leaving credential-failed task for user action",
				"task_id", t.ID,
				"error", last.Error)
			continue
		}
		if _, err := d.store.EnableTask(ctx, t.ID); err != nil {
			d.logger.Error("failed to recover task",
				"task_id", t.ID,
				"error", err)
			continue
		}
		recovered++
	}
	if len(failed) > 0 {
		d.logger.Info("failed-task recovery finished",
			"failed_count", len(failed),
			"recovered_count", recovered)
	}
	return nil
}

// HandleEventTrigger executes every ENABLED task whose event trigger matches
// the given event, strictly sequentially. Sequential fan-out bounds
// contention on the shared storage aggregate; per-task mutual exclusion is
// the executor's job. A failing task is logged and does not stop the
// remaining matches.
func (d *Dispatcher) HandleEventTrigger(
	ctx context.Context,
	event domain.EventKind,
	data map[string]string,
) error {
	enabled, err := d.store.GetTasksByStatus(ctx, domain.TaskStatusEnabled)
	if err != nil {
		return fmt.Errorf("query enabled tasks: %w", err)
	}

	for _, t := range enabled {
		trigger, ok := t.Trigger.(domain.EventTrigger)
		if !ok || trigger.Event != event {
			continue
		}
		if !conditionsMatch(trigger.Conditions, data) {
			continue
		}

		d.logger.Info("event trigger matched",
			"event", event,
			"task_id", t.ID,
			"task_name", t.Name)
		result := d.executor.ExecuteTask(ctx, t.ID)
		if !result.Success {
			d.logger.Error("triggered task failed",
				"event", event,
				"task_id", t.ID,
				"error", result.Error)
		}
	}
	return nil
}

// HandleAlarm executes the task a time-trigger alarm fired for. Tasks that
// are no longer ENABLED by the time the alarm fires are skipped.
func (d *Dispatcher) HandleAlarm(ctx context.Context, taskID string) {
	t, err := d.store.GetTaskByID(ctx, taskID)
	if err != nil {
		d.logger.Error("alarm fired for unknown task", "task_id", taskID, "error", err)
		return
	}
	if t.Status != domain.TaskStatusEnabled {
		d.logger.Debug("skipping alarm for non-enabled task",
			"task_id", taskID,
			"status", t.Status)
		return
	}
	result := d.executor.ExecuteTask(ctx, taskID)
	if !result.Success {
		d.logger.Error("scheduled task failed",
			"task_id", taskID,
			"error", result.Error)
	}
}

// HandleEvent implements events.Handler so the dispatcher can subscribe to
// the process-wide event emitter.
func (d *Dispatcher) HandleEvent(ctx context.Context, event events.Event) error {
	return d.HandleEventTrigger(ctx, event.Kind, event.Data)
}

func conditionsMatch(cond *domain.EventConditions, data map[string]string) bool {
	if cond == nil {
		return true
	}
	if cond.URLContains != "" && !strings.Contains(data["url"], cond.URLContains) {
		return false
	}
	if cond.TitleContains != "" && !strings.Contains(data["title"], cond.TitleContains) {
		return false
	}
	return true
}
