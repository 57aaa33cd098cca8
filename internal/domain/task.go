package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

// Possible task status values. A task's status is always exactly one of
// these five; no intermediate state is ever observable by callers.
const (
	TaskStatusEnabled   TaskStatus = "ENABLED"
	TaskStatusDisabled  TaskStatus = "DISABLED"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// String returns the string representation of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the five enumerated status values.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusEnabled, TaskStatusDisabled, TaskStatusRunning,
		TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// MaxHistoryEntries caps the number of execution results retained per task.
const MaxHistoryEntries = 20

// ExecutionResult records the outcome of a single task run. Results are
// immutable once created; they are prepended to the task history and never
// mutated afterwards.
type ExecutionResult struct {
	Success   bool   `json:"success"`
	Timestamp int64  `json:"timestamp"`
	Duration  int64  `json:"duration,omitempty"`
	Details   string `json:"details,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TaskHistory holds the bounded execution log of a task, newest first.
type TaskHistory struct {
	Executions    []ExecutionResult `json:"executions"`
	LastExecution *ExecutionResult  `json:"lastExecution,omitempty"`
}

// Task is a persisted automation unit pairing one Trigger with one Action.
type Task struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Status      TaskStatus  `json:"status"`
	CreatedAt   int64       `json:"createdAt"`
	UpdatedAt   int64       `json:"updatedAt"`
	Trigger     Trigger     `json:"-"`
	Action      Action      `json:"-"`
	History     TaskHistory `json:"history"`
}

// taskJSON mirrors Task with the trigger/action unions held as raw JSON so
// the envelope encoding lives in one place.
type taskJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Status      TaskStatus      `json:"status"`
	CreatedAt   int64           `json:"createdAt"`
	UpdatedAt   int64           `json:"updatedAt"`
	Trigger     json.RawMessage `json:"trigger"`
	Action      json.RawMessage `json:"action"`
	History     TaskHistory     `json:"history"`
}

// MarshalJSON encodes the task with its trigger and action envelopes.
func (t Task) MarshalJSON() ([]byte, error) {
	trigger, err := MarshalTrigger(t.Trigger)
	if err != nil {
		return nil, fmt.Errorf("marshal trigger: %w", err)
	}
	action, err := MarshalAction(t.Action)
	if err != nil {
		return nil, fmt.Errorf("marshal action: %w", err)
	}
	return json.Marshal(taskJSON{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Trigger:     trigger,
		Action:      action,
		History:     t.History,
	})
}

// UnmarshalJSON decodes the task, resolving the trigger and action envelopes
// back into their concrete union members.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw taskJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	trigger, err := UnmarshalTrigger(raw.Trigger)
	if err != nil {
		return fmt.Errorf("unmarshal trigger: %w", err)
	}
	action, err := UnmarshalAction(raw.Action)
	if err != nil {
		return fmt.Errorf("unmarshal action: %w", err)
	}
	t.ID = raw.ID
	t.Name = raw.Name
	t.Description = raw.Description
	t.Status = raw.Status
	t.CreatedAt = raw.CreatedAt
	t.UpdatedAt = raw.UpdatedAt
	t.Trigger = trigger
	t.Action = action
	t.History = raw.History
	return nil
}

// Validate checks that the task's invariants hold.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: task ID cannot be empty", ErrValidation)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown task status %q", ErrValidation, t.Status)
	}
	if t.Trigger == nil {
		return fmt.Errorf("%w: task trigger cannot be nil", ErrValidation)
	}
	if t.Action == nil {
		return fmt.Errorf("%w: task action cannot be nil", ErrValidation)
	}
	if len(t.History.Executions) > MaxHistoryEntries {
		return fmt.Errorf("%w: history exceeds %d entries", ErrValidation, MaxHistoryEntries)
	}
	return nil
}

// RecordExecution prepends result to the task history, capped at
// MaxHistoryEntries, and updates LastExecution. The caller is responsible
// for deriving the new status from the result.
func (t *Task) RecordExecution(result ExecutionResult) {
	executions := make([]ExecutionResult, 0, len(t.History.Executions)+1)
	executions = append(executions, result)
	executions = append(executions, t.History.Executions...)
	if len(executions) > MaxHistoryEntries {
		executions = executions[:MaxHistoryEntries]
	}
	t.History.Executions = executions
	t.History.LastExecution = &result
}

// TaskStorage is the sole persisted aggregate: the full task collection plus
// the timestamp of the last mutation.
type TaskStorage struct {
	Tasks       map[string]*Task `json:"tasks"`
	LastUpdated int64            `json:"lastUpdated"`
}

// NewTaskStorage returns an empty storage aggregate stamped with now.
func NewTaskStorage(now time.Time) *TaskStorage {
	return &TaskStorage{
		Tasks:       make(map[string]*Task),
		LastUpdated: now.UnixMilli(),
	}
}

// NewTaskID mints a fresh task identifier seeded with the current time so
// IDs sort roughly by creation order while staying collision-free.
func NewTaskID(now time.Time) string {
	return fmt.Sprintf("task-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
