package api

import (
	"encoding/json"
	"fmt"

	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/store"
)

// TaskRequest is the request body for creating or updating a task. All fields
// are optional: creation fills gaps from the default task, updates leave
// absent fields unchanged. Trigger and Action arrive as raw discriminated
// envelopes and are decoded through the domain union codecs.
type TaskRequest struct {
	Name        *string         `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	Status      *string         `json:"status" validate:"omitempty,oneof=ENABLED DISABLED RUNNING COMPLETED FAILED"`
	Trigger     json.RawMessage `json:"trigger,omitempty"`
	Action      json.RawMessage `json:"action,omitempty"`
}

// toPartialTask converts the request into the partial task CreateTask merges
// over its defaults.
func (req TaskRequest) toPartialTask() (domain.Task, error) {
	var partial domain.Task
	if req.Name != nil {
		partial.Name = *req.Name
	}
	if req.Description != nil {
		partial.Description = *req.Description
	}
	if req.Status != nil {
		partial.Status = domain.TaskStatus(*req.Status)
	}
	if len(req.Trigger) > 0 {
		trigger, err := domain.UnmarshalTrigger(req.Trigger)
		if err != nil {
			return domain.Task{}, fmt.Errorf("decode trigger: %w", err)
		}
		partial.Trigger = trigger
	}
	if len(req.Action) > 0 {
		action, err := domain.UnmarshalAction(req.Action)
		if err != nil {
			return domain.Task{}, fmt.Errorf("decode action: %w", err)
		}
		partial.Action = action
	}
	return partial, nil
}

// toUpdate converts the request into a shallow-merge update.
func (req TaskRequest) toUpdate() (store.TaskUpdate, error) {
	update := store.TaskUpdate{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		update.Status = &status
	}
	if len(req.Trigger) > 0 {
		trigger, err := domain.UnmarshalTrigger(req.Trigger)
		if err != nil {
			return store.TaskUpdate{}, fmt.Errorf("decode trigger: %w", err)
		}
		update.Trigger = trigger
	}
	if len(req.Action) > 0 {
		action, err := domain.UnmarshalAction(req.Action)
		if err != nil {
			return store.TaskUpdate{}, fmt.Errorf("decode action: %w", err)
		}
		update.Action = action
	}
	return update, nil
}

// EventRequest is the request body for POST /events/{kind}: the payload the
// matching event triggers filter on.
type EventRequest struct {
	Data map[string]string `json:"data,omitempty"`
}

// TaskListResponse wraps the task collection for list responses.
type TaskListResponse struct {
	Tasks       []*domain.Task `json:"tasks"`
	LastUpdated int64          `json:"lastUpdated"`
}

// HistoryResponse wraps a task's execution history.
type HistoryResponse struct {
	TaskID     string                   `json:"taskId"`
	Executions []domain.ExecutionResult `json:"executions"`
}
