// Package action implements the handlers the executor dispatches task
// actions to: backup/restore, organize, push, and selective push.
package action

import (
	"context"
	"fmt"

	"github.com/markvault/markvault/internal/domain"
)

// Handler runs one task's action end-to-end. The returned details string is
// recorded in the task's execution history on success. Handlers must honor
// ctx cancellation: the executor abandons a run by cancelling the context,
// and a cancelled handler must stop touching shared state.
type Handler interface {
	Run(ctx context.Context, task *domain.Task) (details string, err error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task *domain.Task) (string, error)

// Run implements Handler.
func (f HandlerFunc) Run(ctx context.Context, task *domain.Task) (string, error) {
	return f(ctx, task)
}

// Registry resolves a task's action to its handler. Custom actions resolve
// by their configured handler name.
type Registry struct {
	byType   map[domain.ActionType]Handler
	byCustom map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:   make(map[domain.ActionType]Handler),
		byCustom: make(map[string]Handler),
	}
}

// Register binds a handler to an action type.
func (r *Registry) Register(t domain.ActionType, h Handler) {
	r.byType[t] = h
}

// RegisterCustom binds a handler to a custom action name.
func (r *Registry) RegisterCustom(name string, h Handler) {
	r.byCustom[name] = h
}

// Resolve returns the handler for the given action. Unknown action types and
// unknown custom handler names fail with an unsupported-type error, which
// the executor classifies as non-retryable.
func (r *Registry) Resolve(a domain.Action) (Handler, error) {
	if custom, ok := a.(domain.CustomAction); ok {
		h, ok := r.byCustom[custom.Handler]
		if !ok {
			return nil, fmt.Errorf("unsupported type: no custom handler named %q", custom.Handler)
		}
		return h, nil
	}
	h, ok := r.byType[a.ActionType()]
	if !ok {
		return nil, fmt.Errorf("unsupported type: no handler for action %q", a.ActionType())
	}
	return h, nil
}
