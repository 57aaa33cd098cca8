// Package events decouples event producers (the bookmark store's mutation
// hooks, the management API, process lifecycle) from the trigger dispatcher
// that reacts to them.
package events

import (
	"context"

	"github.com/markvault/markvault/internal/domain"
)

// Event is one browser-side occurrence: its kind plus a small string
// payload (bookmark url/title and the like) used by trigger conditions.
type Event struct {
	Kind domain.EventKind
	Data map[string]string
}

// Handler processes events delivered by an Emitter.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event Event) error
}

// Emitter publishes events to all registered handlers.
type Emitter interface {
	// RegisterHandler adds a handler to receive future events.
	RegisterHandler(handler Handler)

	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event Event) error
}
