package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markvault/markvault/internal/api/shared"
	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/events"
)

// EventHandler accepts externally observed browser events and feeds them into
// the event pipeline, where the dispatcher matches them against event
// triggers.
type EventHandler struct {
	emitter events.Emitter
	logger  *slog.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(emitter events.Emitter, logger *slog.Logger) *EventHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for EventHandler")
	}
	return &EventHandler{
		emitter: emitter,
		logger:  logger.With(slog.String("component", "event_handler")),
	}
}

var knownEventKinds = map[domain.EventKind]struct{}{
	domain.EventBrowserStartup:   {},
	domain.EventBookmarkCreated:  {},
	domain.EventBookmarkRemoved:  {},
	domain.EventBookmarkChanged:  {},
	domain.EventBookmarkMoved:    {},
	domain.EventExtensionClicked: {},
}

// PostEvent handles POST /events/{kind} requests. The event fans out to all
// matching tasks before the response is written; individual task failures are
// recorded on the tasks themselves and do not fail the request.
func (h *EventHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	kind := domain.EventKind(chi.URLParam(r, "kind"))
	if _, ok := knownEventKinds[kind]; !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown event kind: "+string(kind))
		return
	}

	var req EventRequest
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
	}

	h.logger.Info("external event received", slog.String("event", string(kind)))
	if err := h.emitter.EmitEvent(r.Context(), events.Event{Kind: kind, Data: req.Data}); err != nil {
		// The failing handler already logged details; the event itself was
		// delivered everywhere.
		h.logger.Warn("event handling reported an error", "event", kind, "error", err)
	}
	w.WriteHeader(http.StatusAccepted)
}
