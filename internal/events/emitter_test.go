package events

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markvault/markvault/internal/domain"
)

type recordingHandler struct {
	events []Event
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event Event) error {
	h.events = append(h.events, event)
	return h.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestEmitDeliversToAllHandlers(t *testing.T) {
	emitter := NewInMemoryEmitter(testLogger())
	first := &recordingHandler{}
	second := &recordingHandler{}
	emitter.RegisterHandler(first)
	emitter.RegisterHandler(second)

	event := Event{
		Kind: domain.EventBookmarkCreated,
		Data: map[string]string{"url": "https://example.com"},
	}
	require.NoError(t, emitter.EmitEvent(context.Background(), event))
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, event, first.events[0])
}

func TestEmitContinuesPastFailingHandler(t *testing.T) {
	emitter := NewInMemoryEmitter(testLogger())
	failing := &recordingHandler{err: errors.New("boom")}
	healthy := &recordingHandler{}
	emitter.RegisterHandler(failing)
	emitter.RegisterHandler(healthy)

	err := emitter.EmitEvent(context.Background(), Event{Kind: domain.EventBrowserStartup})
	require.Error(t, err)
	assert.Len(t, healthy.events, 1, "later handlers still receive the event")
}

func TestEmitWithNoHandlers(t *testing.T) {
	emitter := NewInMemoryEmitter(testLogger())
	assert.NoError(t, emitter.EmitEvent(context.Background(), Event{Kind: domain.EventBrowserStartup}))
}
