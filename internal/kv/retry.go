package kv

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Write retry policy: 3 attempts total, exponential backoff starting at the
// base delay and doubling, capped at 1s.
const (
	writeAttempts  = 3
	writeBaseDelay = 250 * time.Millisecond
	writeDelayCap  = 1 * time.Second
)

// Retrying wraps a Store and retries failed writes with bounded exponential
// backoff before reporting the failure. Reads are not retried; a failed read
// is always surfaced immediately.
type Retrying struct {
	inner  Store
	logger *slog.Logger
}

// WithRetry wraps inner with the write retry policy.
func WithRetry(inner Store, logger *slog.Logger) *Retrying {
	return &Retrying{
		inner:  inner,
		logger: logger.With("component", "kv_retry"),
	}
}

// Get delegates to the wrapped store.
func (r *Retrying) Get(ctx context.Context, key string) (json.RawMessage, error) {
	return r.inner.Get(ctx, key)
}

// Set writes through to the wrapped store, retrying transient failures.
func (r *Retrying) Set(ctx context.Context, key string, value json.RawMessage) error {
	backoff := retry.WithCappedDuration(
		writeDelayCap,
		retry.NewExponential(writeBaseDelay),
	)
	backoff = retry.WithMaxRetries(writeAttempts-1, backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.inner.Set(ctx, key, value)
		if err != nil {
			r.logger.Warn("kv write failed",
				"key", key,
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// Subscribe delegates to the wrapped store.
func (r *Retrying) Subscribe(fn ChangeFunc) {
	r.inner.Subscribe(fn)
}
