// Package kv provides the key-value persistence primitive the task engine
// stores its aggregate under: opaque JSON blobs keyed by string, with change
// notifications on every write.
package kv

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrKeyNotFound is returned by Get when the key has never been set.
var ErrKeyNotFound = errors.New("key not found")

// ChangeFunc receives a change notification after a successful Set. old is
// nil when the key was previously absent.
type ChangeFunc func(key string, old, new json.RawMessage)

// Store is the only storage primitive available to the engine.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)

	// Set stores value under key, replacing any previous value, and fires
	// change notifications with the old and new values.
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Subscribe registers fn to be called after every successful Set.
	Subscribe(fn ChangeFunc)
}
