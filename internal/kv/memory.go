package kv

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Store used by tests and ephemeral runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
	subs []ChangeFunc
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]json.RawMessage)}
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (m *Memory) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make(json.RawMessage, len(value))
	copy(out, value)
	return out, nil
}

// Set stores value under key and notifies subscribers.
func (m *Memory) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make(json.RawMessage, len(value))
	copy(stored, value)

	m.mu.Lock()
	old := m.data[key]
	m.data[key] = stored
	subs := make([]ChangeFunc, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(key, old, stored)
	}
	return nil
}

// Subscribe registers fn for change notifications.
func (m *Memory) Subscribe(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}
