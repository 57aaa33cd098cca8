package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("kv")

// Bolt is the durable Store backed by a bbolt database file.
type Bolt struct {
	db *bolt.DB

	mu   sync.RWMutex
	subs []ChangeFunc
}

// OpenBolt opens (or creates) the database at path and ensures the bucket
// exists.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (b *Bolt) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value json.RawMessage
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get([]byte(key))
		if raw == nil {
			return ErrKeyNotFound
		}
		value = make(json.RawMessage, len(raw))
		copy(value, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key and notifies subscribers.
func (b *Bolt) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var old json.RawMessage
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if raw := bucket.Get([]byte(key)); raw != nil {
			old = make(json.RawMessage, len(raw))
			copy(old, raw)
		}
		return bucket.Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	b.mu.RLock()
	subs := make([]ChangeFunc, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(key, old, value)
	}
	return nil
}

// Subscribe registers fn for change notifications.
func (b *Bolt) Subscribe(fn ChangeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}
