// Package storage provides the key-value persistence used by the relay's
// message handlers. Values are stored as JSON.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// Store is a string-keyed JSON value store.
type Store interface {
	// Get returns the raw JSON stored under key and whether it exists.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	// Set stores value, JSON-encoded, under key.
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetInto decodes the value stored under key into v.
func GetInto(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

// Open returns a store for a connection string.
// Supported formats:
// - "" or memory
// - sqlite://path/to/db.sqlite
// - sqlite:./test.db
func Open(connStr string) (Store, error) {
	connStr = strings.TrimSpace(connStr)
	switch {
	case connStr == "" || connStr == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(connStr, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(connStr, "sqlite://"))
	case strings.HasPrefix(connStr, "sqlite:"):
		return NewSQLiteStore(strings.TrimPrefix(connStr, "sqlite:"))
	default:
		return nil, fmt.Errorf("unsupported storage: %s", connStr)
	}
}

// MemoryStore keeps values in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]json.RawMessage)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), v...), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.values[key] = raw
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
