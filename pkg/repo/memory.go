package repo

import (
	"context"
	"encoding/json"
	"sync"
)

type memoryEntry struct {
	doc     json.RawMessage
	version uint64
}

// Memory is the in-memory reference Store, used by tests, the simulation
// driver and the interactive CLI. Versions start at 1 and increment on every
// successful write.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]memoryEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]memoryEntry)}
}

func (m *Memory) Get(ctx context.Context, kind, id string) (json.RawMessage, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.docs[kind][id]
	if !ok {
		return nil, 0, ErrNotFound
	}
	// Hand out a copy so callers never share backing arrays with the store.
	doc := make(json.RawMessage, len(entry.doc))
	copy(doc, entry.doc)
	return doc, entry.version, nil
}

func (m *Memory) Put(ctx context.Context, kind, id string, doc json.RawMessage, expected uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.docs[kind]
	if !ok {
		bucket = make(map[string]memoryEntry)
		m.docs[kind] = bucket
	}

	entry, exists := bucket[id]
	switch {
	case expected == 0 && exists:
		return 0, ErrVersionConflict
	case expected != 0 && !exists:
		return 0, ErrNotFound
	case expected != 0 && entry.version != expected:
		return 0, ErrVersionConflict
	}

	stored := make(json.RawMessage, len(doc))
	copy(stored, doc)
	next := entry.version + 1
	bucket[id] = memoryEntry{doc: stored, version: next}
	return next, nil
}

func (m *Memory) Delete(ctx context.Context, kind, id string, expected uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.docs[kind][id]
	if !exists {
		return ErrNotFound
	}
	if entry.version != expected {
		return ErrVersionConflict
	}
	delete(m.docs[kind], id)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }
