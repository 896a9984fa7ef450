package storage

import (
	"context"
	"slices"
	"sync"

	"CaseCollector/internal/ports"
)

var (
	_ ports.DocumentStore = (*MemoryStore)(nil)
	_ ports.BatchSaver    = (*MemoryStore)(nil)
)

// MemoryStore keeps collections in process memory. Used for tests and dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	closed bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, collection string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &Error{Op: OpLoad, Collection: collection, Err: ErrClosed}
	}
	return slices.Clone(s.docs[collection]), nil
}

func (s *MemoryStore) Save(_ context.Context, collection string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &Error{Op: OpSave, Collection: collection, Err: ErrClosed}
	}
	s.docs[collection] = slices.Clone(payload)
	return nil
}

func (s *MemoryStore) SaveBatch(_ context.Context, payloads map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &Error{Op: OpSaveBatch, Err: ErrClosed}
	}
	for name, payload := range payloads {
		s.docs[name] = slices.Clone(payload)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
