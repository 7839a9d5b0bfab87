package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and early development.
// Entries expire lazily: a read past insertedAt+ttl deletes the entry and
// reports a miss.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// Clock is injectable for deterministic tests.
	Clock func() time.Time
}

type memoryEntry struct {
	payload    []byte
	insertedAt time.Time
	ttl        time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, Clock: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.Clock().After(e.insertedAt.Add(e.ttl)) {
		delete(s.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.entries[key] = memoryEntry{payload: cp, insertedAt: s.Clock(), ttl: ttl}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *MemoryStore) InvalidateTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ns := range allNamespaces {
		prefix := tenantPrefix(ns, tenantID)
		for k := range s.entries {
			if strings.HasPrefix(k, prefix) {
				delete(s.entries, k)
			}
		}
	}
	return nil
}

// Len reports the live entry count (expired entries may still be counted
// until read). Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
