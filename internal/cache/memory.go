package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps cache entries in memory for tests and local runs.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	normalize Normalizer
}

func NewMemoryStore(normalize Normalizer) *MemoryStore {
	if normalize == nil {
		normalize = NormalizeLexical
	}
	return &MemoryStore{
		entries:   make(map[string]Entry),
		normalize: normalize,
	}
}

func (s *MemoryStore) Find(_ context.Context, query string) (Entry, bool, error) {
	signature := Signature(s.normalize, query)

	s.mu.RLock()
	entry, exists := s.entries[signature]
	s.mu.RUnlock()

	if !exists {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *MemoryStore) Save(_ context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	signature := Signature(s.normalize, entry.Query)

	s.mu.Lock()
	s.entries[signature] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Cleanup(_ context.Context, ttlDays int) (int, error) {
	cutoff := ttlCutoff(time.Now().UTC(), ttlDays)

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for signature, entry := range s.entries {
		if !entry.CreatedAt.After(cutoff) {
			delete(s.entries, signature)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
