package persistence

import (
	"context"
	"sync"
	"time"
)

// InMemoryKV is a simple, goroutine-safe KeyValueStore backed by a map.
// Expired entries are dropped lazily on read.
type InMemoryKV struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt *time.Time
}

// Ensure InMemoryKV implements the interface.
var _ KeyValueStore = (*InMemoryKV)(nil)

// NewInMemoryKV creates a new InMemoryKV.
func NewInMemoryKV() *InMemoryKV {
	return &InMemoryKV{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *InMemoryKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: expiry(s.now(), ttl),
	}
	return nil
}

func (s *InMemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expiresAt != nil && !s.now().Before(*e.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *InMemoryKV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
