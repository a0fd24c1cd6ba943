package cache

import (
	"context"
	"sync"

	"github.com/ibnnafaa/nafaa/internal/locator"
)

// MemoryStore keeps entries in a map. Nothing survives the process; it
// backs tests and ephemeral sessions.
type MemoryStore struct {
	partition string
	capacity  int64 // Maximum payload bytes, 0 for unlimited
	size      int64 // Current payload bytes

	items map[locator.Key][]byte

	// Synchronization
	mu sync.RWMutex
}

// NewMemoryStore creates an in-memory store. A capacity of 0 means no
// quota.
func NewMemoryStore(partition string, capacity int64) *MemoryStore {
	return &MemoryStore{
		partition: partition,
		capacity:  capacity,
		items:     make(map[locator.Key][]byte),
	}
}

// Exists reports whether key has an entry.
func (s *MemoryStore) Exists(_ context.Context, key locator.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.items[key]
	return ok
}

// Read returns a copy of the entry for key.
func (s *MemoryStore) Read(_ context.Context, key locator.Key) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// WriteIfAbsent stores a copy of data unless key already has an entry.
func (s *MemoryStore) WriteIfAbsent(_ context.Context, key locator.Key, data []byte) (WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; ok {
		return AlreadyPresent, nil
	}

	size := int64(len(data))
	if s.capacity > 0 && s.size+size > s.capacity {
		return 0, ErrQuotaExceeded
	}

	value := make([]byte, len(data))
	copy(value, data)
	s.items[key] = value
	s.size += size

	return Written, nil
}

// PurgeAll removes every entry.
func (s *MemoryStore) PurgeAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[locator.Key][]byte)
	s.size = 0
	return nil
}

// Stats returns entry and size counts.
func (s *MemoryStore) Stats(context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Backend:   BackendMemory,
		Partition: s.partition,
		Entries:   int64(len(s.items)),
		Bytes:     s.size,
		Capacity:  s.capacity,
	}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
