package cache

import (
	"context"
	"errors"

	"github.com/ibnnafaa/nafaa/internal/locator"
)

// Common errors for store operations
var (
	// ErrNotFound is returned by Read when no entry exists for a key.
	// It is a query result, not a failure.
	ErrNotFound = errors.New("cache entry not found")

	// ErrQuotaExceeded is returned when a write would exceed the store quota.
	ErrQuotaExceeded = errors.New("cache quota exceeded")

	// ErrUnavailable is returned when the underlying storage cannot be used.
	ErrUnavailable = errors.New("cache storage unavailable")

	// ErrCorrupted is returned when a stored payload cannot be decoded.
	ErrCorrupted = errors.New("cache data corrupted")

	// ErrReservedPartition is returned for a partition name the store uses
	// internally.
	ErrReservedPartition = errors.New("reserved cache partition name")
)

// IsStorageError reports whether err is a storage failure (quota or
// unavailable storage) as opposed to a missing entry.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrCorrupted)
}

// WriteResult describes the effect of WriteIfAbsent.
type WriteResult int

const (
	// Written means the payload was stored under the key.
	Written WriteResult = iota

	// AlreadyPresent means an entry existed and nothing was written.
	AlreadyPresent
)

// String returns the string representation of the result
func (r WriteResult) String() string {
	switch r {
	case Written:
		return "written"
	case AlreadyPresent:
		return "already-present"
	default:
		return "unknown"
	}
}

// Stats describes the contents of a store.
type Stats struct {
	Backend   string
	Partition string
	Entries   int64
	Bytes     int64 // stored bytes
	Capacity  int64 // 0 means unlimited
}

// Store is a persistent keyed byte store with write-once semantics.
// Implementations are safe for concurrent use.
type Store interface {
	// Exists reports whether an entry is present. Errors read as absent.
	Exists(ctx context.Context, key locator.Key) bool

	// Read returns the payload for key or ErrNotFound.
	Read(ctx context.Context, key locator.Key) ([]byte, error)

	// WriteIfAbsent stores data unless key already has an entry. Concurrent
	// writers for one key never corrupt storage; exactly one observes
	// Written.
	WriteIfAbsent(ctx context.Context, key locator.Key, data []byte) (WriteResult, error)

	// PurgeAll removes every entry of the partition.
	PurgeAll(ctx context.Context) error

	// Stats returns entry and size counts.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the underlying storage.
	Close() error
}
