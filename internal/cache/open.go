package cache

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendBolt   = "bolt"
	BackendDir    = "dir"
	BackendMemory = "memory"
)

// DefaultPartition is the partition recitation audio is stored under.
const DefaultPartition = "ibn-nafaa-audio-v1"

// Config holds configuration for opening a store.
type Config struct {
	Backend          string // bolt, dir or memory
	Dir              string // Directory holding the database or entry files
	Partition        string // Bucket or subdirectory name
	Capacity         int64  // Bytes, 0 for unlimited
	CompressionLevel int    // Zstd level (1-22), 0 disables compression
}

// DefaultConfig returns default store configuration
func DefaultConfig() Config {
	return Config{
		Backend:          BackendBolt,
		Partition:        DefaultPartition,
		CompressionLevel: 3, // Balanced compression
	}
}

// Open creates the store selected by cfg.Backend.
func Open(cfg Config) (Store, error) {
	if cfg.Partition == "" {
		cfg.Partition = DefaultPartition
	}

	switch cfg.Backend {
	case BackendBolt, "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("%w: no cache directory configured", ErrUnavailable)
		}
		s, err := NewBoltStore(filepath.Join(cfg.Dir, "audio.db"), cfg.Partition, cfg.Capacity, cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendDir:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("%w: no cache directory configured", ErrUnavailable)
		}
		s, err := NewDirStore(cfg.Dir, cfg.Partition, cfg.Capacity, cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemoryStore(cfg.Partition, cfg.Capacity), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
