package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/ibnnafaa/nafaa/internal/locator"
)

const entrySuffix = ".cache"

// DirStore keeps one file per entry inside a partition directory. Files are
// written to a temporary name and hard-linked into place; the link fails
// when the name exists, which makes writes first-wins without locking.
type DirStore struct {
	basePath  string
	partition string
	capacity  int64 // Maximum bytes on disk, 0 for unlimited
	size      int64 // Current bytes on disk

	codec *codec

	// Protects size accounting
	mu sync.Mutex
	// Held shared by writers from reserve to link, exclusively by PurgeAll
	purgeMu sync.RWMutex
}

// NewDirStore creates a directory store under basePath/partition.
func NewDirStore(basePath, partition string, capacity int64, compressionLevel int) (*DirStore, error) {
	dir := filepath.Join(basePath, partition)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create cache directory: %v", ErrUnavailable, err)
	}

	c, err := newCodec(compressionLevel)
	if err != nil {
		return nil, err
	}

	ds := &DirStore{
		basePath:  dir,
		partition: partition,
		capacity:  capacity,
		codec:     c,
	}

	// Removes temp files from interrupted writes
	ds.cleanupTemp()

	if err := ds.calculateSize(); err != nil {
		c.close()
		return nil, err
	}

	return ds, nil
}

// Exists reports whether key has an entry file.
func (ds *DirStore) Exists(_ context.Context, key locator.Key) bool {
	_, err := os.Stat(ds.generateFilePath(key))
	return err == nil
}

// Read returns the decoded payload for key.
func (ds *DirStore) Read(_ context.Context, key locator.Key) ([]byte, error) {
	data, err := os.ReadFile(ds.generateFilePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ds.codec.decode(data)
}

// WriteIfAbsent stores data unless key already has an entry file.
func (ds *DirStore) WriteIfAbsent(_ context.Context, key locator.Key, data []byte) (WriteResult, error) {
	ds.purgeMu.RLock()
	defer ds.purgeMu.RUnlock()

	filePath := ds.generateFilePath(key)
	if _, err := os.Stat(filePath); err == nil {
		return AlreadyPresent, nil
	}

	encoded := ds.codec.encode(data)
	diskSize := int64(len(encoded))

	if err := ds.reserve(diskSize); err != nil {
		return 0, err
	}

	result, err := ds.writeFile(filePath, encoded)
	if err != nil || result == AlreadyPresent {
		ds.release(diskSize)
	}
	return result, err
}

// PurgeAll removes every entry file of the partition.
func (ds *DirStore) PurgeAll(context.Context) error {
	ds.purgeMu.Lock()
	defer ds.purgeMu.Unlock()
	ds.mu.Lock()
	defer ds.mu.Unlock()

	entries, err := os.ReadDir(ds.basePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(ds.basePath, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: purge: %v", ErrUnavailable, errors.Join(errs...))
	}

	ds.size = 0
	return nil
}

// Stats returns entry and size counts. Bytes is the size on disk.
func (ds *DirStore) Stats(context.Context) (Stats, error) {
	entries, err := os.ReadDir(ds.basePath)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var count int64
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), entrySuffix) {
			count++
		}
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	return Stats{
		Backend:   BackendDir,
		Partition: ds.partition,
		Entries:   count,
		Bytes:     ds.size,
		Capacity:  ds.capacity,
	}, nil
}

// Close releases the compression codec.
func (ds *DirStore) Close() error {
	ds.codec.close()
	return nil
}

// Private helper methods

func (ds *DirStore) generateFilePath(key locator.Key) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(ds.basePath, hex.EncodeToString(hash[:])+entrySuffix)
}

func (ds *DirStore) reserve(n int64) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.capacity > 0 && ds.size+n > ds.capacity {
		return ErrQuotaExceeded
	}
	ds.size += n
	return nil
}

func (ds *DirStore) release(n int64) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.size -= n
}

func (ds *DirStore) writeFile(path string, data []byte) (WriteResult, error) {
	file, err := os.CreateTemp(ds.basePath, "write-*.tmp")
	if err != nil {
		return 0, classifyWriteError(err)
	}
	tempPath := file.Name()
	defer os.Remove(tempPath)

	_, err = file.Write(data)
	closeErr := file.Close()
	if err != nil {
		return 0, classifyWriteError(err)
	}
	if closeErr != nil {
		return 0, classifyWriteError(closeErr)
	}

	// Link fails if another writer got there first
	if err := os.Link(tempPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return AlreadyPresent, nil
		}
		return 0, classifyWriteError(err)
	}
	return Written, nil
}

func (ds *DirStore) cleanupTemp() {
	matches, err := filepath.Glob(filepath.Join(ds.basePath, "write-*.tmp"))
	if err != nil {
		return
	}
	for _, path := range matches {
		os.Remove(path)
	}
}

func (ds *DirStore) calculateSize() error {
	entries, err := os.ReadDir(ds.basePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var size int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), entrySuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		size += info.Size()
	}

	ds.size = size
	return nil
}

func classifyWriteError(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
