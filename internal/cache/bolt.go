package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ibnnafaa/nafaa/internal/locator"
	bolt "go.etcd.io/bbolt"
)

// ReservedPartition names the bucket holding partition sizes.
const ReservedPartition = "meta"

var (
	bucketMeta = []byte(ReservedPartition)
	keySize    = []byte("size")
)

// BoltStore keeps entries in a bbolt database, one bucket per partition.
// WriteIfAbsent runs its existence check and put in one read-write
// transaction.
type BoltStore struct {
	db        *bolt.DB
	path      string
	partition []byte
	capacity  int64 // Maximum stored bytes, 0 for unlimited

	codec *codec
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path, partition string, capacity int64, compressionLevel int) (*BoltStore, error) {
	if partition == ReservedPartition {
		return nil, fmt.Errorf("%w: %q", ErrReservedPartition, partition)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create cache directory: %v", ErrUnavailable, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open bolt db: %v", ErrUnavailable, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(partition)); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		_, err = meta.CreateBucketIfNotExists([]byte(partition))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create buckets: %v", ErrUnavailable, err)
	}

	c, err := newCodec(compressionLevel)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{
		db:        db,
		path:      path,
		partition: []byte(partition),
		capacity:  capacity,
		codec:     c,
	}, nil
}

// Exists reports whether key has an entry.
func (s *BoltStore) Exists(_ context.Context, key locator.Key) bool {
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.partition)
		if b == nil {
			return nil
		}
		found = b.Get([]byte(key)) != nil
		return nil
	})
	return found
}

// Read returns the decoded payload for key.
func (s *BoltStore) Read(_ context.Context, key locator.Key) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	viewErr := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.partition)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// decode copies out of the mmap before the transaction ends
		data, err = s.codec.decode(v)
		return nil
	})
	if viewErr != nil {
		if errors.Is(viewErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, viewErr)
	}
	return data, err
}

// WriteIfAbsent stores data unless key already has an entry.
func (s *BoltStore) WriteIfAbsent(_ context.Context, key locator.Key, data []byte) (WriteResult, error) {
	encoded := s.codec.encode(data)
	result := Written

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.partition)
		if b == nil {
			return ErrUnavailable
		}
		if b.Get([]byte(key)) != nil {
			result = AlreadyPresent
			return nil
		}

		sizes := tx.Bucket(bucketMeta).Bucket(s.partition)
		size := readSize(sizes)
		n := int64(len(encoded))
		if s.capacity > 0 && size+n > s.capacity {
			return ErrQuotaExceeded
		}

		if err := b.Put([]byte(key), encoded); err != nil {
			return err
		}
		return writeSize(sizes, size+n)
	})
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result, nil
}

// PurgeAll drops and recreates the partition bucket.
func (s *BoltStore) PurgeAll(context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.partition); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		if _, err := tx.CreateBucket(s.partition); err != nil {
			return err
		}
		return writeSize(tx.Bucket(bucketMeta).Bucket(s.partition), 0)
	})
	if err != nil {
		return fmt.Errorf("%w: purge: %v", ErrUnavailable, err)
	}
	return nil
}

// Stats returns entry and size counts.
func (s *BoltStore) Stats(context.Context) (Stats, error) {
	stats := Stats{
		Backend:   BackendBolt,
		Partition: string(s.partition),
		Capacity:  s.capacity,
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(s.partition); b != nil {
			stats.Entries = int64(b.Stats().KeyN)
		}
		stats.Bytes = readSize(tx.Bucket(bucketMeta).Bucket(s.partition))
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return stats, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *BoltStore) Close() error {
	s.codec.close()
	return s.db.Close()
}

func readSize(b *bolt.Bucket) int64 {
	if b == nil {
		return 0
	}
	v := b.Get(keySize)
	if len(v) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(v))
}

func writeSize(b *bolt.Bucket, size int64) error {
	if b == nil {
		return ErrUnavailable
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(size))
	return b.Put(keySize, buf[:])
}
