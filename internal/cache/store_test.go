package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ibnnafaa/nafaa/internal/locator"
)

// openers builds every backend for the shared contract tests.
func openers(t *testing.T) map[string]func(capacity int64) Store {
	t.Helper()
	return map[string]func(capacity int64) Store{
		BackendMemory: func(capacity int64) Store {
			return NewMemoryStore(DefaultPartition, capacity)
		},
		BackendDir: func(capacity int64) Store {
			s, err := NewDirStore(t.TempDir(), DefaultPartition, capacity, 3)
			if err != nil {
				t.Fatalf("Failed to create dir store: %v", err)
			}
			return s
		},
		BackendBolt: func(capacity int64) Store {
			s, err := NewBoltStore(t.TempDir()+"/audio.db", DefaultPartition, capacity, 3)
			if err != nil {
				t.Fatalf("Failed to create bolt store: %v", err)
			}
			return s
		},
	}
}

func testKey(i int) locator.Key {
	return locator.New("").Locate("reciter", locator.ItemID(i), "128")
}

func TestStore_WriteReadExists(t *testing.T) {
	ctx := context.Background()
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(0)
			defer s.Close()

			key := testKey(1)
			if s.Exists(ctx, key) {
				t.Fatal("Exists returned true for empty store")
			}
			if _, err := s.Read(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Read on empty store error = %v, want ErrNotFound", err)
			}

			value := []byte("audio-payload")
			res, err := s.WriteIfAbsent(ctx, key, value)
			if err != nil {
				t.Fatalf("WriteIfAbsent failed: %v", err)
			}
			if res != Written {
				t.Errorf("WriteIfAbsent result = %v, want written", res)
			}

			if !s.Exists(ctx, key) {
				t.Error("Exists returned false after write")
			}
			got, err := s.Read(ctx, key)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if !bytes.Equal(got, value) {
				t.Errorf("Read = %q, want %q", got, value)
			}
		})
	}
}

func TestStore_WriteOnce(t *testing.T) {
	ctx := context.Background()
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(0)
			defer s.Close()

			key := testKey(2)
			first := []byte("first")
			second := []byte("second")

			if res, err := s.WriteIfAbsent(ctx, key, first); err != nil || res != Written {
				t.Fatalf("first write = %v, %v", res, err)
			}
			res, err := s.WriteIfAbsent(ctx, key, second)
			if err != nil {
				t.Fatalf("second write failed: %v", err)
			}
			if res != AlreadyPresent {
				t.Errorf("second write result = %v, want already-present", res)
			}

			got, err := s.Read(ctx, key)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if !bytes.Equal(got, first) {
				t.Errorf("entry overwritten: got %q, want %q", got, first)
			}
		})
	}
}

func TestStore_PurgeAll(t *testing.T) {
	ctx := context.Background()
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(0)
			defer s.Close()

			for i := 1; i <= 5; i++ {
				if _, err := s.WriteIfAbsent(ctx, testKey(i), []byte(fmt.Sprintf("item-%d", i))); err != nil {
					t.Fatalf("write %d failed: %v", i, err)
				}
			}

			if err := s.PurgeAll(ctx); err != nil {
				t.Fatalf("PurgeAll failed: %v", err)
			}

			for i := 1; i <= 5; i++ {
				if s.Exists(ctx, testKey(i)) {
					t.Errorf("key %d still exists after purge", i)
				}
			}

			stats, err := s.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats failed: %v", err)
			}
			if stats.Entries != 0 || stats.Bytes != 0 {
				t.Errorf("stats after purge = %+v, want empty", stats)
			}

			// Store is still writable after a purge
			if res, err := s.WriteIfAbsent(ctx, testKey(1), []byte("again")); err != nil || res != Written {
				t.Errorf("write after purge = %v, %v", res, err)
			}
		})
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(0)
			defer s.Close()

			key := testKey(7)
			const writers = 16

			var (
				wg      sync.WaitGroup
				written atomic.Int32
				errs    atomic.Int32
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					payload := bytes.Repeat([]byte{byte('a' + i)}, 4096)
					res, err := s.WriteIfAbsent(ctx, key, payload)
					if err != nil {
						errs.Add(1)
						return
					}
					if res == Written {
						written.Add(1)
					}
				}(i)
			}
			wg.Wait()

			if errs.Load() != 0 {
				t.Fatalf("%d writers failed", errs.Load())
			}
			if written.Load() != 1 {
				t.Fatalf("%d writers observed written, want exactly 1", written.Load())
			}

			got, err := s.Read(ctx, key)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if len(got) != 4096 {
				t.Fatalf("payload length = %d, want 4096", len(got))
			}
			for _, b := range got {
				if b != got[0] {
					t.Fatal("payload mixes bytes from different writers")
				}
			}
		})
	}
}

func TestStore_Quota(t *testing.T) {
	ctx := context.Background()
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(64)
			defer s.Close()

			if _, err := s.WriteIfAbsent(ctx, testKey(1), make([]byte, 10)); err != nil {
				t.Fatalf("small write failed: %v", err)
			}
			_, err := s.WriteIfAbsent(ctx, testKey(2), make([]byte, 200))
			if !errors.Is(err, ErrQuotaExceeded) {
				t.Fatalf("oversized write error = %v, want ErrQuotaExceeded", err)
			}
			if !IsStorageError(err) {
				t.Error("quota error should be a storage error")
			}
			if s.Exists(ctx, testKey(2)) {
				t.Error("rejected write left an entry behind")
			}
		})
	}
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/audio.db"

	s, err := NewBoltStore(path, DefaultPartition, 0, 3)
	if err != nil {
		t.Fatalf("Failed to create bolt store: %v", err)
	}
	// Compressible payload above the threshold
	value := bytes.Repeat([]byte("recitation "), 500)
	if _, err := s.WriteIfAbsent(ctx, testKey(3), value); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewBoltStore(path, DefaultPartition, 0, 0)
	if err != nil {
		t.Fatalf("Failed to reopen bolt store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Read(ctx, testKey(3))
	if err != nil {
		t.Fatalf("Read after reopen failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Error("payload changed across reopen")
	}

	stats, err := reopened.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Bytes >= int64(len(value)) {
		t.Errorf("stored bytes %d not compressed below %d", stats.Bytes, len(value))
	}
}

func TestBoltStore_PartitionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/audio.db"

	a, err := NewBoltStore(path, "a", 0, 0)
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	if _, err := a.WriteIfAbsent(ctx, testKey(1), []byte("x")); err != nil {
		t.Fatalf("write a: %v", err)
	}
	a.Close()

	b, err := NewBoltStore(path, "b", 0, 0)
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	defer b.Close()
	if b.Exists(ctx, testKey(1)) {
		t.Error("entry leaked across partitions")
	}
}

func TestDirStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewDirStore(dir, DefaultPartition, 0, 3)
	if err != nil {
		t.Fatalf("Failed to create dir store: %v", err)
	}
	if _, err := s.WriteIfAbsent(ctx, testKey(4), []byte("kept")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	s.Close()

	reopened, err := NewDirStore(dir, DefaultPartition, 0, 3)
	if err != nil {
		t.Fatalf("Failed to reopen dir store: %v", err)
	}
	defer reopened.Close()

	if !reopened.Exists(ctx, testKey(4)) {
		t.Fatal("entry missing after reopen")
	}
	stats, err := reopened.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 1 || stats.Bytes == 0 {
		t.Errorf("stats after reopen = %+v", stats)
	}
}

func TestOpen_Backends(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{BackendBolt, false},
		{BackendDir, false},
		{BackendMemory, false},
		{"redis", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = tt.backend
			cfg.Dir = t.TempDir()
			s, err := Open(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}

func TestDirStore_PurgeDuringWrites(t *testing.T) {
	ctx := context.Background()
	s, err := NewDirStore(t.TempDir(), DefaultPartition, 0, 0)
	if err != nil {
		t.Fatalf("Failed to create dir store: %v", err)
	}
	defer s.Close()

	var (
		wg   sync.WaitGroup
		errs atomic.Int32
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if _, err := s.WriteIfAbsent(ctx, testKey(w*100+i), []byte("payload")); err != nil {
					errs.Add(1)
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if err := s.PurgeAll(ctx); err != nil {
				errs.Add(1)
			}
		}
	}()
	wg.Wait()

	if errs.Load() != 0 {
		t.Fatalf("%d operations failed", errs.Load())
	}

	tracked := s.size
	if err := s.calculateSize(); err != nil {
		t.Fatalf("calculateSize failed: %v", err)
	}
	if tracked != s.size {
		t.Errorf("tracked size = %d, on disk = %d", tracked, s.size)
	}
}

func TestBoltStore_RejectsReservedPartition(t *testing.T) {
	_, err := NewBoltStore(t.TempDir()+"/audio.db", ReservedPartition, 0, 0)
	if !errors.Is(err, ErrReservedPartition) {
		t.Fatalf("error = %v, want ErrReservedPartition", err)
	}
}
