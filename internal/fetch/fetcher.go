package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/ibnnafaa/nafaa/internal/cache"
	"github.com/ibnnafaa/nafaa/internal/locator"
	"golang.org/x/sync/singleflight"
)

// Result describes what EnsureCached did.
type Result int

const (
	// Cached means the entry was already present; no request was made.
	Cached Result = iota

	// Downloaded means the entry was fetched and written.
	Downloaded
)

// String returns the string representation of the result
func (r Result) String() string {
	switch r {
	case Cached:
		return "cached"
	case Downloaded:
		return "downloaded"
	default:
		return "unknown"
	}
}

// Fetcher downloads audio into the content store. Calls for the same key
// that overlap share a single download.
type Fetcher struct {
	store   cache.Store
	getter  Getter
	locator locator.Locator
	logger  *log.Logger

	group singleflight.Group
}

// NewFetcher creates a fetcher. A nil logger uses the default logger.
func NewFetcher(store cache.Store, getter Getter, loc locator.Locator, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{
		store:   store,
		getter:  getter,
		locator: loc,
		logger:  logger.WithPrefix("fetch"),
	}
}

// EnsureCached makes sure the audio for the triple is in the store.
func (f *Fetcher) EnsureCached(ctx context.Context, reciter string, item locator.ItemID, tier string) (Result, error) {
	return f.EnsureKey(ctx, f.locator.Locate(reciter, item, tier))
}

// EnsureKey makes sure the audio for key is in the store. It never issues a
// request when the entry exists, and never writes a partial or failed
// response.
func (f *Fetcher) EnsureKey(ctx context.Context, key locator.Key) (Result, error) {
	if f.store.Exists(ctx, key) {
		return Cached, nil
	}

	v, err, shared := f.group.Do(string(key), func() (interface{}, error) {
		return f.download(ctx, key)
	})
	if err != nil {
		return 0, err
	}
	if shared {
		f.logger.Debug("Shared in-flight download", "key", key)
	}
	return v.(Result), nil
}

func (f *Fetcher) download(ctx context.Context, key locator.Key) (Result, error) {
	// Another caller may have finished between the check and the flight
	if f.store.Exists(ctx, key) {
		return Cached, nil
	}

	start := time.Now()
	data, err := f.getter.Get(ctx, key.String())
	if err != nil {
		return 0, err
	}

	res, err := f.store.WriteIfAbsent(ctx, key, data)
	if err != nil {
		return 0, fmt.Errorf("unable to store %s: %w", key, err)
	}
	if res == cache.AlreadyPresent {
		return Cached, nil
	}

	f.logger.Debug("Downloaded",
		"key", key,
		"size", humanize.Bytes(uint64(len(data))),
		"took", time.Since(start).Round(time.Millisecond))
	return Downloaded, nil
}
