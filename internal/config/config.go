// Package config loads nafaa's settings from the config file, environment
// and flags into a typed Config.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/ibnnafaa/nafaa/internal/audio"
	"github.com/ibnnafaa/nafaa/internal/cache"
	"github.com/ibnnafaa/nafaa/internal/fetch"
	"github.com/ibnnafaa/nafaa/internal/locator"
	"github.com/ibnnafaa/nafaa/internal/reciters"
	"github.com/ibnnafaa/nafaa/internal/syncer"
)

// AppName names the config file, env prefix and user directories.
const AppName = "nafaa"

// Config contains all nafaa configuration options.
type Config struct {
	CDN      CDNConfig
	Catalog  CatalogConfig
	Reciter  string
	Quality  string
	Reciters []reciters.Reciter
	Cache    CacheConfig
	Sync     SyncConfig
	Playback PlaybackConfig
	Debug    bool
	LogFile  string
}

// CDNConfig describes the recitation audio CDN.
type CDNConfig struct {
	Root      string
	Extension string
	Timeout   time.Duration
	UserAgent string
}

// CatalogConfig describes the item catalog.
type CatalogConfig struct {
	Size     int
	PadWidth int
}

// CacheConfig contains content store settings.
type CacheConfig struct {
	Backend          string
	Dir              string
	Partition        string
	MaxSize          int64 // bytes, 0 for unlimited
	CompressionLevel int
}

// SyncConfig contains bulk download settings.
type SyncConfig struct {
	Pacing time.Duration
}

// PlaybackConfig contains output device settings.
type PlaybackConfig struct {
	RequireGesture bool
	SampleRate     int
	Volume         float64
}

// Default returns a Config with sensible defaults. Cache.Dir is left empty
// and resolved to the user data directory on load.
func Default() Config {
	client := fetch.DefaultClientConfig()
	store := cache.DefaultConfig()
	device := audio.DefaultDeviceConfig()

	return Config{
		CDN: CDNConfig{
			Root:      locator.DefaultRoot,
			Extension: locator.DefaultExtension,
			Timeout:   client.Timeout,
			UserAgent: client.UserAgent,
		},
		Catalog: CatalogConfig{
			Size:     locator.DefaultCatalog,
			PadWidth: locator.DefaultPadWidth,
		},
		Reciter:  reciters.DefaultKey,
		Quality:  "128",
		Reciters: reciters.Defaults(),
		Cache: CacheConfig{
			Backend:          store.Backend,
			Partition:        store.Partition,
			CompressionLevel: store.CompressionLevel,
		},
		Sync: SyncConfig{
			Pacing: syncer.DefaultPacing,
		},
		Playback: PlaybackConfig{
			SampleRate: device.SampleRate,
			Volume:     device.Volume,
		},
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.CDN.Root); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("cdn.root must be an absolute URL, got %q", c.CDN.Root))
	}
	if c.CDN.Extension == "" {
		errs = append(errs, errors.New("cdn.extension must not be empty"))
	}
	if c.CDN.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("cdn.timeout must be positive, got %v", c.CDN.Timeout))
	}

	if c.Catalog.Size < 1 {
		errs = append(errs, fmt.Errorf("catalog.size must be at least 1, got %d", c.Catalog.Size))
	}
	if c.Catalog.PadWidth < 1 || c.Catalog.PadWidth > 9 {
		errs = append(errs, fmt.Errorf("catalog.pad_width must be between 1 and 9, got %d", c.Catalog.PadWidth))
	}

	if c.Reciter == "" {
		errs = append(errs, errors.New("reciter must not be empty"))
	}
	if c.Quality == "" {
		errs = append(errs, errors.New("quality must not be empty"))
	}

	switch c.Cache.Backend {
	case cache.BackendBolt, cache.BackendDir, cache.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be one of bolt, dir, memory; got %q", c.Cache.Backend))
	}
	if c.Cache.Backend != cache.BackendMemory && !filepath.IsAbs(c.Cache.Dir) {
		errs = append(errs, fmt.Errorf("cache.dir must be an absolute path, got %q", c.Cache.Dir))
	}
	if c.Cache.Partition == cache.ReservedPartition {
		errs = append(errs, fmt.Errorf("cache.partition must not be %q", cache.ReservedPartition))
	}
	if c.Cache.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("cache.max_size must not be negative, got %d", c.Cache.MaxSize))
	}
	if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 22 {
		errs = append(errs, fmt.Errorf("cache.compression_level must be between 0 and 22, got %d", c.Cache.CompressionLevel))
	}

	if c.Sync.Pacing < 0 {
		errs = append(errs, fmt.Errorf("sync.pacing must not be negative, got %v", c.Sync.Pacing))
	}

	if c.Playback.SampleRate != 44100 && c.Playback.SampleRate != 48000 {
		errs = append(errs, fmt.Errorf("playback.sample_rate must be 44100 or 48000, got %d", c.Playback.SampleRate))
	}
	if c.Playback.Volume < 0 || c.Playback.Volume > 1 {
		errs = append(errs, fmt.Errorf("playback.volume must be between 0.0 and 1.0, got %.2f", c.Playback.Volume))
	}

	return errors.Join(errs...)
}

// Locator returns the resource locator for the configured CDN.
func (c Config) Locator() locator.Locator {
	return locator.Locator{
		Root:      c.CDN.Root,
		Extension: c.CDN.Extension,
		PadWidth:  c.Catalog.PadWidth,
		Catalog:   c.Catalog.Size,
	}
}

// ClientConfig returns the HTTP client settings.
func (c Config) ClientConfig() fetch.ClientConfig {
	return fetch.ClientConfig{Timeout: c.CDN.Timeout, UserAgent: c.CDN.UserAgent}
}

// StoreConfig returns the content store settings.
func (c Config) StoreConfig() cache.Config {
	return cache.Config{
		Backend:          c.Cache.Backend,
		Dir:              c.Cache.Dir,
		Partition:        c.Cache.Partition,
		Capacity:         c.Cache.MaxSize,
		CompressionLevel: c.Cache.CompressionLevel,
	}
}

// DeviceConfig returns the output device settings.
func (c Config) DeviceConfig() audio.DeviceConfig {
	cfg := audio.DefaultDeviceConfig()
	cfg.SampleRate = c.Playback.SampleRate
	cfg.Volume = c.Playback.Volume
	cfg.RequireGesture = c.Playback.RequireGesture
	return cfg
}
