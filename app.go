package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/ibnnafaa/nafaa/internal/audio"
	"github.com/ibnnafaa/nafaa/internal/cache"
	"github.com/ibnnafaa/nafaa/internal/config"
	"github.com/ibnnafaa/nafaa/internal/fetch"
	"github.com/ibnnafaa/nafaa/internal/locator"
	"github.com/ibnnafaa/nafaa/internal/playback"
	"github.com/ibnnafaa/nafaa/internal/reciters"
	"github.com/ibnnafaa/nafaa/internal/syncer"
)

// App owns every component for one invocation. Commands receive it
// instead of reaching for package state.
type App struct {
	cfg      config.Config
	logger   *log.Logger
	locator  locator.Locator
	store    cache.Store
	client   *fetch.Client
	fetcher  *fetch.Fetcher
	syncer   *syncer.Controller
	reciters *reciters.Directory

	// The output device is opened on first playback only
	newDevice func() (audio.Device, error)
	mu        sync.Mutex
	device    audio.Device
	engine    *playback.Engine
}

type appOption func(*App)

// withDevice replaces the audio output.
func withDevice(d audio.Device) appOption {
	return func(a *App) {
		a.newDevice = func() (audio.Device, error) { return d, nil }
	}
}

// withHTTPClient replaces the HTTP client used for downloads and streams.
func withHTTPClient(c *http.Client) appOption {
	return func(a *App) {
		a.client = fetch.NewClient(c, a.cfg.ClientConfig())
	}
}

// withStore replaces the content store.
func withStore(s cache.Store) appOption {
	return func(a *App) { a.store = s }
}

func newApp(cfg config.Config, opts ...appOption) (*App, error) {
	logger := log.Default()
	a := &App{
		cfg:      cfg,
		logger:   logger,
		locator:  cfg.Locator(),
		client:   fetch.NewClient(nil, cfg.ClientConfig()),
		reciters: reciters.NewDirectory(cfg.Reciters),
	}
	a.newDevice = func() (audio.Device, error) {
		d, err := audio.NewOtoDevice(cfg.DeviceConfig(), a.client, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		store, err := cache.Open(cfg.StoreConfig())
		if err != nil {
			return nil, fmt.Errorf("unable to open cache: %w", err)
		}
		a.store = store
	}

	a.fetcher = fetch.NewFetcher(a.store, a.client, a.locator, logger)
	a.syncer = syncer.NewController(syncer.Config{
		Fetcher: a.fetcher,
		Locator: a.locator,
		Store:   a.store,
		Pacing:  cfg.Sync.Pacing,
		Logger:  logger,
	})
	return a, nil
}

// player returns the playback engine, opening the output device on first
// use.
func (a *App) player() (*playback.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine != nil {
		return a.engine, nil
	}
	device, err := a.newDevice()
	if err != nil {
		return nil, fmt.Errorf("unable to open audio device: %w", err)
	}
	a.device = device
	a.engine = playback.NewEngine(playback.Config{
		Store:      a.store,
		Device:     device,
		Background: a.fetcher,
		Locator:    a.locator,
		Logger:     a.logger,
	})
	return a.engine, nil
}

// resolve turns a reciter name or key into a CDN key.
func (a *App) resolve(name string) (string, error) {
	r, err := a.reciters.Resolve(name)
	if err != nil {
		return "", err
	}
	return r.Key, nil
}

// target parses and validates an item argument.
func (a *App) target(arg string) (locator.ItemID, error) {
	item, err := locator.ParseItemID(arg)
	if err != nil {
		return 0, err
	}
	return item, a.locator.Validate(item)
}

// Play starts playback of one item.
func (a *App) Play(ctx context.Context, reciter string, item locator.ItemID, tier string) (playback.Outcome, error) {
	engine, err := a.player()
	if err != nil {
		return playback.Outcome{}, err
	}
	return engine.Play(ctx, reciter, item, tier), nil
}

// Download caches one item.
func (a *App) Download(ctx context.Context, reciter string, item locator.ItemID, tier string) (fetch.Result, error) {
	return a.fetcher.EnsureCached(ctx, reciter, item, tier)
}

// DownloadAll caches the whole catalog.
func (a *App) DownloadAll(ctx context.Context, reciter, tier string, onProgress syncer.ProgressFunc) (syncer.Report, error) {
	return a.syncer.SyncAll(ctx, reciter, tier, onProgress)
}

// ClearCache purges every cached entry.
func (a *App) ClearCache(ctx context.Context) error {
	a.syncer.Cancel()
	return a.store.PurgeAll(ctx)
}

// Status returns store statistics.
func (a *App) Status(ctx context.Context) (cache.Stats, error) {
	return a.store.Stats(ctx)
}

// Close stops playback, waits for background caching and closes the store.
func (a *App) Close() error {
	a.syncer.Cancel()

	var errs []error
	a.mu.Lock()
	if a.engine != nil {
		if err := a.engine.Stop(); err != nil {
			errs = append(errs, err)
		}
		a.engine.Wait()
	}
	if a.device != nil {
		if err := a.device.Close(); err != nil {
			errs = append(errs, fmt.Errorf("unable to close audio device: %w", err))
		}
	}
	a.mu.Unlock()

	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("unable to close cache: %w", err))
	}
	return errors.Join(errs...)
}
