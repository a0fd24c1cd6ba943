package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/ibnnafaa/nafaa/internal/audio"
	"github.com/ibnnafaa/nafaa/internal/cache"
	"github.com/ibnnafaa/nafaa/internal/fetch"
	"github.com/ibnnafaa/nafaa/internal/locator"
)

// Background fills the store for a key. fetch.Fetcher satisfies it.
type Background interface {
	EnsureKey(ctx context.Context, key locator.Key) (fetch.Result, error)
}

// Gesture is a parked play request waiting for user interaction. It fires
// at most once.
type Gesture struct {
	engine *Engine
	key    locator.Key
}

// Key returns the key of the parked request.
func (g *Gesture) Key() locator.Key {
	return g.key
}

// Armed reports whether the gesture can still fire.
func (g *Gesture) Armed() bool {
	g.engine.mu.Lock()
	defer g.engine.mu.Unlock()
	return g.engine.armed == g
}

// Resume retries playback of the last bound source as a user gesture. It
// returns ErrGestureDisarmed if the gesture already fired or was
// superseded.
func (g *Gesture) Resume(ctx context.Context) (Outcome, error) {
	e := g.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.armed != g {
		return Outcome{}, ErrGestureDisarmed
	}
	return e.fireLocked(ctx), nil
}

// Session describes the device binding owned by the latest play request.
type Session struct {
	Key     locator.Key
	Origin  audio.Origin
	Playing bool
	Armed   bool // a gesture is waiting
}

// Config holds the engine's collaborators.
type Config struct {
	Store      cache.Store
	Device     audio.Device
	Background Background // optional
	Locator    locator.Locator
	Logger     *log.Logger

	// OnBackground is called after every background fill, for status
	// reporting.
	OnBackground func(key locator.Key, res fetch.Result, err error)
}

// Engine owns the output device on behalf of the latest play request.
type Engine struct {
	store        cache.Store
	device       audio.Device
	background   Background
	locator      locator.Locator
	logger       *log.Logger
	onBackground func(locator.Key, fetch.Result, error)

	// Serializes play requests and gesture firing; the device has one slot
	mu    sync.Mutex
	armed *Gesture

	bg sync.WaitGroup
}

// NewEngine creates an engine.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:        cfg.Store,
		device:       cfg.Device,
		background:   cfg.Background,
		locator:      cfg.Locator,
		logger:       logger.WithPrefix("playback"),
		onBackground: cfg.OnBackground,
	}
}

// Play plays the triple, trying the store before the network. A newer
// call supersedes any gesture armed by an older one.
func (e *Engine) Play(ctx context.Context, reciter string, item locator.ItemID, tier string) Outcome {
	return e.PlayKey(ctx, e.locator.Locate(reciter, item, tier))
}

// PlayKey is Play for an already located key.
func (e *Engine) PlayKey(ctx context.Context, key locator.Key) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.disarmLocked()

	if err := ctx.Err(); err != nil {
		return Outcome{Status: Failed, Key: key, Err: err}
	}

	if e.store.Exists(ctx, key) {
		if out, ok := e.playCachedLocked(ctx, key); ok {
			return out
		}
	}

	return e.playNetworkLocked(ctx, key)
}

// playCachedLocked returns ok=false when playback should fall through to
// the network.
func (e *Engine) playCachedLocked(ctx context.Context, key locator.Key) (Outcome, bool) {
	data, err := e.store.Read(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			e.logger.Warn("Unable to read cached audio", "key", key, "err", err)
		}
		return Outcome{}, false
	}

	e.device.Bind(audio.FromCache(key, data))
	err = e.device.Start(ctx)
	switch {
	case err == nil:
		e.logger.Debug("Playing from cache", "key", key)
		return Outcome{Status: PlayingFromCache, Key: key}, true
	case errors.Is(err, audio.ErrPlaybackRejected):
		// Cache presence does not mean the device may autoplay
		e.logger.Debug("Cached playback rejected, trying network", "key", key)
	default:
		e.logger.Warn("Cached playback failed, trying network", "key", key, "err", err)
	}
	return Outcome{}, false
}

func (e *Engine) playNetworkLocked(ctx context.Context, key locator.Key) Outcome {
	e.device.Bind(audio.FromNetwork(key))

	err := e.device.Start(ctx)
	switch {
	case err == nil:
		e.logger.Debug("Playing from network", "key", key)
		e.fillLocked(ctx, key)
		return Outcome{Status: PlayingFromNetwork, Key: key}
	case errors.Is(err, audio.ErrPlaybackRejected):
		g := &Gesture{engine: e, key: key}
		e.armed = g
		e.logger.Debug("Awaiting user gesture", "key", key)
		return Outcome{Status: AwaitingUserGesture, Key: key, Gesture: g}
	default:
		e.logger.Warn("Playback failed", "key", key, "err", err)
		return Outcome{Status: Failed, Key: key, Err: err}
	}
}

// Interact delivers a user interaction. If a gesture is armed it fires,
// retrying the last bound source; fired is false when nothing was armed.
func (e *Engine) Interact(ctx context.Context) (out Outcome, fired bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.armed == nil {
		return Outcome{}, false
	}
	return e.fireLocked(ctx), true
}

// fireLocked disarms the gesture before retrying, so it fires once whether
// or not the retry succeeds.
func (e *Engine) fireLocked(ctx context.Context) Outcome {
	g := e.armed
	e.armed = nil

	src := e.device.Bound()
	err := e.device.Start(audio.WithUserGesture(ctx))
	if err != nil {
		e.logger.Warn("Playback after gesture failed", "key", g.key, "err", err)
		return Outcome{Status: Failed, Key: g.key, Err: err}
	}

	if src.Origin == audio.OriginCache {
		return Outcome{Status: PlayingFromCache, Key: src.Key}
	}
	e.fillLocked(ctx, src.Key)
	return Outcome{Status: PlayingFromNetwork, Key: src.Key}
}

func (e *Engine) disarmLocked() {
	if e.armed != nil {
		e.logger.Debug("Superseding armed gesture", "key", e.armed.key)
		e.armed = nil
	}
}

// fillLocked caches key in the background. Playback has already started
// and its outcome never depends on the fill.
func (e *Engine) fillLocked(ctx context.Context, key locator.Key) {
	if e.background == nil {
		return
	}

	bctx := context.WithoutCancel(ctx)
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()

		res, err := e.background.EnsureKey(bctx, key)
		if err != nil {
			e.logger.Warn("Background caching failed", "key", key, "err", err)
		} else {
			e.logger.Debug("Background caching done", "key", key, "result", res)
		}
		if e.onBackground != nil {
			e.onBackground(key, res, err)
		}
	}()
}

// Stop disarms any gesture and stops the device.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.disarmLocked()
	return e.device.Stop()
}

// Session returns the current binding.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	src := e.device.Bound()
	return Session{
		Key:     src.Key,
		Origin:  src.Origin,
		Playing: e.device.IsPlaying(),
		Armed:   e.armed != nil,
	}
}

// Wait blocks until background caching started by the engine finishes.
func (e *Engine) Wait() {
	e.bg.Wait()
}
