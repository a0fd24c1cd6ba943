package audio

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/ibnnafaa/nafaa/internal/locator"
)

var (
	// ErrPlaybackRejected is returned by Start when the device requires a
	// user gesture before it may play. It is expected, not exceptional.
	ErrPlaybackRejected = errors.New("playback rejected: user interaction required")

	// ErrPlaybackFailed wraps genuine decode or output failures.
	ErrPlaybackFailed = errors.New("playback failed")

	// ErrNoSource is returned by Start when nothing is bound.
	ErrNoSource = errors.New("no source bound")

	// ErrDeviceClosed is returned after Close.
	ErrDeviceClosed = errors.New("audio device is closed")
)

// Origin tells where a source's bytes come from.
type Origin int

const (
	OriginNone Origin = iota
	OriginCache
	OriginNetwork
)

// String returns the string representation of the origin
func (o Origin) String() string {
	switch o {
	case OriginCache:
		return "cache"
	case OriginNetwork:
		return "network"
	default:
		return "none"
	}
}

// Source is what a device plays: a cached payload or a network locator.
type Source struct {
	Key    locator.Key
	Origin Origin
	Data   []byte // set for OriginCache
}

// FromCache returns a source backed by a cached payload.
func FromCache(key locator.Key, data []byte) Source {
	return Source{Key: key, Origin: OriginCache, Data: data}
}

// FromNetwork returns a source streamed directly from the key's URL.
func FromNetwork(key locator.Key) Source {
	return Source{Key: key, Origin: OriginNetwork}
}

// IsZero reports whether the source is unset.
func (s Source) IsZero() bool {
	return s.Origin == OriginNone
}

// Opener streams a URL. fetch.Client satisfies it.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Device is a single audio output with one source slot.
type Device interface {
	// Bind replaces the bound source, stopping whatever was playing.
	Bind(src Source)

	// Bound returns the currently bound source.
	Bound() Source

	// Start begins playback of the bound source from the start. It returns
	// ErrPlaybackRejected when the device needs a user gesture first.
	Start(ctx context.Context) error

	// Stop stops playback but keeps the binding.
	Stop() error

	// IsPlaying returns whether audio is currently playing.
	IsPlaying() bool

	// Close releases the device.
	Close() error
}

type gestureKey struct{}

// WithUserGesture marks ctx as running inside a user interaction.
func WithUserGesture(ctx context.Context) context.Context {
	return context.WithValue(ctx, gestureKey{}, true)
}

// HasUserGesture reports whether ctx was marked by WithUserGesture.
func HasUserGesture(ctx context.Context) bool {
	v, _ := ctx.Value(gestureKey{}).(bool)
	return v
}

// GestureGate implements the autoplay policy. When required, starts are
// rejected until one happens inside a user gesture; after that the device
// stays activated.
type GestureGate struct {
	required  bool
	activated atomic.Bool
}

// NewGestureGate creates a gate. With required false every start is
// allowed.
func NewGestureGate(required bool) *GestureGate {
	return &GestureGate{required: required}
}

// Allow reports whether a start in ctx may proceed, activating the gate if
// ctx carries a gesture.
func (g *GestureGate) Allow(ctx context.Context) bool {
	if g == nil || !g.required || g.activated.Load() {
		return true
	}
	if HasUserGesture(ctx) {
		g.activated.Store(true)
		return true
	}
	return false
}

// Activated reports whether a gesture has unlocked the gate.
func (g *GestureGate) Activated() bool {
	return g != nil && (!g.required || g.activated.Load())
}

// Reset locks the gate again.
func (g *GestureGate) Reset() {
	if g != nil {
		g.activated.Store(false)
	}
}
