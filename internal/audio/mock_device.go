package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// DeviceState represents the current state of a device.
type DeviceState int32

const (
	StateStopped DeviceState = iota
	StatePlaying
	StateClosed
)

// String returns the string representation of the state
func (s DeviceState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnBind  func(src Source)
	OnStart func(src Source)
	OnStop  func()
}

// MockDevice implements Device without producing sound.
type MockDevice struct {
	state  atomic.Int32 // DeviceState
	source Source

	gate    *GestureGate
	opener  Opener        // optional, used for network sources
	pending io.ReadCloser // stream opened by a rejected start

	// Test configuration
	failErr error // returned by every Start when set

	callbacks MockCallbacks

	// Synchronization
	mu sync.Mutex

	// Metrics for testing
	bindCount    atomic.Int64
	attemptCount atomic.Int64
	startCount   atomic.Int64
	rejectCount  atomic.Int64
	stopCount    atomic.Int64
	started      []Source
}

// MockOption configures a MockDevice.
type MockOption func(*MockDevice)

// WithGestureRequired makes the mock reject starts until a gesture.
func WithGestureRequired() MockOption {
	return func(md *MockDevice) { md.gate = NewGestureGate(true) }
}

// WithOpener makes the mock read network sources through opener, so
// unreachable resources fail the start.
func WithOpener(opener Opener) MockOption {
	return func(md *MockDevice) { md.opener = opener }
}

// WithCallbacks installs test hooks.
func WithCallbacks(cb MockCallbacks) MockOption {
	return func(md *MockDevice) { md.callbacks = cb }
}

// NewMockDevice creates a mock device.
func NewMockDevice(opts ...MockOption) *MockDevice {
	md := &MockDevice{gate: NewGestureGate(false)}
	for _, opt := range opts {
		opt(md)
	}
	md.state.Store(int32(StateStopped))
	return md
}

// Bind replaces the bound source.
func (md *MockDevice) Bind(src Source) {
	md.mu.Lock()
	defer md.mu.Unlock()

	md.stopInternal()
	md.dropPending()
	md.source = src
	md.bindCount.Add(1)

	if md.callbacks.OnBind != nil {
		md.callbacks.OnBind(src)
	}
}

// Bound returns the bound source.
func (md *MockDevice) Bound() Source {
	md.mu.Lock()
	defer md.mu.Unlock()
	return md.source
}

// Start simulates starting playback of the bound source.
func (md *MockDevice) Start(ctx context.Context) error {
	md.mu.Lock()
	defer md.mu.Unlock()

	md.attemptCount.Add(1)

	if DeviceState(md.state.Load()) == StateClosed {
		return ErrDeviceClosed
	}
	if md.source.IsZero() {
		return ErrNoSource
	}
	// Unreachable resources fail before the gate is consulted
	body, err := md.openSource(ctx)
	if err != nil {
		return err
	}
	if !md.gate.Allow(ctx) {
		md.rejectCount.Add(1)
		md.pending = body
		return ErrPlaybackRejected
	}
	if md.failErr != nil {
		if body != nil {
			body.Close() //nolint:errcheck
		}
		return md.failErr
	}

	if body != nil {
		_, err = io.Copy(io.Discard, body)
		body.Close() //nolint:errcheck
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
		}
	}

	md.state.Store(int32(StatePlaying))
	md.startCount.Add(1)
	md.started = append(md.started, md.source)

	if md.callbacks.OnStart != nil {
		md.callbacks.OnStart(md.source)
	}
	return nil
}

// openSource returns the stream for a network source, reusing one held
// from a rejected start. Cached sources and mocks without an opener
// return a nil body.
func (md *MockDevice) openSource(ctx context.Context) (io.ReadCloser, error) {
	if md.source.Origin != OriginNetwork || md.opener == nil {
		return nil, nil
	}
	if md.pending != nil {
		body := md.pending
		md.pending = nil
		return body, nil
	}
	return md.opener.Open(ctx, md.source.Key.String())
}

func (md *MockDevice) dropPending() {
	if md.pending != nil {
		md.pending.Close() //nolint:errcheck
		md.pending = nil
	}
}

// Stop stops simulated playback and releases a held stream.
func (md *MockDevice) Stop() error {
	md.mu.Lock()
	defer md.mu.Unlock()

	md.stopInternal()
	md.dropPending()
	return nil
}

func (md *MockDevice) stopInternal() {
	if DeviceState(md.state.Load()) != StatePlaying {
		return
	}
	md.state.Store(int32(StateStopped))
	md.stopCount.Add(1)

	if md.callbacks.OnStop != nil {
		md.callbacks.OnStop()
	}
}

// IsPlaying returns whether simulated playback is running.
func (md *MockDevice) IsPlaying() bool {
	return DeviceState(md.state.Load()) == StatePlaying
}

// Close closes the device.
func (md *MockDevice) Close() error {
	md.mu.Lock()
	defer md.mu.Unlock()

	md.stopInternal()
	md.dropPending()
	md.state.Store(int32(StateClosed))
	return nil
}

// SetFailure makes every following Start return err. Nil clears it.
func (md *MockDevice) SetFailure(err error) {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.failErr = err
}

// Gate returns the device's gesture gate.
func (md *MockDevice) Gate() *GestureGate {
	return md.gate
}

// GetState returns the current device state.
func (md *MockDevice) GetState() DeviceState {
	return DeviceState(md.state.Load())
}

// BindCount returns how many times Bind was called.
func (md *MockDevice) BindCount() int64 { return md.bindCount.Load() }

// AttemptCount returns how many times Start was called.
func (md *MockDevice) AttemptCount() int64 { return md.attemptCount.Load() }

// StartCount returns how many starts succeeded.
func (md *MockDevice) StartCount() int64 { return md.startCount.Load() }

// RejectCount returns how many starts were rejected by the gate.
func (md *MockDevice) RejectCount() int64 { return md.rejectCount.Load() }

// StopCount returns how many times playback was stopped.
func (md *MockDevice) StopCount() int64 { return md.stopCount.Load() }

// Started returns the sources of every successful start, in order.
func (md *MockDevice) Started() []Source {
	md.mu.Lock()
	defer md.mu.Unlock()

	out := make([]Source, len(md.started))
	copy(out, md.started)
	return out
}
