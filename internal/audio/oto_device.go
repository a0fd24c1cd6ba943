//go:build !nocgo && (cgo || darwin || windows)
// +build !nocgo
// +build cgo darwin windows

package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process.
var (
	otoContext     *oto.Context
	otoContextErr  error
	otoContextOnce sync.Once
)

// DeviceConfig contains configuration for the oto device.
type DeviceConfig struct {
	SampleRate     int     // 44100 or 48000 Hz only
	Channels       int     // 1 = mono, 2 = stereo
	Volume         float64 // 0.0 to 1.0
	RequireGesture bool    // Reject starts until a user gesture
}

// DefaultDeviceConfig returns the default device configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		SampleRate: 44100, // CD quality
		Channels:   2,     // Recitations are stereo
		Volume:     1.0,
	}
}

// validateConfig validates the device configuration.
func validateConfig(config DeviceConfig) error {
	// OTO only supports specific sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.Volume < 0.0 || config.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", config.Volume)
	}
	return nil
}

// OtoDevice plays MP3 sources through oto.
type OtoDevice struct {
	context *oto.Context
	opener  Opener
	gate    *GestureGate
	logger  *log.Logger

	// Current binding and playback
	source Source
	player *oto.Player
	closer io.Closer          // decoder of the active stream
	cancel context.CancelFunc // aborts a network stream

	// Stream opened by a start the gate rejected, reused on the retry
	pending       io.ReadCloser
	pendingCancel context.CancelFunc

	state atomic.Int32 // DeviceState

	// Configuration
	sampleRate int
	channels   int
	volume     float64

	mu sync.Mutex
}

// NewOtoDevice initialises the process audio context and returns a device.
// opener streams network sources.
func NewOtoDevice(config DeviceConfig, opener Opener, logger *log.Logger) (*OtoDevice, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	otoContextOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   config.SampleRate,
			ChannelCount: config.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoContextErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoContext = ctx
	})
	if otoContextErr != nil {
		return nil, otoContextErr
	}

	d := &OtoDevice{
		context:    otoContext,
		opener:     opener,
		gate:       NewGestureGate(config.RequireGesture),
		logger:     logger.WithPrefix("audio"),
		sampleRate: config.SampleRate,
		channels:   config.Channels,
		volume:     config.Volume,
	}
	d.state.Store(int32(StateStopped))
	return d, nil
}

// Bind replaces the bound source, stopping current playback.
func (d *OtoDevice) Bind(src Source) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopInternal()
	d.dropPending()
	d.source = src
}

// Bound returns the bound source.
func (d *OtoDevice) Bound() Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source
}

// Start decodes the bound source and begins playback.
func (d *OtoDevice) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if DeviceState(d.state.Load()) == StateClosed {
		return ErrDeviceClosed
	}
	if d.source.IsZero() {
		return ErrNoSource
	}

	// Unreachable resources fail before the gate is consulted
	rc, cancel, err := d.takeSource(ctx)
	if err != nil {
		return err
	}
	if !d.gate.Allow(ctx) {
		d.pending, d.pendingCancel = rc, cancel
		return ErrPlaybackRejected
	}

	// Restart from the beginning
	d.stopInternal()

	streamer, closer, err := decodeMP3(rc, d.sampleRate)
	if err != nil {
		cancel()
		return err
	}

	player := d.context.NewPlayer(newPCMReader(streamer, d.channels))
	if player == nil {
		closer.Close() //nolint:errcheck
		cancel()
		return fmt.Errorf("%w: failed to create oto player", ErrPlaybackFailed)
	}
	player.SetVolume(d.volume)
	player.Play()

	d.player = player
	d.closer = closer
	d.cancel = cancel
	d.state.Store(int32(StatePlaying))

	d.logger.Debug("Playback started", "key", d.source.Key, "origin", d.source.Origin)
	return nil
}

// takeSource reuses the stream held from a rejected start, if any.
func (d *OtoDevice) takeSource(ctx context.Context) (io.ReadCloser, context.CancelFunc, error) {
	if d.pending != nil {
		rc, cancel := d.pending, d.pendingCancel
		d.pending, d.pendingCancel = nil, nil
		return rc, cancel, nil
	}
	return d.openSource(ctx)
}

func (d *OtoDevice) dropPending() {
	if d.pending != nil {
		d.pending.Close() //nolint:errcheck
		d.pendingCancel()
		d.pending, d.pendingCancel = nil, nil
	}
}

func (d *OtoDevice) openSource(ctx context.Context) (io.ReadCloser, context.CancelFunc, error) {
	switch d.source.Origin {
	case OriginCache:
		return io.NopCloser(bytes.NewReader(d.source.Data)), func() {}, nil
	case OriginNetwork:
		if d.opener == nil {
			return nil, nil, errors.New("no network opener configured")
		}
		// The stream outlives the Start call
		streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		body, err := d.opener.Open(streamCtx, d.source.Key.String())
		if err != nil {
			cancel()
			return nil, nil, err
		}
		return body, cancel, nil
	default:
		return nil, nil, ErrNoSource
	}
}

// Stop stops playback and releases the active stream.
func (d *OtoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopInternal()
	d.dropPending()
	return nil
}

// stopInternal stops playback without locking.
func (d *OtoDevice) stopInternal() {
	if d.player != nil {
		d.player.Pause()
		if err := d.player.Close(); err != nil {
			d.logger.Debug("Error closing player", "err", err)
		}
		d.player = nil
	}
	if d.closer != nil {
		d.closer.Close() //nolint:errcheck
		d.closer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if DeviceState(d.state.Load()) == StatePlaying {
		d.state.Store(int32(StateStopped))
	}
}

// IsPlaying returns whether audio is currently playing.
func (d *OtoDevice) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.player != nil && d.player.IsPlaying()
}

// Err returns the error that stopped the active player, if any.
func (d *OtoDevice) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.player == nil {
		return nil
	}
	return d.player.Err()
}

// Gate returns the device's gesture gate.
func (d *OtoDevice) Gate() *GestureGate {
	return d.gate
}

// Close releases the device. The oto context itself lives for the process.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopInternal()
	d.dropPending()
	d.state.Store(int32(StateClosed))
	return nil
}
