//go:build nocgo || (!cgo && !darwin && !windows)
// +build nocgo !cgo,!darwin,!windows

package audio

import (
	"errors"

	"github.com/charmbracelet/log"
)

// Stub implementations for builds without CGO

// DeviceConfig contains configuration for the oto device.
type DeviceConfig struct {
	SampleRate     int
	Channels       int
	Volume         float64
	RequireGesture bool
}

// DefaultDeviceConfig returns the default device configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{SampleRate: 44100, Channels: 2, Volume: 1.0}
}

// OtoDevice is unavailable without CGO.
type OtoDevice struct {
	MockDevice
}

// NewOtoDevice always fails in nocgo builds.
func NewOtoDevice(DeviceConfig, Opener, *log.Logger) (*OtoDevice, error) {
	return nil, errors.New("audio not available in nocgo build")
}

// Err always returns nil.
func (d *OtoDevice) Err() error { return nil }
