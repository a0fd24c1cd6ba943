package cache

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Stored payloads carry a one byte codec header.
const (
	codecRaw  byte = 0
	codecZstd byte = 1

	// Only compress payloads above this size.
	compressThreshold = 1024
)

// codec frames payloads, compressing them with zstd when that makes them
// smaller. A zero level disables compression.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec(level int) (*codec, error) {
	c := &codec{}
	var err error
	if level > 0 {
		c.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Always able to decode, so a store written with compression can be
	// reopened with it turned off.
	c.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return c, nil
}

func (c *codec) encode(value []byte) []byte {
	if c.encoder != nil && len(value) > compressThreshold {
		compressed := c.encoder.EncodeAll(value, []byte{codecZstd})
		if len(compressed) < len(value)+1 {
			return compressed
		}
	}
	out := make([]byte, 0, len(value)+1)
	out = append(out, codecRaw)
	return append(out, value...)
}

func (c *codec) decode(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, ErrCorrupted
	}
	switch stored[0] {
	case codecRaw:
		out := make([]byte, len(stored)-1)
		copy(out, stored[1:])
		return out, nil
	case codecZstd:
		out, err := c.decoder.DecodeAll(stored[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrCorrupted, stored[0])
	}
}

func (c *codec) close() {
	if c.encoder != nil {
		_ = c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}
