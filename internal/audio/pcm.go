package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
)

// Output format fed to the device: signed 16-bit little endian.
const bytesPerSample = 2

// resampleQuality is beep's resampler quality (1 fastest, 6 best).
const resampleQuality = 4

// decodeMP3 decodes rc and resamples it to sampleRate. The returned closer
// releases the decoder and rc.
func decodeMP3(rc io.ReadCloser, sampleRate int) (beep.Streamer, io.Closer, error) {
	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		rc.Close() //nolint:errcheck
		return nil, nil, fmt.Errorf("%w: unable to decode mp3: %v", ErrPlaybackFailed, err)
	}

	var s beep.Streamer = streamer
	if int(format.SampleRate) != sampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, beep.SampleRate(sampleRate), streamer)
	}
	return s, streamer, nil
}

// pcmReader renders a beep streamer as interleaved int16 PCM.
type pcmReader struct {
	streamer beep.Streamer
	channels int
	samples  [][2]float64
	pending  []byte
	done     bool
}

func newPCMReader(s beep.Streamer, channels int) *pcmReader {
	return &pcmReader{
		streamer: s,
		channels: channels,
		samples:  make([][2]float64, 512),
	}
}

// Read implements io.Reader.
func (r *pcmReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.done {
			return 0, io.EOF
		}
		n, ok := r.streamer.Stream(r.samples)
		if !ok {
			r.done = true
			if err := r.streamer.Err(); err != nil {
				return 0, fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
			}
		}
		r.pending = r.encode(r.samples[:n])
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *pcmReader) encode(samples [][2]float64) []byte {
	out := make([]byte, 0, len(samples)*r.channels*bytesPerSample)
	for _, s := range samples {
		if r.channels == 1 {
			out = binary.LittleEndian.AppendUint16(out, uint16(toInt16((s[0]+s[1])/2)))
			continue
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(toInt16(s[0])))
		out = binary.LittleEndian.AppendUint16(out, uint16(toInt16(s[1])))
	}
	return out
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(v * math.MaxInt16)
}
