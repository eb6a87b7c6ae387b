package audio

import (
	"errors"
	"io"
	"time"
)

// Common decoder errors
var (
	ErrInvalidData       = errors.New("invalid audio data")
	ErrReadFailure       = errors.New("failed to read audio data")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// AudioData represents fully decoded PCM in its source format
type AudioData struct {
	Samples    []byte       // Raw interleaved PCM data
	Channels   uint32       // Number of audio channels
	SampleRate uint32       // Sample rate in Hz
	Format     SampleFormat // Sample encoding
}

// Frames returns the number of whole frames held in Samples
func (d *AudioData) Frames() int {
	frameSize := int(d.Channels) * d.Format.BytesPerSample()
	if frameSize == 0 {
		return 0
	}
	return len(d.Samples) / frameSize
}

// Duration returns the playback length at the source sample rate
func (d *AudioData) Duration() time.Duration {
	if d.SampleRate == 0 {
		return 0
	}
	return time.Duration(d.Frames()) * time.Second / time.Duration(d.SampleRate)
}

// Decoder interface for audio format decoding
type Decoder interface {
	// Decode reads audio data from reader and returns decoded PCM data
	Decode(reader io.Reader) (*AudioData, error)

	// CanDecode checks if this decoder can handle the given filename
	CanDecode(filename string) bool

	// FormatName returns the name of the format this decoder handles
	FormatName() string
}

// formatForBitDepth maps an integer PCM bit depth onto a SampleFormat
func formatForBitDepth(bits int) (SampleFormat, bool) {
	switch bits {
	case 8:
		return FormatU8, true
	case 16:
		return FormatS16, true
	case 24:
		return FormatS24, true
	case 32:
		return FormatS32, true
	default:
		return FormatUnknown, false
	}
}

// appendIntSample appends one integer sample as little-endian PCM
func appendIntSample(dst []byte, val int, format SampleFormat) []byte {
	switch format {
	case FormatU8:
		return append(dst, byte(val))
	case FormatS16:
		return append(dst, byte(val), byte(val>>8))
	case FormatS24:
		return append(dst, byte(val), byte(val>>8), byte(val>>16))
	case FormatS32:
		return append(dst, byte(val), byte(val>>8), byte(val>>16), byte(val>>24))
	}
	return dst
}
