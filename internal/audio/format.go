package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// SampleFormat identifies the PCM encoding of a byte buffer
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatU8
	FormatS16
	FormatS24
	FormatS32
	FormatF32
)

// Output defaults used when nothing else is configured
const (
	DefaultFrequency = 22050
	DefaultFormat    = FormatS16
	DefaultChannels  = 2
	DefaultChunkSize = 1024
)

// String returns the short config name of the format
func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "u8"
	case FormatS16:
		return "s16"
	case FormatS24:
		return "s24"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the number of bytes per sample for a given format
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatU8:
		return 1
	case FormatS16:
		return 2
	case FormatS24:
		return 3
	case FormatS32, FormatF32:
		return 4
	default:
		slog.Warn("unknown audio format, assuming 2 bytes per sample", "format", int(f))
		return 2
	}
}

// BitDepth returns the sample width in bits
func (f SampleFormat) BitDepth() int {
	return f.BytesPerSample() * 8
}

// ParseSampleFormat maps a config name ("s16", "f32", ...) to a SampleFormat
func ParseSampleFormat(name string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "u8":
		return FormatU8, nil
	case "", "s16", "s16le":
		return FormatS16, nil
	case "s24", "s24le":
		return FormatS24, nil
	case "s32", "s32le":
		return FormatS32, nil
	case "f32", "f32le", "float":
		return FormatF32, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: sample format %q", ErrUnsupportedFormat, name)
	}
}

// Spec describes the negotiated output stream of a device
type Spec struct {
	Frequency int          // Frames per second
	Format    SampleFormat // Sample encoding
	Channels  int          // 1 = mono, 2 = stereo
	ChunkSize int          // Frames per device buffer
}

// DefaultSpec returns 22050 Hz signed 16-bit stereo with 1024-frame buffers
func DefaultSpec() Spec {
	return Spec{
		Frequency: DefaultFrequency,
		Format:    DefaultFormat,
		Channels:  DefaultChannels,
		ChunkSize: DefaultChunkSize,
	}
}

// FrameSize is the number of bytes in one interleaved frame
func (s Spec) FrameSize() int {
	return s.Format.BytesPerSample() * s.Channels
}

// BufferSize is the number of bytes in one device buffer
func (s Spec) BufferSize() int {
	return s.FrameSize() * s.ChunkSize
}

// Validate reports whether the spec can drive a mixer
func (s Spec) Validate() error {
	if s.Frequency <= 0 {
		return fmt.Errorf("invalid frequency %d", s.Frequency)
	}
	if s.Channels != 1 && s.Channels != 2 {
		return fmt.Errorf("unsupported channel count %d (must be 1 or 2)", s.Channels)
	}
	if s.Format == FormatUnknown {
		return fmt.Errorf("%w: unknown sample format", ErrUnsupportedFormat)
	}
	if s.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk size %d", s.ChunkSize)
	}
	return nil
}

// DecodeSamples converts PCM bytes into float32 samples in [-1, 1].
// It returns the number of samples written to dst.
func DecodeSamples(format SampleFormat, src []byte, dst []float32) int {
	bps := format.BytesPerSample()
	n := len(src) / bps
	if n > len(dst) {
		n = len(dst)
	}

	switch format {
	case FormatU8:
		for i := 0; i < n; i++ {
			dst[i] = (float32(src[i]) - 128) / 128
		}
	case FormatS16:
		for i := 0; i < n; i++ {
			sample := int16(binary.LittleEndian.Uint16(src[i*2:]))
			dst[i] = float32(sample) / 32768
		}
	case FormatS24:
		for i := 0; i < n; i++ {
			j := i * 3
			sample := int32(src[j]) | int32(src[j+1])<<8 | int32(src[j+2])<<16
			// Sign extend from 24-bit to 32-bit
			if sample&0x800000 != 0 {
				sample |= ^0xFFFFFF
			}
			dst[i] = float32(sample) / 8388608
		}
	case FormatS32:
		for i := 0; i < n; i++ {
			sample := int32(binary.LittleEndian.Uint32(src[i*4:]))
			dst[i] = float32(float64(sample) / 2147483648)
		}
	case FormatF32:
		for i := 0; i < n; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
	}
	return n
}

// EncodeSamples writes float32 samples into dst as PCM, clipping to [-1, 1].
// It returns the number of samples written.
func EncodeSamples(format SampleFormat, src []float32, dst []byte) int {
	bps := format.BytesPerSample()
	n := len(dst) / bps
	if n > len(src) {
		n = len(src)
	}

	for i := 0; i < n; i++ {
		v := clip(src[i])
		switch format {
		case FormatU8:
			dst[i] = uint8(int(v*127) + 128)
		case FormatS16:
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(v*32767)))
		case FormatS24:
			sample := int32(v * 8388607)
			j := i * 3
			dst[j] = byte(sample)
			dst[j+1] = byte(sample >> 8)
			dst[j+2] = byte(sample >> 16)
		case FormatS32:
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(int32(float64(v)*2147483647)))
		case FormatF32:
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
		}
	}
	return n
}

func clip(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
