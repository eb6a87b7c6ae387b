package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// Stream decodes music incrementally and resamples it to the output rate
type Stream struct {
	format     string
	source     beep.StreamSeekCloser
	sourceRate beep.SampleRate
	outRate    beep.SampleRate
	channels   int
	streamer   beep.Streamer
	buf        [][2]float64
	done       bool
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// NewMemoryReadSeekCloser wraps an in-memory payload for OpenStream
func NewMemoryReadSeekCloser(data []byte) io.ReadSeekCloser {
	return readSeekNopCloser{bytes.NewReader(data)}
}

// OpenStream starts decoding r as formatName (one of the FormatName* values).
// The stream takes ownership of r and closes it on Close.
func OpenStream(r io.ReadSeekCloser, formatName string, spec Spec) (*Stream, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var (
		source beep.StreamSeekCloser
		format beep.Format
		err    error
	)

	switch formatName {
	case FormatNameWAV:
		source, format, err = wav.Decode(r)
	case FormatNameMP3:
		source, format, err = mp3.Decode(r)
	case FormatNameOGG:
		source, format, err = vorbis.Decode(r)
	case FormatNameFLAC:
		source, format, err = flac.Decode(r)
	case FormatNameAIFF:
		// go-audio/aiff has no incremental reader; decode fully and stream from memory
		var data *AudioData
		data, err = NewAiffDecoder().Decode(r)
		r.Close()
		if err == nil {
			source = newPCMStreamer(data)
			format = beep.Format{
				SampleRate:  beep.SampleRate(data.SampleRate),
				NumChannels: int(data.Channels),
				Precision:   data.Format.BytesPerSample(),
			}
		}
	default:
		r.Close()
		return nil, fmt.Errorf("%w: no streaming decoder for %q", ErrUnsupportedFormat, formatName)
	}
	if err != nil {
		r.Close()
		slog.Error("failed to open music stream", "format", formatName, "error", err)
		return nil, fmt.Errorf("%w: %s stream: %v", ErrInvalidData, formatName, err)
	}

	s := &Stream{
		format:     formatName,
		source:     source,
		sourceRate: format.SampleRate,
		outRate:    beep.SampleRate(spec.Frequency),
		channels:   spec.Channels,
		buf:        make([][2]float64, spec.ChunkSize),
	}
	s.resetResampler()

	slog.Debug("music stream opened",
		"format", formatName,
		"source_rate", int(format.SampleRate),
		"source_channels", format.NumChannels,
		"output_rate", spec.Frequency,
		"length_frames", source.Len())

	return s, nil
}

// resetResampler rebuilds the rate converter; it buffers source frames, so
// it must be recreated after every seek.
func (s *Stream) resetResampler() {
	if s.sourceRate == s.outRate {
		s.streamer = s.source
		return
	}
	s.streamer = beep.Resample(resampleQuality, s.sourceRate, s.outRate, s.source)
}

// Format returns the container format name
func (s *Stream) Format() string {
	return s.format
}

// Read fills dst with interleaved float samples at the output rate.
// It returns the number of frames written and false once the stream is exhausted.
func (s *Stream) Read(dst []float32) (int, bool) {
	if s.done {
		return 0, false
	}
	frames := len(dst) / s.channels
	if cap(s.buf) < frames {
		s.buf = make([][2]float64, frames)
	}

	filled := 0
	for filled < frames {
		n, ok := s.streamer.Stream(s.buf[:frames-filled])
		for i := 0; i < n; i++ {
			f := s.buf[i]
			base := (filled + i) * s.channels
			if s.channels == 1 {
				dst[base] = float32((f[0] + f[1]) / 2)
			} else {
				dst[base] = float32(f[0])
				dst[base+1] = float32(f[1])
			}
		}
		filled += n
		if !ok {
			if err := s.source.Err(); err != nil {
				slog.Warn("music stream decode error", "format", s.format, "error", err)
			}
			s.done = true
			break
		}
	}
	return filled, !s.done || filled > 0
}

// Seek moves playback to pos from the start, clamped to the stream length
func (s *Stream) Seek(pos time.Duration) error {
	if pos < 0 {
		pos = 0
	}
	frame := s.sourceRate.N(pos)
	if length := s.source.Len(); length > 0 && frame > length {
		frame = length
	}
	if err := s.source.Seek(frame); err != nil {
		return fmt.Errorf("seek %s stream to %s: %w", s.format, pos, err)
	}
	s.done = false
	s.resetResampler()
	return nil
}

// Rewind seeks back to the start
func (s *Stream) Rewind() error {
	return s.Seek(0)
}

// Position returns the current source position
func (s *Stream) Position() time.Duration {
	return s.sourceRate.D(s.source.Position())
}

// Duration returns the total stream length, or -1 when unknown
func (s *Stream) Duration() time.Duration {
	length := s.source.Len()
	if length <= 0 {
		return -1
	}
	return s.sourceRate.D(length)
}

// Close releases the decoder and the underlying reader
func (s *Stream) Close() error {
	return s.source.Close()
}
