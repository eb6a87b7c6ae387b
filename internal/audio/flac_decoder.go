package audio

import (
	"io"
	"log/slog"
	"strings"

	"github.com/gopxl/beep/flac"
)

// FlacDecoder handles FLAC decoding through beep's flac streamer
type FlacDecoder struct{}

// NewFlacDecoder creates a new FLAC decoder instance
func NewFlacDecoder() *FlacDecoder {
	slog.Debug("creating new FLAC decoder instance")
	return &FlacDecoder{}
}

// Decode reads a FLAC stream and returns interleaved F32 PCM
func (d *FlacDecoder) Decode(reader io.Reader) (*AudioData, error) {
	slog.Debug("starting FLAC decode operation")

	streamer, format, err := flac.Decode(reader)
	if err != nil {
		slog.Error("failed to create FLAC decoder", "error", err)
		return nil, ErrInvalidData
	}
	defer streamer.Close()

	channels := format.NumChannels
	if channels > 2 {
		channels = 2
	}
	if channels <= 0 || format.SampleRate <= 0 {
		slog.Error("invalid FLAC format parameters",
			"channels", format.NumChannels,
			"sample_rate", int(format.SampleRate))
		return nil, ErrInvalidData
	}

	samples := drainStreamer(streamer, channels)
	if err := streamer.Err(); err != nil {
		slog.Error("failed to read FLAC samples", "error", err)
		return nil, ErrReadFailure
	}
	if len(samples) == 0 {
		slog.Error("no audio data found in FLAC stream")
		return nil, ErrInvalidData
	}

	raw := make([]byte, len(samples)*FormatF32.BytesPerSample())
	EncodeSamples(FormatF32, samples, raw)

	audioData := &AudioData{
		Samples:    raw,
		Channels:   uint32(channels),
		SampleRate: uint32(format.SampleRate),
		Format:     FormatF32,
	}

	slog.Info("FLAC decode completed successfully",
		"total_bytes", len(raw),
		"channels", channels,
		"sample_rate", int(format.SampleRate),
		"duration_ms", audioData.Duration().Milliseconds())

	return audioData, nil
}

// CanDecode checks if this decoder can handle the given filename
func (d *FlacDecoder) CanDecode(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".flac")
}

// FormatName returns the name of the format this decoder handles
func (d *FlacDecoder) FormatName() string {
	return "FLAC"
}
