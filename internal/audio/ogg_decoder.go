package audio

import (
	"io"
	"log/slog"
	"strings"

	"github.com/jfreymuth/oggvorbis"
)

// OggDecoder handles Ogg Vorbis decoding into 32-bit float PCM
type OggDecoder struct{}

// NewOggDecoder creates a new Ogg Vorbis decoder instance
func NewOggDecoder() *OggDecoder {
	slog.Debug("creating new Ogg Vorbis decoder instance")
	return &OggDecoder{}
}

// Decode reads an Ogg Vorbis stream and returns interleaved F32 PCM
func (d *OggDecoder) Decode(reader io.Reader) (*AudioData, error) {
	slog.Debug("starting Ogg Vorbis decode operation")

	dec, err := oggvorbis.NewReader(reader)
	if err != nil {
		slog.Error("failed to create Ogg Vorbis decoder", "error", err)
		return nil, ErrInvalidData
	}

	channels := dec.Channels()
	sampleRate := dec.SampleRate()
	if channels <= 0 || sampleRate <= 0 {
		slog.Error("invalid Ogg Vorbis format parameters",
			"channels", channels,
			"sample_rate", sampleRate)
		return nil, ErrInvalidData
	}

	// oggvorbis reads whole frames; keep the buffer a multiple of the channel count
	buf := make([]float32, 4096*channels)
	var samples []float32
	for {
		n, err := dec.Read(buf)
		samples = append(samples, buf[:n]...)
		if err != nil {
			if err == io.EOF {
				break
			}
			slog.Error("failed to read Ogg Vorbis samples", "error", err)
			return nil, ErrReadFailure
		}
		if n == 0 {
			break
		}
	}

	if len(samples) == 0 {
		slog.Error("no audio data found in Ogg Vorbis stream")
		return nil, ErrInvalidData
	}

	raw := make([]byte, len(samples)*FormatF32.BytesPerSample())
	EncodeSamples(FormatF32, samples, raw)

	audioData := &AudioData{
		Samples:    raw,
		Channels:   uint32(channels),
		SampleRate: uint32(sampleRate),
		Format:     FormatF32,
	}

	slog.Info("Ogg Vorbis decode completed successfully",
		"total_bytes", len(raw),
		"channels", channels,
		"sample_rate", sampleRate,
		"duration_ms", audioData.Duration().Milliseconds())

	return audioData, nil
}

// CanDecode checks if this decoder can handle the given filename
func (d *OggDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".ogg") || strings.HasSuffix(lower, ".oga")
}

// FormatName returns the name of the format this decoder handles
func (d *OggDecoder) FormatName() string {
	return "OGG"
}
