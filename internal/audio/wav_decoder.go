package audio

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/youpy/go-wav"
)

// WavDecoder handles WAV audio format decoding
type WavDecoder struct{}

// NewWavDecoder creates a new WAV decoder instance
func NewWavDecoder() *WavDecoder {
	slog.Debug("creating new WAV decoder instance")
	return &WavDecoder{}
}

// Decode reads WAV audio data from reader and returns decoded PCM data
func (d *WavDecoder) Decode(reader io.Reader) (*AudioData, error) {
	slog.Debug("starting WAV decode operation")

	// youpy/go-wav needs a ReadSeeker, so we need to read all data first
	data, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read WAV data", "error", err)
		return nil, ErrReadFailure
	}

	if len(data) == 0 {
		slog.Error("empty WAV data")
		return nil, ErrInvalidData
	}

	wavReader := wav.NewReader(bytes.NewReader(data))

	format, err := wavReader.Format()
	if err != nil {
		slog.Error("failed to read WAV format", "error", err)
		return nil, ErrInvalidData
	}

	slog.Debug("WAV format detected",
		"sample_rate", format.SampleRate,
		"channels", format.NumChannels,
		"bits_per_sample", format.BitsPerSample)

	if format.NumChannels == 0 || format.SampleRate == 0 {
		slog.Error("invalid WAV format parameters",
			"channels", format.NumChannels,
			"sample_rate", format.SampleRate)
		return nil, ErrInvalidData
	}

	sampleFormat, ok := formatForBitDepth(int(format.BitsPerSample))
	if !ok {
		slog.Error("unsupported bit depth", "bits", format.BitsPerSample)
		return nil, ErrUnsupportedFormat
	}

	channels := int(format.NumChannels)
	var rawBytes []byte
	frames := 0

	for {
		samples, err := wavReader.ReadSamples()
		if err != nil {
			if err == io.EOF {
				break
			}
			slog.Error("failed to read WAV samples", "error", err)
			return nil, ErrReadFailure
		}

		if len(samples) == 0 {
			break
		}

		for _, sample := range samples {
			for ch := 0; ch < channels; ch++ {
				val := 0
				if ch < len(sample.Values) {
					val = sample.Values[ch]
				}
				rawBytes = appendIntSample(rawBytes, val, sampleFormat)
			}
		}
		frames += len(samples)
	}

	if frames == 0 {
		slog.Error("no audio data found in WAV file")
		return nil, ErrInvalidData
	}

	audioData := &AudioData{
		Samples:    rawBytes,
		Channels:   uint32(format.NumChannels),
		SampleRate: format.SampleRate,
		Format:     sampleFormat,
	}

	slog.Info("WAV decode completed successfully",
		"total_bytes", len(rawBytes),
		"frames", frames,
		"channels", audioData.Channels,
		"sample_rate", audioData.SampleRate,
		"format", sampleFormat.String(),
		"duration_ms", audioData.Duration().Milliseconds())

	return audioData, nil
}

// CanDecode checks if this decoder can handle the given filename
func (d *WavDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")
}

// FormatName returns the name of the format this decoder handles
func (d *WavDecoder) FormatName() string {
	return "WAV"
}
