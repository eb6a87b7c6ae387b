package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

// AiffDecoder handles AIFF audio format decoding
type AiffDecoder struct{}

// NewAiffDecoder creates a new AIFF decoder instance
func NewAiffDecoder() *AiffDecoder {
	slog.Debug("creating new AIFF decoder instance")
	return &AiffDecoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *AiffDecoder) FormatName() string {
	return "AIFF"
}

// CanDecode checks if this decoder can handle the given filename
func (d *AiffDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".aiff") || strings.HasSuffix(lower, ".aif")
}

// Decode reads AIFF audio data from reader and returns decoded PCM data
func (d *AiffDecoder) Decode(reader io.Reader) (*AudioData, error) {
	slog.Debug("starting AIFF decode operation")

	// go-audio/aiff needs a ReadSeeker
	data, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read AIFF data", "error", err)
		return nil, ErrReadFailure
	}

	if len(data) == 0 {
		slog.Error("empty AIFF data")
		return nil, ErrInvalidData
	}

	decoder := aiff.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		slog.Error("invalid AIFF file format")
		return nil, ErrInvalidData
	}

	sampleRate := uint32(decoder.SampleRate)
	channels := uint32(decoder.NumChans)
	bitDepth := int(decoder.SampleBitDepth())

	if channels == 0 || sampleRate == 0 || bitDepth == 0 {
		slog.Error("invalid AIFF format parameters",
			"channels", channels,
			"sample_rate", sampleRate,
			"bit_depth", bitDepth)
		return nil, ErrInvalidData
	}

	sampleFormat, ok := formatForBitDepth(bitDepth)
	if !ok {
		slog.Error("unsupported bit depth", "bits", bitDepth)
		return nil, ErrUnsupportedFormat
	}

	pcmBuffer, err := decoder.FullPCMBuffer()
	if err != nil {
		slog.Error("failed to read AIFF samples", "error", err)
		return nil, ErrReadFailure
	}

	if pcmBuffer == nil || len(pcmBuffer.Data) == 0 {
		slog.Error("no audio data found in AIFF file")
		return nil, ErrInvalidData
	}

	rawBytes, err := convertIntBuffer(pcmBuffer, sampleFormat)
	if err != nil {
		slog.Error("failed to convert PCM buffer to bytes", "error", err)
		return nil, ErrReadFailure
	}

	audioData := &AudioData{
		Samples:    rawBytes,
		Channels:   channels,
		SampleRate: sampleRate,
		Format:     sampleFormat,
	}

	slog.Info("AIFF decode completed successfully",
		"total_bytes", len(rawBytes),
		"channels", audioData.Channels,
		"sample_rate", audioData.SampleRate,
		"format", sampleFormat.String(),
		"duration_ms", audioData.Duration().Milliseconds())

	return audioData, nil
}

// convertIntBuffer flattens a go-audio IntBuffer into little-endian PCM bytes
func convertIntBuffer(pcmBuffer *goaudio.IntBuffer, format SampleFormat) ([]byte, error) {
	if len(pcmBuffer.Data) == 0 {
		return nil, fmt.Errorf("empty PCM buffer")
	}

	rawBytes := make([]byte, 0, len(pcmBuffer.Data)*format.BytesPerSample())
	for _, sample := range pcmBuffer.Data {
		// AIFF 8-bit PCM is signed; U8 output is offset binary
		if format == FormatU8 {
			sample += 128
		}
		rawBytes = appendIntSample(rawBytes, sample, format)
	}
	return rawBytes, nil
}
