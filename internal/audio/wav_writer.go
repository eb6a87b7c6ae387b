package audio

import (
	"fmt"
	"io"
	"log/slog"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVWriter encodes mixed output buffers into a PCM WAV file
type WAVWriter struct {
	encoder  *wav.Encoder
	spec     Spec
	bitDepth int
	scale    float64
	samples  []float32
	ints     *goaudio.IntBuffer
	frames   int64
}

// NewWAVWriter writes buffers in spec's format to w. 24 and 32-bit integer
// output keeps its depth; everything else is stored as 16-bit.
func NewWAVWriter(w io.WriteSeeker, spec Spec) (*WAVWriter, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	bitDepth := 16
	switch spec.Format {
	case FormatS24:
		bitDepth = 24
	case FormatS32:
		bitDepth = 32
	}

	slog.Debug("creating WAV writer",
		"frequency", spec.Frequency,
		"channels", spec.Channels,
		"bit_depth", bitDepth)

	return &WAVWriter{
		encoder:  wav.NewEncoder(w, spec.Frequency, bitDepth, spec.Channels, wavFormatPCM),
		spec:     spec,
		bitDepth: bitDepth,
		scale:    float64(int64(1)<<(bitDepth-1) - 1),
		ints: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: spec.Channels, SampleRate: spec.Frequency},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// Write encodes one buffer of PCM bytes in the writer's spec
func (w *WAVWriter) Write(pcm []byte) error {
	count := len(pcm) / w.spec.Format.BytesPerSample()
	if cap(w.samples) < count {
		w.samples = make([]float32, count)
	}
	w.samples = w.samples[:count]
	DecodeSamples(w.spec.Format, pcm, w.samples)

	if cap(w.ints.Data) < count {
		w.ints.Data = make([]int, count)
	}
	w.ints.Data = w.ints.Data[:count]
	for i, v := range w.samples {
		w.ints.Data[i] = int(float64(clip(v)) * w.scale)
	}

	if err := w.encoder.Write(w.ints); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	w.frames += int64(count / w.spec.Channels)
	return nil
}

// Frames returns the number of frames written so far
func (w *WAVWriter) Frames() int64 {
	return w.frames
}

// Close finalizes the RIFF header. It does not close the underlying writer.
func (w *WAVWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	slog.Debug("WAV writer closed", "frames", w.frames)
	return nil
}
