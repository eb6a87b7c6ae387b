package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-audio/wav"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// LocateWAVPayload parses a RIFF/WAVE header in mem and returns the PCM
// payload as a subslice of mem, without copying, together with its format.
func LocateWAVPayload(mem []byte) ([]byte, Spec, error) {
	reader := bytes.NewReader(mem)
	decoder := wav.NewDecoder(reader)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, Spec{}, fmt.Errorf("%w: not a valid WAV file", ErrInvalidData)
	}

	var format SampleFormat
	switch decoder.WavAudioFormat {
	case wavFormatPCM:
		f, ok := formatForBitDepth(int(decoder.BitDepth))
		if !ok {
			return nil, Spec{}, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, decoder.BitDepth)
		}
		format = f
	case wavFormatFloat:
		if decoder.BitDepth != 32 {
			return nil, Spec{}, fmt.Errorf("%w: %d-bit float", ErrUnsupportedFormat, decoder.BitDepth)
		}
		format = FormatF32
	default:
		return nil, Spec{}, fmt.Errorf("%w: WAV encoding %d", ErrUnsupportedFormat, decoder.WavAudioFormat)
	}

	if err := decoder.FwdToPCM(); err != nil {
		return nil, Spec{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	offset, err := reader.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, Spec{}, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}

	end := offset + decoder.PCMLen()
	if end > int64(len(mem)) {
		// Truncated files keep whatever payload is present
		end = int64(len(mem))
	}

	spec := Spec{
		Frequency: int(decoder.SampleRate),
		Format:    format,
		Channels:  int(decoder.NumChans),
	}

	slog.Debug("located WAV payload",
		"offset", offset,
		"bytes", end-offset,
		"frequency", spec.Frequency,
		"format", format.String(),
		"channels", spec.Channels)

	return mem[offset:end], spec, nil
}
