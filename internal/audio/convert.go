package audio

import (
	"fmt"
	"log/slog"

	"github.com/gopxl/beep"
)

// resampleQuality is the beep.Resample interpolation window
const resampleQuality = 4

// pcmStreamer exposes decoded float PCM as a seekable beep streamer
type pcmStreamer struct {
	samples  []float32
	channels int
	pos      int // frame position
}

var _ beep.StreamSeekCloser = (*pcmStreamer)(nil)

func newPCMStreamer(data *AudioData) *pcmStreamer {
	samples := make([]float32, len(data.Samples)/data.Format.BytesPerSample())
	DecodeSamples(data.Format, data.Samples, samples)
	return &pcmStreamer{samples: samples, channels: int(data.Channels)}
}

func (p *pcmStreamer) Stream(out [][2]float64) (int, bool) {
	frames := p.Len()
	if p.pos >= frames {
		return 0, false
	}
	n := 0
	for n < len(out) && p.pos < frames {
		base := p.pos * p.channels
		left := float64(p.samples[base])
		right := left
		if p.channels > 1 {
			right = float64(p.samples[base+1])
		}
		out[n] = [2]float64{left, right}
		n++
		p.pos++
	}
	return n, true
}

func (p *pcmStreamer) Err() error    { return nil }
func (p *pcmStreamer) Len() int      { return len(p.samples) / p.channels }
func (p *pcmStreamer) Position() int { return p.pos }
func (p *pcmStreamer) Close() error  { return nil }

func (p *pcmStreamer) Seek(pos int) error {
	if pos < 0 || pos > p.Len() {
		return fmt.Errorf("seek position %d out of range [0, %d]", pos, p.Len())
	}
	p.pos = pos
	return nil
}

// drainStreamer reads s to exhaustion and interleaves it with the given channel count
func drainStreamer(s beep.Streamer, channels int) []float32 {
	buf := make([][2]float64, 512)
	var out []float32
	for {
		n, ok := s.Stream(buf)
		out = appendFrames(out, buf[:n], channels)
		if !ok {
			return out
		}
	}
}

// appendFrames interleaves stereo beep frames into dst, downmixing for mono
func appendFrames(dst []float32, frames [][2]float64, channels int) []float32 {
	for _, f := range frames {
		if channels == 1 {
			dst = append(dst, float32((f[0]+f[1])/2))
			continue
		}
		dst = append(dst, float32(f[0]), float32(f[1]))
	}
	return dst
}

// Convert resamples and remaps decoded PCM into the output spec,
// returning bytes ready to be mixed.
func Convert(data *AudioData, spec Spec) ([]byte, error) {
	if data == nil || len(data.Samples) == 0 {
		return nil, ErrInvalidData
	}
	if data.Channels == 0 || data.SampleRate == 0 {
		return nil, ErrInvalidData
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var streamer beep.Streamer = newPCMStreamer(data)
	if int(data.SampleRate) != spec.Frequency {
		streamer = beep.Resample(resampleQuality, beep.SampleRate(data.SampleRate), beep.SampleRate(spec.Frequency), streamer)
	}

	samples := drainStreamer(streamer, spec.Channels)
	out := make([]byte, len(samples)*spec.Format.BytesPerSample())
	EncodeSamples(spec.Format, samples, out)

	slog.Debug("converted audio to output format",
		"source_rate", data.SampleRate,
		"source_channels", data.Channels,
		"source_format", data.Format.String(),
		"target_rate", spec.Frequency,
		"target_channels", spec.Channels,
		"target_format", spec.Format.String(),
		"output_bytes", len(out))

	return out, nil
}
