package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixdeck.click/internal/audio/audiotest"
)

func TestConvertMonoToStereo(t *testing.T) {
	data := &AudioData{
		Samples:    audiotest.S16(16384, -16384, 0),
		Channels:   1,
		SampleRate: 1000,
		Format:     FormatS16,
	}
	spec := Spec{Frequency: 1000, Format: FormatS16, Channels: 2, ChunkSize: 10}

	out, err := Convert(data, spec)
	require.NoError(t, err)

	samples := audiotest.ReadS16(out)
	require.Len(t, samples, 6)
	for i, want := range []int16{16383, 16383, -16383, -16383, 0, 0} {
		assert.InDelta(t, want, samples[i], 1, "sample %d", i)
	}
}

func TestConvertStereoToMonoAverages(t *testing.T) {
	data := &AudioData{
		Samples:    audiotest.S16(16384, 0),
		Channels:   2,
		SampleRate: 1000,
		Format:     FormatS16,
	}
	spec := Spec{Frequency: 1000, Format: FormatF32, Channels: 1, ChunkSize: 10}

	out, err := Convert(data, spec)
	require.NoError(t, err)

	samples := make([]float32, 1)
	DecodeSamples(FormatF32, out, samples)
	assert.InDelta(t, 0.25, samples[0], 0.001)
}

func TestConvertResamples(t *testing.T) {
	data := &AudioData{
		Samples:    audiotest.S16(make([]int16, 100)...),
		Channels:   1,
		SampleRate: 1000,
		Format:     FormatS16,
	}
	spec := Spec{Frequency: 2000, Format: FormatS16, Channels: 1, ChunkSize: 10}

	out, err := Convert(data, spec)
	require.NoError(t, err)
	assert.InDelta(t, 200, len(out)/2, 10)
}

func TestConvertRejectsBadInput(t *testing.T) {
	spec := Spec{Frequency: 1000, Format: FormatS16, Channels: 2, ChunkSize: 10}

	_, err := Convert(nil, spec)
	assert.True(t, errors.Is(err, ErrInvalidData))

	_, err = Convert(&AudioData{Samples: []byte{0, 0}, Channels: 0, SampleRate: 1000, Format: FormatS16}, spec)
	assert.True(t, errors.Is(err, ErrInvalidData))

	spec.Channels = 4
	_, err = Convert(&AudioData{Samples: []byte{0, 0}, Channels: 1, SampleRate: 1000, Format: FormatS16}, spec)
	assert.Error(t, err)
}

func TestPCMStreamerSeek(t *testing.T) {
	s := newPCMStreamer(&AudioData{
		Samples:    audiotest.S16(1, 2, 3, 4, 5, 6),
		Channels:   2,
		SampleRate: 1000,
		Format:     FormatS16,
	})
	assert.Equal(t, 3, s.Len())

	require.NoError(t, s.Seek(2))
	buf := make([][2]float64, 4)
	n, ok := s.Stream(buf)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 5.0/32768, buf[0][0], 1e-9)

	n, ok = s.Stream(buf)
	assert.False(t, ok)
	assert.Zero(t, n)

	assert.Error(t, s.Seek(4))
}
