package audio

import (
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixdeck.click/internal/audio/audiotest"
)

func TestWAVWriterRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	file, err := fs.Create("/out.wav")
	require.NoError(t, err)
	defer file.Close()

	spec := Spec{Frequency: 8000, Format: FormatS16, Channels: 2, ChunkSize: 4}
	writer, err := NewWAVWriter(file, spec)
	require.NoError(t, err)

	require.NoError(t, writer.Write(audiotest.S16(100, -100, 200, -200)))
	require.NoError(t, writer.Write(audiotest.S16(300, -300)))
	assert.Equal(t, int64(3), writer.Frames())
	require.NoError(t, writer.Close())

	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)
	mem, err := io.ReadAll(file)
	require.NoError(t, err)

	payload, got, err := LocateWAVPayload(mem)
	require.NoError(t, err)
	assert.Equal(t, 8000, got.Frequency)
	assert.Equal(t, 2, got.Channels)
	assert.Equal(t, FormatS16, got.Format)

	samples := audiotest.ReadS16(payload)
	require.Len(t, samples, 6)
	for i, want := range []int16{100, -100, 200, -200, 300, -300} {
		assert.InDelta(t, want, samples[i], 1)
	}
}

func TestWAVWriterFloatInputStoredAs16Bit(t *testing.T) {
	fs := afero.NewMemMapFs()
	file, err := fs.Create("/float.wav")
	require.NoError(t, err)
	defer file.Close()

	spec := Spec{Frequency: 8000, Format: FormatF32, Channels: 1, ChunkSize: 4}
	writer, err := NewWAVWriter(file, spec)
	require.NoError(t, err)

	pcm := make([]byte, 8)
	EncodeSamples(FormatF32, []float32{0.5, -0.5}, pcm)
	require.NoError(t, writer.Write(pcm))
	require.NoError(t, writer.Close())

	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)
	mem, err := io.ReadAll(file)
	require.NoError(t, err)

	_, got, err := LocateWAVPayload(mem)
	require.NoError(t, err)
	assert.Equal(t, FormatS16, got.Format)
}
