package audio

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixdeck.click/internal/audio/audiotest"
)

func TestDecodersCanDecode(t *testing.T) {
	tests := []struct {
		decoder  Decoder
		accepts  []string
		rejects  []string
		wantName string
	}{
		{NewWavDecoder(), []string{"a.wav", "B.WAVE"}, []string{"a.mp3", "wav", "a.wav.bak"}, "WAV"},
		{NewMp3Decoder(), []string{"a.mp3", "a.MPEG"}, []string{"a.wav"}, "MP3"},
		{NewAiffDecoder(), []string{"a.aiff", "a.AIF"}, []string{"a.aifc.txt"}, "AIFF"},
		{NewOggDecoder(), []string{"a.ogg", "a.oga"}, []string{"a.opus"}, "OGG"},
		{NewFlacDecoder(), []string{"a.flac"}, []string{"a.fla"}, "FLAC"},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			assert.Equal(t, tt.wantName, tt.decoder.FormatName())
			for _, name := range tt.accepts {
				assert.True(t, tt.decoder.CanDecode(name), name)
			}
			for _, name := range tt.rejects {
				assert.False(t, tt.decoder.CanDecode(name), name)
			}
			assert.False(t, tt.decoder.CanDecode(""))
		})
	}
}

func TestDecodersRejectGarbage(t *testing.T) {
	decoders := []Decoder{NewWavDecoder(), NewMp3Decoder(), NewAiffDecoder(), NewOggDecoder(), NewFlacDecoder()}
	for _, decoder := range decoders {
		t.Run(decoder.FormatName(), func(t *testing.T) {
			data, err := decoder.Decode(bytes.NewReader(nil))
			assert.Error(t, err)
			assert.Nil(t, data)

			data, err = decoder.Decode(bytes.NewReader([]byte("definitely not audio")))
			assert.Error(t, err)
			assert.Nil(t, data)
		})
	}
}

func TestWavDecoderStereo(t *testing.T) {
	wav, err := audiotest.WAV(44100, 2, 16, []int{0x1000, 0x0100, 0x2000, 0x0200, -0x3000, 0x0300})
	require.NoError(t, err)

	data, err := NewWavDecoder().Decode(bytes.NewReader(wav))
	require.NoError(t, err)

	assert.Equal(t, uint32(2), data.Channels)
	assert.Equal(t, uint32(44100), data.SampleRate)
	assert.Equal(t, FormatS16, data.Format)
	assert.Equal(t, 3, data.Frames())
	assert.Equal(t, []int16{0x1000, 0x0100, 0x2000, 0x0200, -0x3000, 0x0300}, audiotest.ReadS16(data.Samples))
}

func TestWavDecoderMono(t *testing.T) {
	wav, err := audiotest.WAV(8000, 1, 16, audiotest.Constant(1, 8000, 1000))
	require.NoError(t, err)

	data, err := NewWavDecoder().Decode(bytes.NewReader(wav))
	require.NoError(t, err)

	assert.Equal(t, uint32(1), data.Channels)
	assert.Equal(t, 8000, data.Frames())
	assert.Equal(t, time.Second, data.Duration())
}

func TestAiffDecoder(t *testing.T) {
	aiff := audiotest.AIFF(2, []int16{100, -100, 200, -200})

	data, err := NewAiffDecoder().Decode(bytes.NewReader(aiff))
	require.NoError(t, err)

	assert.Equal(t, uint32(2), data.Channels)
	assert.Equal(t, uint32(44100), data.SampleRate)
	assert.Equal(t, FormatS16, data.Format)
	assert.Equal(t, []int16{100, -100, 200, -200}, audiotest.ReadS16(data.Samples))
}

func TestFormatForBitDepth(t *testing.T) {
	for bits, want := range map[int]SampleFormat{8: FormatU8, 16: FormatS16, 24: FormatS24, 32: FormatS32} {
		got, ok := formatForBitDepth(bits)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := formatForBitDepth(12)
	assert.False(t, ok)
}
