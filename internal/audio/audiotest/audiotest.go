// Package audiotest builds small in-memory audio fixtures for tests.
package audiotest

import (
	"encoding/binary"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// WAV encodes interleaved integer samples as a PCM WAV file
func WAV(sampleRate, channels, bitDepth int, samples []int) ([]byte, error) {
	fs := afero.NewMemMapFs()
	file, err := fs.Create("fixture.wav")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := encoder.Write(buf); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(file)
}

// Sine returns frames of a 16-bit sine wave at freq Hz, duplicated across channels
func Sine(sampleRate, channels, frames int, freq float64) []int {
	out := make([]int, 0, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) * 16000)
		for ch := 0; ch < channels; ch++ {
			out = append(out, v)
		}
	}
	return out
}

// Constant returns frames of one repeated 16-bit value per channel
func Constant(channels, frames int, value int) []int {
	out := make([]int, frames*channels)
	for i := range out {
		out[i] = value
	}
	return out
}

// S16 packs 16-bit samples as little-endian PCM bytes
func S16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// ReadS16 unpacks little-endian 16-bit PCM
func ReadS16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// AIFF builds a 16-bit big-endian AIFF file at 44100 Hz
func AIFF(channels int, samples []int16) []byte {
	frames := len(samples) / channels

	comm := make([]byte, 18)
	binary.BigEndian.PutUint16(comm[0:], uint16(channels))
	binary.BigEndian.PutUint32(comm[2:], uint32(frames))
	binary.BigEndian.PutUint16(comm[6:], 16)
	// 44100 as an 80-bit IEEE 754 extended float
	copy(comm[8:], []byte{0x40, 0x0E, 0xAC, 0x44, 0, 0, 0, 0, 0, 0})

	ssnd := make([]byte, 8, 8+len(samples)*2)
	for _, s := range samples {
		ssnd = binary.BigEndian.AppendUint16(ssnd, uint16(s))
	}

	var out []byte
	out = append(out, "FORM"...)
	out = binary.BigEndian.AppendUint32(out, uint32(4+8+len(comm)+8+len(ssnd)))
	out = append(out, "AIFF"...)
	out = append(out, "COMM"...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(comm)))
	out = append(out, comm...)
	out = append(out, "SSND"...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(ssnd)))
	out = append(out, ssnd...)
	return out
}
