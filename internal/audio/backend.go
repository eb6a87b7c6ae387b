package audio

import (
	"errors"
)

// Common errors for Device implementations
var (
	ErrBackendNotAvailable = errors.New("audio backend not available")
	ErrBackendClosed       = errors.New("audio backend is closed")
	ErrBackendNotOpen      = errors.New("audio backend is not open")
)

// RenderFunc fills out with one buffer of interleaved PCM in the negotiated spec.
// It is called from the device's audio thread.
type RenderFunc func(out []byte)

// Device is an output sink that periodically pulls PCM from a RenderFunc
type Device interface {
	// Open negotiates the output format. The returned spec is what the
	// device will actually request from the render callback.
	Open(want Spec) (Spec, error)

	// Start begins pulling buffers through render
	Start(render RenderFunc) error

	// Pause suspends or resumes pulling buffers
	Pause(paused bool)

	// Name identifies the backend in logs and config
	Name() string

	Close() error
}

// silence zeroes a buffer for the given format; unsigned 8-bit silence is 0x80
func silence(format SampleFormat, buf []byte) {
	fill := byte(0)
	if format == FormatU8 {
		fill = 0x80
	}
	for i := range buf {
		buf[i] = fill
	}
}

// Silence fills buf with the silent value of format
func Silence(format SampleFormat, buf []byte) {
	silence(format, buf)
}
