package mixer

import (
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"mixdeck.click/internal/audio"
	"mixdeck.click/internal/audio/audiotest"
)

// At 1000 Hz with 10-frame buffers every pump advances the clock by 10ms
func testSpec() audio.Spec {
	return audio.Spec{Frequency: 1000, Format: audio.FormatS16, Channels: 2, ChunkSize: 10}
}

type testRig struct {
	engine *Engine
	device *audio.HeadlessDevice
	fs     afero.Fs
}

func openRig(t *testing.T, spec audio.Spec) *testRig {
	t.Helper()
	device := audio.NewHeadlessDevice()
	fs := afero.NewMemMapFs()
	engine, err := Open(Options{Spec: spec, Device: device, Fs: fs})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return &testRig{engine: engine, device: device, fs: fs}
}

func openTestEngine(t *testing.T) (*Engine, *testRig) {
	t.Helper()
	rig := openRig(t, testSpec())
	return rig.engine, rig
}

// pump renders n buffers and returns the last one as samples
func (r *testRig) pump(t *testing.T, n int) []int16 {
	t.Helper()
	var out []byte
	for i := 0; i < n; i++ {
		buf, err := r.device.Pump()
		require.NoError(t, err)
		out = buf
	}
	return audiotest.ReadS16(out)
}

// constPCM returns frames stereo S16 frames at value
func constPCM(frames int, value int16) []byte {
	samples := make([]int16, frames*2)
	for i := range samples {
		samples[i] = value
	}
	return audiotest.S16(samples...)
}

// constChunk builds a stereo S16 chunk of frames frames at value
func constChunk(t *testing.T, e *Engine, frames int, value int16) *Chunk {
	t.Helper()
	chunk, err := e.QuickLoadRAW(constPCM(frames, value))
	require.NoError(t, err)
	return chunk
}

// stereoChunk builds a chunk with distinct left and right values
func stereoChunk(t *testing.T, e *Engine, frames int, left, right int16) *Chunk {
	t.Helper()
	samples := make([]int16, 0, frames*2)
	for i := 0; i < frames; i++ {
		samples = append(samples, left, right)
	}
	chunk, err := e.QuickLoadRAW(audiotest.S16(samples...))
	require.NoError(t, err)
	return chunk
}

type finishedRecorder struct {
	mu       sync.Mutex
	channels []int
}

func (f *finishedRecorder) record(ch int) {
	f.mu.Lock()
	f.channels = append(f.channels, ch)
	f.mu.Unlock()
}

func (f *finishedRecorder) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.channels...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) observe(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func allSilent(samples []int16) bool {
	for _, s := range samples {
		if s != 0 {
			return false
		}
	}
	return true
}
