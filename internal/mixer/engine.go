// Package mixer implements a software audio mixer: a fixed set of channels
// playing pre-decoded chunks, per-channel effect chains, a post-mix stage
// and a single streamed music track, all rendered into one output buffer per
// device tick.
package mixer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/afero"

	"mixdeck.click/internal/audio"
)

// Fixed engine values
const (
	MaxVolume       = 128
	DefaultChannels = 8

	// AllChannels addresses every channel, or any group in queries
	AllChannels = -1
	// ChannelPost is the pseudo-channel whose effects run on the summed output
	ChannelPost = -2
	// NoGroup is the tag of ungrouped channels
	NoGroup = -1
)

// Options configures Open. Zero values select defaults.
type Options struct {
	Spec     audio.Spec
	Device   audio.Device
	Registry *audio.DecoderRegistry
	Fs       afero.Fs
	Channels int
}

// Engine owns the output device and all mixing state. Every exported
// method is safe for concurrent use.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	device   audio.Device
	spec     audio.Spec
	registry *audio.DecoderRegistry
	fs       afero.Fs

	channels     []*channel
	reserved     int
	masterVolume int
	frames       int64  // frames mixed since Open; the engine clock
	seq          uint64 // playback start counter

	channelFinished func(channel int)
	observers       []Observer

	postEffects []Effect
	postMix     func(samples []float32)
	positions   map[int]*positionEffect
	reversers   map[int]*reverseStereoEffect

	music musicState

	pending []func()
	mixBuf  []float32
	chanBuf []float32

	closed bool
}

// Open negotiates the output format with the device, allocates the
// default channels and starts the device pulling buffers from Mix.
func Open(opts Options) (*Engine, error) {
	want := opts.Spec
	if want == (audio.Spec{}) {
		want = audio.DefaultSpec()
	}
	if want.ChunkSize == 0 {
		want.ChunkSize = audio.DefaultChunkSize
	}

	device := opts.Device
	if device == nil {
		device = audio.NewHeadlessDevice()
	}
	registry := opts.Registry
	if registry == nil {
		registry = audio.NewDefaultRegistry()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	got, err := device.Open(want)
	if err != nil {
		slog.Error("failed to open audio device", "backend", device.Name(), "error", err)
		return nil, fmt.Errorf("open %s device: %w", device.Name(), err)
	}

	e := &Engine{
		device:       device,
		spec:         got,
		registry:     registry,
		fs:           fs,
		masterVolume: MaxVolume,
		positions:    make(map[int]*positionEffect),
		reversers:    make(map[int]*reverseStereoEffect),
	}
	e.cond = sync.NewCond(&e.mu)
	e.music.volume = MaxVolume

	count := opts.Channels
	if count <= 0 {
		count = DefaultChannels
	}
	e.channels = make([]*channel, count)
	for i := range e.channels {
		e.channels[i] = newChannel()
	}

	if err := device.Start(e.Mix); err != nil {
		device.Close()
		slog.Error("failed to start audio device", "backend", device.Name(), "error", err)
		return nil, fmt.Errorf("start %s device: %w", device.Name(), err)
	}

	slog.Info("mixer opened",
		"backend", device.Name(),
		"frequency", got.Frequency,
		"format", got.Format.String(),
		"channels", got.Channels,
		"chunk_size", got.ChunkSize,
		"mix_channels", count)

	return e, nil
}

// Close halts every channel and the music, firing their callbacks, then
// releases the device. Closing twice is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	for i := range e.channels {
		e.stopChannel(i, ReasonHalted)
	}
	player := e.music.player
	e.haltMusic(ReasonHalted, true)
	e.clearEffects(ChannelPost)
	e.closed = true
	e.cond.Broadcast()
	e.unlock()

	// Bounded by the kill grace of the command player
	if player != nil {
		player.Stop()
	}

	// The device callback takes the engine lock, so stop it unlocked
	if err := e.device.Close(); err != nil {
		slog.Error("failed to close audio device", "error", err)
		return fmt.Errorf("close device: %w", err)
	}
	slog.Info("mixer closed")
	return nil
}

// QuerySpec returns the negotiated output format
func (e *Engine) QuerySpec() audio.Spec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spec
}

// Device returns the output device the engine renders into
func (e *Engine) Device() audio.Device {
	return e.device
}

// PauseAudio pauses or resumes the whole output device
func (e *Engine) PauseAudio(paused bool) {
	e.device.Pause(paused)
}

// AddObserver registers fn to receive stop events
func (e *Engine) AddObserver(fn Observer) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// ChannelFinished sets the callback run once per channel stop. It runs
// after the engine lock is released and may call back into the engine.
func (e *Engine) ChannelFinished(fn func(channel int)) {
	e.mu.Lock()
	e.channelFinished = fn
	e.mu.Unlock()
}

// Ticks returns the engine clock in milliseconds of mixed audio
func (e *Engine) Ticks() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nowMs()
}

func (e *Engine) nowMs() int64 {
	return e.frames * 1000 / int64(e.spec.Frequency)
}

// unlock releases the engine lock and then runs queued callbacks in order
func (e *Engine) unlock() {
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (e *Engine) queue(fn func()) {
	e.pending = append(e.pending, fn)
}

func (e *Engine) emit(ev Event) {
	for _, obs := range e.observers {
		obs := obs
		e.queue(func() { obs(ev) })
	}
}

func (e *Engine) validChannel(ch int) bool {
	return ch >= 0 && ch < len(e.channels)
}
