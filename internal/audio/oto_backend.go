//go:build cgo

package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoSpec    Spec
	otoErr     error
)

// OtoDevice pulls PCM through an ebitengine/oto player
type OtoDevice struct {
	mutex   sync.Mutex
	player  *oto.Player
	spec    Spec
	render  RenderFunc
	pending []byte // rendered bytes not yet handed to oto
	buf     []byte
	opened  bool
	closed  bool
}

var _ Device = (*OtoDevice)(nil)

// NewOtoDevice creates an unopened oto device
func NewOtoDevice() *OtoDevice {
	slog.Debug("creating new OtoDevice")
	return &OtoDevice{}
}

// Name returns "oto"
func (d *OtoDevice) Name() string { return BackendOto }

// otoNegotiate maps a spec onto the formats oto can play. 24 and 32-bit
// integer output is narrowed to 16-bit.
func otoNegotiate(want Spec) (Spec, oto.Format) {
	got := want
	switch want.Format {
	case FormatU8:
		return got, oto.FormatUnsignedInt8
	case FormatF32:
		return got, oto.FormatFloat32LE
	default:
		got.Format = FormatS16
		return got, oto.FormatSignedInt16LE
	}
}

// Open creates the process-wide oto context on first use
func (d *OtoDevice) Open(want Spec) (Spec, error) {
	if err := want.Validate(); err != nil {
		return Spec{}, err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return Spec{}, ErrBackendClosed
	}

	got, format := otoNegotiate(want)
	otoOnce.Do(func() {
		bufferDuration := time.Duration(got.ChunkSize) * time.Second / time.Duration(got.Frequency)
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   got.Frequency,
			ChannelCount: got.Channels,
			Format:       format,
			BufferSize:   bufferDuration,
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoContext = ctx
		otoSpec = got
	})
	if otoErr != nil {
		slog.Error("failed to create oto context", "error", otoErr)
		return Spec{}, fmt.Errorf("%w: %v", ErrBackendNotAvailable, otoErr)
	}
	if otoSpec.Frequency != got.Frequency || otoSpec.Channels != got.Channels || otoSpec.Format != got.Format {
		// The existing context wins; callers adapt to the returned spec
		slog.Warn("oto context already exists with a different format",
			"frequency", otoSpec.Frequency,
			"channels", otoSpec.Channels,
			"format", otoSpec.Format.String())
		chunk := got.ChunkSize
		got = otoSpec
		got.ChunkSize = chunk
	}

	d.spec = got
	d.buf = make([]byte, got.BufferSize())
	d.opened = true

	slog.Info("oto device opened",
		"frequency", got.Frequency,
		"format", got.Format.String(),
		"channels", got.Channels,
		"requested_format", want.Format.String())

	return got, nil
}

// Read implements io.Reader for the oto player
func (d *OtoDevice) Read(p []byte) (int, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	n := 0
	for n < len(p) {
		if len(d.pending) == 0 {
			if d.render == nil || d.closed {
				silence(d.spec.Format, p[n:])
				return len(p), nil
			}
			d.render(d.buf)
			d.pending = d.buf
		}
		copied := copy(p[n:], d.pending)
		d.pending = d.pending[copied:]
		n += copied
	}
	return n, nil
}

// Start creates the player and begins playback
func (d *OtoDevice) Start(render RenderFunc) error {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return ErrBackendClosed
	}
	if !d.opened {
		d.mutex.Unlock()
		return ErrBackendNotOpen
	}
	if d.player != nil {
		d.mutex.Unlock()
		return nil
	}
	d.render = render
	d.mutex.Unlock()

	player := otoContext.NewPlayer(d)
	player.SetBufferSize(d.spec.BufferSize())
	player.Play()

	d.mutex.Lock()
	d.player = player
	d.mutex.Unlock()

	slog.Info("oto playback started")
	return nil
}

// Pause pauses or resumes the oto player
func (d *OtoDevice) Pause(paused bool) {
	d.mutex.Lock()
	player := d.player
	d.mutex.Unlock()
	if player == nil {
		return
	}
	if paused {
		player.Pause()
	} else {
		player.Play()
	}
	slog.Debug("oto device pause state changed", "paused", paused)
}

// Close stops the player. The oto context itself lives for the process.
func (d *OtoDevice) Close() error {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return nil
	}
	d.closed = true
	player := d.player
	d.player = nil
	d.mutex.Unlock()

	if player != nil {
		if err := player.Close(); err != nil {
			return fmt.Errorf("error closing oto player: %w", err)
		}
	}
	slog.Debug("oto device closed")
	return nil
}
