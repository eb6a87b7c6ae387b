package audio

import (
	"log/slog"
	"sync"
)

// HeadlessDevice has no hardware behind it. Buffers are pulled explicitly
// with Pump, which makes it suitable for rendering to files and for tests.
type HeadlessDevice struct {
	mutex   sync.Mutex
	spec    Spec
	render  RenderFunc
	opened  bool
	started bool
	paused  bool
	closed  bool
	pumped  int64 // frames rendered so far
}

var _ Device = (*HeadlessDevice)(nil)

// NewHeadlessDevice creates an unopened headless device
func NewHeadlessDevice() *HeadlessDevice {
	return &HeadlessDevice{}
}

// Name returns "headless"
func (d *HeadlessDevice) Name() string { return BackendHeadless }

// Open accepts any valid spec unchanged
func (d *HeadlessDevice) Open(want Spec) (Spec, error) {
	if err := want.Validate(); err != nil {
		return Spec{}, err
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return Spec{}, ErrBackendClosed
	}
	d.spec = want
	d.opened = true
	slog.Debug("headless device opened",
		"frequency", want.Frequency,
		"format", want.Format.String(),
		"channels", want.Channels)
	return want, nil
}

// Start records the render callback
func (d *HeadlessDevice) Start(render RenderFunc) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return ErrBackendClosed
	}
	if !d.opened {
		return ErrBackendNotOpen
	}
	d.render = render
	d.started = true
	return nil
}

// Pause makes Pump produce silence
func (d *HeadlessDevice) Pause(paused bool) {
	d.mutex.Lock()
	d.paused = paused
	d.mutex.Unlock()
}

// Close detaches the render callback
func (d *HeadlessDevice) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.closed = true
	d.render = nil
	return nil
}

// Pump renders one device buffer of ChunkSize frames and returns it
func (d *HeadlessDevice) Pump() ([]byte, error) {
	d.mutex.Lock()
	chunk := d.spec.ChunkSize
	d.mutex.Unlock()
	return d.PumpFrames(chunk)
}

// PumpFrames renders exactly frames frames. A paused device returns silence.
func (d *HeadlessDevice) PumpFrames(frames int) ([]byte, error) {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return nil, ErrBackendClosed
	}
	if !d.started {
		d.mutex.Unlock()
		return nil, ErrBackendNotOpen
	}
	render := d.render
	paused := d.paused
	spec := d.spec
	d.mutex.Unlock()

	out := make([]byte, frames*spec.FrameSize())
	if paused {
		silence(spec.Format, out)
	} else {
		// Render outside the device lock; the callback takes its own
		render(out)
	}

	d.mutex.Lock()
	d.pumped += int64(frames)
	d.mutex.Unlock()
	return out, nil
}

// FramesPumped returns the total frames rendered through Pump
func (d *HeadlessDevice) FramesPumped() int64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.pumped
}

// Spec returns the negotiated spec
func (d *HeadlessDevice) Spec() Spec {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.spec
}
