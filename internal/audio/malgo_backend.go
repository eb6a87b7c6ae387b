//go:build cgo

package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoDevice drives a miniaudio playback device through gen2brain/malgo
type MalgoDevice struct {
	mutex   sync.Mutex
	context *Context
	device  *malgo.Device
	spec    Spec
	opened  bool
	started bool
	paused  bool
	closed  bool
}

var _ Device = (*MalgoDevice)(nil)

// NewMalgoDevice creates an unopened malgo device
func NewMalgoDevice() *MalgoDevice {
	slog.Debug("creating new MalgoDevice")
	return &MalgoDevice{}
}

// Name returns "malgo"
func (d *MalgoDevice) Name() string { return BackendMalgo }

func malgoFormat(format SampleFormat) malgo.FormatType {
	switch format {
	case FormatU8:
		return malgo.FormatU8
	case FormatS24:
		return malgo.FormatS24
	case FormatS32:
		return malgo.FormatS32
	case FormatF32:
		return malgo.FormatF32
	default:
		return malgo.FormatS16
	}
}

// Open initializes the miniaudio context. miniaudio converts internally, so
// every supported spec is accepted unchanged.
func (d *MalgoDevice) Open(want Spec) (Spec, error) {
	if err := want.Validate(); err != nil {
		return Spec{}, err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return Spec{}, ErrBackendClosed
	}

	if d.context == nil {
		ctx, err := NewContext()
		if err != nil {
			return Spec{}, fmt.Errorf("%w: %v", ErrBackendNotAvailable, err)
		}
		d.context = ctx
	}

	d.spec = want
	d.opened = true

	slog.Info("malgo device opened",
		"frequency", want.Frequency,
		"format", want.Format.String(),
		"channels", want.Channels,
		"chunk_size", want.ChunkSize)

	return want, nil
}

// Start initializes and starts the playback device
func (d *MalgoDevice) Start(render RenderFunc) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return ErrBackendClosed
	}
	if !d.opened {
		return ErrBackendNotOpen
	}
	if d.started {
		return nil
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgoFormat(d.spec.Format)
	deviceConfig.Playback.Channels = uint32(d.spec.Channels)
	deviceConfig.SampleRate = uint32(d.spec.Frequency)
	deviceConfig.PeriodSizeInFrames = uint32(d.spec.ChunkSize)
	deviceConfig.Alsa.NoMMap = 1

	format := d.spec.Format
	onSamples := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		d.mutex.Lock()
		paused := d.paused
		d.mutex.Unlock()
		if paused {
			silence(format, pOutputSample)
			return
		}
		render(pOutputSample)
	}

	device, err := malgo.InitDevice(d.context.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		slog.Error("failed to initialize playback device", "error", err)
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		slog.Error("failed to start playback device", "error", err)
		return fmt.Errorf("failed to start playback: %w", err)
	}

	d.device = device
	d.started = true
	slog.Info("malgo playback started")
	return nil
}

// Pause makes the callback emit silence without stopping the device
func (d *MalgoDevice) Pause(paused bool) {
	d.mutex.Lock()
	d.paused = paused
	d.mutex.Unlock()
	slog.Debug("malgo device pause state changed", "paused", paused)
}

// Close stops the device and releases the miniaudio context
func (d *MalgoDevice) Close() error {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		slog.Debug("malgo device already closed")
		return nil
	}
	d.closed = true
	device := d.device
	ctx := d.context
	d.device = nil
	d.context = nil
	d.mutex.Unlock()

	// Stop outside the lock; the data callback takes it too
	if device != nil {
		if err := device.Stop(); err != nil {
			slog.Warn("error stopping playback device", "error", err)
		}
		device.Uninit()
	}
	if ctx != nil {
		if err := ctx.Close(); err != nil {
			return fmt.Errorf("error closing audio context: %w", err)
		}
	}

	slog.Debug("malgo device closed")
	return nil
}
