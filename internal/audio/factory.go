package audio

import (
	"errors"
	"fmt"
	"log/slog"
)

// Backend names accepted by the factory and config
const (
	BackendAuto     = "auto"
	BackendMalgo    = "malgo"
	BackendOto      = "oto"
	BackendHeadless = "headless"
)

// Factory errors
var (
	ErrInvalidBackendType    = errors.New("invalid backend type")
	ErrBackendCreationFailed = errors.New("backend creation failed")
)

// BackendFactory creates Device instances based on configuration
type BackendFactory struct {
	isWSLFunc func() bool
	newMalgo  func() Device
	newOto    func() Device
}

// NewBackendFactory creates a factory with real platform detection
func NewBackendFactory() *BackendFactory {
	return &BackendFactory{
		isWSLFunc: IsWSL,
		newMalgo:  func() Device { return NewMalgoDevice() },
		newOto:    func() Device { return NewOtoDevice() },
	}
}

// NewBackendFactoryWithDependencies creates a factory with injected constructors for testing
func NewBackendFactoryWithDependencies(isWSLFunc func() bool, newMalgo, newOto func() Device) *BackendFactory {
	return &BackendFactory{
		isWSLFunc: isWSLFunc,
		newMalgo:  newMalgo,
		newOto:    newOto,
	}
}

// GetSupportedBackends returns a list of all supported backend types
func (f *BackendFactory) GetSupportedBackends() []string {
	return []string{BackendAuto, BackendMalgo, BackendOto, BackendHeadless}
}

// IsValidBackendType checks if a backend type is supported
func (f *BackendFactory) IsValidBackendType(backendType string) bool {
	// Empty string is valid (defaults to auto)
	if backendType == "" {
		return true
	}
	for _, supported := range f.GetSupportedBackends() {
		if backendType == supported {
			return true
		}
	}
	return false
}

// OpenDevice creates the requested backend and opens it with want.
// "auto" tries the platform's preferred hardware backends in order and
// falls back to headless when none can be opened.
func (f *BackendFactory) OpenDevice(backendType string, want Spec) (Device, Spec, error) {
	if backendType == "" {
		backendType = BackendAuto
	}

	slog.Debug("creating audio backend", "type", backendType)

	switch backendType {
	case BackendAuto:
		return f.openAuto(want)
	case BackendMalgo:
		return openWith(f.newMalgo(), want)
	case BackendOto:
		return openWith(f.newOto(), want)
	case BackendHeadless:
		return openWith(NewHeadlessDevice(), want)
	default:
		slog.Error("invalid backend type requested", "type", backendType)
		return nil, Spec{}, fmt.Errorf("%w: %s", ErrInvalidBackendType, backendType)
	}
}

func openWith(device Device, want Spec) (Device, Spec, error) {
	got, err := device.Open(want)
	if err != nil {
		device.Close()
		return nil, Spec{}, fmt.Errorf("%w: %s: %w", ErrBackendCreationFailed, device.Name(), err)
	}
	return device, got, nil
}

// PreferredBackends returns the hardware backends to try, best first
func (f *BackendFactory) PreferredBackends() []string {
	return preferredBackendsFor(f.isWSLFunc())
}

func preferredBackendsFor(isWSL bool) []string {
	if isWSL {
		// miniaudio crackles under WSLg's PulseAudio bridge; oto buffers more
		slog.Debug("WSL detected, preferring oto over malgo")
		return []string{BackendOto, BackendMalgo}
	}
	slog.Debug("native system detected, preferring malgo backend")
	return []string{BackendMalgo, BackendOto}
}

func (f *BackendFactory) openAuto(want Spec) (Device, Spec, error) {
	slog.Debug("auto-detecting optimal backend")

	for _, name := range f.PreferredBackends() {
		var device Device
		if name == BackendOto {
			device = f.newOto()
		} else {
			device = f.newMalgo()
		}
		got, err := device.Open(want)
		if err == nil {
			slog.Debug("auto-detection result", "selected_type", name)
			return device, got, nil
		}
		device.Close()
		slog.Warn("audio backend unavailable, trying next", "type", name, "error", err)
	}

	slog.Warn("no hardware audio backend available, falling back to headless")
	return openWith(NewHeadlessDevice(), want)
}
