//go:build !cgo

package audio

import (
	"fmt"
)

var errCGORequired = fmt.Errorf(`%w: hardware output requires CGO support.

This build has CGO disabled, so only the headless backend is available.

To enable device output:
1. Ensure CGO_ENABLED=1 (this is the default for native builds)
2. Install a C compiler:
   - Linux: sudo apt-get install build-essential
   - macOS: xcode-select --install
   - Windows: Install MinGW or Visual Studio Build Tools
3. Then run: go install mixdeck.click/cmd/mixdeck`, ErrBackendNotAvailable)

// stubDevice stands in for the cgo backends
type stubDevice struct {
	name string
}

// NewMalgoDevice returns a device whose Open always fails without cgo
func NewMalgoDevice() Device { return &stubDevice{name: BackendMalgo} }

// NewOtoDevice returns a device whose Open always fails without cgo
func NewOtoDevice() Device { return &stubDevice{name: BackendOto} }

func (d *stubDevice) Name() string                { return d.name }
func (d *stubDevice) Open(want Spec) (Spec, error) { return Spec{}, errCGORequired }
func (d *stubDevice) Start(render RenderFunc) error { return errCGORequired }
func (d *stubDevice) Pause(paused bool)           {}
func (d *stubDevice) Close() error                { return nil }
