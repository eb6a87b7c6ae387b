//go:build !unix

package audio

import (
	"os"
)

func suspendProcess(p *os.Process) error {
	return ErrCommandControlUnsupported
}

func continueProcess(p *os.Process) error {
	return ErrCommandControlUnsupported
}

func terminateProcess(p *os.Process, paused bool) error {
	return p.Kill()
}
