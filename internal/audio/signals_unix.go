//go:build unix

package audio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func suspendProcess(p *os.Process) error {
	if err := p.Signal(unix.SIGSTOP); err != nil {
		return fmt.Errorf("failed to stop music command: %w", err)
	}
	return nil
}

func continueProcess(p *os.Process) error {
	if err := p.Signal(unix.SIGCONT); err != nil {
		return fmt.Errorf("failed to continue music command: %w", err)
	}
	return nil
}

// terminateProcess sends SIGTERM; a stopped process needs SIGCONT to act on it
func terminateProcess(p *os.Process, paused bool) error {
	if err := p.Signal(unix.SIGTERM); err != nil {
		return err
	}
	if paused {
		return p.Signal(unix.SIGCONT)
	}
	return nil
}
