package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"mixdeck.click/internal/mixer"
)

// TerminalDetector defines the interface for terminal detection
type TerminalDetector interface {
	IsTerminal(fd int) bool
}

// DefaultTerminalDetector is the default implementation using golang.org/x/term
type DefaultTerminalDetector struct{}

// IsTerminal implements TerminalDetector interface
func (d *DefaultTerminalDetector) IsTerminal(fd int) bool {
	isTerminal := term.IsTerminal(fd)
	slog.Debug("terminal detection result", "fd", fd, "is_terminal", isTerminal)
	return isTerminal
}

// isInteractiveTerminal checks if the given file descriptor is an interactive terminal
func (c *CLI) isInteractiveTerminal(fd int) bool {
	if c.terminalDetector == nil {
		c.terminalDetector = &DefaultTerminalDetector{}
	}
	return c.terminalDetector.IsTerminal(fd)
}

// progress redraws a one-line status while playback runs. It stays silent
// unless w is the process's stdout attached to a terminal.
type progress struct {
	w       io.Writer
	enabled bool
	drawn   bool
}

func (c *CLI) newProgress(w io.Writer) *progress {
	enabled := false
	if f, ok := w.(*os.File); ok && f == os.Stdout {
		enabled = c.isInteractiveTerminal(int(f.Fd()))
	}
	return &progress{w: w, enabled: enabled}
}

func (p *progress) update(e *mixer.Engine) {
	if !p.enabled {
		return
	}
	music := "off"
	switch {
	case e.PausedMusic():
		music = "paused"
	case e.FadingMusic() != mixer.NoFading:
		music = e.FadingMusic().String()
	case e.PlayingMusic():
		music = "on"
	}
	fmt.Fprintf(p.w, "\r%8s  channels %d/%d  music %-10s",
		formatMs(e.Ticks()), e.Playing(mixer.AllChannels), e.AllocateChannels(-1), music)
	p.drawn = true
}

func (p *progress) finish() {
	if p.drawn {
		fmt.Fprintln(p.w)
	}
}
