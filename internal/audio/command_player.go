package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrCommandControlUnsupported is returned by Pause/Resume on platforms
// without job-control signals
var ErrCommandControlUnsupported = errors.New("process pause/resume not supported on this platform")

// commandKillGrace is how long a terminated command may take to exit
var commandKillGrace = 2 * time.Second

// CommandPlayer plays one file by running an external command line with the
// file path appended as the last argument
type CommandPlayer struct {
	commandLine string
	cmd         *exec.Cmd
	tempPath    string
	done        chan struct{}
	mutex       sync.Mutex
	paused      bool
	stopped     bool
	exitErr     error
}

// StartCommand launches commandLine for source. onExit runs on a separate
// goroutine once the process has exited, whatever the reason.
func StartCommand(commandLine string, source AudioSource, onExit func(err error)) (*CommandPlayer, error) {
	args := strings.Fields(commandLine)
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty music command", ErrBackendNotAvailable)
	}

	player := &CommandPlayer{
		commandLine: commandLine,
		done:        make(chan struct{}),
	}

	path, err := source.AsFilePath()
	if err != nil {
		// Readers and non-OS filesystems go through a temporary file
		path, err = player.writeTempFile(source)
		if err != nil {
			return nil, err
		}
	}

	args = append(args, path)
	slog.Debug("starting music command", "command", args[0], "file", path)

	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		player.cleanup()
		slog.Error("music command failed to start", "command", args[0], "error", err)
		return nil, fmt.Errorf("failed to start music command: %w", err)
	}
	player.cmd = cmd

	go func() {
		err := cmd.Wait()
		player.mutex.Lock()
		stopped := player.stopped
		player.exitErr = err
		player.mutex.Unlock()
		player.cleanup()

		if err != nil && !stopped {
			slog.Warn("music command exited with error", "command", args[0], "error", err)
		} else {
			slog.Debug("music command exited", "command", args[0], "stopped", stopped)
		}
		close(player.done)
		if onExit != nil {
			onExit(err)
		}
	}()

	return player, nil
}

func (p *CommandPlayer) writeTempFile(source AudioSource) (string, error) {
	reader, format, err := source.AsReader()
	if err != nil {
		slog.Error("failed to get reader from source", "error", err)
		return "", fmt.Errorf("failed to get audio data from source: %w", err)
	}
	defer reader.Close()

	tempFile, err := os.CreateTemp("", "mixdeck-music-*."+format)
	if err != nil {
		slog.Error("failed to create temporary file", "format", format, "error", err)
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	p.tempPath = tempFile.Name()

	if _, err := io.Copy(tempFile, reader); err != nil {
		tempFile.Close()
		p.cleanup()
		slog.Error("failed to write audio data to temporary file", "path", p.tempPath, "error", err)
		return "", fmt.Errorf("failed to write audio data to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		p.cleanup()
		return "", fmt.Errorf("failed to close temporary file: %w", err)
	}

	slog.Debug("temporary file created successfully", "path", p.tempPath, "format", format)
	return p.tempPath, nil
}

func (p *CommandPlayer) cleanup() {
	if p.tempPath == "" {
		return
	}
	if err := os.Remove(p.tempPath); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to remove temporary file", "path", p.tempPath, "error", err)
	}
}

// Pause suspends the process
func (p *CommandPlayer) Pause() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.paused || p.stopped {
		return nil
	}
	if err := suspendProcess(p.cmd.Process); err != nil {
		return err
	}
	p.paused = true
	return nil
}

// Resume continues a suspended process
func (p *CommandPlayer) Resume() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.paused || p.stopped {
		return nil
	}
	if err := continueProcess(p.cmd.Process); err != nil {
		return err
	}
	p.paused = false
	return nil
}

// Terminate asks the process to exit and returns at once. A process still
// running after commandKillGrace is killed.
func (p *CommandPlayer) Terminate() {
	p.mutex.Lock()
	if p.stopped {
		p.mutex.Unlock()
		return
	}
	p.stopped = true
	wasPaused := p.paused
	p.mutex.Unlock()

	if err := terminateProcess(p.cmd.Process, wasPaused); err != nil {
		slog.Debug("failed to signal music command", "error", err)
	}

	go func() {
		select {
		case <-p.done:
		case <-time.After(commandKillGrace):
			slog.Warn("music command ignored termination, killing", "command", p.commandLine)
			if err := p.cmd.Process.Kill(); err != nil {
				slog.Debug("failed to kill music command", "error", err)
			}
		}
	}()
}

// Stop terminates the process and waits for it to exit
func (p *CommandPlayer) Stop() {
	p.Terminate()
	<-p.done
}

// Done is closed once the process has exited
func (p *CommandPlayer) Done() <-chan struct{} {
	return p.done
}

// Err returns the process exit error once Done is closed
func (p *CommandPlayer) Err() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.exitErr
}
