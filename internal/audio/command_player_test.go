//go:build unix

package audio

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandPlayerRunsToCompletion(t *testing.T) {
	if !CommandExists("cat") {
		t.Skip("cat not available")
	}

	exited := make(chan error, 1)
	source := NewReaderSource(io.NopCloser(strings.NewReader("payload")), "wav")
	player, err := StartCommand("cat", source, func(err error) { exited <- err })
	require.NoError(t, err)

	select {
	case err := <-exited:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command did not exit")
	}
	<-player.Done()
	assert.NoError(t, player.Err())
}

func TestCommandPlayerPauseResumeStop(t *testing.T) {
	if !CommandExists("tail") {
		t.Skip("tail not available")
	}

	exited := make(chan struct{})
	source := NewReaderSource(io.NopCloser(strings.NewReader("x")), "raw")
	player, err := StartCommand("tail -f", source, func(error) { close(exited) })
	require.NoError(t, err)

	require.NoError(t, player.Pause())
	require.NoError(t, player.Pause(), "pausing twice is a no-op")
	require.NoError(t, player.Resume())
	require.NoError(t, player.Pause())

	// A stopped process must still terminate
	player.Stop()
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("exit callback not called")
	}

	player.Stop()
	assert.NoError(t, player.Resume(), "resume after stop is a no-op")
}

func TestStartCommandRejectsEmptyCommand(t *testing.T) {
	_, err := StartCommand("  ", NewReaderSource(io.NopCloser(strings.NewReader("")), "wav"), nil)
	assert.ErrorIs(t, err, ErrBackendNotAvailable)
}

func TestCommandPlayerTerminateKillsStubbornProcess(t *testing.T) {
	if !CommandExists("sh") || !CommandExists("sleep") {
		t.Skip("sh or sleep not available")
	}
	grace := commandKillGrace
	commandKillGrace = 100 * time.Millisecond
	defer func() { commandKillGrace = grace }()

	script := filepath.Join(t.TempDir(), "stubborn-player")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ntrap '' TERM\nsleep 5\n"), 0755))

	player, err := StartCommand(script, NewReaderSource(io.NopCloser(strings.NewReader("x")), "wav"), nil)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	player.Terminate()
	assert.Less(t, time.Since(start), 50*time.Millisecond, "Terminate must not wait for the process")

	select {
	case <-player.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("process ignoring SIGTERM was not killed")
	}

	// Stop after Terminate returns once the process is gone
	player.Stop()
	player.Terminate()
}
