package cli

import (
	"bytes"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixdeck.click/internal/audio/audiotest"
	"mixdeck.click/internal/tracking"
)

// testCLI returns a CLI over an in-memory filesystem holding two short sounds
func testCLI(t *testing.T) (*CLI, afero.Fs) {
	t.Helper()
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })
	t.Setenv("MIXDECK_HISTORY", "false")
	t.Setenv("MIXDECK_AUDIO_BACKEND", "headless")

	memFS := afero.NewMemMapFs()
	for name, frames := range map[string]int{"/sounds/click.wav": 2205, "/sounds/boom.wav": 4410} {
		data, err := audiotest.WAV(22050, 1, 16, audiotest.Constant(1, frames, 4000))
		require.NoError(t, err)
		require.NoError(t, afero.WriteFile(memFS, name, data, 0644))
	}
	return NewCLIWithFilesystem(memFS), memFS
}

func run(c *CLI, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := c.Run(append([]string{"mixdeck"}, args...), &bytes.Buffer{}, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func historyDB(t *testing.T, c *CLI) *sql.DB {
	t.Helper()
	db, err := tracking.NewDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c.historyDB = db
	c.ownsHistoryDB = false
	return db
}

func TestVersionFlag(t *testing.T) {
	c, _ := testCLI(t)
	code, out, _ := run(c, "--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "mixdeck version "+Version+"\n", out)
}

func TestFormatsCommand(t *testing.T) {
	c, _ := testCLI(t)
	code, out, _ := run(c, "formats")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Decoders:")
	assert.Contains(t, out, "Music types:    wav, ogg, mp3, flac")
	assert.Contains(t, out, "headless")
}

func TestUnknownCommandFails(t *testing.T) {
	c, _ := testCLI(t)
	code, _, stderr := run(c, "dance")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestPlayHeadless(t *testing.T) {
	c, _ := testCLI(t)
	code, out, stderr := run(c, "play", "--loops", "1", "/sounds/click.wav", "/sounds/boom.wav")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "played 2 sound(s) in")
}

func TestPlayWithRootResolvesInsideLibrary(t *testing.T) {
	c, _ := testCLI(t)
	code, out, stderr := run(c, "play", "--root", "/sounds", "click.wav")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "played 1 sound(s)")

	code, _, stderr = run(c, "play", "--root", "/sounds", "/elsewhere/click.wav")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "failed to load")
}

func TestPlayValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad pan", []string{"play", "--pan", "300,0", "/sounds/click.wav"}, "invalid left pan"},
		{"pan shape", []string{"play", "--pan", "10", "/sounds/click.wav"}, "LEFT,RIGHT"},
		{"loud", []string{"play", "--volume", "129", "/sounds/click.wav"}, "volume must be between 0 and 128"},
		{"loops", []string{"play", "--loops", "-2", "/sounds/click.wav"}, "loops must be >= -1"},
		{"no files", []string{"play"}, "requires at least 1 arg"},
		{"missing file", []string{"play", "/sounds/nope.wav"}, "failed to load /sounds/nope.wav"},
		{"bad backend", []string{"play", "--backend", "alsa", "/sounds/click.wav"}, "audio backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testCLI(t)
			code, _, stderr := run(c, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
}

func TestRenderWritesWAV(t *testing.T) {
	c, memFS := testCLI(t)
	code, out, stderr := run(c, "render", "--pan", "255,0", "/out/mix.wav", "/sounds/click.wav", "/sounds/boom.wav")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "rendered /out/mix.wav:")
	assert.Contains(t, out, "22050 Hz s16, 2 channel(s)")

	data, err := afero.ReadFile(memFS, "/out/mix.wav")
	require.NoError(t, err)
	require.Greater(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	// the longer sound is 200ms, so at least that much is rendered
	assert.GreaterOrEqual(t, len(data)-44, 4410*2*2)
}

func TestRenderSecondsLimit(t *testing.T) {
	c, memFS := testCLI(t)
	code, out, stderr := run(c, "render", "--loops", "-1", "--seconds", "0.5", "--mono", "--frequency", "8000", "/loop.wav", "/sounds/click.wav")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "4000 frames")
	assert.Contains(t, out, "8000 Hz s16, 1 channel(s)")

	info, err := memFS.Stat("/loop.wav")
	require.NoError(t, err)
	assert.Equal(t, int64(44+4000*2), info.Size())
}

func TestRenderValidation(t *testing.T) {
	c, _ := testCLI(t)

	code, _, stderr := run(c, "render", "/out.wav")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "nothing to render")

	code, _, stderr = run(c, "render", "--loops", "-1", "/out.wav", "/sounds/click.wav")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--seconds is required")
}

func TestPlayRecordsHistory(t *testing.T) {
	c, _ := testCLI(t)
	db := historyDB(t, c)

	code, _, stderr := run(c, "play", "/sounds/click.wav")
	require.Equal(t, 0, code, stderr)

	plays, err := tracking.GetRecentPlays(db, tracking.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, "channel_stopped", plays[0].Kind)
	assert.Equal(t, "finished", plays[0].Reason)
	assert.NotEmpty(t, plays[0].SessionID)
}

func TestHistoryCommands(t *testing.T) {
	c, _ := testCLI(t)
	db := historyDB(t, c)

	now := time.Now()
	for i, rec := range []tracking.PlayRecord{
		{Name: "click.wav", Kind: "channel_stopped", Reason: "finished", PlayedMs: 100},
		{Name: "click.wav", Kind: "channel_stopped", Reason: "halted", PlayedMs: 50},
		{Name: "theme.ogg", Kind: "music_stopped", Channel: -1, Reason: "faded", PlayedMs: 30000},
	} {
		rec.Timestamp = now.Add(time.Duration(i-3) * time.Minute)
		rec.SessionID = "s1"
		_, err := tracking.InsertPlay(db, rec)
		require.NoError(t, err)
	}

	code, out, stderr := run(c, "history", "summary")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Play history (last 7 days)")
	assert.Contains(t, out, "Plays:         3")
	assert.Contains(t, out, "Unique sounds: 2")
	assert.Contains(t, out, "finished")

	code, out, _ = run(c, "history", "top", "--limit", "1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "click.wav")
	assert.NotContains(t, out, "theme.ogg")

	code, out, _ = run(c, "history", "recent", "--reason", "faded")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "theme.ogg")
	assert.Contains(t, out, "music")
	assert.NotContains(t, out, "click.wav")

	code, out, _ = run(c, "history", "recent", "--name", "nothing.wav")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No plays recorded.")
}

func TestHistoryDisabled(t *testing.T) {
	c, _ := testCLI(t)
	code, out, _ := run(c, "history", "summary")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Play history is not enabled")
}

func TestPlayFromSoundBank(t *testing.T) {
	c, memFS := testCLI(t)
	require.NoError(t, afero.WriteFile(memFS, "/sounds/bank.json", []byte(`{
		"name": "test",
		"sounds": {"ui/click": "click.wav", "default": "boom.wav"}
	}`), 0644))

	code, out, stderr := run(c, "play", "--bank", "/sounds/bank.json", "ui/click", "ui/missing")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "played 2 sound(s)")

	code, out, stderr = run(c, "render", "--root", "/sounds", "--bank", "/", "/bank.wav", "click")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "rendered /bank.wav")
}
