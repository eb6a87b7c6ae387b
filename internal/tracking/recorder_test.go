package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixdeck.click/internal/mixer"
)

func TestRecorderWritesEvents(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db, "session-1", 0)
	stamp := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return stamp }

	rec.Observe(mixer.Event{Kind: mixer.EventChannelStopped, Channel: 3, Name: "click.wav", Reason: mixer.ReasonFinished, PlayedMs: 250})
	rec.Observe(mixer.Event{Kind: mixer.EventMusicStopped, Channel: -1, Name: "theme.ogg", Reason: mixer.ReasonFaded, PlayedMs: 9000})
	rec.Close()

	assert.Equal(t, int64(2), rec.Written())
	assert.False(t, rec.Disabled())

	plays, err := GetRecentPlays(db, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, plays, 2)
	assert.Equal(t, "theme.ogg", plays[0].Name, "newest first")
	assert.Equal(t, -1, plays[0].Channel)
	assert.Equal(t, "music_stopped", plays[0].Kind)
	assert.Equal(t, "click.wav", plays[1].Name)
	assert.Equal(t, 3, plays[1].Channel)
	assert.Equal(t, "finished", plays[1].Reason)
	assert.Equal(t, int64(250), plays[1].PlayedMs)
	assert.Equal(t, "session-1", plays[1].SessionID)
	assert.True(t, stamp.Equal(plays[1].Timestamp))
}

func TestRecorderIgnoresEventsAfterClose(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db, "s", 4)
	rec.Close()
	rec.Close()

	rec.Observe(mixer.Event{Kind: mixer.EventChannelStopped, Name: "late.wav", Reason: mixer.ReasonHalted})
	assert.Zero(t, rec.Written())
}

func TestRecorderDisablesOnWriteError(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db, "s", 4)
	rec.Observe(mixer.Event{Kind: "bogus", Name: "x.wav", Reason: mixer.ReasonFinished})
	rec.Close()

	assert.True(t, rec.Disabled())
	assert.Zero(t, rec.Written())
}

func TestRecorderAsEngineObserver(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db, "engine", 16)

	e, err := mixer.Open(mixer.Options{})
	require.NoError(t, err)
	e.AddObserver(rec.Observe)

	chunk, err := e.QuickLoadRAW(make([]byte, 64))
	require.NoError(t, err)
	_, err = e.PlayChannel(1, chunk, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, e.HaltChannel(1))
	require.NoError(t, e.Close())
	rec.Close()

	summary, err := GetSummary(db, QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalPlays)
	assert.Equal(t, map[string]int{"halted": 1}, summary.ByReason)
}
