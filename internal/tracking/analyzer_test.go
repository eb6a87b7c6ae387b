package tracking

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPlays(t *testing.T, db *sql.DB) time.Time {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	rows := []PlayRecord{
		{Timestamp: now.Add(-time.Minute), SessionID: "a", Kind: "channel_stopped", Channel: 0, Name: "click.wav", Reason: "finished", PlayedMs: 100},
		{Timestamp: now.Add(-2 * time.Minute), SessionID: "a", Kind: "channel_stopped", Channel: 1, Name: "click.wav", Reason: "finished", PlayedMs: 100},
		{Timestamp: now.Add(-3 * time.Minute), SessionID: "b", Kind: "channel_stopped", Channel: 0, Name: "click.wav", Reason: "halted", PlayedMs: 40},
		{Timestamp: now.Add(-4 * time.Minute), SessionID: "b", Kind: "channel_stopped", Channel: 2, Name: "boom.wav", Reason: "faded", PlayedMs: 700},
		{Timestamp: now.AddDate(0, 0, -10), SessionID: "old", Kind: "music_stopped", Channel: -1, Name: "theme.ogg", Reason: "finished", PlayedMs: 60000},
	}
	for _, r := range rows {
		_, err := InsertPlay(db, r)
		require.NoError(t, err)
	}
	return now
}

func TestGetSummary(t *testing.T) {
	db := setupTestDB(t)
	seedPlays(t, db)

	summary, err := GetSummary(db, QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalPlays)
	assert.Equal(t, 3, summary.UniqueSounds)
	assert.Equal(t, 3, summary.Sessions)
	assert.Equal(t, int64(60940), summary.TotalPlayedMs)
	assert.Equal(t, map[string]int{"finished": 3, "halted": 1, "faded": 1}, summary.ByReason)

	recent, err := GetSummary(db, QueryFilter{Days: 7})
	require.NoError(t, err)
	assert.Equal(t, 4, recent.TotalPlays)
	assert.Equal(t, 2, recent.Sessions)
}

func TestGetSummaryEmpty(t *testing.T) {
	db := setupTestDB(t)
	summary, err := GetSummary(db, QueryFilter{})
	require.NoError(t, err)
	assert.Zero(t, summary.TotalPlays)
	assert.Zero(t, summary.TotalPlayedMs)
	assert.Empty(t, summary.ByReason)
}

func TestGetTopSounds(t *testing.T) {
	db := setupTestDB(t)
	now := seedPlays(t, db)

	top, err := GetTopSounds(db, QueryFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "click.wav", top[0].Name)
	assert.Equal(t, 3, top[0].Plays)
	assert.Equal(t, int64(240), top[0].TotalPlayedMs)
	assert.InDelta(t, 80, top[0].AvgPlayedMs, 0.001)
	assert.True(t, now.Add(-time.Minute).Equal(top[0].LastPlayed))
	// Ties on count order by name
	assert.Equal(t, "boom.wav", top[1].Name)

	music, err := GetTopSounds(db, QueryFilter{Kind: "music_stopped"})
	require.NoError(t, err)
	require.Len(t, music, 1)
	assert.Equal(t, "theme.ogg", music[0].Name)
}

func TestGetReasonDistribution(t *testing.T) {
	db := setupTestDB(t)
	seedPlays(t, db)

	shares, err := GetReasonDistribution(db, QueryFilter{Name: "click.wav"})
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.Equal(t, ReasonShare{Reason: "finished", Count: 2, Percentage: 200.0 / 3}, shares[0])
	assert.Equal(t, "halted", shares[1].Reason)
}

func TestGetRecentPlaysPagination(t *testing.T) {
	db := setupTestDB(t)
	seedPlays(t, db)

	page, err := GetRecentPlays(db, QueryFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 1, page[0].Channel)
	assert.Equal(t, int64(40), page[1].PlayedMs)

	bySession, err := GetRecentPlays(db, QueryFilter{SessionID: "old"})
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, "theme.ogg", bySession[0].Name)
}

func TestAnalyzerNilDatabase(t *testing.T) {
	_, err := GetSummary(nil, QueryFilter{})
	assert.Error(t, err)
	_, err = GetTopSounds(nil, QueryFilter{})
	assert.Error(t, err)
	_, err = GetReasonDistribution(nil, QueryFilter{})
	assert.Error(t, err)
	_, err = GetRecentPlays(nil, QueryFilter{})
	assert.Error(t, err)
}
