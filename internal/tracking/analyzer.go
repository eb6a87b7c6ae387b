package tracking

import (
	"database/sql"
	"fmt"
	"time"
)

// Summary provides overall playback statistics
type Summary struct {
	TotalPlays    int            `json:"total_plays"`
	UniqueSounds  int            `json:"unique_sounds"`
	Sessions      int            `json:"sessions"`
	TotalPlayedMs int64          `json:"total_played_ms"`
	ByReason      map[string]int `json:"by_reason"`
}

// SoundStat aggregates the plays of one sound
type SoundStat struct {
	Name          string    `json:"name"`
	Plays         int       `json:"plays"`
	TotalPlayedMs int64     `json:"total_played_ms"`
	AvgPlayedMs   float64   `json:"avg_played_ms"`
	LastPlayed    time.Time `json:"last_played"`
}

// ReasonShare is the share of plays that ended for one reason
type ReasonShare struct {
	Reason     string  `json:"reason"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

func withWhere(query string, filter QueryFilter) (string, []any) {
	whereClause, args := filter.BuildWhereClause(time.Now())
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	return query, args
}

// GetSummary returns totals for the plays matching filter
func GetSummary(db *sql.DB, filter QueryFilter) (*Summary, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query, args := withWhere(`
		SELECT
			COUNT(*),
			COUNT(DISTINCT name),
			COUNT(DISTINCT session_id),
			COALESCE(SUM(played_ms), 0)
		FROM play_events`, filter)

	summary := &Summary{ByReason: make(map[string]int)}
	err := db.QueryRow(query, args...).Scan(&summary.TotalPlays, &summary.UniqueSounds, &summary.Sessions, &summary.TotalPlayedMs)
	if err != nil {
		return nil, fmt.Errorf("failed to query play summary: %w", err)
	}

	shares, err := GetReasonDistribution(db, filter)
	if err != nil {
		return nil, err
	}
	for _, s := range shares {
		summary.ByReason[s.Reason] = s.Count
	}

	return summary, nil
}

// GetTopSounds returns sounds ordered by play count, most played first
func GetTopSounds(db *sql.DB, filter QueryFilter) ([]SoundStat, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query, args := withWhere(`
		SELECT
			name,
			COUNT(*) AS plays,
			SUM(played_ms),
			AVG(played_ms),
			MAX(timestamp)
		FROM play_events`, filter)
	query += `
		GROUP BY name
		ORDER BY plays DESC, name ASC` + filter.pagination()

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top sounds: %w", err)
	}
	defer rows.Close()

	var results []SoundStat
	for rows.Next() {
		var stat SoundStat
		var last int64
		if err := rows.Scan(&stat.Name, &stat.Plays, &stat.TotalPlayedMs, &stat.AvgPlayedMs, &last); err != nil {
			return nil, fmt.Errorf("failed to scan top sound row: %w", err)
		}
		stat.LastPlayed = time.Unix(last, 0)
		results = append(results, stat)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top sound rows: %w", err)
	}

	return results, nil
}

// GetReasonDistribution returns how plays ended, most common reason first
func GetReasonDistribution(db *sql.DB, filter QueryFilter) ([]ReasonShare, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query, args := withWhere(`SELECT reason, COUNT(*) AS count FROM play_events`, filter)
	query += `
		GROUP BY reason
		ORDER BY count DESC, reason ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reason distribution: %w", err)
	}
	defer rows.Close()

	var results []ReasonShare
	total := 0
	for rows.Next() {
		var share ReasonShare
		if err := rows.Scan(&share.Reason, &share.Count); err != nil {
			return nil, fmt.Errorf("failed to scan reason row: %w", err)
		}
		total += share.Count
		results = append(results, share)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reason rows: %w", err)
	}

	for i := range results {
		results[i].Percentage = float64(results[i].Count) * 100 / float64(total)
	}
	return results, nil
}

// GetRecentPlays returns matching plays, newest first
func GetRecentPlays(db *sql.DB, filter QueryFilter) ([]PlayRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query, args := withWhere(`
		SELECT id, timestamp, session_id, kind, channel, name, reason, played_ms
		FROM play_events`, filter)
	query += `
		ORDER BY timestamp DESC, id DESC` + filter.pagination()

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent plays: %w", err)
	}
	defer rows.Close()

	var results []PlayRecord
	for rows.Next() {
		var rec PlayRecord
		var ts int64
		if err := rows.Scan(&rec.ID, &ts, &rec.SessionID, &rec.Kind, &rec.Channel, &rec.Name, &rec.Reason, &rec.PlayedMs); err != nil {
			return nil, fmt.Errorf("failed to scan play row: %w", err)
		}
		rec.Timestamp = time.Unix(ts, 0)
		results = append(results, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating play rows: %w", err)
	}

	return results, nil
}
