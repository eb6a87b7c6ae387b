package tracking

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

// QueryFilter represents common query structure for all history commands
type QueryFilter struct {
	// Time filters
	StartTime  *time.Time // Start of time range (inclusive)
	EndTime    *time.Time // End of time range (inclusive)
	Days       int        // Convenience: last N days
	DatePreset string     // Convenience: "today", "yesterday", "week", "month", "all"

	// Content filters
	Name      string // Sound or music name
	Kind      string // channel_stopped or music_stopped
	Reason    string // finished, halted, faded, expired, freed, replaced
	SessionID string // Filter by specific session

	// Output control
	Limit  int // Maximum results, 0 = unlimited
	Offset int // For pagination
}

// ApplyTimeFilter converts QueryFilter time options to Unix timestamps.
// A zero start means no lower bound.
func (q *QueryFilter) ApplyTimeFilter(now time.Time) (startUnix, endUnix int64) {
	endUnix = now.Unix()

	// Priority order: DatePreset > StartTime/EndTime > Days > no filter
	if q.DatePreset != "" {
		start, end, err := ParseDatePreset(q.DatePreset, now)
		if err != nil {
			slog.Warn("invalid date preset, using no time filter", "preset", q.DatePreset, "error", err)
			return 0, endUnix
		}
		if start.IsZero() {
			return 0, end.Unix()
		}
		return start.Unix(), end.Unix()
	}

	if q.StartTime != nil && q.EndTime != nil {
		return q.StartTime.Unix(), q.EndTime.Unix()
	}
	if q.StartTime != nil {
		return q.StartTime.Unix(), endUnix
	}
	if q.EndTime != nil {
		return 0, q.EndTime.Unix()
	}

	if q.Days > 0 {
		return now.AddDate(0, 0, -q.Days).Unix(), endUnix
	}

	return 0, endUnix
}

func (q *QueryFilter) hasTimeFilter() bool {
	return q.StartTime != nil || q.EndTime != nil || q.Days > 0 || q.DatePreset != ""
}

// BuildWhereClause constructs the SQL WHERE clause and arguments for play_events
func (q *QueryFilter) BuildWhereClause(now time.Time) (string, []any) {
	var clauses []string
	var args []any

	if q.hasTimeFilter() {
		startUnix, endUnix := q.ApplyTimeFilter(now)
		if startUnix > 0 {
			clauses = append(clauses, "timestamp >= ?")
			args = append(args, startUnix)
		}
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, endUnix)
	}

	if q.Name != "" {
		clauses = append(clauses, "name = ?")
		args = append(args, q.Name)
	}

	if q.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, q.Kind)
	}

	if q.Reason != "" {
		clauses = append(clauses, "reason = ?")
		args = append(args, q.Reason)
	}

	if q.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, q.SessionID)
	}

	whereClause := strings.Join(clauses, " AND ")
	slog.Debug("built where clause", "clause", whereClause, "arg_count", len(args))
	return whereClause, args
}

// pagination renders LIMIT/OFFSET for the filter
func (q *QueryFilter) pagination() string {
	var out string
	if q.Limit > 0 {
		out += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			out += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}
	return out
}

// ParseDatePreset converts date preset strings to time ranges
func ParseDatePreset(preset string, now time.Time) (start, end time.Time, err error) {
	switch preset {
	case "today":
		start = beginningOfDay(now)
		end = now
	case "yesterday":
		start = beginningOfDay(now.AddDate(0, 0, -1))
		end = beginningOfDay(now)
	case "week", "this-week":
		start = beginningOfWeek(now)
		end = now
	case "last-week":
		start = beginningOfWeek(now).AddDate(0, 0, -7)
		end = beginningOfWeek(now)
	case "month", "this-month":
		start = beginningOfMonth(now)
		end = now
	case "last-month":
		start = beginningOfMonth(now).AddDate(0, -1, 0)
		end = beginningOfMonth(now)
	case "all", "all-time":
		start = time.Time{}
		end = now
	default:
		err = fmt.Errorf("unknown preset: %s", preset)
		return
	}

	slog.Debug("parsed date preset", "preset", preset, "start", start, "end", end)
	return
}

// ParseNaturalDate parses dates like "3 days ago" or "last monday" relative to now
func ParseNaturalDate(naturalDate string, now time.Time) (time.Time, error) {
	result, err := naturaldate.Parse(naturalDate, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse natural date '%s': %w", naturalDate, err)
	}
	slog.Debug("parsed natural language date", "input", naturalDate, "result", result)
	return result, nil
}

func beginningOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// beginningOfWeek returns Monday 00:00 of t's week
func beginningOfWeek(t time.Time) time.Time {
	weekday := t.Weekday()
	if weekday == time.Sunday {
		weekday = 7
	}
	return beginningOfDay(t.AddDate(0, 0, -int(weekday-1)))
}

func beginningOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
