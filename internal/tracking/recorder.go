package tracking

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mixdeck.click/internal/mixer"
)

// DefaultRecorderBuffer is the number of events queued before new ones are dropped
const DefaultRecorderBuffer = 256

// PlayRecord is one row of play_events
type PlayRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Channel   int       `json:"channel"`
	Name      string    `json:"name"`
	Reason    string    `json:"reason"`
	PlayedMs  int64     `json:"played_ms"`
}

// InsertPlay stores one record and returns its id
func InsertPlay(db *sql.DB, rec PlayRecord) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	result, err := db.Exec(`
		INSERT INTO play_events (timestamp, session_id, kind, channel, name, reason, played_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Unix(),
		rec.SessionID,
		rec.Kind,
		rec.Channel,
		rec.Name,
		rec.Reason,
		rec.PlayedMs)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Recorder writes engine stop events to the history database. Observe never
// blocks: events are queued to a single writer goroutine and dropped when the
// queue is full. The first write error disables the recorder.
type Recorder struct {
	db        *sql.DB
	sessionID string
	now       func() time.Time

	mu     sync.Mutex
	closed bool
	events chan mixer.Event
	done   chan struct{}

	disabled atomic.Bool
	written  atomic.Int64
	dropped  atomic.Int64
}

// NewRecorder starts a recorder for sessionID with room for buffer queued events
func NewRecorder(db *sql.DB, sessionID string, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultRecorderBuffer
	}
	r := &Recorder{
		db:        db,
		sessionID: sessionID,
		now:       time.Now,
		events:    make(chan mixer.Event, buffer),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// Observe queues ev for writing. Its signature matches mixer.Observer.
func (r *Recorder) Observe(ev mixer.Event) {
	if r.disabled.Load() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		if r.dropped.Add(1) == 1 {
			slog.Warn("history queue full, dropping events", "session_id", r.sessionID)
		}
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.events {
		if r.disabled.Load() {
			continue
		}
		rec := PlayRecord{
			Timestamp: r.now(),
			SessionID: r.sessionID,
			Kind:      string(ev.Kind),
			Channel:   ev.Channel,
			Name:      ev.Name,
			Reason:    string(ev.Reason),
			PlayedMs:  max(ev.PlayedMs, 0),
		}
		id, err := InsertPlay(r.db, rec)
		if err != nil {
			slog.Warn("history recording failed, disabling", "error", err, "name", ev.Name)
			r.disabled.Store(true)
			continue
		}
		r.written.Add(1)
		slog.Debug("history recorded play",
			"session_id", r.sessionID,
			"id", id,
			"name", ev.Name,
			"reason", ev.Reason,
			"played_ms", ev.PlayedMs)
	}
}

// Close stops accepting events and waits for queued ones to be written
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()
	<-r.done
}

// Written returns the number of events stored so far
func (r *Recorder) Written() int64 { return r.written.Load() }

// Dropped returns the number of events discarded because the queue was full
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Disabled reports whether a write error stopped the recorder
func (r *Recorder) Disabled() bool { return r.disabled.Load() }
