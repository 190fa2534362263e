package game

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gaia-mud/gaia/pkg/events"
)

// Scrollback records delivered output per target object in SQLite so a
// reconnecting user can replay what they missed.
type Scrollback struct {
	db   *sql.DB
	logf func(format string, args ...any)

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// ScrollbackRow is one stored line of output.
type ScrollbackRow struct {
	At     time.Time
	Source string
	Text   string
}

// OpenScrollback opens (or creates) the scrollback database.
func OpenScrollback(path string, logf func(format string, args ...any)) (*Scrollback, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("scrollback: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("scrollback: set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("scrollback: set busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS scrollback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("scrollback: create table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS scrollback_target_at
		ON scrollback (target, at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("scrollback: create index: %w", err)
	}
	return &Scrollback{db: db, logf: logf, done: make(chan struct{})}, nil
}

// Attach registers the scrollback writer as a global bus subscriber.
func (sb *Scrollback) Attach(bus *events.Bus) {
	bus.SubscribeGlobal(sb)
	sb.logf("scrollback: writer registered on event bus")
}

// Receive implements events.Subscriber. Text and message events aimed
// at an object are stored; transport chatter is not.
func (sb *Scrollback) Receive(ev events.Event) {
	if ev.Type != events.EvText && ev.Type != events.EvMessage {
		return
	}
	if ev.Target == "" || ev.Text == "" {
		return
	}
	_, err := sb.db.Exec(
		"INSERT INTO scrollback (target, source, text, at) VALUES (?, ?, ?, ?)",
		ev.Target, ev.Source, ev.Text, time.Now().Unix(),
	)
	if err != nil {
		sb.logf("scrollback: insert: %v", err)
	}
}

// Closed implements events.Subscriber.
func (sb *Scrollback) Closed() bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.closed
}

var _ events.Subscriber = (*Scrollback)(nil)

// Recent returns up to limit stored lines for targetID, oldest first.
func (sb *Scrollback) Recent(targetID string, limit int) ([]ScrollbackRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := sb.db.Query(
		`SELECT source, text, at FROM (
			SELECT source, text, at, id FROM scrollback
			WHERE target = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		targetID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("scrollback: query: %w", err)
	}
	defer rows.Close()

	var out []ScrollbackRow
	for rows.Next() {
		var r ScrollbackRow
		var at int64
		if err := rows.Scan(&r.Source, &r.Text, &at); err != nil {
			return nil, fmt.Errorf("scrollback: scan: %w", err)
		}
		r.At = time.Unix(at, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Purge deletes entries older than retention. Returns the number of
// rows removed.
func (sb *Scrollback) Purge(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	res, err := sb.db.Exec("DELETE FROM scrollback WHERE at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("scrollback: purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartRetention begins an hourly purge of entries past retention.
func (sb *Scrollback) StartRetention(retention time.Duration) {
	if retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				purged, err := sb.Purge(retention)
				if err != nil {
					sb.logf("scrollback: retention: %v", err)
					continue
				}
				if purged > 0 {
					sb.logf("scrollback: purged %d old entries", purged)
				}
			case <-sb.done:
				return
			}
		}
	}()
}

// Close marks the writer closed and shuts the database down.
func (sb *Scrollback) Close() error {
	sb.mu.Lock()
	if sb.closed {
		sb.mu.Unlock()
		return nil
	}
	sb.closed = true
	sb.mu.Unlock()
	close(sb.done)
	return sb.db.Close()
}
