// Package journal is an optional append-only record of KLAP/XOR protocol
// events (handshake attempts, sequence numbers sent, failures), kept for
// field diagnostics. It is adapted from the teacher's energy-reading
// SQLite store, but it is explicitly not session persistence: no key
// material, seed, or auth hash is ever written here, and a Journal
// carries no relationship to KlapSession's in-memory state (spec.md
// Non-goals exclude "persisting sessions across process restarts").
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Journal records protocol events to a SQLite database.
type Journal struct {
	db *sql.DB
}

// Event is one row of the protocol event log.
type Event struct {
	ID        int64
	Timestamp time.Time
	Host      string
	Variant   string
	Kind      string // "handshake" or "request"
	Seq       int64
	Detail    string
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	j := &Journal{db: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	return j, nil
}

func (j *Journal) init() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		host TEXT NOT NULL,
		variant TEXT NOT NULL,
		kind TEXT NOT NULL,
		seq INTEGER NOT NULL,
		detail TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_host ON events(host);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(timestamp);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends one event row.
func (j *Journal) Record(host, variant, kind string, seq int64, detail string) error {
	_, err := j.db.Exec(
		"INSERT INTO events (timestamp, host, variant, kind, seq, detail) VALUES (?, ?, ?, ?, ?, ?)",
		time.Now().UTC(), host, variant, kind, seq, detail,
	)
	return err
}

// Recent returns the most recent n events for host, newest first.
func (j *Journal) Recent(host string, n int) ([]Event, error) {
	rows, err := j.db.Query(
		"SELECT id, timestamp, host, variant, kind, seq, detail FROM events WHERE host = ? ORDER BY timestamp DESC LIMIT ?",
		host, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Host, &e.Variant, &e.Kind, &e.Seq, &e.Detail); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}
