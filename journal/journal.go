// Package journal keeps an append-only SQLite audit log of element
// notifications and rejected commands. It is a record of what happened, not
// a store the registry can be rebuilt from.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
)

// Schema is applied on open.
const Schema = `
CREATE TABLE IF NOT EXISTS journal (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	event      TEXT NOT NULL,
	element_id TEXT NOT NULL DEFAULT '',
	revision   INTEGER NOT NULL DEFAULT 0,
	kind       TEXT NOT NULL DEFAULT '',
	command    TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_element ON journal(element_id);
`

// Event is the type of a journal entry.
type Event string

const (
	EventCreated  Event = "created"
	EventUpdated  Event = "updated"
	EventRejected Event = "rejected"
)

// Entry is one journal row. Payload holds the JSON snapshot or state.
type Entry struct {
	Seq       int64        `json:"seq"`
	Event     Event        `json:"event"`
	ElementID string       `json:"element_id,omitempty"`
	Revision  uint64       `json:"revision"`
	Kind      failure.Kind `json:"kind,omitempty"`
	Command   string       `json:"command,omitempty"`
	Payload   string       `json:"payload,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Journal is a renderer writing to SQLite.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the journal at path. ":memory:" keeps it in memory.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// One connection: a single writer, and an in-memory database is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	logger.Debug("Journal opened", slog.String("path", path))
	return &Journal{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// OnElementCreated implements registry.Observer.
func (j *Journal) OnElementCreated(snap element.Snapshot) {
	j.record(Entry{
		Event:     EventCreated,
		ElementID: snap.ID,
		Revision:  snap.Revision,
		Payload:   encode(snap),
	})
}

// OnElementUpdated implements registry.Observer.
func (j *Journal) OnElementUpdated(id string, revision uint64, state element.State) {
	j.record(Entry{
		Event:     EventUpdated,
		ElementID: id,
		Revision:  revision,
		Payload:   encode(state),
	})
}

// OnCommandRejected implements interpreter.Renderer.
func (j *Journal) OnCommandRejected(text string, kind failure.Kind, detail string) {
	j.record(Entry{
		Event:   EventRejected,
		Kind:    kind,
		Command: text,
		Payload: detail,
	})
}

func (j *Journal) record(e Entry) {
	if err := j.Append(context.Background(), e); err != nil {
		j.logger.Warn("Failed to write journal entry",
			slog.String("event", string(e.Event)),
			slog.String("error", err.Error()))
	}
}

// Append writes an entry. Seq and CreatedAt are assigned here.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO journal (event, element_id, revision, kind, command, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(e.Event), e.ElementID, int64(e.Revision), string(e.Kind), e.Command, e.Payload,
		j.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest entries, oldest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return j.query(ctx,
		`SELECT * FROM (
			SELECT seq, event, element_id, revision, kind, command, payload, created_at
			FROM journal ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, limit)
}

// ForElement returns every entry about one element, oldest first.
func (j *Journal) ForElement(ctx context.Context, id string) ([]Entry, error) {
	return j.query(ctx,
		`SELECT seq, event, element_id, revision, kind, command, payload, created_at
		 FROM journal WHERE element_id = ? ORDER BY seq ASC`, id)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			event    string
			kind     string
			revision int64
			created  string
		)
		if err := rows.Scan(&e.Seq, &event, &e.ElementID, &revision, &kind, &e.Command, &e.Payload, &created); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Event = Event(event)
		e.Kind = failure.Kind(kind)
		e.Revision = uint64(revision)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse journal timestamp %q: %w", created, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
