// Package journal records the changes an engine propagates in a SQLite
// database so a session can be inspected or replayed into another engine.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/chosenoffset/zeta/pkg/zeta"
)

//go:embed schema.sql
var schemaSQL string

// Journal is a SQLite-backed change log.
type Journal struct {
	db *sql.DB
}

// Session describes one journaled engine run.
type Session struct {
	ID        string
	Label     string
	StartedAt time.Time
	Changes   int
}

// Entry is one recorded change.
type Entry struct {
	Session    string
	Seq        int64
	Key        string
	NewValue   any
	OldValue   any
	Depth      int
	RecordedAt time.Time
}

// Open creates or opens the journal database at path. The database runs in
// WAL mode behind a single connection.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// NewSession starts a session and returns its id, a UUIDv7 so ids sort by
// start time.
func (j *Journal) NewSession(ctx context.Context, label string) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, label, started_at) VALUES (?, ?, ?)`,
		id, label, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	return id, nil
}

// Record appends change to session. Sequence numbers start at 1.
func (j *Journal) Record(ctx context.Context, session string, change zeta.Change) error {
	newJSON, err := encodeValue(change.NewValue)
	if err != nil {
		return fmt.Errorf("record %s: %w", change.Key, err)
	}
	oldJSON, err := encodeValue(change.OldValue)
	if err != nil {
		return fmt.Errorf("record %s: %w", change.Key, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO changes (session_id, seq, key, new_value, old_value, depth, recorded_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?
		FROM changes WHERE session_id = ?
	`,
		session,
		change.Key,
		newJSON,
		oldJSON,
		change.Depth,
		time.Now().UTC().Format(time.RFC3339Nano),
		session,
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", change.Key, err)
	}
	return nil
}

// Sessions lists every session, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.label, s.started_at, COUNT(c.seq)
		FROM sessions s
		LEFT JOIN changes c ON c.session_id = s.id
		GROUP BY s.id
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var started string
		if err := rows.Scan(&s.ID, &s.Label, &started, &s.Changes); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		if s.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("list sessions: bad timestamp %q: %w", started, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Entries returns the changes of session in sequence order.
func (j *Journal) Entries(ctx context.Context, session string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, key, new_value, old_value, depth, recorded_at
		FROM changes
		WHERE session_id = ?
		ORDER BY seq
	`, session)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e := Entry{Session: session}
		var newJSON, oldJSON, recorded string
		if err := rows.Scan(&e.Seq, &e.Key, &newJSON, &oldJSON, &e.Depth, &recorded); err != nil {
			return nil, fmt.Errorf("read entries: %w", err)
		}
		if e.NewValue, err = decodeValue(newJSON); err != nil {
			return nil, fmt.Errorf("read entries: seq %d: %w", e.Seq, err)
		}
		if e.OldValue, err = decodeValue(oldJSON); err != nil {
			return nil, fmt.Errorf("read entries: seq %d: %w", e.Seq, err)
		}
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded); err != nil {
			return nil, fmt.Errorf("read entries: seq %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Writer receives replayed writes. *zeta.Engine satisfies it.
type Writer interface {
	Write(key string, value any)
}

// Replay writes the session's top-level changes into w in order and returns
// how many it applied. Nested changes (depth > 1) were caused by bindings
// and are left to w's own bindings to reproduce.
func (j *Journal) Replay(ctx context.Context, session string, w Writer) (int, error) {
	entries, err := j.Entries(ctx, session)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}
	applied := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if e.Depth > 1 {
			continue
		}
		w.Write(e.Key, e.NewValue)
		applied++
	}
	return applied, nil
}

// State folds the session into the final value of every key it changed.
func (j *Journal) State(ctx context.Context, session string) (map[string]any, error) {
	entries, err := j.Entries(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	state := make(map[string]any)
	for _, e := range entries {
		state[e.Key] = e.NewValue
	}
	return state, nil
}

// Attach starts a session and records every change engine propagates from
// now on. Recording failures are logged through the engine's logger.
func Attach(ctx context.Context, engine *zeta.Engine, j *Journal, label string) (string, error) {
	session, err := j.NewSession(ctx, label)
	if err != nil {
		return "", err
	}
	engine.OnChange(func(c zeta.Change) {
		if err := j.Record(ctx, session, c); err != nil {
			engine.Logger().Error("journal record failed", "session", session, "key", c.Key, "error", err)
		}
	})
	return session, nil
}
