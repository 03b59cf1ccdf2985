package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const dbName = "stockline.db"

// Journal is a local append-only log of what the client did: sign-ins,
// queries, scans, submissions. It never blocks a workflow; callers treat
// append errors as advisory.
type Journal struct {
	DB  *sql.DB
	Now func() time.Time
}

// Event is one journal row.
type Event struct {
	ID      int64
	TS      string
	Type    string
	Payload map[string]any
}

func workspaceDir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".stockline")
}

// Path returns the journal db path for the workspace.
func Path(workspace string) string {
	return filepath.Join(workspaceDir(workspace), dbName)
}

// Open opens the journal database, creating the workspace dir and schema if
// missing.
func Open(workspace string) (*Journal, error) {
	if err := os.MkdirAll(workspaceDir(workspace), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", Path(workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	j := &Journal{DB: conn, Now: time.Now}
	if err := j.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	_, err := j.DB.Exec(`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		type TEXT NOT NULL,
		payload_json TEXT NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("create events: %w", err)
	}
	return nil
}

func (j *Journal) Close() error {
	return j.DB.Close()
}

// Append records one event.
func (j *Journal) Append(ctx context.Context, evtType string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	now := j.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err = j.DB.ExecContext(ctx,
		`INSERT INTO events(ts,type,payload_json) VALUES (?,?,?)`,
		ts, evtType, string(data))
	return err
}

// Tail returns the newest n events, newest first. evtType filters when
// non-empty.
func (j *Journal) Tail(ctx context.Context, n int, evtType string) ([]Event, error) {
	if n <= 0 {
		n = 20
	}
	query := `SELECT id, ts, type, payload_json FROM events`
	args := []any{}
	if evtType != "" {
		query += ` WHERE type = ?`
		args = append(args, evtType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, n)

	rows, err := j.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var raw string
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode event %d payload: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
