package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loykin/flowcap/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// one connection: keeps ":memory:" databases shared and serializes writers
	d.SetMaxOpenConns(1)
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recording_sessions(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL UNIQUE,
			url TEXT NOT NULL,
			mode TEXT NOT NULL,
			format TEXT NOT NULL,
			output_path TEXT NOT NULL,
			pid INTEGER NOT NULL,
			started_at TIMESTAMP NOT NULL,
			stopped_at TIMESTAMP NULL,
			status TEXT NOT NULL,
			error TEXT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recording_sessions_started ON recording_sessions(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_recording_sessions_status ON recording_sessions(status);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) RecordStart(ctx context.Context, rec store.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recording_sessions(session_id, url, mode, format, output_path, pid, started_at, stopped_at, status, error, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			url=excluded.url,
			mode=excluded.mode,
			format=excluded.format,
			output_path=excluded.output_path,
			pid=excluded.pid,
			started_at=excluded.started_at,
			stopped_at=NULL,
			status=excluded.status,
			error=excluded.error,
			updated_at=excluded.updated_at;`,
		rec.SessionID, rec.URL, rec.Mode, rec.Format, rec.OutputPath, rec.PID, rec.StartedAt.UTC(),
		rec.Status, rec.Error, time.Now().UTC())
	return err
}

func (s *DB) RecordStop(ctx context.Context, sessionID string, stoppedAt time.Time, status string, exitErr error) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE recording_sessions
		SET stopped_at=?, status=?, error=?, updated_at=?
		WHERE session_id=?;`,
		stoppedAt.UTC(), status, store.ErrString(exitErr), time.Now().UTC(), sessionID)
	return err
}

func (s *DB) GetBySession(ctx context.Context, sessionID string) (store.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE session_id=?;`, sessionID)
	if err != nil {
		return store.Record{}, err
	}
	defer func() { _ = rows.Close() }()
	recs, err := scanRecords(rows)
	if err != nil {
		return store.Record{}, err
	}
	if len(recs) == 0 {
		return store.Record{}, store.ErrNotFound
	}
	return recs[0], nil
}

func (s *DB) Recent(ctx context.Context, limit int) ([]store.Record, error) {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY started_at DESC, id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

func (s *DB) PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recording_sessions WHERE stopped_at IS NOT NULL AND updated_at < ?;`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const selectColumns = `
		SELECT id, session_id, url, mode, format, output_path, pid, started_at, stopped_at, status, error, updated_at
		FROM recording_sessions`

func scanRecords(rows *sql.Rows) ([]store.Record, error) {
	out := make([]store.Record, 0)
	for rows.Next() {
		var r store.Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.URL, &r.Mode, &r.Format, &r.OutputPath, &r.PID,
			&r.StartedAt, &r.StoppedAt, &r.Status, &r.Error, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
