package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/flowcap/internal/store"
)

// DB implements store.Store on PostgreSQL through the pgx stdlib driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recording_sessions(
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			url TEXT NOT NULL,
			mode TEXT NOT NULL,
			format TEXT NOT NULL,
			output_path TEXT NOT NULL,
			pid INTEGER NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			stopped_at TIMESTAMPTZ NULL,
			status TEXT NOT NULL,
			error TEXT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recording_sessions_started ON recording_sessions(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_recording_sessions_status ON recording_sessions(status);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) RecordStart(ctx context.Context, rec store.Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO recording_sessions(session_id, url, mode, format, output_path, pid, started_at, stopped_at, status, error, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,NULL,$8,$9,$10)
		ON CONFLICT(session_id) DO UPDATE SET
			url=EXCLUDED.url,
			mode=EXCLUDED.mode,
			format=EXCLUDED.format,
			output_path=EXCLUDED.output_path,
			pid=EXCLUDED.pid,
			started_at=EXCLUDED.started_at,
			stopped_at=NULL,
			status=EXCLUDED.status,
			error=EXCLUDED.error,
			updated_at=EXCLUDED.updated_at;`,
		rec.SessionID, rec.URL, rec.Mode, rec.Format, rec.OutputPath, rec.PID, rec.StartedAt.UTC(),
		rec.Status, rec.Error, time.Now().UTC())
	return err
}

func (p *DB) RecordStop(ctx context.Context, sessionID string, stoppedAt time.Time, status string, exitErr error) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE recording_sessions
		SET stopped_at=$1, status=$2, error=$3, updated_at=$4
		WHERE session_id=$5;`,
		stoppedAt.UTC(), status, store.ErrString(exitErr), time.Now().UTC(), sessionID)
	return err
}

func (p *DB) GetBySession(ctx context.Context, sessionID string) (store.Record, error) {
	rows, err := p.db.QueryContext(ctx, selectColumns+` WHERE session_id=$1;`, sessionID)
	if err != nil {
		return store.Record{}, err
	}
	defer rows.Close()
	recs, err := scanRecords(rows)
	if err != nil {
		return store.Record{}, err
	}
	if len(recs) == 0 {
		return store.Record{}, store.ErrNotFound
	}
	return recs[0], nil
}

func (p *DB) Recent(ctx context.Context, limit int) ([]store.Record, error) {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	rows, err := p.db.QueryContext(ctx, selectColumns+` ORDER BY started_at DESC, id DESC LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (p *DB) PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM recording_sessions WHERE stopped_at IS NOT NULL AND updated_at < $1;`, olderThan.UTC())
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
