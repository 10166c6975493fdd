// Package sqlsink appends history events to a relational audit table. The
// postgres and sqlite sinks are dialects of it.
package sqlsink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/loykin/flowcap/internal/history"
)

// Table is the audit table every SQL sink writes to.
const Table = "recording_events"

var columns = []string{"occurred_at", "type", "session_id", "url", "mode", "format", "output_path", "pid", "status", "error"}

// Dialect is what differs between database/sql drivers.
type Dialect struct {
	Driver       string
	TimeType     string             // column type of occurred_at
	Bind         func(n int) string // placeholder of the n-th argument, 1-based
	MaxOpenConns int
}

// Sink writes one row per event.
type Sink struct {
	db     *sql.DB
	insert string
	count  string
	arg1   string
}

// Open connects with d and creates the table if needed.
func Open(d Dialect, dsn string) (*Sink, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if d.MaxOpenConns > 0 {
		db.SetMaxOpenConns(d.MaxOpenConns)
	}
	binds := make([]string, len(columns))
	for i := range binds {
		binds[i] = d.Bind(i + 1)
	}
	s := &Sink{
		db:     db,
		insert: fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s);", Table, strings.Join(columns, ", "), strings.Join(binds, ", ")),
		count:  fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE session_id = %s;", Table, d.Bind(1)),
		arg1:   d.Bind(1),
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
		occurred_at %s NOT NULL,
		type TEXT NOT NULL,
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		mode TEXT NOT NULL,
		format TEXT NOT NULL,
		output_path TEXT NOT NULL,
		pid INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT
	);`, Table, d.TimeType)
	if _, err := db.ExecContext(context.Background(), ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s: %w", Table, err)
	}
	return s, nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	d := e.Doc()
	var errText sql.NullString
	if d.Error != nil {
		errText = sql.NullString{String: *d.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.insert,
		d.OccurredAt, string(d.Type), d.SessionID, d.URL, d.Mode, d.Format, d.OutputPath, d.PID, d.Status, errText)
	return err
}

// Count returns how many events were recorded for a session.
func (s *Sink) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.count, sessionID).Scan(&n)
	return n, err
}

// LastError is the error text of the newest event of a session that carried one.
func (s *Sink) LastError(ctx context.Context, sessionID string) (string, error) {
	var msg sql.NullString
	q := fmt.Sprintf("SELECT error FROM %s WHERE session_id = %s AND error IS NOT NULL ORDER BY occurred_at DESC LIMIT 1;", Table, s.arg1)
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return msg.String, err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
