package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/flowcap/internal/history"
)

// DefaultTable receives events when the DSN names none.
const DefaultTable = "recording_events"

// Sink sends events to ClickHouse using the official ClickHouse Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

// New connects to addr (host:port of the native protocol) and pings it.
func New(addr, table string, auth clickhouse.Auth) (*Sink, error) {
	if table == "" {
		table = DefaultTable
	}
	if auth.Database == "" {
		auth.Database = "default"
	}
	if auth.Username == "" {
		auth.Username = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: auth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Sink{conn: conn, table: table}, nil
}

// EnsureTable creates the event table when it does not exist yet.
func (s *Sink) EnsureTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		type String,
		occurred_at DateTime64(6),
		session_id String,
		url String,
		mode String,
		format String,
		output_path String,
		pid Int64,
		started_at DateTime64(6),
		stopped_at Nullable(DateTime64(6)),
		status String,
		error Nullable(String)
	) ENGINE = MergeTree()
	ORDER BY (occurred_at, session_id)`, s.table)
	if err := s.conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create ClickHouse table %s: %w", s.table, err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	d := e.Doc()
	query := fmt.Sprintf(`INSERT INTO %s (type, occurred_at, session_id, url, mode, format, output_path, pid, started_at, stopped_at, status, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	err := s.conn.Exec(ctx, query,
		string(d.Type),
		d.OccurredAt,
		d.SessionID,
		d.URL,
		d.Mode,
		d.Format,
		d.OutputPath,
		int64(d.PID),
		d.StartedAt,
		d.StoppedAt,
		d.Status,
		d.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}
