package sqlsink

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/loykin/flowcap/internal/history"
	"github.com/loykin/flowcap/internal/store"
)

func memorySink(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(Dialect{
		Driver:       "sqlite",
		TimeType:     "TIMESTAMP",
		Bind:         func(int) string { return "?" },
		MaxOpenConns: 1,
	}, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLifecycleRows(t *testing.T) {
	s := memorySink(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := store.Record{
		SessionID:  "flow-1",
		URL:        "https://www.figma.com/proto/abc",
		Mode:       "video",
		Format:     "mp4",
		OutputPath: "/work/recordings/abc-1",
		PID:        4242,
		StartedAt:  start,
		Status:     "recording",
	}
	require.NoError(t, s.Send(ctx, history.Event{Type: history.EventStart, OccurredAt: start, Record: rec}))

	msg, err := s.LastError(ctx, "flow-1")
	require.NoError(t, err)
	assert.Empty(t, msg)

	rec.Status = "failed"
	rec.StoppedAt = sql.NullTime{Time: start.Add(time.Minute), Valid: true}
	rec.Error = sql.NullString{String: "exit status 1", Valid: true}
	require.NoError(t, s.Send(ctx, history.Event{Type: history.EventExit, OccurredAt: start.Add(time.Minute), Record: rec}))

	n, err := s.Count(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msg, err = s.LastError(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "exit status 1", msg)

	var mode, out string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT mode, output_path FROM recording_events WHERE type = 'exit'`).Scan(&mode, &out))
	assert.Equal(t, "video", mode)
	assert.Equal(t, "/work/recordings/abc-1", out)
}

func TestPlaceholdersFollowDialect(t *testing.T) {
	s := memorySink(t)
	assert.Contains(t, s.insert, "VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	assert.Equal(t, "?", s.arg1)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Dialect{Driver: "nope", Bind: func(int) string { return "?" }}, "x")
	assert.Error(t, err)
}
