// Package storetest holds the behavior every store.Store must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/flowcap/internal/store"
)

// Run exercises s, which must have an empty schema already ensured.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := store.Record{
		SessionID:  "5b7f0c1e-0000-4000-8000-000000000001",
		URL:        "https://www.figma.com/proto/abc/FarsiLang-Demo",
		Mode:       "video",
		Format:     "mp4",
		OutputPath: "/work/recordings/FarsiLang-Demo-1740823200000",
		PID:        4242,
		StartedAt:  started,
		Status:     "recording",
	}
	require.NoError(t, s.RecordStart(ctx, rec))

	got, err := s.GetBySession(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, rec.URL, got.URL)
	assert.Equal(t, 4242, got.PID)
	assert.Equal(t, "recording", got.Status)
	assert.True(t, got.StartedAt.Equal(started), "started_at round-trips: %v", got.StartedAt)
	assert.False(t, got.StoppedAt.Valid)
	assert.False(t, got.Error.Valid)

	stopped := started.Add(90 * time.Second)
	require.NoError(t, s.RecordStop(ctx, rec.SessionID, stopped, "failed", errors.New("exit status 1")))
	got, err = s.GetBySession(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	require.True(t, got.StoppedAt.Valid)
	assert.True(t, got.StoppedAt.Time.Equal(stopped))
	assert.Equal(t, "exit status 1", got.Error.String)

	second := rec
	second.SessionID = "5b7f0c1e-0000-4000-8000-000000000002"
	second.StartedAt = started.Add(time.Hour)
	require.NoError(t, s.RecordStart(ctx, second))

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.SessionID, recent[0].SessionID, "newest first")

	recent, err = s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	_, err = s.GetBySession(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// only finished sessions are purged
	n, err := s.PurgeOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = s.GetBySession(ctx, rec.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetBySession(ctx, second.SessionID)
	assert.NoError(t, err)
}
