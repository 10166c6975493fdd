package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a session.
var ErrNotFound = errors.New("recording session not found in store")

// Record is the persisted history of one recording session.
// SessionID is unique. Status mirrors the session status reported to the UI
// ("recording", "completed", "failed"). Times are stored in UTC.
type Record struct {
	ID         int64
	SessionID  string
	URL        string
	Mode       string
	Format     string
	OutputPath string
	PID        int
	StartedAt  time.Time
	StoppedAt  sql.NullTime
	Status     string
	Error      sql.NullString
	UpdatedAt  time.Time
}

// Store persists session history so it survives restarts of the app.
type Store interface {
	EnsureSchema(ctx context.Context) error
	RecordStart(ctx context.Context, rec Record) error
	RecordStop(ctx context.Context, sessionID string, stoppedAt time.Time, status string, exitErr error) error
	GetBySession(ctx context.Context, sessionID string) (Record, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
	PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

// DefaultRecentLimit caps Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 50

// ErrString converts an exit error into a nullable column value.
func ErrString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
