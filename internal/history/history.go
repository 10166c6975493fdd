package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/flowcap/internal/store"
)

// EventType defines the kind of session lifecycle event.
type EventType string

const (
	// EventStart is emitted once the recorder process is spawned.
	EventStart EventType = "start"
	// EventStop is emitted when a session is stopped on request.
	EventStop EventType = "stop"
	// EventExit is emitted when the recorder is observed to have exited on its own.
	EventExit EventType = "exit"
)

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType    `json:"type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Record     store.Record `json:"record"`
}

// Doc is the flat, JSON friendly form of an Event shared by every sink.
type Doc struct {
	Type       EventType  `json:"type"`
	OccurredAt time.Time  `json:"occurred_at"`
	SessionID  string     `json:"session_id"`
	URL        string     `json:"url"`
	Mode       string     `json:"mode"`
	Format     string     `json:"format"`
	OutputPath string     `json:"output_path"`
	PID        int        `json:"pid"`
	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
}

func (e Event) Doc() Doc {
	r := e.Record
	d := Doc{
		Type:       e.Type,
		OccurredAt: e.OccurredAt.UTC(),
		SessionID:  r.SessionID,
		URL:        r.URL,
		Mode:       r.Mode,
		Format:     r.Format,
		OutputPath: r.OutputPath,
		PID:        r.PID,
		StartedAt:  r.StartedAt.UTC(),
		Status:     r.Status,
	}
	if r.StoppedAt.Valid {
		t := r.StoppedAt.Time.UTC()
		d.StoppedAt = &t
	}
	if r.Error.Valid {
		s := r.Error.String
		d.Error = &s
	}
	return d
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Multi fans an event out to several sinks.
type Multi []Sink

// Send delivers e to every sink and joins the failures.
func (m Multi) Send(ctx context.Context, e Event) error {
	var errs []error
	for i, s := range m {
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that can be closed.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Emit sends e and only logs a failure; history is best effort and must not
// fail a session operation.
func Emit(ctx context.Context, s Sink, e Event) {
	if s == nil {
		return
	}
	if err := s.Send(ctx, e); err != nil {
		slog.Warn("History export failed", "type", e.Type, "session", e.Record.SessionID, "error", err)
	}
}
