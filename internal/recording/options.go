// Package recording spawns and supervises external recorder processes.
package recording

import (
	"errors"
	"strings"
)

// Recording modes accepted by the recorder CLI.
const (
	ModeVideo  = "video"
	ModeFrames = "frames"
)

// Status is the observed state of a session.
type Status string

const (
	StatusPreparing  Status = "preparing"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Options is what the caller asks the recorder to do. It is not modified
// after Start receives it.
type Options struct {
	FigmaURL      string  `json:"figma_url"`
	RecordingMode string  `json:"recording_mode"`
	Quality       string  `json:"quality"`
	CustomWidth   *uint32 `json:"custom_width"`
	CustomHeight  *uint32 `json:"custom_height"`
	Duration      *uint32 `json:"duration"`
	Format        string  `json:"format"`
	FrameRate     *uint32 `json:"frame_rate"`
	WaitForCanvas bool    `json:"wait_for_canvas"`
}

var (
	ErrMissingURL  = errors.New("figma_url is required")
	ErrInvalidMode = errors.New(`recording_mode must be "video" or "frames"`)
	ErrMissingFmt  = errors.New("format is required")
)

// Validate checks the fields the recorder cannot run without.
func (o Options) Validate() error {
	if strings.TrimSpace(o.FigmaURL) == "" {
		return ErrMissingURL
	}
	switch o.RecordingMode {
	case ModeVideo, ModeFrames:
	default:
		return ErrInvalidMode
	}
	if strings.TrimSpace(o.Format) == "" {
		return ErrMissingFmt
	}
	return nil
}

// Session is the caller-visible view of one recorder invocation.
type Session struct {
	ID         string   `json:"id"`
	Status     Status   `json:"status"`
	StartTime  string   `json:"start_time"` // unix seconds
	Duration   *float64 `json:"duration"`
	OutputPath *string  `json:"output_path"`
	Error      *string  `json:"error"`
}
