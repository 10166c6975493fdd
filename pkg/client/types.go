package client

import "time"

// RecordingOptions is the body of POST /recordings.
type RecordingOptions struct {
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

// RecordingSession is the state of one recording as reported by the daemon.
type RecordingSession struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	StartTime  string   `json:"start_time"`
	Duration   *float64 `json:"duration"`
	OutputPath *string  `json:"output_path"`
	Error      *string  `json:"error"`
}

// Session status values.
const (
	StatusPreparing  = "preparing"
	StatusRecording  = "recording"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// SystemDependency is one row of the full dependency report.
type SystemDependency struct {
	Name           string  `json:"name"`
	Installed      bool    `json:"installed"`
	Version        *string `json:"version"`
	InstallCommand *string `json:"install_command"`
	InstallURL     *string `json:"install_url"`
}

// InstallationStatus is the response of GET /dependencies/system.
type InstallationStatus struct {
	Dependencies  []SystemDependency `json:"dependencies"`
	ReadyToRecord bool               `json:"ready_to_record"`
	ProjectPath   string             `json:"project_path"`
}

type DependencyInfo struct {
	Installed bool    `json:"installed"`
	Version   *string `json:"version"`
}

// DependencyStatus is the response of GET /dependencies.
type DependencyStatus struct {
	NodeJS   DependencyInfo `json:"nodejs"`
	Pnpm     DependencyInfo `json:"pnpm"`
	FFmpeg   DependencyInfo `json:"ffmpeg"`
	Browsers DependencyInfo `json:"browsers"`
}

// ResourceSample is the latest CPU and memory reading of a recorder.
type ResourceSample struct {
	SessionID  string    `json:"session_id"`
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// HistoryEntry is one persisted session from GET /history.
type HistoryEntry struct {
	SessionID  string     `json:"session_id"`
	URL        string     `json:"url"`
	Mode       string     `json:"mode"`
	Format     string     `json:"format"`
	OutputPath string     `json:"output_path"`
	PID        int        `json:"pid"`
	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}
