package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/flowcap/internal/deps"
	"github.com/loykin/flowcap/internal/metrics"
	"github.com/loykin/flowcap/internal/recording"
	"github.com/loykin/flowcap/internal/store"
)

// ErrStoreDisabled is returned by RecordingHistory when no store is configured.
var ErrStoreDisabled = errors.New("session history store is not configured")

// Service is the set of operations the bridge exposes to the UI.
type Service interface {
	Greet(name string) string
	CheckSystemDependencies(ctx context.Context) deps.InstallationStatus
	CheckDependencies(ctx context.Context) deps.DependencyStatus
	InstallDependencies(ctx context.Context) (string, error)
	InstallPlaywrightBrowsers(ctx context.Context) (string, error)
	StartRecording(ctx context.Context, opts recording.Options) recording.Session
	GetRecordingStatus(ctx context.Context, id string) (recording.Session, error)
	StopRecording(ctx context.Context, id string) error
	ListRecordings(ctx context.Context) ([]string, error)
	OpenRecordingsFolder(ctx context.Context) error
	RecordingHistory(ctx context.Context, limit int) ([]store.Record, error)
	SessionRecord(ctx context.Context, id string) (store.Record, error)
	Resources(id string) (metrics.RecorderSample, bool)
	ResourceHistory(id string) []metrics.RecorderSample
}

// Router provides embeddable HTTP handlers for the recorder backend.
// Endpoints (relative to basePath):
//
//	GET    /healthz
//	GET    /greet?name=...
//	GET    /dependencies/system
//	GET    /dependencies
//	POST   /dependencies/install
//	POST   /browsers/install
//	POST   /recordings              body: RecordingOptions JSON
//	GET    /recordings
//	GET    /recordings/:id
//	DELETE /recordings/:id
//	GET    /recordings/:id/resources[?history=1]
//	POST   /recordings/open
//	GET    /history?limit=N
//	GET    /history/:id
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	svc      Service
	basePath string
	metrics  bool
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(svc Service, basePath string) *Router {
	return &Router{svc: svc, basePath: normalizeBasePath(basePath)}
}

// WithMetrics also serves Prometheus metrics at /metrics, outside basePath.
func (r *Router) WithMetrics() *Router {
	r.metrics = true
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	if r.metrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealth)
	group.GET("/greet", r.handleGreet)
	group.GET("/dependencies/system", r.handleSystemDependencies)
	group.GET("/dependencies", r.handleDependencies)
	group.POST("/dependencies/install", r.handleInstallDependencies)
	group.POST("/browsers/install", r.handleInstallBrowsers)
	group.POST("/recordings", r.handleStart)
	group.GET("/recordings", r.handleList)
	group.POST("/recordings/open", r.handleOpen)
	group.GET("/recordings/:id", r.handleStatus)
	group.DELETE("/recordings/:id", r.handleStop)
	group.GET("/recordings/:id/resources", r.handleResources)
	group.GET("/history", r.handleHistory)
	group.GET("/history/:id", r.handleSessionHistory)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// installs and probes may take minutes
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type messageResp struct {
	Message string `json:"message"`
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleGreet(c *gin.Context) {
	writeJSON(c, http.StatusOK, messageResp{Message: r.svc.Greet(c.Query("name"))})
}

func (r *Router) handleSystemDependencies(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.svc.CheckSystemDependencies(c.Request.Context()))
}

func (r *Router) handleDependencies(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.svc.CheckDependencies(c.Request.Context()))
}

func (r *Router) handleInstallDependencies(c *gin.Context) {
	r.install(c, r.svc.InstallDependencies)
}

func (r *Router) handleInstallBrowsers(c *gin.Context) {
	r.install(c, r.svc.InstallPlaywrightBrowsers)
}

func (r *Router) install(c *gin.Context, run func(context.Context) (string, error)) {
	msg, err := run(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, messageResp{Message: msg})
}

func (r *Router) handleStart(c *gin.Context) {
	var opts recording.Options
	if err := c.ShouldBindJSON(&opts); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	// invalid options come back as a failed session, like spawn failures
	writeJSON(c, http.StatusOK, r.svc.StartRecording(c.Request.Context(), opts))
}

func (r *Router) handleList(c *gin.Context) {
	names, err := r.svc.ListRecordings(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, names)
}

func (r *Router) handleOpen(c *gin.Context) {
	if err := r.svc.OpenRecordingsFolder(c.Request.Context()); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// sessionID validates the :id path parameter.
func sessionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !validSessionID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid session id: allowed [A-Za-z0-9._-]"})
		return "", false
	}
	return id, true
}

func (r *Router) handleStatus(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	s, err := r.svc.GetRecordingStatus(c.Request.Context(), id)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (r *Router) handleStop(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := r.svc.StopRecording(c.Request.Context(), id); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, recording.ErrSessionNotFound) {
			code = http.StatusNotFound
		}
		writeJSON(c, code, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleResources(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if q := c.Query("history"); q != "" {
		all, err := strconv.ParseBool(q)
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "history must be a boolean"})
			return
		}
		if all {
			samples := r.svc.ResourceHistory(id)
			if len(samples) == 0 {
				writeJSON(c, http.StatusNotFound, errorResp{Error: "no resource samples for session " + id})
				return
			}
			writeJSON(c, http.StatusOK, samples)
			return
		}
	}
	s, found := r.svc.Resources(id)
	if !found {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "no resource samples for session " + id})
		return
	}
	writeJSON(c, http.StatusOK, s)
}

// HistoryEntry is the JSON form of a persisted session.
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

func historyEntry(rec store.Record) HistoryEntry {
	e := HistoryEntry{
		SessionID:  rec.SessionID,
		URL:        rec.URL,
		Mode:       rec.Mode,
		Format:     rec.Format,
		OutputPath: rec.OutputPath,
		PID:        rec.PID,
		StartedAt:  rec.StartedAt,
		Status:     rec.Status,
		Error:      rec.Error.String,
	}
	if rec.StoppedAt.Valid {
		t := rec.StoppedAt.Time
		e.StoppedAt = &t
	}
	return e
}

func (r *Router) handleHistory(c *gin.Context) {
	limit := store.DefaultRecentLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	recs, err := r.svc.RecordingHistory(c.Request.Context(), limit)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	out := make([]HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, historyEntry(rec))
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleSessionHistory(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	rec, err := r.svc.SessionRecord(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, historyEntry(rec))
}

func writeStoreError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrStoreDisabled):
		code = http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	}
	writeJSON(c, code, errorResp{Error: err.Error()})
}
