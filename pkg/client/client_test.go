package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/api/", Timeout: time.Second})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, 30*time.Second, c.client.Timeout)

	c = New(Config{BaseURL: "http://example.com/api/", Timeout: 5 * time.Second})
	assert.Equal(t, "http://example.com/api", c.BaseURL())
	assert.Equal(t, 5*time.Second, c.client.Timeout)
}

func TestIsReachable(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/healthz" {
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	assert.True(t, c.IsReachable(context.Background()))

	down := New(Config{BaseURL: "http://127.0.0.1:1/api", Timeout: 100 * time.Millisecond})
	assert.False(t, down.IsReachable(context.Background()))
}

func TestGreetEscapesName(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/greet", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Hello, " + r.URL.Query().Get("name") + "!"})
	})
	msg, err := c.Greet(context.Background(), "Ada & Bob")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada & Bob!", msg)
}

func TestStartRecordingSendsOptions(t *testing.T) {
	var got map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/recordings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		out := "/p/recordings/abc-1"
		writeJSON(w, http.StatusOK, RecordingSession{ID: "s1", Status: StatusRecording, StartTime: "1700000000", OutputPath: &out})
	})
	d := uint32(30)
	s, err := c.StartRecording(context.Background(), RecordingOptions{
		FigmaURL:      "https://www.figma.com/proto/abc",
		RecordingMode: "video",
		Format:        "mp4",
		Duration:      &d,
		WaitForCanvas: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	require.NotNil(t, s.OutputPath)
	assert.Equal(t, "/p/recordings/abc-1", *s.OutputPath)

	assert.Equal(t, "https://www.figma.com/proto/abc", got["figma_url"])
	assert.Equal(t, float64(30), got["duration"])
	assert.Nil(t, got["frame_rate"])
	assert.Equal(t, true, got["wait_for_canvas"])
}

func TestStopRecordingNotFound(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Recording session not found: s9"})
	})
	err := c.StopRecording(context.Background(), "s9")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Recording session not found: s9", err.Error())
}

func TestErrorWithoutBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.ListRecordings(context.Background())
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "HTTP 502", err.Error())
}

func TestStatusListAndDependencies(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/recordings/s1":
			writeJSON(w, http.StatusOK, RecordingSession{ID: "s1", Status: StatusCompleted})
		case "/api/recordings":
			writeJSON(w, http.StatusOK, []string{"a.mp4"})
		case "/api/dependencies":
			writeJSON(w, http.StatusOK, DependencyStatus{Pnpm: DependencyInfo{Installed: true}})
		case "/api/dependencies/system":
			writeJSON(w, http.StatusOK, InstallationStatus{ReadyToRecord: true, ProjectPath: "/p"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	s, err := c.RecordingStatus(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s.Status)

	names, err := c.ListRecordings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mp4"}, names)

	ds, err := c.Dependencies(ctx)
	require.NoError(t, err)
	assert.True(t, ds.Pnpm.Installed)
	assert.False(t, ds.NodeJS.Installed)

	full, err := c.SystemDependencies(ctx)
	require.NoError(t, err)
	assert.True(t, full.ReadyToRecord)
	assert.Equal(t, "/p", full.ProjectPath)
}

func TestInstallAndOpen(t *testing.T) {
	var paths []string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/api/recordings/open":
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		case "/api/browsers/install":
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "pnpm not found. Please install pnpm first."})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"message": "Dependencies installed successfully"})
		}
	})
	ctx := context.Background()

	msg, err := c.InstallDependencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Dependencies installed successfully", msg)

	_, err = c.InstallBrowsers(ctx)
	require.EqualError(t, err, "pnpm not found. Please install pnpm first.")

	require.NoError(t, c.OpenRecordingsFolder(ctx))
	assert.Equal(t, []string{"/api/dependencies/install", "/api/browsers/install", "/api/recordings/open"}, paths)
}

func TestHistoryAndResources(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/history":
			assert.Equal(t, "3", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, []HistoryEntry{{SessionID: "s1", Status: "completed"}})
		case "/api/recordings/s1/resources":
			writeJSON(w, http.StatusOK, ResourceSample{SessionID: "s1", PID: 77, MemoryMB: 12})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	h, err := c.History(ctx, 3)
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Nil(t, h[0].StoppedAt)

	rs, err := c.Resources(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int32(77), rs.PID)
}

func TestResourceHistoryAndSession(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/recordings/s1/resources":
			assert.Equal(t, "1", r.URL.Query().Get("history"))
			writeJSON(w, http.StatusOK, []ResourceSample{{SessionID: "s1", PID: 7}, {SessionID: "s1", PID: 7, MemoryMB: 3}})
		case "/api/history/s1":
			writeJSON(w, http.StatusOK, HistoryEntry{SessionID: "s1", Status: "completed", PID: 7})
		case "/api/history/gone":
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "recording session not found in store"})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})
	ctx := context.Background()

	samples, err := c.ResourceHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 3.0, samples[1].MemoryMB)

	h, err := c.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "completed", h.Status)
	assert.Equal(t, 7, h.PID)

	_, err = c.Session(ctx, "gone")
	assert.True(t, IsNotFound(err))
}
