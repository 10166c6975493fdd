package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL matches the daemon's default listen address and base path.
const DefaultBaseURL = "http://127.0.0.1:7878/api"

// Client talks to a running flowcap daemon.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
	}
}

// APIError is a non-2xx answer from the daemon. Message is the text the
// daemon put in {"error": ...}.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return e.Message
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// New creates a new flowcap API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// BaseURL returns the daemon URL requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "url", c.baseURL, "error", err)
		return false
	}
	return true
}

func (c *Client) Greet(ctx context.Context, name string) (string, error) {
	var out messageResponse
	err := c.do(ctx, http.MethodGet, "/greet?name="+url.QueryEscape(name), nil, &out)
	return out.Message, err
}

// SystemDependencies returns the full report with install guidance.
func (c *Client) SystemDependencies(ctx context.Context) (InstallationStatus, error) {
	var out InstallationStatus
	err := c.do(ctx, http.MethodGet, "/dependencies/system", nil, &out)
	return out, err
}

// Dependencies returns the reduced per-tool report.
func (c *Client) Dependencies(ctx context.Context) (DependencyStatus, error) {
	var out DependencyStatus
	err := c.do(ctx, http.MethodGet, "/dependencies", nil, &out)
	return out, err
}

func (c *Client) InstallDependencies(ctx context.Context) (string, error) {
	var out messageResponse
	err := c.do(ctx, http.MethodPost, "/dependencies/install", nil, &out)
	return out.Message, err
}

func (c *Client) InstallBrowsers(ctx context.Context) (string, error) {
	var out messageResponse
	err := c.do(ctx, http.MethodPost, "/browsers/install", nil, &out)
	return out.Message, err
}

// StartRecording asks the daemon to spawn a recorder. A spawn failure is not
// an error: it comes back as a session with status failed.
func (c *Client) StartRecording(ctx context.Context, opts RecordingOptions) (RecordingSession, error) {
	c.logger.Debug("Starting recording", "url", opts.FigmaURL, "mode", opts.RecordingMode, "format", opts.Format)
	var out RecordingSession
	err := c.do(ctx, http.MethodPost, "/recordings", opts, &out)
	return out, err
}

func (c *Client) RecordingStatus(ctx context.Context, id string) (RecordingSession, error) {
	var out RecordingSession
	err := c.do(ctx, http.MethodGet, "/recordings/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) StopRecording(ctx context.Context, id string) error {
	c.logger.Debug("Stopping recording", "session", id)
	return c.do(ctx, http.MethodDelete, "/recordings/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListRecordings(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, http.MethodGet, "/recordings", nil, &out)
	return out, err
}

func (c *Client) OpenRecordingsFolder(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/recordings/open", nil, nil)
}

// Resources returns the latest resource sample of a running recorder.
func (c *Client) Resources(ctx context.Context, id string) (ResourceSample, error) {
	var out ResourceSample
	err := c.do(ctx, http.MethodGet, "/recordings/"+url.PathEscape(id)+"/resources", nil, &out)
	return out, err
}

// ResourceHistory returns every retained resource sample of a recorder,
// oldest first.
func (c *Client) ResourceHistory(ctx context.Context, id string) ([]ResourceSample, error) {
	var out []ResourceSample
	err := c.do(ctx, http.MethodGet, "/recordings/"+url.PathEscape(id)+"/resources?history=1", nil, &out)
	return out, err
}

// Session returns the persisted history entry of one session.
func (c *Client) Session(ctx context.Context, id string) (HistoryEntry, error) {
	var out HistoryEntry
	err := c.do(ctx, http.MethodGet, "/history/"+url.PathEscape(id), nil, &out)
	return out, err
}

// History lists persisted sessions, newest first. limit <= 0 uses the
// daemon's default.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	path := "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []HistoryEntry
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// do sends in as JSON (when non-nil) and decodes a 2xx body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		c.logger.Debug("Failed to decode error response", "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode}
	}
	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return &APIError{StatusCode: resp.StatusCode, Message: errorResp.Error}
}
