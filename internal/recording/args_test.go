package recording

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func u32(v uint32) *uint32 { return &v }

func TestOutputBaseName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"host is the first long segment", "https://example.com/file/abc?query=1", "example.com-1700000000123"},
		{"marker segment wins over length", "a/FarsiLang?x=1/verylongsegment", "FarsiLang-1700000000123"},
		{"query stripped from long segment", "ab/cd/longsegment12?node-id=1", "longsegment12-1700000000123"},
		{"fallback", "a/b/c", "recording-1700000000123"},
		{"empty url", "", "recording-1700000000123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputBaseName(tt.url, now))
		})
	}
}

func TestBuildArgsRequiredOnly(t *testing.T) {
	got := BuildArgs("tsx", "src/cli.ts", Options{
		FigmaURL:      "https://example.com/file/abc?query=1",
		RecordingMode: ModeVideo,
		Format:        "mp4",
		Duration:      u32(10),
	})
	assert.Equal(t, []string{
		"tsx", "src/cli.ts",
		"--url", "https://example.com/file/abc?query=1",
		"--mode", "video",
		"--format", "mp4",
		"--duration", "10",
		"--wait-for-canvas", "false",
	}, got)
}

func TestBuildArgsAllFlags(t *testing.T) {
	got := BuildArgs("tsx", "src/cli.ts", Options{
		FigmaURL:      "u",
		RecordingMode: ModeFrames,
		Quality:       "high",
		CustomWidth:   u32(1920),
		CustomHeight:  u32(1080),
		Duration:      u32(5),
		Format:        "png",
		FrameRate:     u32(30),
		WaitForCanvas: true,
	})
	assert.Equal(t, []string{
		"tsx", "src/cli.ts",
		"--url", "u",
		"--mode", "frames",
		"--format", "png",
		"--duration", "5",
		"--frame-rate", "30",
		"--width", "1920",
		"--height", "1080",
		"--wait-for-canvas", "true",
	}, got)
	assert.NotContains(t, got, "high")
}

func TestOptionsValidate(t *testing.T) {
	ok := Options{FigmaURL: "https://x", RecordingMode: ModeVideo, Format: "mp4"}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.FigmaURL = "  "
	assert.ErrorIs(t, bad.Validate(), ErrMissingURL)

	bad = ok
	bad.RecordingMode = "gif"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidMode)

	bad = ok
	bad.Format = ""
	assert.ErrorIs(t, bad.Validate(), ErrMissingFmt)
}
