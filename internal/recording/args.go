package recording

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const fallbackName = "recording"

// OutputBaseName picks the first URL segment that looks like a file name
// (it mentions FarsiLang or is longer than ten bytes), drops its query and
// appends the millisecond timestamp of now.
func OutputBaseName(url string, now time.Time) string {
	name := fallbackName
	for _, part := range strings.Split(url, "/") {
		if strings.Contains(part, "FarsiLang") || len(part) > 10 {
			name = part
			break
		}
	}
	name, _, _ = strings.Cut(name, "?")
	return fmt.Sprintf("%s-%d", name, now.UnixMilli())
}

// BuildArgs maps o onto the recorder CLI. Absent optional fields produce no flag.
func BuildArgs(runnerName, entry string, o Options) []string {
	args := []string{
		runnerName, entry,
		"--url", o.FigmaURL,
		"--mode", o.RecordingMode,
		"--format", o.Format,
	}
	args = appendUint(args, "--duration", o.Duration)
	args = appendUint(args, "--frame-rate", o.FrameRate)
	args = appendUint(args, "--width", o.CustomWidth)
	args = appendUint(args, "--height", o.CustomHeight)
	return append(args, "--wait-for-canvas", strconv.FormatBool(o.WaitForCanvas))
}

func appendUint(args []string, flag string, v *uint32) []string {
	if v == nil {
		return args
	}
	return append(args, flag, strconv.FormatUint(uint64(*v), 10))
}
