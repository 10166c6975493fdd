package detector

import (
	"context"
	"strings"
	"time"

	"github.com/loykin/flowcap/internal/locator"
	"github.com/loykin/flowcap/internal/metrics"
)

// Prober answers "is this tool usable, and what version is it" by walking the
// detection tiers for a command.
type Prober struct {
	loc *locator.Locator
}

func NewProber(loc *locator.Locator) *Prober { return &Prober{loc: loc} }

func (p *Prober) Locator() *locator.Locator { return p.loc }

// Chain returns the tiers used for command: profile-sourcing shell, the
// located path run directly, and for ffmpeg the candidate walk followed by
// the augmented-PATH retry.
func (p *Prober) Chain(command string, args ...string) Detector {
	dets := []Detector{
		ShellDetector{Loc: p.loc, Command: command, Args: args},
		DirectDetector{Loc: p.loc, Command: command, Args: args},
	}
	if command == "ffmpeg" {
		dets = append(dets,
			CandidateDetector{Loc: p.loc, Command: command, Args: args},
			AugmentedPathDetector{Loc: p.loc, Command: command, Args: args},
		)
	}
	return Chain(dets...)
}

// Probe never fails; an unusable tool yields a zero Verdict.
func (p *Prober) Probe(ctx context.Context, command string, args ...string) Verdict {
	start := time.Now()
	v, _ := p.Chain(command, args...).Detect(ctx)
	metrics.ObserveProbe(toolLabel(command), v.Installed, time.Since(start))
	return v
}

// toolLabel keeps metric labels bounded when a full path is probed.
func toolLabel(command string) string {
	if i := strings.LastIndexAny(command, `/\`); i >= 0 {
		return command[i+1:]
	}
	return command
}
