package detector

import "context"

// Verdict is the outcome of probing a tool.
type Verdict struct {
	Installed bool
	// Version is the text the tool printed, or "installed" when it printed nothing.
	Version string
	// Source names the strategy that produced the verdict.
	Source string
}

// Detector is a strategy that determines whether a tool is usable.
// Implementations never return errors: a failure to run is a negative answer.
// It must be safe for concurrent use.
type Detector interface {
	// Detect reports a verdict when the strategy succeeded.
	Detect(ctx context.Context) (Verdict, bool)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

type chain []Detector

// Chain runs dets in order and returns the first success.
func Chain(dets ...Detector) Detector { return chain(dets) }

func (c chain) Detect(ctx context.Context) (Verdict, bool) {
	for _, d := range c {
		if v, ok := d.Detect(ctx); ok {
			v.Installed = true
			if v.Source == "" {
				v.Source = d.Describe()
			}
			return v, true
		}
	}
	return Verdict{}, false
}

func (c chain) Describe() string {
	s := "chain["
	for i, d := range c {
		if i > 0 {
			s += ","
		}
		s += d.Describe()
	}
	return s + "]"
}
