package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// RecorderSample is one CPU and memory reading of a recorder process.
type RecorderSample struct {
	SessionID  string    `json:"session_id"`
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"` // Unix only
	Timestamp  time.Time `json:"timestamp"`
}

// SamplerConfig controls periodic resource sampling of running recorders.
type SamplerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxHistory int           `mapstructure:"max_history"`
}

// ring keeps the most recent samples of one session.
type ring struct {
	buf   []RecorderSample
	start int
	count int
}

func (r *ring) add(s RecorderSample) {
	if r.count < len(r.buf) {
		r.buf[r.count] = s
		r.count++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) latest() (RecorderSample, bool) {
	if r.count == 0 {
		return RecorderSample{}, false
	}
	if r.count < len(r.buf) {
		return r.buf[r.count-1], true
	}
	return r.buf[(r.start-1+len(r.buf))%len(r.buf)], true
}

func (r *ring) ordered() []RecorderSample {
	out := make([]RecorderSample, r.count)
	if r.count < len(r.buf) {
		copy(out, r.buf[:r.count])
		return out
	}
	n := copy(out, r.buf[r.start:])
	copy(out[n:], r.buf[:r.start])
	return out
}

// RecorderSampler polls CPU and memory usage of live recorder processes.
type RecorderSampler struct {
	enabled    bool
	interval   time.Duration
	maxHistory int

	mu      sync.RWMutex
	history map[string]*ring

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	cpuPercent *prometheus.GaugeVec
	memoryMB   *prometheus.GaugeVec
	numThreads *prometheus.GaugeVec
	numFDs     *prometheus.GaugeVec
}

func NewRecorderSampler(cfg SamplerConfig) *RecorderSampler {
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 60
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowcap",
			Subsystem: "recorder",
			Name:      name,
			Help:      help,
		}, []string{"session"})
	}
	return &RecorderSampler{
		enabled:    cfg.Enabled,
		interval:   interval,
		maxHistory: maxHistory,
		history:    make(map[string]*ring),
		stopCh:     make(chan struct{}),
		cpuPercent: gauge("cpu_percent", "CPU usage percentage of the recorder process."),
		memoryMB:   gauge("memory_mb", "Resident memory of the recorder process in MB."),
		numThreads: gauge("num_threads", "Thread count of the recorder process."),
		numFDs:     gauge("num_fds", "Open file descriptors of the recorder process (Unix only)."),
	}
}

// RegisterMetrics registers the sampler gauges. Disabled samplers register nothing.
func (s *RecorderSampler) RegisterMetrics(r prometheus.Registerer) error {
	if !s.enabled {
		return nil
	}
	cs := []prometheus.Collector{s.cpuPercent, s.memoryMB, s.numThreads}
	if runtime.GOOS != "windows" {
		cs = append(cs, s.numFDs)
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Start samples the processes returned by pids every interval until ctx is
// done or Stop is called. pids maps session id to recorder PID.
func (s *RecorderSampler) Start(ctx context.Context, pids func() map[string]int32) {
	if !s.enabled {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Collect(pids())
			}
		}
	}()
}

func (s *RecorderSampler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Collect takes one sample of every listed process and forgets sessions that
// are no longer listed.
func (s *RecorderSampler) Collect(pids map[string]int32) {
	now := time.Now()
	results := make(map[string]RecorderSample, len(pids))
	for id, pid := range pids {
		if pid <= 0 {
			continue
		}
		sample, err := sampleProcess(id, pid, now)
		if err != nil {
			slog.Debug("Failed to sample recorder", "session", id, "pid", pid, "error", err)
			continue
		}
		results[id] = sample
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sample := range results {
		s.cpuPercent.WithLabelValues(id).Set(sample.CPUPercent)
		s.memoryMB.WithLabelValues(id).Set(sample.MemoryMB)
		s.numThreads.WithLabelValues(id).Set(float64(sample.NumThreads))
		if sample.NumFDs > 0 {
			s.numFDs.WithLabelValues(id).Set(float64(sample.NumFDs))
		}
		s.record(sample)
	}
	for id := range s.history {
		if _, ok := pids[id]; !ok {
			s.forget(id)
		}
	}
}

// record appends sample; callers hold s.mu.
func (s *RecorderSampler) record(sample RecorderSample) {
	r, ok := s.history[sample.SessionID]
	if !ok {
		r = &ring{buf: make([]RecorderSample, s.maxHistory)}
		s.history[sample.SessionID] = r
	}
	r.add(sample)
}

// forget drops a session; callers hold s.mu.
func (s *RecorderSampler) forget(id string) {
	delete(s.history, id)
	s.cpuPercent.DeleteLabelValues(id)
	s.memoryMB.DeleteLabelValues(id)
	s.numThreads.DeleteLabelValues(id)
	s.numFDs.DeleteLabelValues(id)
}

// Latest returns the most recent sample for a session.
func (s *RecorderSampler) Latest(sessionID string) (RecorderSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.history[sessionID]
	if !ok {
		return RecorderSample{}, false
	}
	return r.latest()
}

// History returns the retained samples for a session, oldest first.
func (s *RecorderSampler) History(sessionID string) []RecorderSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.history[sessionID]
	if !ok {
		return nil
	}
	return r.ordered()
}

func sampleProcess(id string, pid int32, at time.Time) (RecorderSample, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return RecorderSample{}, fmt.Errorf("open process: %w", err)
	}
	cpu, err := proc.CPUPercent()
	if err != nil {
		cpu = 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return RecorderSample{}, fmt.Errorf("memory info: %w", err)
	}
	threads, _ := proc.NumThreads()
	sample := RecorderSample{
		SessionID:  id,
		PID:        pid,
		CPUPercent: cpu,
		MemoryMB:   float64(mem.RSS) / 1024 / 1024,
		MemoryRSS:  mem.RSS,
		NumThreads: threads,
		Timestamp:  at,
	}
	if runtime.GOOS != "windows" {
		if fds, err := proc.NumFDs(); err == nil {
			sample.NumFDs = fds
		}
	}
	return sample, nil
}
