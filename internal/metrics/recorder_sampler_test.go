package metrics

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecorderSamplerDefaults(t *testing.T) {
	tests := []struct {
		name         string
		cfg          SamplerConfig
		wantInterval time.Duration
		wantHistory  int
	}{
		{name: "defaults", cfg: SamplerConfig{Enabled: true}, wantInterval: 5 * time.Second, wantHistory: 60},
		{name: "custom", cfg: SamplerConfig{Enabled: true, Interval: time.Second, MaxHistory: 5}, wantInterval: time.Second, wantHistory: 5},
		{name: "negative history", cfg: SamplerConfig{MaxHistory: -1}, wantInterval: 5 * time.Second, wantHistory: 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRecorderSampler(tt.cfg)
			assert.Equal(t, tt.wantInterval, s.interval)
			assert.Equal(t, tt.wantHistory, s.maxHistory)
			assert.Equal(t, tt.cfg.Enabled, s.enabled)
		})
	}
}

func TestRecorderSamplerRegisterIdempotent(t *testing.T) {
	s := NewRecorderSampler(SamplerConfig{Enabled: true})
	reg := prometheus.NewRegistry()
	require.NoError(t, s.RegisterMetrics(reg))
	require.NoError(t, s.RegisterMetrics(reg))

	disabled := NewRecorderSampler(SamplerConfig{})
	require.NoError(t, disabled.RegisterMetrics(prometheus.NewRegistry()))
}

func TestRecorderSamplerCollectSelf(t *testing.T) {
	s := NewRecorderSampler(SamplerConfig{Enabled: true, MaxHistory: 3})
	pid := int32(os.Getpid())

	for i := 0; i < 5; i++ {
		s.Collect(map[string]int32{"self": pid})
	}
	latest, ok := s.Latest("self")
	require.True(t, ok)
	assert.Equal(t, pid, latest.PID)
	assert.Greater(t, latest.MemoryRSS, uint64(0))

	hist := s.History("self")
	require.Len(t, hist, 3)
	for i := 1; i < len(hist); i++ {
		assert.False(t, hist[i].Timestamp.Before(hist[i-1].Timestamp), "history is oldest first")
	}
}

func TestRecorderSamplerForgetsMissingSessions(t *testing.T) {
	s := NewRecorderSampler(SamplerConfig{Enabled: true})
	pid := int32(os.Getpid())
	s.Collect(map[string]int32{"a": pid, "b": pid})
	_, ok := s.Latest("b")
	require.True(t, ok)

	s.Collect(map[string]int32{"a": pid})
	_, ok = s.Latest("b")
	assert.False(t, ok)
	assert.Nil(t, s.History("b"))
}

func TestRecorderSamplerSkipsInvalidPIDs(t *testing.T) {
	s := NewRecorderSampler(SamplerConfig{Enabled: true})
	s.Collect(map[string]int32{"zero": 0, "neg": -5})
	_, ok := s.Latest("zero")
	assert.False(t, ok)
}

func TestRecorderSamplerStartStop(t *testing.T) {
	s := NewRecorderSampler(SamplerConfig{Enabled: true, Interval: 10 * time.Millisecond})
	var mu sync.Mutex
	calls := 0
	s.Start(context.Background(), func() map[string]int32 {
		mu.Lock()
		calls++
		mu.Unlock()
		return map[string]int32{"self": int32(os.Getpid())}
	})
	require.Eventually(t, func() bool {
		_, ok := s.Latest("self")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, calls)
}

func TestRecorderSamplerDisabledDoesNotRun(t *testing.T) {
	s := NewRecorderSampler(SamplerConfig{Interval: time.Millisecond})
	s.Start(context.Background(), func() map[string]int32 {
		t.Error("disabled sampler must not poll")
		return nil
	})
	time.Sleep(20 * time.Millisecond)
	s.Stop()
}

func TestRingWrapsInOrder(t *testing.T) {
	r := &ring{buf: make([]RecorderSample, 2)}
	_, ok := r.latest()
	assert.False(t, ok)
	for i := int32(1); i <= 3; i++ {
		r.add(RecorderSample{PID: i})
	}
	latest, _ := r.latest()
	assert.Equal(t, int32(3), latest.PID)
	got := r.ordered()
	assert.Equal(t, []int32{2, 3}, []int32{got[0].PID, got[1].PID})
}
