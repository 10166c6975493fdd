package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	probeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowcap",
			Subsystem: "probe",
			Name:      "total",
			Help:      "Number of tool probes by outcome.",
		}, []string{"tool", "installed"},
	)
	probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowcap",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Time spent walking the detection tiers for a tool.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"},
	)
	sessionStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flowcap",
			Subsystem: "session",
			Name:      "starts_total",
			Help:      "Number of recorder processes spawned.",
		},
	)
	sessionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flowcap",
			Subsystem: "session",
			Name:      "failures_total",
			Help:      "Number of sessions that failed to spawn.",
		},
	)
	sessionStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flowcap",
			Subsystem: "session",
			Name:      "stops_total",
			Help:      "Number of sessions stopped on request.",
		},
	)
	sessionExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowcap",
			Subsystem: "session",
			Name:      "exits_total",
			Help:      "Number of recorder processes observed to exit on their own.",
		}, []string{"status"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flowcap",
			Name:      "active_sessions",
			Help:      "Recorder processes currently tracked.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{probeTotal, probeDuration, sessionStarts, sessionFailures, sessionStops, sessionExits, activeSessions}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func ObserveProbe(tool string, installed bool, d time.Duration) {
	if regOK.Load() {
		probeTotal.WithLabelValues(tool, strconv.FormatBool(installed)).Inc()
		probeDuration.WithLabelValues(tool).Observe(d.Seconds())
	}
}

func IncSessionStart() {
	if regOK.Load() {
		sessionStarts.Inc()
	}
}

func IncSessionFailure() {
	if regOK.Load() {
		sessionFailures.Inc()
	}
}

func IncSessionStop() {
	if regOK.Load() {
		sessionStops.Inc()
	}
}

func IncSessionExit(status string) {
	if regOK.Load() {
		sessionExits.WithLabelValues(status).Inc()
	}
}

func SetActiveSessions(n int) {
	if regOK.Load() {
		activeSessions.Set(float64(n))
	}
}
