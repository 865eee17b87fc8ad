// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dash-segtrack/segtrack/internal/tracker"
	"github.com/dash-segtrack/segtrack/pkg/logging"
)

const service = "segtrackplay"

var defaultLevelBuckets = []float64{0, 1, 2, 3, 5, 8, 13, 21}

// telemetry turns tracker events into prometheus series and a small live
// status snapshot, and implements tracker.Listener so it can be registered
// directly against the Tracker's event bus.
type telemetry struct {
	segmentChanges  *prometheus.CounterVec
	repSwitches     prometheus.Counter
	segmentGaps     prometheus.Counter
	discontinuities prometheus.Counter
	bufferLevel     prometheus.Histogram

	mu       sync.Mutex
	snapshot statusSnapshot
}

// statusSnapshot is the JSON body served at /status.
type statusSnapshot struct {
	CurrentRepresentation string    `json:"currentRepresentation"`
	LastSegment           uint64    `json:"lastSegment"`
	LastSegmentAt         time.Time `json:"lastSegmentAt"`
	BufferingLevelS       float64   `json:"bufferingLevelSeconds"`
}

func newTelemetry() *telemetry {
	return &telemetry{
		segmentChanges: newCounterVec("segment_changes_total",
			"Number of segment change events, partitioned by adaptation set.", []string{"adaptation_set"}),
		repSwitches: newCounter("representation_switches_total",
			"Number of representation switch events."),
		segmentGaps: newCounter("segment_gaps_total",
			"Number of segment gap events."),
		discontinuities: newCounter("discontinuities_total",
			"Number of discontinuity events."),
		bufferLevel: newHistogram("buffering_level_seconds",
			"Reported buffering level at each buffering level change.", defaultLevelBuckets),
	}
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": service},
	}, labels)
	prometheus.MustRegister(cv)
	return cv
}

func newCounter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": service},
	})
	prometheus.MustRegister(c)
	return c
}

func newHistogram(name, help string, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": service},
		Buckets:     buckets,
	})
	prometheus.MustRegister(h)
	return h
}

// Notify implements tracker.Listener.
func (t *telemetry) Notify(e *tracker.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Kind {
	case tracker.EventRepresentationSwitch:
		t.repSwitches.Inc()
		if e.NextRep != nil {
			t.snapshot.CurrentRepresentation = e.NextRep.GetID()
		} else {
			t.snapshot.CurrentRepresentation = ""
		}
	case tracker.EventSegmentGap:
		t.segmentGaps.Inc()
	case tracker.EventDiscontinuity:
		t.discontinuities.Inc()
	case tracker.EventSegmentChange:
		t.segmentChanges.WithLabelValues(e.AdaptationSetID).Inc()
		t.snapshot.LastSegment = e.Sequence
		t.snapshot.LastSegmentAt = time.Now()
	case tracker.EventBufferingLevelChange:
		t.bufferLevel.Observe(e.LevelCurrent.Seconds())
		t.snapshot.BufferingLevelS = e.LevelCurrent.Seconds()
	}
}

func (t *telemetry) statusHandler(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	snap := t.snapshot
	t.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

// newStatusRouter builds the /healthz, /status and /metrics server that runs
// alongside the tracking loop.
func newStatusRouter(t *telemetry, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.SlogMiddleWare(log))
	r.Use(middleware.Recoverer)
	r.MethodFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})
	r.MethodFunc(http.MethodGet, "/status", t.statusHandler)
	for _, route := range logging.LogRoutes {
		r.MethodFunc(route.Method, route.Path, route.Handler)
	}
	r.Mount("/metrics", promhttp.Handler())
	return r
}
