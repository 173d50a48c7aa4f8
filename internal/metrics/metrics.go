package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsonl_stream_frames_written_total",
		Help: "NDJSON frames written to clients grouped by route and framing mode",
	}, []string{"route", "mode"})

	streamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jsonl_stream_duration_seconds",
		Help:    "Duration of NDJSON response streams",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
	}, []string{"route", "outcome"})

	streamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsonl_streams_total",
		Help: "NDJSON response streams grouped by route and outcome",
	}, []string{"route", "outcome"})

	streamsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jsonl_streams_active",
		Help: "NDJSON response streams currently open",
	}, []string{"route"})
)

// Stream outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeFailed    = "failed"
)

// StreamStarted marks a stream as open and returns the func that records its end.
func StreamStarted(route string) func(outcome, mode string, frames int) {
	if route == "" {
		route = "unknown"
	}
	start := time.Now()
	streamsActive.WithLabelValues(route).Inc()
	return func(outcome, mode string, frames int) {
		if outcome == "" {
			outcome = "unknown"
		}
		streamsActive.WithLabelValues(route).Dec()
		streamDuration.WithLabelValues(route, outcome).Observe(time.Since(start).Seconds())
		streamsTotal.WithLabelValues(route, outcome).Inc()
		framesWritten.WithLabelValues(route, mode).Add(float64(frames))
	}
}
