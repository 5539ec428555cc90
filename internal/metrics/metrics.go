// Package metrics exposes Prometheus instrumentation for the download service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts handled requests by kind, outcome and failure kind.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tubestream_requests_total",
		Help: "Total number of media requests by kind, outcome and failure",
	}, []string{"kind", "outcome", "failure"})

	// BytesRelayed counts body bytes written to clients.
	BytesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tubestream_bytes_relayed_total",
		Help: "Total number of body bytes relayed to clients",
	}, []string{"kind"})

	// TimeToFirstByte tracks the time from request start to the first body byte.
	TimeToFirstByte = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tubestream_time_to_first_byte_seconds",
		Help:    "Time from request start to the first relayed body byte",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30},
	}, []string{"kind"})

	// RequestDuration tracks total request handling time by outcome.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tubestream_request_duration_seconds",
		Help:    "Total time spent handling a media request",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"kind", "outcome"})

	// ActiveStreams is the number of downloads currently relaying.
	ActiveStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tubestream_active_streams",
		Help: "Number of downloads currently streaming",
	}, []string{"kind"})
)

// RecordRequest records one finished request.
func RecordRequest(kind, outcome, failure string, duration time.Duration) {
	RequestsTotal.WithLabelValues(kind, outcome, failure).Inc()
	RequestDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
}

// AddBytesRelayed adds n relayed bytes.
func AddBytesRelayed(kind string, n int64) {
	if n <= 0 {
		return
	}
	BytesRelayed.WithLabelValues(kind).Add(float64(n))
}

// ObserveTimeToFirstByte records the first-byte latency.
func ObserveTimeToFirstByte(kind string, d time.Duration) {
	TimeToFirstByte.WithLabelValues(kind).Observe(d.Seconds())
}

// StreamStarted increments the active stream gauge and returns a func that
// decrements it.
func StreamStarted(kind string) func() {
	g := ActiveStreams.WithLabelValues(kind)
	g.Inc()
	return g.Dec
}
