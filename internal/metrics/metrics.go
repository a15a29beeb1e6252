// Package metrics provides Prometheus instrumentation for the Vetri backend.
// It exposes gauges for connection counts, counters for relay event
// throughput, and a histogram for broadcast fan-out latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks the current number of open WebSocket connections.
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vetri_connections_active",
		Help: "Current number of open WebSocket connections",
	})

	// EventsTotal counts relay events processed, labeled by event type:
	// "message", "typing", "mark_seen".
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vetri_chat_events_total",
		Help: "Total number of relay events processed",
	}, []string{"type"})

	// FramesDropped counts inbound frames dropped for being unparseable or of
	// an unrecognized type. Dropping is silent on the wire; this counter is
	// the only place such frames are visible.
	FramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vetri_frames_dropped_total",
		Help: "Total number of inbound frames silently dropped",
	})

	// AuthRejected counts privileged events rejected for lack of an
	// authenticated identity.
	AuthRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vetri_auth_rejected_total",
		Help: "Total number of events rejected for missing authentication",
	})

	// BroadcastLatency records the time spent fanning one event out to all
	// registered sessions.
	BroadcastLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vetri_broadcast_latency_seconds",
		Help:    "Broadcast fan-out latency in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		EventsTotal,
		FramesDropped,
		AuthRejected,
		BroadcastLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
