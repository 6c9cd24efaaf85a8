package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Frame directions for Metrics.Frames.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Metrics are the gateway's Prometheus collectors.
type Metrics struct {
	// HandshakeSeconds observes successful handshake latency.
	HandshakeSeconds prometheus.Histogram

	// HandshakeFailures counts failed handshakes by error kind.
	HandshakeFailures *prometheus.CounterVec

	// Frames counts data frames by direction.
	Frames *prometheus.CounterVec

	// Decisions counts CommandHandler decisions by name.
	Decisions *prometheus.CounterVec

	// ActiveSessions is the number of authenticated sessions.
	ActiveSessions prometheus.Gauge

	// Lockouts counts connections refused because the remote host is
	// locked out.
	Lockouts prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HandshakeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dacgate_handshake_seconds",
			Help:    "Latency of successful secure channel handshakes.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		HandshakeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dacgate_handshake_failures_total",
			Help: "Failed secure channel handshakes by error kind.",
		}, []string{"kind"}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dacgate_frames_total",
			Help: "Data frames by direction.",
		}, []string{"direction"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dacgate_decisions_total",
			Help: "Command decisions by outcome.",
		}, []string{"decision"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dacgate_active_sessions",
			Help: "Authenticated sessions currently open.",
		}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dacgate_lockouts_total",
			Help: "Connections refused because the remote host is locked out.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.HandshakeSeconds,
			m.HandshakeFailures,
			m.Frames,
			m.Decisions,
			m.ActiveSessions,
			m.Lockouts,
		)
	}
	return m
}
