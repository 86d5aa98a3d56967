// Package metrics provides the observability surface of the GridClash node:
// prometheus collectors for the authority's hot path and a sqlite-backed
// recorder that exports per-snapshot packet records for offline analysis.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// ServerMetrics holds the authority-side prometheus collectors.
type ServerMetrics struct {
	PacketsReceived prometheus.Counter
	PacketsDropped  prometheus.Counter
	BroadcastsSent  prometheus.Counter
	ClaimsGranted   prometheus.Counter
	ClaimsRejected  prometheus.Counter
	SessionsLive    prometheus.Gauge
}

// NewServerMetrics creates and registers the authority collectors.
// A nil registerer yields unregistered collectors, which is what tests use.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridclash",
			Subsystem: "server",
			Name:      "packets_received_total",
			Help:      "Valid packets accepted by the codec.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridclash",
			Subsystem: "server",
			Name:      "packets_dropped_total",
			Help:      "Datagrams rejected at the codec boundary.",
		}),
		BroadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridclash",
			Subsystem: "server",
			Name:      "broadcasts_total",
			Help:      "Snapshot broadcast ticks with at least one receiver.",
		}),
		ClaimsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridclash",
			Subsystem: "server",
			Name:      "claims_granted_total",
			Help:      "Cell-claim requests answered with ACK.",
		}),
		ClaimsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridclash",
			Subsystem: "server",
			Name:      "claims_rejected_total",
			Help:      "Cell-claim requests answered with NACK.",
		}),
		SessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridclash",
			Subsystem: "server",
			Name:      "sessions_live",
			Help:      "Currently connected peer sessions.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PacketsReceived,
			m.PacketsDropped,
			m.BroadcastsSent,
			m.ClaimsGranted,
			m.ClaimsRejected,
			m.SessionsLive,
		)
	}

	return m
}
