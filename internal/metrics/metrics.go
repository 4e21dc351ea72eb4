// Package metrics provides Prometheus instrumentation for the chat relay.
// It exposes gauges for connection counts, counters for message and
// moderation throughput, and a histogram for broadcast fan-out latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of live sessions.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections_total",
		Help: "Current number of live WebSocket sessions",
	})

	// MessagesTotal counts routed messages, labeled by outcome:
	// "delivered", "rejected_banned", "rejected_invalid", "rejected_unknown".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"outcome"})

	// ModerationActionsTotal counts moderation actions, labeled by action:
	// "ban", "unban", "login_ok", "login_denied".
	ModerationActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_moderation_actions_total",
		Help: "Total number of moderation actions",
	}, []string{"action"})

	// AdmissionsRejected counts connections turned away at admission because
	// their origin was banned.
	AdmissionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_admissions_rejected_total",
		Help: "Connections rejected at admission due to an active ban",
	})

	// BroadcastLatency records the time to fan a frame out to all sessions.
	BroadcastLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_broadcast_latency_seconds",
		Help:    "Broadcast fan-out latency in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MessagesTotal,
		ModerationActionsTotal,
		AdmissionsRejected,
		BroadcastLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
