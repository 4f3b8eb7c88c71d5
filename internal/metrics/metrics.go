// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	SessionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reception",
		Name:      "session_transitions_total",
		Help:      "Session status transitions by room and target status.",
	}, []string{"room", "status"})

	VideoBinds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reception",
		Name:      "video_binds_total",
		Help:      "Remote video bindings made per room.",
	}, []string{"room"})

	SinkPackets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reception",
		Name:      "sink_packets_total",
		Help:      "RTP packets drained by audio sinks, by outcome.",
	}, []string{"room", "outcome"})

	FullscreenChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reception",
		Name:      "fullscreen_changes_total",
		Help:      "Dashboard fullscreen tile changes.",
	})
)

func init() {
	Registry.MustRegister(SessionTransitions, VideoBinds, SinkPackets, FullscreenChanges)
}

// Handler serves the module's collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
