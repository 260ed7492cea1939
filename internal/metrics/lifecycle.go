// Package metrics provides Prometheus metrics for the device lifecycle,
// the encoder and the RTSP relay.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "uvcrtsp"

var (
	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "state",
		Help:      "Current lifecycle state (1 for the active state)",
	}, []string{"state"})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "State transitions",
	}, []string{"from", "to"})

	failures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "failures_total",
		Help:      "Lifecycle failures by error code",
	}, []string{"code"})

	streamPort = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "port",
		Help:      "RTSP port of the active stream, 0 when not streaming",
	})
)

// SetSessionState marks state as the current one.
func SetSessionState(state string) {
	sessionState.Reset()
	sessionState.WithLabelValues(state).Set(1)
}

// RecordTransition counts one state change.
func RecordTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

// RecordFailure counts a failure. An empty code is counted as unknown.
func RecordFailure(code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	failures.WithLabelValues(code).Inc()
}

// SetStreamPort records the active stream's port.
func SetStreamPort(port int) {
	streamPort.Set(float64(port))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// portLabel formats a port for use as a label value.
func portLabel(port int) string {
	return strconv.Itoa(port)
}
