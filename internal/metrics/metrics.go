// Package metrics holds the process-wide Prometheus collectors for the
// plugin engine, grounded on goatkit-goatflow's
// internal/services/scheduler/metrics.go: promauto-registered collectors
// behind a package-level singleton, namespaced and labeled rather than
// constructed per call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "openusage"

var (
	bridgeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "calls_total",
		Help:      "Host capability calls made by plugin scripts, labeled by plugin and capability",
	}, []string{"plugin", "capability"})

	probeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "runs_total",
		Help:      "Probe executions, labeled by plugin and outcome",
	}, []string{"plugin", "outcome"})

	probeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of a probe execution",
		Buckets:   prometheus.DefBuckets,
	}, []string{"plugin"})
)

// BridgeCall records one host.* capability invocation from a plugin script.
func BridgeCall(pluginID, capability string) {
	bridgeCalls.WithLabelValues(pluginID, capability).Inc()
}

// ProbeOutcome records the terminal state of one probe run ("ok" or
// "error_badge" per spec.md §7's never-throws contract) and its duration.
func ProbeOutcome(pluginID, outcome string, duration time.Duration) {
	probeRuns.WithLabelValues(pluginID, outcome).Inc()
	probeDuration.WithLabelValues(pluginID).Observe(duration.Seconds())
}
