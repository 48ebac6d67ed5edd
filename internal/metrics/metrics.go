// Package metrics exposes Prometheus counters for the scan pipeline and
// session lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rfidtrack/internal/attend"
)

var (
	scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rfidtrack_scans_total",
		Help: "Scan attempts by outcome.",
	}, []string{"result"})

	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfidtrack_sessions_started_total",
		Help: "Sessions moved to the active state.",
	})

	sessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfidtrack_sessions_completed_total",
		Help: "Sessions moved to the completed state.",
	})

	exports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rfidtrack_exports_total",
		Help: "Attendance reports written.",
	})
)

// ObserveScan records the outcome of one scan attempt.
func ObserveScan(status attend.ScanStatus) {
	scans.WithLabelValues(string(status)).Inc()
}

// ObserveSessionStarted records one session activation.
func ObserveSessionStarted() { sessionsStarted.Inc() }

// ObserveSessionCompleted records one session completion.
func ObserveSessionCompleted() { sessionsCompleted.Inc() }

// ObserveExport records one written report.
func ObserveExport() { exports.Inc() }
