// Package metrics holds the Prometheus collectors for classification and
// camera activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ClassifyRequestsTotal counts classify calls by outcome
	// (success, exhausted, no_candidates, abandoned).
	ClassifyRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wasteid",
		Subsystem: "classify",
		Name:      "requests_total",
		Help:      "Total number of classification requests, labeled by result.",
	}, []string{"result"})

	// ClassifyAttemptsTotal counts per-candidate attempts.
	ClassifyAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wasteid",
		Subsystem: "classify",
		Name:      "attempts_total",
		Help:      "Total number of model candidate attempts, labeled by candidate and result.",
	}, []string{"candidate", "result"})

	// ClassifyDurationSeconds is end-to-end time per classify call, all
	// candidates included.
	ClassifyDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wasteid",
		Subsystem: "classify",
		Name:      "duration_seconds",
		Help:      "End-to-end time to classify one image across all attempted candidates.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	// CameraSessionsActive is 1 while a camera session holds the device.
	CameraSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wasteid",
		Subsystem: "camera",
		Name:      "sessions_active",
		Help:      "Whether a camera session currently holds the video device.",
	})

	// CameraCapturesTotal counts still captures by outcome.
	CameraCapturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wasteid",
		Subsystem: "camera",
		Name:      "captures_total",
		Help:      "Total number of still captures, labeled by result.",
	}, []string{"result"})
)

// Register registers all collectors with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ClassifyRequestsTotal,
			ClassifyAttemptsTotal,
			ClassifyDurationSeconds,
			CameraSessionsActive,
			CameraCapturesTotal,
		)
	})
}
