// Package metrics provides Prometheus metrics for the sync engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fileActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftsync_file_actions_total",
			Help: "Total file actions applied, by action and result",
		},
		[]string{"action", "result"},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftsync_bytes_uploaded_total",
			Help: "Total bytes uploaded to the remote store",
		},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftsync_bytes_downloaded_total",
			Help: "Total bytes downloaded from the remote store",
		},
	)

	conflictsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftsync_conflicts_resolved_total",
			Help: "Total conflicts resolved, by winning side",
		},
		[]string{"side"},
	)

	projectSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftsync_project_sync_duration_seconds",
			Help:    "Per-project sync duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	projectsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "draftsync_projects_tracked",
			Help: "Number of projects in the workspace registry",
		},
	)

	remoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftsync_remote_calls_total",
			Help: "Total remote API calls, by operation and status",
		},
		[]string{"op", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFileAction records one applied file action.
func RecordFileAction(action string, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	fileActionsTotal.WithLabelValues(action, result).Inc()
}

// RecordUpload records uploaded payload bytes.
func RecordUpload(bytes int64) {
	bytesUploaded.Add(float64(bytes))
}

// RecordDownload records downloaded payload bytes.
func RecordDownload(bytes int64) {
	bytesDownloaded.Add(float64(bytes))
}

// RecordConflictResolved records one resolved conflict.
func RecordConflictResolved(side string) {
	conflictsResolvedTotal.WithLabelValues(side).Inc()
}

// RecordProjectSync records a completed project sync.
func RecordProjectSync(duration time.Duration, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	projectSyncDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// SetProjectsTracked sets the number of registered projects.
func SetProjectsTracked(count int) {
	projectsTracked.Set(float64(count))
}

// RecordRemoteCall records one remote API call outcome.
func RecordRemoteCall(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	remoteCallsTotal.WithLabelValues(op, status).Inc()
}
