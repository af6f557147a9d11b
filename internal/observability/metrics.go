// Package observability exposes Prometheus metrics for the sync pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/garminsync/internal/domain"
)

var (
	syncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "garminsync",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Completed sync runs by outcome and mode.",
	}, []string{"outcome", "mode"})
	activitiesImportedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "garminsync",
		Subsystem: "sync",
		Name:      "activities_imported_total",
		Help:      "Activities written to the store.",
	})
	activitiesSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "garminsync",
		Subsystem: "sync",
		Name:      "activities_skipped_total",
		Help:      "Activities skipped because they were already stored.",
	})
	fetchPagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "garminsync",
		Subsystem: "fetch",
		Name:      "pages_total",
		Help:      "Activity search pages retrieved from Garmin.",
	})
	fetchActivitiesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "garminsync",
		Subsystem: "fetch",
		Name:      "activities_total",
		Help:      "Activity summaries retrieved from Garmin before filtering.",
	})
	lastSyncGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "garminsync",
		Subsystem: "sync",
		Name:      "last_sync_timestamp_seconds",
		Help:      "Unix timestamp of the most recent watermark advance.",
	})
	lastImportGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "garminsync",
		Subsystem: "sync",
		Name:      "last_imported_activity_start_seconds",
		Help:      "Start time of the most recently imported activity.",
	})
)

func init() {
	prometheus.MustRegister(
		syncRunsTotal,
		activitiesImportedTotal,
		activitiesSkippedTotal,
		fetchPagesTotal,
		fetchActivitiesTotal,
		lastSyncGauge,
		lastImportGauge,
	)
}

// RecordSyncRun counts one completed run.
func RecordSyncRun(result domain.SyncResult) {
	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	mode := "incremental"
	if result.InitialSync {
		mode = "initial"
	}
	syncRunsTotal.WithLabelValues(outcome, mode).Inc()
}

// RecordActivityImported counts one stored activity.
func RecordActivityImported(startTime time.Time) {
	activitiesImportedTotal.Inc()
	if !startTime.IsZero() {
		lastImportGauge.Set(float64(startTime.Unix()))
	}
}

// RecordActivitySkipped counts one already-stored activity.
func RecordActivitySkipped() {
	activitiesSkippedTotal.Inc()
}

// RecordFetchPage counts one retrieved search page and its activities.
func RecordFetchPage(activities int) {
	fetchPagesTotal.Inc()
	fetchActivitiesTotal.Add(float64(activities))
}

// SetLastSync updates the watermark gauge.
func SetLastSync(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastSyncGauge.Set(float64(ts.Unix()))
}
