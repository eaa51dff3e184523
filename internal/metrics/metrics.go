// Package metrics holds the Prometheus collectors of the boss timer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boss_timer_analyses_total",
		Help: "Screenshot analyses by outcome",
	}, []string{"outcome"}) // outcome=success|error|rate_limited

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boss_timer_analysis_duration_seconds",
		Help:    "Wall time of a screenshot analysis, model round trip included",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	scheduleEntries = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boss_timer_schedule_entries",
		Help:    "Entries per produced schedule",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boss_timer_alerts_total",
		Help: "Fired spawn alerts by delivery result",
	}, []string{"delivery"}) // delivery=delivered|suppressed

	watchersRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boss_timer_watchers_running",
		Help: "Sessions with an active spawn watcher",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boss_timer_sessions_active",
		Help: "Live browser sessions",
	})

	screenshotsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boss_timer_screenshots_uploaded_total",
		Help: "Screenshots accepted for analysis",
	})

	rulesReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boss_timer_rules_reloads_total",
		Help: "Boss rules file reloads by outcome",
	}, []string{"outcome"})
)

// RecordAnalysis records one finished analysis.
func RecordAnalysis(outcome string, d time.Duration) {
	analysesTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		analysisDuration.Observe(d.Seconds())
	}
}

// RecordSchedule records the size of a produced schedule.
func RecordSchedule(entries int) {
	scheduleEntries.Observe(float64(entries))
}

// RecordAlert records one fired alert.
func RecordAlert(delivered bool) {
	if delivered {
		alertsTotal.WithLabelValues("delivered").Inc()
		return
	}
	alertsTotal.WithLabelValues("suppressed").Inc()
}

// WatcherStarted and WatcherStopped track running watcher loops.
func WatcherStarted() { watchersRunning.Inc() }

func WatcherStopped() { watchersRunning.Dec() }

// SetActiveSessions sets the live session gauge.
func SetActiveSessions(n int) {
	sessionsActive.Set(float64(n))
}

// IncScreenshots counts an accepted screenshot.
func IncScreenshots() {
	screenshotsUploaded.Inc()
}

// RecordRulesReload records a rules file reload.
func RecordRulesReload(err error) {
	if err != nil {
		rulesReloads.WithLabelValues("error").Inc()
		return
	}
	rulesReloads.WithLabelValues("success").Inc()
}
