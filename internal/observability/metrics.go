package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fitsync"

var (
	rateLimitWaits = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "wait_seconds",
		Help:      "Time callers spent blocked on a full short-term window.",
		Buckets:   []float64{0.1, 1, 10, 60, 300, 900, 3600},
	}, []string{"provider"})
	rateLimitDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "daily_denied_total",
		Help:      "Requests refused because the daily quota was spent.",
	}, []string{"provider"})
	rateLimitRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "requests_total",
		Help:      "Outbound requests recorded against provider quotas.",
	}, []string{"provider"})

	transportRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "retries_total",
		Help:      "Wire-level retries of transient failures.",
	}, []string{"client", "reason"})
	breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"client"})

	syncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Sync runs by outcome.",
	}, []string{"provider", "outcome"})
	syncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of sync runs.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"provider"})
	syncActivities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "activities_total",
		Help:      "Activities processed by result.",
	}, []string{"provider", "result"})
	cursorGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "cursor_timestamp_seconds",
		Help:      "Unix timestamp of the last persisted sync cursor.",
	}, []string{"provider"})
	publishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publisher",
		Name:      "failures_total",
		Help:      "Activity events that could not be published.",
	}, []string{"provider"})
)

func init() {
	prometheus.MustRegister(
		rateLimitWaits,
		rateLimitDenied,
		rateLimitRecorded,
		transportRetries,
		breakerState,
		syncRuns,
		syncDuration,
		syncActivities,
		cursorGauge,
		publishFailures,
	)
}

func RecordRateLimitWait(provider string, d time.Duration) {
	rateLimitWaits.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordRateLimitDenied(provider string) {
	rateLimitDenied.WithLabelValues(provider).Inc()
}

func RecordRequest(provider string) {
	rateLimitRecorded.WithLabelValues(provider).Inc()
}

func RecordRetry(client, reason string) {
	transportRetries.WithLabelValues(client, reason).Inc()
}

// RecordBreakerState stores the numeric gobreaker state for a client.
func RecordBreakerState(client string, state int) {
	breakerState.WithLabelValues(client).Set(float64(state))
}

// RecordSyncRun counts a finished run and, for runs that did any work,
// its per-activity results.
func RecordSyncRun(provider, outcome string, d time.Duration, synced, skipped, errs int) {
	syncRuns.WithLabelValues(provider, outcome).Inc()
	syncDuration.WithLabelValues(provider).Observe(d.Seconds())
	if synced > 0 {
		syncActivities.WithLabelValues(provider, "synced").Add(float64(synced))
	}
	if skipped > 0 {
		syncActivities.WithLabelValues(provider, "skipped").Add(float64(skipped))
	}
	if errs > 0 {
		syncActivities.WithLabelValues(provider, "error").Add(float64(errs))
	}
}

func RecordCursor(provider string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	cursorGauge.WithLabelValues(provider).Set(float64(ts.Unix()))
}

func RecordPublishFailure(provider string) {
	publishFailures.WithLabelValues(provider).Inc()
}
