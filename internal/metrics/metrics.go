// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting quotesync runtime metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Skip reasons for checks that did no work.
const (
	SkipInFlight = "in_flight"
	SkipPaused   = "paused"
	SkipBackoff  = "backoff"
)

// internal state, mirrored into Prometheus
var (
	polls           int64
	pollsFailed     int64
	syncs           int64
	syncsFailed     int64
	skipped         int64
	toastsShown     int64
	reloadsRequest  int64
	retryCount      int64
	lastPoll        int64
	lastPollSuccess int64
)

const counterInc int64 = 1

var (
	promPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotesync_polls_total",
			Help: "Poll cycles that reached the server, by result",
		},
		[]string{"result"},
	)
	promSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotesync_syncs_total",
			Help: "Pending responses sent to the sync endpoint, by result",
		},
		[]string{"result"},
	)
	promSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotesync_checks_skipped_total",
			Help: "Checks that did no work, by reason",
		},
		[]string{"reason"},
	)
	promToasts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quotesync_toasts_shown_total",
			Help: "Toasts shown for synchronized responses",
		},
	)
	promReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotesync_page_reloads_total",
			Help: "Page reloads requested, by kind (prompt or fallback)",
		},
		[]string{"kind"},
	)
	promRetryCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quotesync_retry_count",
			Help: "Consecutive failed batch fetches (capped at the configured maximum)",
		},
	)
	promPollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quotesync_poll_duration_seconds",
			Help:    "Duration of a poll cycle including all sync calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
	promLastPoll = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quotesync_last_poll_timestamp_seconds",
			Help: "Unix timestamp of the last poll cycle",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promPolls,
		promSyncs,
		promSkipped,
		promToasts,
		promReloads,
		promRetryCount,
		promPollDuration,
		promLastPoll,
	)
}

// IncPoll records a poll cycle whose batch fetch succeeded.
func IncPoll() {
	atomic.AddInt64(&polls, counterInc)
	promPolls.WithLabelValues("success").Inc()
}

// IncPollFailed records a poll cycle whose batch fetch failed.
func IncPollFailed() {
	atomic.AddInt64(&pollsFailed, counterInc)
	promPolls.WithLabelValues("failure").Inc()
}

func IncSync() {
	atomic.AddInt64(&syncs, counterInc)
	promSyncs.WithLabelValues("success").Inc()
}

func IncSyncFailed() {
	atomic.AddInt64(&syncsFailed, counterInc)
	promSyncs.WithLabelValues("failure").Inc()
}

// IncSkipped records a check that was a no-op for the given reason.
func IncSkipped(reason string) {
	atomic.AddInt64(&skipped, counterInc)
	promSkipped.WithLabelValues(reason).Inc()
}

func IncToast() {
	atomic.AddInt64(&toastsShown, counterInc)
	promToasts.Inc()
}

// IncReload records a reload request; kind is "prompt" or "fallback".
func IncReload(kind string) {
	atomic.AddInt64(&reloadsRequest, counterInc)
	promReloads.WithLabelValues(kind).Inc()
}

func SetRetryCount(n int) {
	atomic.StoreInt64(&retryCount, int64(n))
	promRetryCount.Set(float64(n))
}

// ObservePoll records the duration of a cycle and stamps the last-poll time.
func ObservePoll(start, end time.Time, ok bool) {
	promPollDuration.Observe(end.Sub(start).Seconds())
	atomic.StoreInt64(&lastPoll, end.Unix())
	promLastPoll.Set(float64(end.Unix()))
	if ok {
		atomic.StoreInt64(&lastPollSuccess, end.Unix())
	}
}

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	Polls           int64  `json:"polls"`
	PollsFailed     int64  `json:"polls_failed"`
	Syncs           int64  `json:"syncs"`
	SyncsFailed     int64  `json:"syncs_failed"`
	Skipped         int64  `json:"checks_skipped"`
	ToastsShown     int64  `json:"toasts_shown"`
	Reloads         int64  `json:"reloads_requested"`
	RetryCount      int64  `json:"retry_count"`
	LastPoll        int64  `json:"last_poll_timestamp"`
	LastPollSuccess int64  `json:"last_poll_success_timestamp"`
	LastPollHuman   string `json:"last_poll_human"`
}

// GetSnapshot returns the current values of all internal counters.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastPoll)
	human := ""
	if ts > 0 {
		human = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return StatsSnapshot{
		Polls:           atomic.LoadInt64(&polls),
		PollsFailed:     atomic.LoadInt64(&pollsFailed),
		Syncs:           atomic.LoadInt64(&syncs),
		SyncsFailed:     atomic.LoadInt64(&syncsFailed),
		Skipped:         atomic.LoadInt64(&skipped),
		ToastsShown:     atomic.LoadInt64(&toastsShown),
		Reloads:         atomic.LoadInt64(&reloadsRequest),
		RetryCount:      atomic.LoadInt64(&retryCount),
		LastPoll:        ts,
		LastPollSuccess: atomic.LoadInt64(&lastPollSuccess),
		LastPollHuman:   human,
	}
}

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler serves the current metrics as a JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}
