// Package metrics exposes Prometheus collectors for the gap analysis engine.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal       *prometheus.CounterVec
	pagesFetchedTotal        *prometheus.CounterVec
	fetchBytesTotal          *prometheus.CounterVec
	embeddingBatchesTotal    *prometheus.CounterVec
	embeddingsGeneratedTotal prometheus.Counter
	gapsDetectedTotal        *prometheus.CounterVec
	stageDurationSeconds     *prometheus.HistogramVec
	hostWaitSeconds          *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gapscan_fetch_attempts_total",
				Help: "Total fetch attempts, labeled by host and outcome class.",
			},
			[]string{"host", "outcome"},
		)

		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gapscan_pages_fetched_total",
				Help: "Total pages fetched, labeled by host and result.",
			},
			[]string{"host", "result"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gapscan_fetch_bytes_total",
				Help: "Total bytes fetched, labeled by host.",
			},
			[]string{"host"},
		)

		embeddingBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gapscan_embedding_batches_total",
				Help: "Total embedding batch calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		embeddingsGeneratedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gapscan_embeddings_generated_total",
				Help: "Total embedding vectors generated.",
			},
		)

		gapsDetectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gapscan_gaps_detected_total",
				Help: "Total gaps detected, labeled by gap type.",
			},
			[]string{"type"},
		)

		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gapscan_stage_duration_seconds",
				Help:    "Histogram of pipeline stage durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		)

		hostWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gapscan_host_wait_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt records one fetch attempt with its outcome class.
func ObserveFetchAttempt(rawURL, outcome string) {
	fetchAttemptsTotal.WithLabelValues(SanitizeHost(rawURL), outcome).Inc()
}

// ObservePageFetched records a completed page fetch.
func ObservePageFetched(rawURL, result string, bytesFetched int) {
	host := SanitizeHost(rawURL)
	pagesFetchedTotal.WithLabelValues(host, result).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(host).Add(float64(bytesFetched))
	}
}

// ObserveEmbeddingBatch records one batch call outcome.
func ObserveEmbeddingBatch(outcome string, vectors int) {
	embeddingBatchesTotal.WithLabelValues(outcome).Inc()
	if vectors > 0 {
		embeddingsGeneratedTotal.Add(float64(vectors))
	}
}

// ObserveGap increments the gap counter for a gap type.
func ObserveGap(gapType string) {
	gapsDetectedTotal.WithLabelValues(gapType).Inc()
}

// ObserveStage records a pipeline stage duration.
func ObserveStage(stage string, duration time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveHostWait records the duration of a per-host rate limit wait.
func ObserveHostWait(host string, duration time.Duration) {
	hostWaitSeconds.WithLabelValues(host).Observe(duration.Seconds())
}
