// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_pages_fetched_total",
			Help: "Total list pages successfully fetched.",
		},
	)

	gamesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_games_ingested_total",
			Help: "Total primary records processed, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	enrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_enrichments_total",
			Help: "Total detail enrichments, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	entitiesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_entities_created_total",
			Help: "Reference entities created, labeled by category.",
		},
		[]string{"category"},
	)

	fetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_fetch_retries_total",
			Help: "Fetch attempts that failed and will be retried, labeled by unit.",
		},
		[]string{"unit"},
	)

	fetchExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_fetch_exhausted_total",
			Help: "Fetches abandoned after the retry ceiling, labeled by unit.",
		},
		[]string{"unit"},
	)

	backoffDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_backoff_delay_seconds",
			Help:    "Histogram of backoff waits between retry attempts.",
			Buckets: []float64{1, 5, 15, 60, 120, 240, 480},
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_active_workers",
			Help: "Browser workers currently processing a chunk.",
		},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePageFetched counts a successfully retrieved list page.
func ObservePageFetched() {
	pagesFetchedTotal.Inc()
}

// ObserveGame counts a primary record by outcome (created, skipped).
func ObserveGame(outcome string) {
	gamesIngestedTotal.WithLabelValues(outcome).Inc()
}

// ObserveEnrichment counts a detail enrichment by outcome
// (updated, skipped, failed, partial).
func ObserveEnrichment(outcome string) {
	enrichmentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveEntityCreated counts a freshly created reference entity.
func ObserveEntityCreated(category string) {
	entitiesCreatedTotal.WithLabelValues(category).Inc()
}

// ObserveRetry records a failed attempt and the backoff it triggered.
func ObserveRetry(unit string, delay time.Duration) {
	fetchRetriesTotal.WithLabelValues(unit).Inc()
	backoffDelaySeconds.Observe(delay.Seconds())
}

// ObserveFetchExhausted counts a fetch abandoned after the retry ceiling.
func ObserveFetchExhausted(unit string) {
	fetchExhaustedTotal.WithLabelValues(unit).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}
