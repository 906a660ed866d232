// Package metrics exposes Prometheus collectors for the crawl engine.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlRequestsTotal       *prometheus.CounterVec
	crawlRecordsTotal        *prometheus.CounterVec
	crawlPagesTotal          *prometheus.CounterVec
	crawlPartitionsTotal     *prometheus.CounterVec
	crawlEmptyPageStopsTotal prometheus.Counter
	crawlActiveWorkers       prometheus.Gauge
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		crawlRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_crawl_requests_total",
				Help: "Total registry requests, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_crawl_records_total",
				Help: "Total records processed, labeled by final status.",
			},
			[]string{"status"},
		)

		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_crawl_pages_total",
				Help: "Total listing pages fetched, labeled by category.",
			},
			[]string{"category"},
		)

		crawlPartitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_crawl_partitions_total",
				Help: "Total partitions finished, labeled by terminal state.",
			},
			[]string{"state"},
		)

		crawlEmptyPageStopsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "registry_crawl_empty_page_stops_total",
				Help: "Partitions terminated by the consecutive-empty-page rule.",
			},
		)

		crawlActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "registry_crawl_active_workers",
				Help: "Workers currently running a partition.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests served by the API, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of API request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest counts one registry request by outcome ("success"/"failure").
func ObserveRequest(outcome string) {
	crawlRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRecord counts one record reaching a terminal status.
func ObserveRecord(status string) {
	crawlRecordsTotal.WithLabelValues(status).Inc()
}

// ObservePage counts one listing page fetch for a category.
func ObservePage(category string) {
	crawlPagesTotal.WithLabelValues(category).Inc()
}

// ObservePartition counts one partition reaching a terminal state.
func ObservePartition(state string) {
	crawlPartitionsTotal.WithLabelValues(state).Inc()
}

// ObserveEmptyPageStop counts one empty-page-rule termination.
func ObserveEmptyPageStop() {
	crawlEmptyPageStopsTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	crawlActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	crawlActiveWorkers.Dec()
}

// ObserveHTTPRequest records one served API request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
