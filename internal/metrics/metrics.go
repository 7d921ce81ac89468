// Package metrics provides Prometheus metrics for the inventory valuator.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "valuator_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 180, 600},
		},
		[]string{"method", "path"},
	)

	// Steam API Metrics
	SteamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuator_steam_requests_total",
			Help: "Total number of Steam requests by endpoint and status code",
		},
		[]string{"endpoint", "status"}, // endpoint: "inventory", "priceoverview", "profile", "other"
	)

	SteamThrottledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "valuator_steam_throttled_total",
			Help: "Steam responses with status 429",
		},
	)

	SteamRetriesExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "valuator_steam_retries_exhausted_total",
			Help: "Steam requests that were still throttled after every attempt",
		},
	)

	SteamRateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "valuator_steam_rate_limit_wait_seconds",
			Help:    "Time spent waiting for the Steam rate limiter",
			Buckets: []float64{0, 0.1, 0.5, 1, 1.5, 3, 10, 30, 60},
		},
	)

	// Price Metrics
	PriceLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuator_price_lookups_total",
			Help: "Market price lookups by result",
		},
		[]string{"result"}, // "found", "missing", "throttled", "cache_hit"
	)

	// Valuation Metrics
	ValuationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuator_valuations_total",
			Help: "Inventory valuations by result",
		},
		[]string{"result"}, // "success", "invalid", "inaccessible", "throttled", "persistence", "error"
	)

	ValuationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "valuator_valuation_duration_seconds",
			Help:    "Time taken to value one inventory",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	ValuationItemsIncluded = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "valuator_valuation_items_included",
			Help:    "Items kept after the noise filter per valuation",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Store Metrics
	StoredValuations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "valuator_stored_valuations",
			Help: "Number of valuation records in the database",
		},
	)

	StoredValueUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "valuator_stored_value_usd",
			Help: "Sum of all stored valuation totals in USD",
		},
	)

	// Revaluation Worker Metrics
	RevaluationQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "valuator_revaluation_queue_size",
			Help: "Accounts waiting in the priority revaluation queue",
		},
	)

	RevaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuator_revaluations_total",
			Help: "Background revaluations by result",
		},
		[]string{"result"}, // "success", "failed"
	)
)
