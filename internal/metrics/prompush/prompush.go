// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the dashboard labels (table, status, route) onto Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instead of
//     exposing an HTTP scrape endpoint (see promexpose for the scrape variant).
//
// All Prometheus-specific dependencies live here so the rest of the project
// stays decoupled and can swap to alternative backends without changes to the
// core pipeline.
package prompush

import (
	"fmt"

	"farmdash/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	fetchCounter  *prometheus.CounterVec // farmdash_fetch_total
	fetchDuration *prometheus.SummaryVec // farmdash_fetch_duration_seconds

	rowCounter *prometheus.CounterVec // farmdash_rows_total

	refreshCounter  *prometheus.CounterVec // farmdash_refresh_total
	refreshDuration *prometheus.SummaryVec // farmdash_refresh_duration_seconds

	httpCounter *prometheus.CounterVec // farmdash_http_requests_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName is the Pushgateway "job" name; gatewayURL its base URL.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "farmdash"
	}

	reg := prometheus.NewRegistry()

	fetchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmdash_fetch_total",
			Help: "Total table fetches, partitioned by table and status.",
		},
		[]string{"table", "status"},
	)
	fetchDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "farmdash_fetch_duration_seconds",
			Help:       "Duration of full table fetches in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"table", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmdash_rows_total",
			Help: "Rows retrieved from the remote store, per table.",
		},
		[]string{"table"},
	)
	refreshCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmdash_refresh_total",
			Help: "Cache refresh attempts (fetch + reconcile), by status.",
		},
		[]string{"status"},
	)
	refreshDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "farmdash_refresh_duration_seconds",
			Help:       "Duration of cache refreshes in seconds, by status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"status"},
	)
	httpCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmdash_http_requests_total",
			Help: "Dashboard HTTP requests, by route and status class.",
		},
		[]string{"route", "status"},
	)

	for _, c := range []prometheus.Collector{
		fetchCounter, fetchDuration, rowCounter,
		refreshCounter, refreshDuration, httpCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:      gatewayURL,
		jobName:         jobName,
		reg:             reg,
		fetchCounter:    fetchCounter,
		fetchDuration:   fetchDuration,
		rowCounter:      rowCounter,
		refreshCounter:  refreshCounter,
		refreshDuration: refreshDuration,
		httpCounter:     httpCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "farmdash_fetch_total":
		b.fetchCounter.WithLabelValues(labels["table"], labels["status"]).Add(delta)
	case "farmdash_rows_total":
		b.rowCounter.WithLabelValues(labels["table"]).Add(delta)
	case "farmdash_refresh_total":
		b.refreshCounter.WithLabelValues(labels["status"]).Add(delta)
	case "farmdash_http_requests_total":
		b.httpCounter.WithLabelValues(labels["route"], labels["status"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case "farmdash_fetch_duration_seconds":
		b.fetchDuration.WithLabelValues(labels["table"], labels["status"]).Observe(value)
	case "farmdash_refresh_duration_seconds":
		b.refreshDuration.WithLabelValues(labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
