// Package promexpose implements a pull-style Prometheus backend for the
// metrics package: collectors accumulate in an in-process registry and are
// served from a /metrics scrape endpoint on the dashboard server.
//
// It records the same metric names as prompush; the only difference is the
// delivery model (scrape vs push), so deployments can pick whichever their
// Prometheus setup expects.
package promexpose

import (
	"net/http"

	"farmdash/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backend is a scrape-oriented Prometheus metrics backend.
type Backend struct {
	reg *prometheus.Registry

	fetchCounter  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	rowCounter *prometheus.CounterVec

	refreshCounter  *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec

	httpCounter *prometheus.CounterVec
}

// NewBackend constructs the backend with all collectors registered.
func NewBackend() *Backend {
	reg := prometheus.NewRegistry()

	b := &Backend{
		reg: reg,
		fetchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmdash_fetch_total",
			Help: "Total table fetches, partitioned by table and status.",
		}, []string{"table", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "farmdash_fetch_duration_seconds",
			Help:    "Duration of full table fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"table", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmdash_rows_total",
			Help: "Rows retrieved from the remote store, per table.",
		}, []string{"table"}),
		refreshCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmdash_refresh_total",
			Help: "Cache refresh attempts (fetch + reconcile), by status.",
		}, []string{"status"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "farmdash_refresh_duration_seconds",
			Help:    "Duration of cache refreshes in seconds, by status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		httpCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmdash_http_requests_total",
			Help: "Dashboard HTTP requests, by route and status class.",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(
		b.fetchCounter, b.fetchDuration, b.rowCounter,
		b.refreshCounter, b.refreshDuration, b.httpCounter,
	)
	return b
}

// Handler returns the scrape handler for mounting at /metrics.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{})
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

// Flush is a no-op: scrape backends have nothing to push.
func (b *Backend) Flush() error { return nil }
