// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the dashboard pipeline.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - It mirrors the source abstraction pattern used elsewhere in the project,
//     keeping concrete metric systems isolated in subpackages.
//
// The primary use case is instrumentation of the fetch/reconcile/serve path
// without coupling the core pipeline to a specific metrics system.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordFetch measures one full table fetch: latency plus success/failure,
// partitioned by table.
func RecordFetch(table string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"table":  table,
		"status": status,
	}

	backend.IncCounter("farmdash_fetch_total", 1, lbls)
	backend.ObserveHistogram("farmdash_fetch_duration_seconds", d.Seconds(), lbls)
}

// RecordRows counts rows retrieved for the given table.
func RecordRows(table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("farmdash_rows_total", float64(delta), Labels{
		"table": table,
	})
}

// RecordRefresh measures one cache refresh (fetch + reconcile), including
// whether it succeeded.
func RecordRefresh(err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"status": status}

	backend.IncCounter("farmdash_refresh_total", 1, lbls)
	backend.ObserveHistogram("farmdash_refresh_duration_seconds", d.Seconds(), lbls)
}

// RecordHTTP counts one served dashboard request by route and status class.
func RecordHTTP(route string, status int) {
	backend.IncCounter("farmdash_http_requests_total", 1, Labels{
		"route":  route,
		"status": statusClass(status),
	})
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
