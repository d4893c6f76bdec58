package metrics

import (
	"errors"
	"testing"
	"time"
)

// captureBackend records every call so tests can assert on emitted metrics.
type captureBackend struct {
	counters   map[string]float64
	histograms map[string][]float64
	labels     map[string]Labels
	flushed    int
}

func newCapture() *captureBackend {
	return &captureBackend{
		counters:   map[string]float64{},
		histograms: map[string][]float64{},
		labels:     map[string]Labels{},
	}
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.counters[name] += delta
	c.labels[name] = labels
}

func (c *captureBackend) ObserveHistogram(name string, value float64, labels Labels) {
	c.histograms[name] = append(c.histograms[name], value)
	c.labels[name] = labels
}

func (c *captureBackend) Flush() error {
	c.flushed++
	return nil
}

// install swaps in a capture backend and restores the previous one on cleanup.
// Backend state is global, so these tests must not run in parallel.
func install(t *testing.T) *captureBackend {
	t.Helper()
	prev := backend
	c := newCapture()
	SetBackend(c)
	t.Cleanup(func() { backend = prev })
	return c
}

func TestSetBackend_NilKeepsExisting(t *testing.T) {
	c := install(t)
	SetBackend(nil)

	RecordRows("farmers", 5)
	if c.counters["farmdash_rows_total"] != 5 {
		t.Fatalf("expected capture backend to stay installed after SetBackend(nil)")
	}
}

func TestRecordFetch(t *testing.T) {
	c := install(t)

	RecordFetch("farmers", nil, 250*time.Millisecond)
	RecordFetch("traceability", errors.New("boom"), time.Second)

	if got := c.counters["farmdash_fetch_total"]; got != 2 {
		t.Fatalf("fetch_total = %v, want 2", got)
	}
	if got := len(c.histograms["farmdash_fetch_duration_seconds"]); got != 2 {
		t.Fatalf("fetch duration observations = %d, want 2", got)
	}
	// Last call's labels should carry the failure status and table.
	lbls := c.labels["farmdash_fetch_total"]
	if lbls["table"] != "traceability" || lbls["status"] != "failure" {
		t.Fatalf("unexpected labels: %v", lbls)
	}
}

func TestRecordRows_IgnoresNonPositive(t *testing.T) {
	c := install(t)

	RecordRows("farmers", 0)
	RecordRows("farmers", -3)
	if got := c.counters["farmdash_rows_total"]; got != 0 {
		t.Fatalf("rows_total = %v, want 0 for non-positive deltas", got)
	}

	RecordRows("farmers", 42)
	if got := c.counters["farmdash_rows_total"]; got != 42 {
		t.Fatalf("rows_total = %v, want 42", got)
	}
}

func TestRecordRefresh(t *testing.T) {
	c := install(t)

	RecordRefresh(nil, 100*time.Millisecond)
	if c.labels["farmdash_refresh_total"]["status"] != "success" {
		t.Fatalf("expected success status, got %v", c.labels["farmdash_refresh_total"])
	}

	RecordRefresh(errors.New("boom"), time.Millisecond)
	if c.labels["farmdash_refresh_total"]["status"] != "failure" {
		t.Fatalf("expected failure status, got %v", c.labels["farmdash_refresh_total"])
	}
	if got := c.counters["farmdash_refresh_total"]; got != 2 {
		t.Fatalf("refresh_total = %v, want 2", got)
	}
}

func TestRecordHTTP_StatusClasses(t *testing.T) {
	c := install(t)

	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{502, "5xx"},
	}
	for _, tt := range tests {
		RecordHTTP("/", tt.code)
		if got := c.labels["farmdash_http_requests_total"]["status"]; got != tt.want {
			t.Errorf("status class for %d = %q, want %q", tt.code, got, tt.want)
		}
	}
	if got := c.counters["farmdash_http_requests_total"]; got != 4 {
		t.Fatalf("http_requests_total = %v, want 4", got)
	}
}

// TestNopBackend_SafeWithoutSetup verifies the default backend accepts calls
// and Flush without any configuration.
func TestNopBackend_SafeWithoutSetup(t *testing.T) {
	prev := backend
	backend = nopBackend{}
	t.Cleanup(func() { backend = prev })

	RecordFetch("farmers", nil, time.Second)
	RecordHTTP("/", 200)
	if err := Flush(); err != nil {
		t.Fatalf("Flush on nop backend: %v", err)
	}
}
