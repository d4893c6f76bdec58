package webui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"farmdash/internal/cache"
	"farmdash/internal/reconcile"
	"farmdash/internal/records"
	"farmdash/internal/report"
)

func testDataset() *cache.Dataset {
	return &cache.Dataset{
		Summary: []reconcile.FarmerSummary{
			{Cooperative: "coopA", FarmerID: "f1", MaxQuotaKG: 100, NetWeightKG: 60, Certification: "Organic", Exporter: "ExpX", DeliveryPercentage: 60},
			{Cooperative: "coopB", FarmerID: "f2", MaxQuotaKG: 50, NetWeightKG: 0, Certification: reconcile.Unknown, Exporter: "ExpY", DeliveryPercentage: 0},
		},
		Trace: records.NewTable([]records.Record{
			{"farmer_id": "f1", "net_weight_kg": 60.0, "certification": "Organic", "exporter": "ExpX"},
		}),
	}
}

func testServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	c := cache.New(func(ctx context.Context) (*cache.Dataset, error) {
		return testDataset(), nil
	}, 0)
	ts := httptest.NewServer(NewServer(cfg, c).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestIndex_RendersDashboard(t *testing.T) {
	t.Parallel()

	ts := testServer(t, Config{})
	resp := get(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body := readBody(t, resp)
	for _, want := range []string{"Farmer Delivery Dashboard", "f1", "coopA", "Organic", "non-delivery.csv"} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestAPISummary(t *testing.T) {
	t.Parallel()

	ts := testServer(t, Config{})
	resp := get(t, ts.URL+"/api/summary")
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type = %q", ct)
	}

	var payload struct {
		Headline report.Headline           `json:"headline"`
		Rows     []reconcile.FarmerSummary `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Headline.Farmers != 2 || len(payload.Rows) != 2 {
		t.Fatalf("payload = %+v", payload)
	}
	// Sorted by delivery percentage descending.
	if payload.Rows[0].FarmerID != "f1" {
		t.Fatalf("rows[0] = %+v, want f1 first", payload.Rows[0])
	}
}

func TestAPISummary_Filtered(t *testing.T) {
	t.Parallel()

	ts := testServer(t, Config{})
	resp := get(t, ts.URL+"/api/summary?cooperative=coopB")

	var payload struct {
		Rows []reconcile.FarmerSummary `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Rows) != 1 || payload.Rows[0].FarmerID != "f2" {
		t.Fatalf("filtered rows = %+v", payload.Rows)
	}
}

func TestAPIViews(t *testing.T) {
	t.Parallel()

	ts := testServer(t, Config{})
	resp := get(t, ts.URL+"/api/views")

	var payload struct {
		Cooperatives []string              `json:"cooperatives"`
		Histogram    []report.HistogramBin `json:"histogram"`
		Status       report.StatusSplit    `json:"status"`
		ByCoop       []report.GroupTotal   `json:"totals_by_cooperative"`
		CertByCoop   []report.CertTotal    `json:"cert_by_cooperative"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Cooperatives) != 3 || payload.Cooperatives[0] != report.All {
		t.Fatalf("cooperatives = %v", payload.Cooperatives)
	}
	if len(payload.Histogram) != report.HistogramBins {
		t.Fatalf("histogram bins = %d", len(payload.Histogram))
	}
	if payload.Status.Delivered != 1 || payload.Status.NonDelivered != 1 {
		t.Fatalf("status = %+v", payload.Status)
	}
	if len(payload.CertByCoop) != 1 || payload.CertByCoop[0].Certification != "Organic" {
		t.Fatalf("cert view = %+v", payload.CertByCoop)
	}
}

func TestDownload_PerformanceCSV(t *testing.T) {
	t.Parallel()

	ts := testServer(t, Config{})
	resp := get(t, ts.URL+"/download/performance.csv")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "farmer_performance.csv") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	// A revalidation with the tag gets 304 and no body.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/download/performance.csv", nil)
	req.Header.Set("If-None-Match", etag)
	again, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Body.Close()
	if again.StatusCode != http.StatusNotModified {
		t.Fatalf("revalidation status = %d, want 304", again.StatusCode)
	}
}

func TestDownload_NonDeliveryFiltered(t *testing.T) {
	t.Parallel()

	ts := testServer(t, Config{})
	resp := get(t, ts.URL+"/download/non-delivery.csv?exporter=ExpY")

	body := readBody(t, resp)
	if !strings.Contains(body, "f2") || strings.Contains(body, "f1") {
		t.Fatalf("csv =\n%s", body)
	}
}

// TestRefreshFailure_SingleMessage: every data route degrades to one 502
// message when the snapshot cannot be refreshed.
func TestRefreshFailure_SingleMessage(t *testing.T) {
	t.Parallel()

	c := cache.New(func(ctx context.Context) (*cache.Dataset, error) {
		return nil, errors.New("store down")
	}, 0)
	ts := httptest.NewServer(NewServer(Config{}, c).Handler())
	t.Cleanup(ts.Close)

	for _, route := range []string{"/", "/api/summary", "/api/views", "/download/performance.csv"} {
		resp := get(t, ts.URL+route)
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("%s: status = %d, want 502", route, resp.StatusCode)
		}
		body := readBody(t, resp)
		if !strings.Contains(body, "data refresh failed") {
			t.Fatalf("%s: body = %q", route, body)
		}
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := testServer(t, Config{})
	if resp := get(t, ts.URL+"/healthz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	// Absent unless configured.
	ts := testServer(t, Config{})
	if resp := get(t, ts.URL+"/metrics"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unconfigured /metrics status = %d, want 404", resp.StatusCode)
	}

	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("metrics here"))
	})
	ts2 := testServer(t, Config{Metrics: stub})
	resp := get(t, ts2.URL+"/metrics")
	body := readBody(t, resp)
	if body != "metrics here" {
		t.Fatalf("body = %q", body)
	}
}

func TestUnknownPath(t *testing.T) {
	t.Parallel()

	ts := testServer(t, Config{})
	if resp := get(t, ts.URL+"/nope"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
