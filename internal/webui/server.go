// Package webui exposes the reconciliation dashboard over HTTP: a server-
// rendered HTML page, JSON endpoints for the summary and the aggregate
// views, and the two CSV downloads.
//
// Routes:
//
//	GET /                         → dashboard page
//	GET /api/summary              → filtered summary rows + headline (JSON)
//	GET /api/views                → aggregation views (JSON)
//	GET /download/performance.csv → full summary, sorted by delivery %
//	GET /download/non-delivery.csv→ farmers with no delivered weight
//	GET /healthz                  → liveness probe
//	GET /metrics                  → Prometheus scrape (when configured)
//
// All data routes accept ?cooperative= and ?exporter= filter parameters;
// absent parameters mean the All sentinel.
package webui

import (
	_ "embed"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"farmdash/internal/cache"
	"farmdash/internal/export"
	"farmdash/internal/metrics"
	"farmdash/internal/reconcile"
	"farmdash/internal/report"
)

// Config controls server startup.
type Config struct {
	Addr string

	// Metrics, when non-nil, is served at /metrics.
	Metrics http.Handler
}

// Server wraps http.Server for convenience.
type Server struct {
	cfg   Config
	data  *cache.Cache
	mux   *http.ServeMux
	tmpl  *template.Template
	print *message.Printer
}

// NewServer constructs a Server with routes and the embedded template.
func NewServer(cfg Config, data *cache.Cache) *Server {
	p := message.NewPrinter(language.English)
	s := &Server{
		cfg:   cfg,
		data:  data,
		mux:   http.NewServeMux(),
		print: p,
		tmpl: template.Must(template.New("index").Funcs(template.FuncMap{
			"kg":  func(v float64) string { return p.Sprintf("%.0f", v) },
			"pct": func(v float64) string { return p.Sprintf("%.2f", v) },
			"n":   func(v int) string { return p.Sprintf("%d", v) },
		}).Parse(indexHTML)),
	}
	s.routes()
	return s
}

// Handler returns the route mux, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return http.ListenAndServe(s.cfg.Addr, s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.instrument("/", s.handleIndex))
	s.mux.HandleFunc("/api/summary", s.instrument("/api/summary", s.handleSummary))
	s.mux.HandleFunc("/api/views", s.instrument("/api/views", s.handleViews))
	s.mux.HandleFunc("/download/performance.csv", s.instrument("/download/performance.csv", s.handleDownload(export.PerformanceCSV)))
	s.mux.HandleFunc("/download/non-delivery.csv", s.instrument("/download/non-delivery.csv", s.handleDownload(export.NonDeliveryCSV)))
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	if s.cfg.Metrics != nil {
		s.mux.Handle("/metrics", s.cfg.Metrics)
	}
}

// statusWriter captures the response status for request metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		metrics.RecordHTTP(route, sw.status)
	}
}

// filters reads the two filter parameters; absent means the All sentinel.
func filters(r *http.Request) (cooperative, exporter string) {
	cooperative = strings.TrimSpace(r.URL.Query().Get("cooperative"))
	if cooperative == "" {
		cooperative = report.All
	}
	exporter = strings.TrimSpace(r.URL.Query().Get("exporter"))
	if exporter == "" {
		exporter = report.All
	}
	return cooperative, exporter
}

// dataset fetches the current snapshot. On refresh failure it writes the
// single upstream-failure message and returns false; handlers just return.
func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (*cache.Dataset, bool) {
	ds, err := s.data.Get(r.Context())
	if err != nil {
		log.Printf("webui: data refresh failed: %v", err)
		http.Error(w, "data refresh failed; the remote store is unreachable", http.StatusBadGateway)
		return nil, false
	}
	return ds, true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}

	coop, exp := filters(r)
	rows := report.Filter(ds.Summary, coop, exp)
	coops, exporters := report.FilterOptions(ds.Summary)

	data := struct {
		FetchedAt    string
		Cooperative  string
		Exporter     string
		Cooperatives []string
		Exporters    []string
		Headline     report.Headline
		Status       report.StatusSplit
		ByExporter   []report.GroupTotal
		ByCoop       []report.GroupTotal
		CertByCoop   []report.CertTotal
		CertByExp    []report.CertTotal
		Performance  []reconcile.FarmerSummary
		NonDelivery  []reconcile.FarmerSummary
	}{
		FetchedAt:    ds.FetchedAt.UTC().Format(time.RFC3339),
		Cooperative:  coop,
		Exporter:     exp,
		Cooperatives: coops,
		Exporters:    exporters,
		Headline:     report.ComputeHeadline(rows),
		Status:       report.SplitStatus(rows),
		ByExporter:   report.TotalsByExporter(rows),
		ByCoop:       report.TotalsByCooperative(rows),
		CertByCoop:   report.CertTotalsByCooperative(ds.Trace, rows),
		CertByExp:    report.CertTotalsByExporter(ds.Trace, rows),
		Performance:  report.SortByDelivery(rows),
		NonDelivery:  report.NonDelivering(rows),
	}
	if err := s.tmpl.Execute(w, data); err != nil {
		log.Println("webui: template error:", err)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}

	coop, exp := filters(r)
	rows := report.Filter(ds.Summary, coop, exp)
	writeJSON(w, struct {
		FetchedAt time.Time                 `json:"fetched_at"`
		Headline  report.Headline           `json:"headline"`
		Rows      []reconcile.FarmerSummary `json:"rows"`
	}{
		FetchedAt: ds.FetchedAt.UTC(),
		Headline:  report.ComputeHeadline(rows),
		Rows:      report.SortByDelivery(rows),
	})
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}

	coop, exp := filters(r)
	rows := report.Filter(ds.Summary, coop, exp)
	coops, exporters := report.FilterOptions(ds.Summary)
	writeJSON(w, struct {
		FetchedAt    time.Time                 `json:"fetched_at"`
		Cooperatives []string                  `json:"cooperatives"`
		Exporters    []string                  `json:"exporters"`
		Histogram    []report.HistogramBin     `json:"histogram"`
		Status       report.StatusSplit        `json:"status"`
		ByExporter   []report.GroupTotal       `json:"totals_by_exporter"`
		ByCoop       []report.GroupTotal       `json:"totals_by_cooperative"`
		CertByCoop   []report.CertTotal        `json:"cert_by_cooperative"`
		CertByExp    []report.CertTotal        `json:"cert_by_exporter"`
		NonDelivery  []reconcile.FarmerSummary `json:"non_delivering"`
	}{
		FetchedAt:    ds.FetchedAt.UTC(),
		Cooperatives: coops,
		Exporters:    exporters,
		Histogram:    report.Histogram(rows, report.HistogramBins),
		Status:       report.SplitStatus(rows),
		ByExporter:   report.TotalsByExporter(rows),
		ByCoop:       report.TotalsByCooperative(rows),
		CertByCoop:   report.CertTotalsByCooperative(ds.Trace, rows),
		CertByExp:    report.CertTotalsByExporter(ds.Trace, rows),
		NonDelivery:  report.NonDelivering(rows),
	})
}

// handleDownload builds a CSV handler around one of the export renderers.
// Unchanged content revalidates via ETag instead of re-downloading.
func (s *Server) handleDownload(render func([]reconcile.FarmerSummary) (export.Document, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, ok := s.dataset(w, r)
		if !ok {
			return
		}

		coop, exp := filters(r)
		doc, err := render(report.Filter(ds.Summary, coop, exp))
		if err != nil {
			log.Printf("webui: csv render failed: %v", err)
			http.Error(w, "csv render failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("ETag", doc.ETag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == doc.ETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
		_, _ = w.Write(doc.Body)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Println("webui: encode error:", err)
	}
}

// indexHTML is an embedded, minimal page with vanilla styling.
//
//go:embed index.tmpl.html
var indexHTML string
