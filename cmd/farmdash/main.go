package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmdash/internal/cache"
	"farmdash/internal/config"
	"farmdash/internal/fetch"
	"farmdash/internal/metrics"
	"farmdash/internal/metrics/promexpose"
	"farmdash/internal/metrics/prompush"
	"farmdash/internal/reconcile"
	"farmdash/internal/source"
	"farmdash/internal/store/sqlite"
	"farmdash/internal/webui"

	// register all backends with the source factory.
	// config specifies which to use but we build in support for all of them.
	_ "farmdash/internal/source/all"
)

// main is the entry point for the dashboard binary. It loads the config,
// optionally initializes a metrics backend, opens the source, and serves the
// dashboard until interrupted.
func main() {
	var (
		cfgPath  string
		addrFlg  string
		validate bool
	)

	flag.StringVar(&cfgPath, "config", "", "config JSON path (optional; env vars override)")
	flag.StringVar(&addrFlg, "addr", "", "listen address (overrides config)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	if addrFlg != "" {
		cfg.Server.Addr = addrFlg
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics backend: expose serves a scrape endpoint on the dashboard
	// server, pushgateway pushes on a fixed cadence.
	var metricsHandler http.Handler
	switch cfg.Metrics.Backend {
	case "expose":
		b := promexpose.NewBackend()
		metrics.SetBackend(b)
		metricsHandler = b.Handler()

	case "pushgateway":
		b, err := prompush.NewBackend(cfg.Metrics.Job, cfg.Metrics.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			break
		}
		metrics.SetBackend(b)
		go func() {
			t := time.NewTicker(30 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if err := metrics.Flush(); err != nil {
						log.Printf("metrics: flush error: %v", err)
					}
				}
			}
		}()
		defer func() {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
		}()

	case "none":
		if *verbose {
			log.Printf("metrics: disabled")
		}
	}

	src, err := source.New(ctx, source.Config{
		Kind: cfg.Source.Kind,
		URL:  cfg.Source.URL,
		Key:  cfg.Source.Key,
		DSN:  cfg.Source.DSN,
	})
	if err != nil {
		fatalf("open source: %v", err)
	}
	defer src.Close()

	var archive *sqlite.Archive
	if cfg.Archive.DSN != "" {
		a, closeFn, err := sqlite.NewArchive(ctx, cfg.Archive.DSN)
		if err != nil {
			fatalf("open snapshot archive: %v", err)
		}
		defer closeFn()
		archive = a
		if *verbose {
			log.Printf("archive: dsn=%s", cfg.Archive.DSN)
		}
	}

	loader := fetch.NewLoader(src, cfg.Source.PageSize)
	pipe := reconcile.Pipeline{CertPolicy: reconcile.CertPolicy(cfg.Reconcile.CertPolicy)}
	ttl, err := cfg.Cache.Duration()
	if err != nil {
		fatalf("%v", err)
	}

	data := cache.New(func(ctx context.Context) (*cache.Dataset, error) {
		farmers, trace, err := loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		ds := &cache.Dataset{Summary: pipe.Reconcile(farmers, trace), Trace: trace}
		if archive != nil {
			if _, err := archive.Save(ctx, time.Now(), ds.Summary); err != nil {
				// Archiving is best-effort; the dashboard still serves.
				log.Printf("archive: save failed: %v", err)
			}
		}
		return ds, nil
	}, ttl)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: webui.NewServer(webui.Config{Addr: cfg.Server.Addr, Metrics: metricsHandler}, data).Handler(),
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (source=%s, ttl=%s)", cfg.Server.Addr, cfg.Source.Kind, cfg.Cache.TTL)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatalf("serve: %v", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
