// Package config defines the canonical, JSON-serializable configuration model
// for the dashboard service. It is intentionally small and explicit: a config
// can be loaded from a JSON file, overridden by environment variables, and
// passed through the program without additional glue code.
//
// Precedence, lowest to highest: built-in defaults, the JSON file,
// environment variables. Decoding is performed by the standard library.
//
// Example (trimmed):
//
//	{
//	  "source":  { "kind": "rest", "url": "https://x.supabase.co", "key": "..." },
//	  "cache":   { "ttl": "5m" },
//	  "server":  { "addr": ":8080" },
//	  "metrics": { "backend": "expose" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the top-level object decoded from a config file.
type Config struct {
	// Source describes the remote store the two tables are fetched from.
	Source SourceConfig `json:"source"`

	// Reconcile carries reconciliation options.
	Reconcile ReconcileConfig `json:"reconcile"`

	// Cache controls snapshot freshness.
	Cache CacheConfig `json:"cache"`

	// Server configures the HTTP dashboard.
	Server ServerConfig `json:"server"`

	// Metrics selects the metrics backend.
	Metrics MetricsConfig `json:"metrics"`

	// Archive configures the optional SQLite snapshot archive. An empty DSN
	// disables archiving.
	Archive ArchiveConfig `json:"archive"`
}

// SourceConfig identifies the data source. Kind selects the registered
// backend: "rest", "postgres", "mysql", or "mssql".
type SourceConfig struct {
	Kind string `json:"kind"`

	// URL and Key configure the "rest" kind (base URL and API key).
	URL string `json:"url"`
	Key string `json:"key"`

	// DSN configures the SQL kinds.
	DSN string `json:"dsn"`

	// PageSize is the fetch page size; 0 means the built-in default.
	PageSize int `json:"page_size"`
}

// ReconcileConfig carries reconciliation options.
type ReconcileConfig struct {
	// CertPolicy is "drop-empty" (default) or "keep-raw".
	CertPolicy string `json:"cert_policy"`
}

// CacheConfig controls snapshot freshness.
type CacheConfig struct {
	// TTL is a Go duration string, e.g. "5m". Empty means the default.
	TTL string `json:"ttl"`
}

// Duration parses the TTL. An empty TTL yields 0, meaning "use the default".
func (c CacheConfig) Duration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("config: parse cache.ttl %q: %w", c.TTL, err)
	}
	return d, nil
}

// ServerConfig configures the HTTP dashboard.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr"`
}

// MetricsConfig selects the metrics backend: "expose" serves a Prometheus
// scrape endpoint on the dashboard server, "pushgateway" pushes to the
// configured gateway, "none" disables metrics.
type MetricsConfig struct {
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`

	// Job labels pushed metrics; defaults to "farmdash".
	Job string `json:"job"`
}

// ArchiveConfig configures the SQLite snapshot archive.
type ArchiveConfig struct {
	DSN string `json:"dsn"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source:  SourceConfig{Kind: "rest"},
		Cache:   CacheConfig{TTL: "5m"},
		Server:  ServerConfig{Addr: ":8080"},
		Metrics: MetricsConfig{Backend: "none", Job: "farmdash"},
	}
}

// Load builds the effective configuration: defaults, then the JSON file at
// path (skipped when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Only set, non-empty
// variables override.
func applyEnv(cfg *Config) {
	setString(&cfg.Source.Kind, "SOURCE_KIND")
	setString(&cfg.Source.URL, "SOURCE_URL")
	setString(&cfg.Source.Key, "SOURCE_KEY")
	setString(&cfg.Source.DSN, "SOURCE_DSN")
	if v := os.Getenv("PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.PageSize = n
		}
	}
	setString(&cfg.Reconcile.CertPolicy, "CERT_POLICY")
	setString(&cfg.Cache.TTL, "CACHE_TTL")
	setString(&cfg.Server.Addr, "LISTEN_ADDR")
	setString(&cfg.Metrics.Backend, "METRICS_BACKEND")
	setString(&cfg.Metrics.PushgatewayURL, "PUSHGATEWAY_URL")
	setString(&cfg.Archive.DSN, "SNAPSHOT_DSN")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
