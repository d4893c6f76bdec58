// Package config provides the configuration model and helpers for the
// dashboard service.
//
// This file adds a lightweight linter/validator for Config values. It
// performs static checks over a loaded Config and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block startup.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be
	// surfaced to users but does not block startup.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "source.kind"); Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where one is expected.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue in the slice is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation of a Config. It does not mutate the
// config; callers decide whether to treat warnings as fatal.
func Validate(cfg Config) []Issue {
	var issues []Issue
	issues = append(issues, validateSource(cfg.Source)...)
	issues = append(issues, validateReconcile(cfg.Reconcile)...)
	issues = append(issues, validateCache(cfg.Cache)...)
	issues = append(issues, validateServer(cfg.Server)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	return issues
}

func validateSource(s SourceConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"rest":     {},
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	switch s.Kind {
	case "rest":
		if strings.TrimSpace(s.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.url",
				Message:  "rest source requires a non-empty url",
			})
		}
		if strings.TrimSpace(s.Key) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.key",
				Message:  "rest source requires a non-empty key",
			})
		}
	case "postgres", "mysql", "mssql":
		if strings.TrimSpace(s.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.dsn",
				Message:  fmt.Sprintf("%s source requires a non-empty dsn", s.Kind),
			})
		}
	}

	if s.PageSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.page_size",
			Message:  "page_size must not be negative",
		})
	}

	return issues
}

func validateReconcile(r ReconcileConfig) []Issue {
	switch r.CertPolicy {
	case "", "drop-empty", "keep-raw":
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Path:     "reconcile.cert_policy",
		Message:  fmt.Sprintf("cert_policy must be %q or %q, got %q", "drop-empty", "keep-raw", r.CertPolicy),
	}}
}

func validateCache(c CacheConfig) []Issue {
	d, err := c.Duration()
	if err != nil {
		return []Issue{{
			Severity: SeverityError,
			Path:     "cache.ttl",
			Message:  fmt.Sprintf("ttl %q is not a valid duration", c.TTL),
		}}
	}
	if d < 0 {
		return []Issue{{
			Severity: SeverityError,
			Path:     "cache.ttl",
			Message:  "ttl must not be negative",
		}}
	}
	return nil
}

func validateServer(s ServerConfig) []Issue {
	if strings.TrimSpace(s.Addr) == "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "server.addr",
			Message:  "server.addr must not be empty",
		}}
	}
	return nil
}

func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"none":        {},
		"expose":      {},
		"pushgateway": {},
	}
	if _, ok := known[m.Backend]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; valid values are none, expose, pushgateway", m.Backend),
		})
	}
	if m.Backend == "pushgateway" && strings.TrimSpace(m.PushgatewayURL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.pushgateway_url",
			Message:  "pushgateway backend requires a non-empty pushgateway_url",
		})
	}
	return issues
}
