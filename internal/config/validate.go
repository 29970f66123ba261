package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "parity.stages[1]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Callers decide whether warnings are fatal;
// the CLI blocks on errors only.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateEngine(p.Engine)...)
	issues = append(issues, validateParity(p.Parity)...)
	if strings.TrimSpace(p.Output.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output.dir",
			Message:  "no output directory; silver and gold stage files will not be written",
		})
	}
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateFeatureStore(p.FeatureStore)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
	}
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
		issues = append(issues, validateFormat("source.file.format", s.File.Format)...)
	case "http":
		u, err := url.Parse(s.HTTP.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  fmt.Sprintf("http source requires an http(s) url, got %q", s.HTTP.URL),
			})
		}
		issues = append(issues, validateFormat("source.http.format", s.HTTP.Format)...)
		if s.HTTP.MaxRetries < 0 || s.HTTP.TimeoutSeconds < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http",
				Message:  "max_retries and timeout_seconds must not be negative",
			})
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "source.http.insecure_skip_verify",
				Message:  "TLS certificate verification is disabled",
			})
		}
	default:
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q", s.Kind),
		})
	}
	return issues
}

func validateFormat(path, format string) []Issue {
	switch format {
	case "", "csv", "parquet":
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Path:     path,
		Message:  fmt.Sprintf("unknown format %q; want csv or parquet", format),
	}}
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	if n := utf8.RuneCountInString(p.Comma); n > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.comma",
			Message:  fmt.Sprintf("comma must be a single character, got %q", p.Comma),
		})
	}
	switch p.Comma {
	case "\r", "\n", "\"":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.comma",
			Message:  fmt.Sprintf("%q cannot be used as a delimiter", p.Comma),
		})
	}
	if p.ExpectedFields < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.expected_fields",
			Message:  "expected_fields must not be negative",
		})
	}
	if !p.HasHeader && len(p.HeaderMap) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.header_map",
			Message:  "header_map has no effect without has_header",
		})
	}
	return issues
}

func validateEngine(e Engine) []Issue {
	switch e.Kind {
	case "duckdb", "vectorized":
		return nil
	case "":
		return []Issue{{
			Severity: SeverityError,
			Path:     "engine.kind",
			Message:  "engine.kind must not be empty",
		}}
	}
	return []Issue{{
		Severity: SeverityError,
		Path:     "engine.kind",
		Message:  fmt.Sprintf("unknown engine %q; want duckdb or vectorized", e.Kind),
	}}
}

func validateParity(p Parity) []Issue {
	var issues []Issue
	seen := map[string]bool{}
	for i, s := range p.Stages {
		path := fmt.Sprintf("parity.stages[%d]", i)
		if s != "silver" && s != "gold" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("unknown stage %q; want silver or gold", s),
			})
			continue
		}
		if seen[s] {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path,
				Message:  fmt.Sprintf("stage %q listed twice", s),
			})
		}
		seen[s] = true
	}
	if p.Enabled && len(p.Stages) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parity.stages",
			Message:  "parity is enabled with no stages; silver is always checked",
		})
	}
	return issues
}

// validateStorage validates storage configuration and DB settings.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	switch s.Kind {
	case "":
		return nil
	case "postgres", "sqlite":
	default:
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; want postgres or sqlite", s.Kind),
		})
	}

	db := s.DB
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(db.SilverTable) == "" && strings.TrimSpace(db.GoldTable) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db",
			Message:  "at least one of silver_table or gold_table is required",
		})
	}
	if len(db.KeyColumns) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.db.key_columns",
			Message:  "no key columns; every run appends rows instead of upserting",
		})
	}
	for i, k := range db.KeyColumns {
		if strings.TrimSpace(k) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("storage.db.key_columns[%d]", i),
				Message:  "key column must not be empty",
			})
		}
	}
	return issues
}

func validateFeatureStore(f FeatureStore) []Issue {
	var issues []Issue
	switch f.Kind {
	case "":
		return nil
	case "memory":
	case "sqlite":
		if strings.TrimSpace(f.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "feature_store.dsn",
				Message:  "sqlite feature store requires a dsn",
			})
		}
	default:
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "feature_store.kind",
			Message:  fmt.Sprintf("unknown feature store kind %q; want memory or sqlite", f.Kind),
		})
	}
	if strings.TrimSpace(f.EntityColumn) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "feature_store.entity_column",
			Message:  "entity_column must not be empty",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url",
			}}
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			}}
		}
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; want pushgateway, datadog or none", m.Backend),
		}}
	}
	return nil
}

// validateRuntime flags batch sizes the pipeline will replace.
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; the default of 5000 is used", r.BatchSize),
		})
	}
	return issues
}
