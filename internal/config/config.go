// Package config defines the pipeline configuration model. Pipeline files are
// YAML (JSON documents decode too, since JSON is a subset) under
// configs/pipelines/.
//
// Example (trimmed):
//
//	job: telco-daily
//	source:  { kind: file, file: { path: data/telco.csv } }
//	parser:  { comma: ",", has_header: true }
//	engine:  { kind: duckdb }
//	parity:  { enabled: true, stages: [silver, gold] }
//	output:  { dir: out/telco }
//	storage:
//	  kind: postgres
//	  db: { dsn: "postgres://...", silver_table: public.silver, gold_table: public.gold,
//	        key_columns: [customer_id], auto_create_table: true }
//	feature_store: { kind: sqlite, dsn: features.db }
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Pipeline describes one end-to-end run: raw file to silver and gold tables,
// their sinks and the online feature store.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `yaml:"job" json:"job"`

	Source       Source        `yaml:"source" json:"source"`
	Parser       Parser        `yaml:"parser" json:"parser"`
	Engine       Engine        `yaml:"engine" json:"engine"`
	Parity       Parity        `yaml:"parity" json:"parity"`
	Output       Output        `yaml:"output" json:"output"`
	Storage      Storage       `yaml:"storage" json:"storage"`
	FeatureStore FeatureStore  `yaml:"feature_store" json:"feature_store"`
	Metrics      Metrics       `yaml:"metrics" json:"metrics"`
	Runtime      RuntimeConfig `yaml:"runtime" json:"runtime"`
}

// Source identifies the raw input.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string     `yaml:"kind" json:"kind"`
	File SourceFile `yaml:"file" json:"file"`
	HTTP SourceHTTP `yaml:"http" json:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is a local path; a .gz suffix is decompressed on the fly.
	Path string `yaml:"path" json:"path"`
	// Format is csv or parquet. Empty means detect from the extension.
	Format string `yaml:"format" json:"format"`
}

// SourceHTTP holds configuration for the "http" source kind. The snapshot is
// downloaded into CacheDir and then read like a local file.
type SourceHTTP struct {
	URL string `yaml:"url" json:"url"`
	// CacheDir receives the download. Empty means the system temp directory.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// Format is csv or parquet. Empty means detect from the URL path.
	Format             string `yaml:"format" json:"format"`
	MaxRetries         int    `yaml:"max_retries" json:"max_retries"`
	TimeoutSeconds     int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// Parser configures CSV decoding. It is ignored for parquet input.
type Parser struct {
	Comma          string            `yaml:"comma" json:"comma"`
	HasHeader      bool              `yaml:"has_header" json:"has_header"`
	ExpectedFields int               `yaml:"expected_fields" json:"expected_fields"`
	HeaderMap      map[string]string `yaml:"header_map" json:"header_map"`
}

// CommaRune returns the first rune of Comma, or ',' when unset.
func (p Parser) CommaRune() rune {
	for _, r := range p.Comma {
		return r
	}
	return ','
}

// Engine selects the transform path whose output is kept.
type Engine struct {
	// Kind is duckdb (relational) or vectorized (in-process arrow).
	Kind string `yaml:"kind" json:"kind"`
	// DSN is the DuckDB database; empty means in-memory.
	DSN string `yaml:"dsn" json:"dsn"`
}

// Parity gates a run on both paths agreeing.
type Parity struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	StrictTypes bool     `yaml:"strict_types" json:"strict_types"`
	Stages      []string `yaml:"stages" json:"stages"`
}

// Gold reports whether the gold stage is checked.
func (p Parity) Gold() bool {
	for _, s := range p.Stages {
		if s == "gold" {
			return true
		}
	}
	return false
}

// Output configures the parquet stage files.
type Output struct {
	// Dir receives silver.parquet and gold.parquet. Empty disables stage files.
	Dir string `yaml:"dir" json:"dir"`
}

// Storage selects the relational sink. An empty Kind disables it.
type Storage struct {
	Kind string   `yaml:"kind" json:"kind"`
	DB   DBConfig `yaml:"db" json:"db"`
}

// DBConfig configures the relational sink.
type DBConfig struct {
	// DSN is the connection string (postgresql://... or a sqlite file path).
	DSN string `yaml:"dsn" json:"dsn"`

	// SilverTable and GoldTable are (optionally schema-qualified) table names.
	// An empty name skips that table.
	SilverTable string `yaml:"silver_table" json:"silver_table"`
	GoldTable   string `yaml:"gold_table" json:"gold_table"`

	// KeyColumns form the primary key; rows with the same key are upserted.
	// Empty means append-only.
	KeyColumns []string `yaml:"key_columns" json:"key_columns"`

	// AutoCreateTable creates missing tables from the record schema.
	AutoCreateTable bool `yaml:"auto_create_table" json:"auto_create_table"`
}

// FeatureStore configures the online store. An empty Kind disables it.
type FeatureStore struct {
	// Kind is memory or sqlite.
	Kind string `yaml:"kind" json:"kind"`
	DSN  string `yaml:"dsn" json:"dsn"`
	// EntityColumn is the gold column used as the lookup key.
	EntityColumn string `yaml:"entity_column" json:"entity_column"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is pushgateway, datadog or none (the default).
	Backend        string   `yaml:"backend" json:"backend"`
	PushgatewayURL string   `yaml:"pushgateway_url" json:"pushgateway_url"`
	DatadogAddr    string   `yaml:"datadog_addr" json:"datadog_addr"`
	Namespace      string   `yaml:"namespace" json:"namespace"`
	Tags           []string `yaml:"tags" json:"tags"`
}

// RuntimeConfig controls batching.
type RuntimeConfig struct {
	// BatchSize is the number of rows per storage and feature store batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// Default returns the values a pipeline file starts from.
func Default() Pipeline {
	return Pipeline{
		Source: Source{Kind: "file"},
		Parser: Parser{Comma: ",", HasHeader: true},
		Engine: Engine{Kind: "duckdb"},
		Parity: Parity{Stages: []string{"silver", "gold"}},
		FeatureStore: FeatureStore{
			EntityColumn: "customer_id",
		},
		Metrics: Metrics{Backend: "none"},
		Runtime: RuntimeConfig{BatchSize: 5000},
	}
}

// Decode reads a pipeline document over Default. Unknown keys are rejected.
func Decode(r io.Reader) (Pipeline, error) {
	p := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return Pipeline{}, fmt.Errorf("decode pipeline: %w", err)
	}
	return p, nil
}

// Load reads and decodes the pipeline file at path.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, err
	}
	p, err := Decode(bytes.NewReader(b))
	if err != nil {
		return Pipeline{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
