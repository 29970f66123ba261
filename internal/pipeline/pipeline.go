// Package pipeline runs one configured churn job end to end:
//
//	source → parse → [parity gate] → silver → gold → stage files → storage → feature store
//
// Each stage is timed and recorded through the metrics package and logged
// with a one-line summary. A failing stage aborts the run; nothing after it
// is attempted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"churn/internal/config"
	"churn/internal/datasource/file"
	"churn/internal/datasource/httpds"
	"churn/internal/featurestore"
	"churn/internal/metrics"
	"churn/internal/parity"
	"churn/internal/parquetio"
	csvparser "churn/internal/parser/csv"
	"churn/internal/schema"
	"churn/internal/sqlengine"
	"churn/internal/transformer"
)

// Deps carries what a run needs beyond its configuration. Zero values are
// replaced with defaults.
type Deps struct {
	Logger *zap.Logger
	// Contract defaults to schema.Telco().
	Contract *schema.Contract
	// Store overrides the configured feature store. It is not closed by Run.
	Store featurestore.Store
}

// Summary reports what a run produced.
type Summary struct {
	Job          string
	Engine       string
	RawRows      int64
	ParseSkipped int64
	SilverRows   int64
	GoldRows     int64
	Files        []string
	Stored       []TableResult
	Parity       *parity.Report
	FeatureRun   *featurestore.Run
	Took         time.Duration
}

// Test seams.
var (
	openDuckDBFn = func(ctx context.Context, cfg config.Engine, c *schema.Contract, log *zap.Logger) (transformer.Path, func() error, error) {
		e, err := sqlengine.Open(ctx, cfg.DSN, c, sqlengine.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	}
	newVectorizedFn = func(c *schema.Contract) (transformer.Path, error) {
		return transformer.NewVectorized(c)
	}
	downloadFn = download
)

// Run executes cfg. Configuration errors reported by config.ValidatePipeline
// are the caller's to check.
func Run(ctx context.Context, cfg config.Pipeline, deps Deps) (*Summary, error) {
	start := time.Now()
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("job", cfg.Job))
	contract := deps.Contract
	if contract == nil {
		contract = schema.Telco()
	}
	sum := &Summary{Job: cfg.Job, Engine: cfg.Engine.Kind}

	raw, err := step(cfg.Job, "read", func() (arrow.Record, error) {
		rec, skipped, err := ReadRaw(ctx, cfg, log)
		sum.ParseSkipped = int64(skipped)
		return rec, err
	})
	if err != nil {
		return sum, err
	}
	defer raw.Release()
	sum.RawRows = raw.NumRows()
	metrics.RecordRow(cfg.Job, "raw", sum.RawRows)
	metrics.RecordRow(cfg.Job, "parse_skipped", sum.ParseSkipped)
	log.Info("raw input read",
		zap.String("path", cfg.Source.File.Path),
		zap.Int64("rows", sum.RawRows),
		zap.Int64("skipped", sum.ParseSkipped),
	)

	paths, closePaths, err := buildPaths(ctx, cfg, contract, log)
	if err != nil {
		return sum, err
	}
	defer closePaths()

	if cfg.Parity.Enabled {
		r := &parity.Runner{
			A:      paths.relational,
			B:      paths.vectorized,
			Key:    contract.Key(),
			Gold:   cfg.Parity.Gold(),
			Strict: cfg.Parity.StrictTypes,
			Logger: log,
		}
		t0 := time.Now()
		report, err := r.Run(ctx, raw)
		metrics.RecordStep(cfg.Job, "parity", err, time.Since(t0))
		metrics.RecordParity(cfg.Job, err)
		if err != nil {
			return sum, fmt.Errorf("parity gate: %w", err)
		}
		sum.Parity = report
	}

	primary := paths.primary(cfg.Engine.Kind)
	silver, err := step(cfg.Job, "silver", func() (arrow.Record, error) {
		return primary.NormalizeAndDedupe(ctx, raw)
	})
	if err != nil {
		return sum, fmt.Errorf("silver: %w", err)
	}
	defer silver.Release()
	sum.SilverRows = silver.NumRows()
	metrics.RecordRow(cfg.Job, "silver", sum.SilverRows)

	gold, err := step(cfg.Job, "gold", func() (arrow.Record, error) {
		return primary.DeriveFeatures(ctx, silver)
	})
	if err != nil {
		return sum, fmt.Errorf("gold: %w", err)
	}
	defer gold.Release()
	sum.GoldRows = gold.NumRows()
	metrics.RecordRow(cfg.Job, "gold", sum.GoldRows)
	log.Info("tables derived",
		zap.String("engine", primary.Name()),
		zap.Int64("silver_rows", sum.SilverRows),
		zap.Int64("gold_rows", sum.GoldRows),
	)

	if cfg.Output.Dir != "" {
		t0 := time.Now()
		files, err := writeStageFiles(cfg.Output.Dir, silver, gold)
		metrics.RecordStep(cfg.Job, "stage_files", err, time.Since(t0))
		if err != nil {
			return sum, err
		}
		sum.Files = files
		log.Info("stage files written", zap.Strings("files", files))
	}

	if cfg.Storage.Kind != "" {
		t0 := time.Now()
		stored, err := store(ctx, cfg, silver, gold, log)
		metrics.RecordStep(cfg.Job, "storage", err, time.Since(t0))
		sum.Stored = stored
		if err != nil {
			return sum, err
		}
	}

	fs := deps.Store
	if fs == nil && cfg.FeatureStore.Kind != "" {
		fs, err = openStoreFn(ctx, cfg, log)
		if err != nil {
			return sum, err
		}
		defer fs.Close()
	}
	if fs != nil {
		t0 := time.Now()
		run, err := fs.Publish(ctx, gold)
		metrics.RecordStep(cfg.Job, "feature_store", err, time.Since(t0))
		metrics.RecordFeatureRun(cfg.Job, err)
		sum.FeatureRun = &run
		if err != nil {
			return sum, fmt.Errorf("feature store: %w", err)
		}
		metrics.RecordRow(cfg.Job, "published", run.Entities)
		log.Info("features published", zap.String("run_id", run.ID), zap.Int64("entities", run.Entities))
	}

	sum.Took = time.Since(start)
	log.Info("pipeline complete", zap.Duration("took", sum.Took))
	return sum, nil
}

// step times fn and records it under name.
func step(job, name string, fn func() (arrow.Record, error)) (arrow.Record, error) {
	t0 := time.Now()
	rec, err := fn()
	metrics.RecordStep(job, name, err, time.Since(t0))
	return rec, err
}

// ReadRaw opens the configured source and parses it into a raw record. The
// int result counts CSV rows skipped as unreadable. An http source is first
// downloaded into its cache directory.
func ReadRaw(ctx context.Context, cfg config.Pipeline, log *zap.Logger) (arrow.Record, int, error) {
	if cfg.Source.Kind == "http" {
		path, err := downloadFn(ctx, cfg.Source.HTTP, log)
		if err != nil {
			return nil, 0, fmt.Errorf("download snapshot: %w", err)
		}
		cfg.Source.File = config.SourceFile{Path: path, Format: cfg.Source.HTTP.Format}
	}
	src := file.NewLocal(cfg.Source.File.Path)
	format := cfg.Source.File.Format
	if format == "" {
		format = src.Format()
	}
	switch format {
	case file.FormatParquet:
		if filepath.Ext(src.Path()) == ".gz" {
			return nil, 0, fmt.Errorf("read %s: parquet input cannot be gzip-compressed", src.Path())
		}
		rec, err := parquetio.ReadRaw(ctx, src.Path())
		return rec, 0, err
	case file.FormatCSV:
		rc, err := src.Open(ctx)
		if err != nil {
			return nil, 0, err
		}
		defer rc.Close()
		p := csvparser.NewParser(csvparser.Options{
			HasHeader:      cfg.Parser.HasHeader,
			Comma:          cfg.Parser.CommaRune(),
			ExpectedFields: cfg.Parser.ExpectedFields,
			HeaderMap:      cfg.Parser.HeaderMap,
		}, log)
		rec, skipped, err := p.ParseContext(ctx, rc)
		if err != nil {
			return nil, skipped, fmt.Errorf("parse %s: %w", src.Path(), err)
		}
		return rec, skipped, nil
	}
	return nil, 0, fmt.Errorf("unknown source format %q", format)
}

func download(ctx context.Context, src config.SourceHTTP, log *zap.Logger) (string, error) {
	dir := src.CacheDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "churn-snapshots")
	}
	c := httpds.NewClient(httpds.Config{
		Timeout:            time.Duration(src.TimeoutSeconds) * time.Second,
		MaxRetries:         src.MaxRetries,
		InsecureSkipVerify: src.InsecureSkipVerify,
		Logger:             log,
	})
	return c.Download(ctx, src.URL, dir)
}

type pathSet struct {
	relational, vectorized transformer.Path
}

func (p pathSet) primary(kind string) transformer.Path {
	if kind == "vectorized" {
		return p.vectorized
	}
	return p.relational
}

// buildPaths opens the engine the run keeps and, when parity is enabled, the
// other one too. Paths that are not needed stay nil.
func buildPaths(ctx context.Context, cfg config.Pipeline, c *schema.Contract, log *zap.Logger) (pathSet, func(), error) {
	var (
		ps      pathSet
		closers []func() error
	)
	closeAll := func() {
		for _, fn := range closers {
			if err := fn(); err != nil {
				log.Warn("close engine", zap.Error(err))
			}
		}
	}
	if cfg.Parity.Enabled || cfg.Engine.Kind != "vectorized" {
		p, closeFn, err := openDuckDBFn(ctx, cfg.Engine, c, log)
		if err != nil {
			return ps, nil, fmt.Errorf("open duckdb: %w", err)
		}
		ps.relational = p
		closers = append(closers, closeFn)
	}
	if cfg.Parity.Enabled || cfg.Engine.Kind == "vectorized" {
		p, err := newVectorizedFn(c)
		if err != nil {
			closeAll()
			return ps, nil, err
		}
		ps.vectorized = p
	}
	return ps, closeAll, nil
}

// StageFiles are the names written under output.dir.
const (
	SilverFile = "silver.parquet"
	GoldFile   = "gold.parquet"
)

func writeStageFiles(dir string, silver, gold arrow.Record) ([]string, error) {
	var files []string
	var errs []error
	for _, f := range []struct {
		name string
		rec  arrow.Record
	}{{SilverFile, silver}, {GoldFile, gold}} {
		p := filepath.Join(dir, f.name)
		if err := parquetio.Write(p, f.rec); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", p, err))
			continue
		}
		files = append(files, p)
	}
	return files, errors.Join(errs...)
}
