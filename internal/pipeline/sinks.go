package pipeline

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"churn/internal/config"
	"churn/internal/featurestore"
	"churn/internal/metrics"
	"churn/internal/metrics/datadog"
	"churn/internal/metrics/prompush"
	"churn/internal/storage"
)

// TableResult reports one table written to storage.
type TableResult struct {
	Table string
	storage.WriteResult
}

// Test seams.
var (
	newRepositoryFn = storage.New
	openStoreFn     = openStore
)

// store writes silver and gold to their configured tables.
func store(ctx context.Context, cfg config.Pipeline, silver, gold arrow.Record, log *zap.Logger) ([]TableResult, error) {
	db := cfg.Storage.DB
	batch := cfg.Runtime.BatchSize
	if batch <= 0 {
		batch = config.Default().Runtime.BatchSize
	}
	keys := db.KeyColumns

	var out []TableResult
	for _, t := range []struct {
		table string
		rec   arrow.Record
	}{{db.SilverTable, silver}, {db.GoldTable, gold}} {
		if t.table == "" {
			continue
		}
		res, err := writeTable(ctx, cfg.Storage.Kind, db, t.table, t.rec, keys, batch, log)
		out = append(out, TableResult{Table: t.table, WriteResult: res})
		if err != nil {
			return out, fmt.Errorf("store %s: %w", t.table, err)
		}
		metrics.RecordRow(cfg.Job, "stored", res.Written)
		metrics.RecordRow(cfg.Job, "store_skipped", res.Skipped)
		metrics.RecordBatches(cfg.Job, res.Batches)
		log.Info("table stored",
			zap.String("table", t.table),
			zap.Int64("written", res.Written),
			zap.Int64("skipped", res.Skipped),
			zap.Int64("batches", res.Batches),
		)
	}
	return out, nil
}

func writeTable(
	ctx context.Context,
	kind string,
	db config.DBConfig,
	table string,
	rec arrow.Record,
	keys []string,
	batch int,
	log *zap.Logger,
) (storage.WriteResult, error) {
	columns := make([]string, rec.NumCols())
	for i := range columns {
		columns[i] = rec.ColumnName(i)
	}
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:       kind,
		DSN:        db.DSN,
		Table:      table,
		Columns:    columns,
		KeyColumns: keys,
	})
	if err != nil {
		return storage.WriteResult{}, err
	}
	defer repo.Close()

	if db.AutoCreateTable {
		if err := storage.EnsureTable(ctx, kind, repo, table, rec.Schema(), keys); err != nil {
			return storage.WriteResult{}, fmt.Errorf("apply DDL: %w", err)
		}
	}
	return storage.WriteRecord(ctx, log, repo, rec, keys, batch)
}

func openStore(ctx context.Context, cfg config.Pipeline, log *zap.Logger) (featurestore.Store, error) {
	fs := cfg.FeatureStore
	switch fs.Kind {
	case "memory":
		return featurestore.NewMemory(fs.EntityColumn), nil
	case "sqlite":
		return featurestore.OpenSQLite(ctx, fs.DSN, fs.EntityColumn,
			featurestore.WithBatchSize(cfg.Runtime.BatchSize),
			featurestore.WithLogger(log),
		)
	}
	return nil, fmt.Errorf("unknown feature store kind %q", fs.Kind)
}

// InitMetrics installs the configured metrics backend and returns a function
// that flushes it. With no backend configured the returned function is a
// no-op.
func InitMetrics(cfg config.Pipeline, log *zap.Logger) (func(), error) {
	if log == nil {
		log = zap.NewNop()
	}
	var (
		b     metrics.Backend
		flush func() error
	)
	switch cfg.Metrics.Backend {
	case "", "none":
		log.Debug("metrics disabled")
		return func() {}, nil
	case "pushgateway":
		pb, err := prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		b, flush = pb, pb.Flush
	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  cfg.Metrics.Namespace,
			GlobalTags: cfg.Metrics.Tags,
		})
		if err != nil {
			return nil, err
		}
		b, flush = db, db.Close
	default:
		return nil, fmt.Errorf("metrics: unknown backend %q", cfg.Metrics.Backend)
	}
	metrics.SetBackend(b)
	log.Info("metrics enabled", zap.String("backend", cfg.Metrics.Backend))
	return func() {
		if err := flush(); err != nil {
			log.Warn("metrics: flush error", zap.Error(err))
		}
	}, nil
}
