package featurestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"churn/internal/storage"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS feature_runs (
  run_id      TEXT PRIMARY KEY NOT NULL,
  status      TEXT NOT NULL,
  entity_col  TEXT NOT NULL,
  entities    INTEGER NOT NULL DEFAULT 0,
  started_at  TEXT NOT NULL,
  finished_at TEXT,
  error       TEXT
);
CREATE TABLE IF NOT EXISTS feature_rows (
  run_id      TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  features    TEXT NOT NULL,
  PRIMARY KEY (run_id, customer_id)
);
CREATE TABLE IF NOT EXISTS feature_pointer (
  name   TEXT PRIMARY KEY NOT NULL,
  run_id TEXT NOT NULL
);`

const currentPointer = "CURRENT"

// SQLite is a Store backed by a SQLite database. Rows of every run are kept
// until Prune removes them.
type SQLite struct {
	db        *sql.DB
	entityCol string
	batchSize int
	log       *zap.Logger
}

// SQLiteOption configures OpenSQLite.
type SQLiteOption func(*SQLite)

// WithBatchSize sets how many rows are inserted per transaction.
func WithBatchSize(n int) SQLiteOption {
	return func(s *SQLite) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SQLiteOption {
	return func(s *SQLite) {
		if l != nil {
			s.log = l
		}
	}
}

// OpenSQLite opens (creating if needed) the store at dsn.
func OpenSQLite(ctx context.Context, dsn, entityCol string, opts ...SQLiteOption) (*SQLite, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("featurestore: sqlite DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("featurestore: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("featurestore: schema: %w", err)
	}
	s := &SQLite{db: db, entityCol: entityCol, batchSize: 1000, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Publish(ctx context.Context, gold arrow.Record) (Run, error) {
	run := newRun(s.entityCol)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO feature_runs (run_id, status, entity_col, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Status, run.EntityCol, run.StartedAt.Format(time.RFC3339Nano),
	); err != nil {
		return run, fmt.Errorf("featurestore: start run: %w", err)
	}

	n, err := s.writeRows(ctx, run.ID, gold)
	run.Entities = n
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Status, run.Error = StatusFailed, err.Error()
		// The caller's ctx may be the reason for the failure.
		if _, uerr := s.db.ExecContext(context.WithoutCancel(ctx),
			`UPDATE feature_runs SET status = ?, entities = ?, finished_at = ?, error = ? WHERE run_id = ?`,
			run.Status, run.Entities, run.FinishedAt.Format(time.RFC3339Nano), run.Error, run.ID,
		); uerr != nil {
			s.log.Error("featurestore: mark run failed", zap.String("run_id", run.ID), zap.Error(uerr))
		}
		return run, err
	}

	run.Status = StatusPublished
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, fmt.Errorf("featurestore: begin publish: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`UPDATE feature_runs SET status = ?, entities = ?, finished_at = ? WHERE run_id = ?`,
		run.Status, run.Entities, run.FinishedAt.Format(time.RFC3339Nano), run.ID,
	); err != nil {
		return run, fmt.Errorf("featurestore: publish run: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO feature_pointer (name, run_id) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET run_id = excluded.run_id`,
		currentPointer, run.ID,
	); err != nil {
		return run, fmt.Errorf("featurestore: move pointer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("featurestore: commit publish: %w", err)
	}
	s.log.Info("featurestore: run published", zap.String("run_id", run.ID), zap.Int64("entities", run.Entities))
	return run, nil
}

// writeRows streams gold through storage.LoadBatches, one transaction per
// batch. It reports distinct entities written.
func (s *SQLite) writeRows(ctx context.Context, runID string, gold arrow.Record) (int64, error) {
	columns := []string{"run_id", "customer_id", "features"}
	in := make(chan []any, s.batchSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(in)
		return entities(gctx, gold, s.entityCol, func(id string, f Features) error {
			b, err := json.Marshal(f)
			if err != nil {
				return err
			}
			select {
			case in <- []any{runID, id, string(b)}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	g.Go(func() error {
		_, err := storage.LoadBatches(gctx, s.log, columns, in, s.batchSize, s.copyRows)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feature_rows WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func (s *SQLite) copyRows(ctx context.Context, _ []string, rows [][]any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO feature_rows (run_id, customer_id, features) VALUES (?, ?, ?)
		 ON CONFLICT (run_id, customer_id) DO UPDATE SET features = excluded.features`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (s *SQLite) currentID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT run_id FROM feature_pointer WHERE name = ?`, currentPointer).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoCurrent
	}
	if err != nil {
		return "", fmt.Errorf("featurestore: read pointer: %w", err)
	}
	return id, nil
}

func (s *SQLite) Get(ctx context.Context, customerID string) (Features, bool, error) {
	runID, err := s.currentID(ctx)
	if err != nil {
		return nil, false, err
	}
	var raw string
	err = s.db.QueryRowContext(ctx,
		`SELECT features FROM feature_rows WHERE run_id = ? AND customer_id = ?`, runID, customerID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("featurestore: get %q: %w", customerID, err)
	}
	var f Features
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, false, fmt.Errorf("featurestore: decode %q: %w", customerID, err)
	}
	return f, true, nil
}

func (s *SQLite) Current(ctx context.Context) (Run, error) {
	runID, err := s.currentID(ctx)
	if err != nil {
		return Run{}, err
	}
	return s.Run(ctx, runID)
}

// Run returns the metadata of any run.
func (s *SQLite) Run(ctx context.Context, id string) (Run, error) {
	var (
		r                 Run
		started           string
		finished, errText sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, status, entity_col, entities, started_at, finished_at, error FROM feature_runs WHERE run_id = ?`, id,
	).Scan(&r.ID, &r.Status, &r.EntityCol, &r.Entities, &started, &finished, &errText)
	if err != nil {
		return Run{}, fmt.Errorf("featurestore: run %s: %w", id, err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	r.Error = errText.String
	return r, nil
}

func (s *SQLite) Sample(ctx context.Context, limit int) ([]string, error) {
	runID, err := s.currentID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_id FROM feature_rows WHERE run_id = ? ORDER BY random() LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("featurestore: sample: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Prune deletes the rows of every run except the current one and returns how
// many rows were removed. Run metadata is kept.
func (s *SQLite) Prune(ctx context.Context) (int64, error) {
	runID, err := s.currentID(ctx)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM feature_rows WHERE run_id <> ?`, runID)
	if err != nil {
		return 0, fmt.Errorf("featurestore: prune: %w", err)
	}
	return res.RowsAffected()
}
