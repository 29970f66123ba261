// Package sqlengine is the relational execution path. It loads raw records
// into DuckDB and produces the silver and gold tables with SQL generated from
// the schema contract, then reads the results back into arrow.
//
// Every call takes its own connection and its own temp tables, so concurrent
// calls on one Engine never share working state.
package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	_ "github.com/marcboeker/go-duckdb/v2"
	"go.uber.org/zap"

	"churn/internal/schema"
	"churn/internal/table"
	"churn/internal/transformer"
)

// DefaultBatchSize is the number of rows per multi-row INSERT.
const DefaultBatchSize = 256

// Engine runs the silver and gold transforms inside DuckDB.
type Engine struct {
	db        *sql.DB
	contract  *schema.Contract
	logger    *zap.Logger
	batchSize int
	seq       atomic.Int64
}

var _ transformer.Path = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBatchSize sets the staging insert batch size.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// Open starts DuckDB with dsn ("" for a private in-memory database).
func Open(ctx context.Context, dsn string, c *schema.Contract, opts ...Option) (*Engine, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlengine: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlengine: ping: %w", err)
	}
	e := &Engine{db: db, contract: c, logger: zap.NewNop(), batchSize: DefaultBatchSize}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the database.
func (e *Engine) Close() error { return e.db.Close() }

func (e *Engine) Name() string { return "duckdb" }

// NormalizeAndDedupe stages raw as positional text columns and runs the
// silver query.
func (e *Engine) NormalizeAndDedupe(ctx context.Context, raw arrow.Record) (arrow.Record, error) {
	start := time.Now()
	header := make([]string, raw.NumCols())
	for i := range header {
		header[i] = raw.ColumnName(i)
	}
	res, err := e.contract.Resolve(header)
	if err != nil {
		return nil, err
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlengine: conn: %w", err)
	}
	defer conn.Close()

	staging := e.tempName("raw")
	cols := make([]string, len(header))
	defs := make([]string, 0, len(header)+1)
	for i := range header {
		cols[i] = stagingColumn(i)
		defs = append(defs, cols[i]+" VARCHAR")
	}
	defs = append(defs, "_row BIGINT")
	if err := e.createTemp(ctx, conn, staging, defs); err != nil {
		return nil, err
	}
	defer e.dropTemp(conn, staging)

	err = e.load(ctx, conn, staging, len(cols)+1, int(raw.NumRows()), func(r int, row []any) {
		for i := range cols {
			if s, ok := table.RawText(raw.Column(i), r); ok {
				row[i] = s
			} else {
				row[i] = nil
			}
		}
		row[len(cols)] = int64(r)
	})
	if err != nil {
		return nil, err
	}

	out, err := e.query(ctx, conn, silverSQL(e.contract, res, staging))
	if err != nil {
		return nil, fmt.Errorf("sqlengine: silver: %w", err)
	}
	e.logger.Debug("silver query done",
		zap.String("table", staging),
		zap.Int64("rows_in", raw.NumRows()),
		zap.Int64("rows_out", out.NumRows()),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}

// DeriveFeatures stages silver as a typed table and runs the gold query.
func (e *Engine) DeriveFeatures(ctx context.Context, silver arrow.Record) (arrow.Record, error) {
	start := time.Now()
	if _, ok := table.Column(silver, e.contract.Key()); !ok {
		return nil, &schema.SchemaError{Column: e.contract.Key(), Reason: "identifier column is missing"}
	}
	labeled := e.contract.Labeled(silver.Schema())
	staging := e.tempName("silver")
	query, err := goldSQL(e.contract, labeled, staging)
	if err != nil {
		return nil, fmt.Errorf("sqlengine: gold: %w", err)
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlengine: conn: %w", err)
	}
	defer conn.Close()

	fields := silver.Schema().Fields()
	defs := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		t, err := duckType(f.Type)
		if err != nil {
			return nil, err
		}
		defs = append(defs, quoteIdent(f.Name)+" "+t)
	}
	defs = append(defs, "_row BIGINT")
	if err := e.createTemp(ctx, conn, staging, defs); err != nil {
		return nil, err
	}
	defer e.dropTemp(conn, staging)

	err = e.load(ctx, conn, staging, len(fields)+1, int(silver.NumRows()), func(r int, row []any) {
		for i := range fields {
			row[i] = table.Value(silver.Column(i), r)
		}
		row[len(fields)] = int64(r)
	})
	if err != nil {
		return nil, err
	}

	out, err := e.query(ctx, conn, query)
	if err != nil {
		return nil, fmt.Errorf("sqlengine: gold: %w", err)
	}
	e.logger.Debug("gold query done",
		zap.String("table", staging),
		zap.Int64("rows", out.NumRows()),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}

func (e *Engine) tempName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, e.seq.Add(1))
}

func (e *Engine) createTemp(ctx context.Context, conn *sql.Conn, name string, defs []string) error {
	stmt := "CREATE TEMP TABLE " + quoteIdent(name) + " (" + strings.Join(defs, ", ") + ")"
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlengine: create %s: %w", name, err)
	}
	return nil
}

func (e *Engine) dropTemp(conn *sql.Conn, name string) {
	if _, err := conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		e.logger.Warn("drop temp table", zap.String("table", name), zap.Error(err))
	}
}

// load inserts rows into name in multi-row batches inside one transaction.
// fill writes row r into a reusable slice of width cells.
func (e *Engine) load(ctx context.Context, conn *sql.Conn, name string, width, rows int, fill func(r int, row []any)) error {
	if rows == 0 {
		return nil
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlengine: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	row := make([]any, width)
	for lo := 0; lo < rows; lo += e.batchSize {
		hi := min(lo+e.batchSize, rows)
		tuples := make([]string, 0, hi-lo)
		args := make([]any, 0, (hi-lo)*width)
		for r := lo; r < hi; r++ {
			fill(r, row)
			args = append(args, row...)
			tuples = append(tuples, tuple)
		}
		stmt := "INSERT INTO " + quoteIdent(name) + " VALUES " + strings.Join(tuples, ", ")
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("sqlengine: insert %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlengine: commit: %w", err)
	}
	return nil
}

// query runs q and reads the result into a record whose schema follows the
// result column types.
func (e *Engine) query(ctx context.Context, conn *sql.Conn, q string) (arrow.Record, error) {
	rows, err := conn.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, len(types))
	for i, ct := range types {
		t, err := arrowType(ct.DatabaseTypeName())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", ct.Name(), err)
		}
		fields[i] = arrow.Field{Name: ct.Name(), Type: t, Nullable: true}
	}

	var data [][]any
	for rows.Next() {
		cells := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		data = append(data, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table.Build(arrow.NewSchema(fields, nil), data)
}
