// This file implements a generic, batched loader that drains typed rows from a
// channel and invokes a provided bulk-insert function (CopyFn) per batch.
//
// Backends implement CopyFn with their most efficient primitive (Postgres
// COPY, a prepared SQLite INSERT inside one transaction).
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"churn/internal/table"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations should
// insert the provided rows (aligned to 'columns' order) and return the number
// of rows reported as inserted. The function should be safe for repeated calls
// and cancel promptly when ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains typed rows from 'in', groups them into batches of size
// 'batchSize', and calls 'copyFn' for each non-empty batch. It returns the total
// number of rows reported by copyFn and the first error encountered.
//
// Cancellation: returns (total, ctx.Err()) when canceled. Progress is logged
// at debug level on each successful flush.
func LoadBatches(
	ctx context.Context,
	log *zap.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		total       int64
		batches     int64
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n

		// Reuse allocated slice; keep capacity to avoid churn.
		batch = batch[:0]

		if err != nil {
			log.Error("loader: copy failed", zap.Int64("after", n), zap.Int64("total", total), zap.Error(err))
			return err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		log.Debug("loader: batch flushed",
			zap.Int64("batch", batches),
			zap.Float64("rps", rps),
			zap.Int64("inserted", n),
			zap.Int64("total_inserted", total),
			zap.Duration("elapsed", now.Sub(start)),
		)
		lastFlushTS = now
		lastTotal = total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				log.Debug("loader: input closed", zap.Int64("batches", batches), zap.Int64("total_inserted", total))
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

// WriteResult summarises a WriteRecord call.
type WriteResult struct {
	Written int64
	Skipped int64 // rows with a null key column
	Batches int64
}

// WriteRecord streams rec into repo through LoadBatches. Columns are written
// in schema order under their own names. Rows with a null value in any of
// keys are skipped: a key column is the destination's primary key and cannot
// hold null.
func WriteRecord(
	ctx context.Context,
	log *zap.Logger,
	repo Repository,
	rec arrow.Record,
	keys []string,
	batchSize int,
) (WriteResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	columns := make([]string, rec.NumCols())
	for i := range columns {
		columns[i] = rec.ColumnName(i)
	}
	keyCols := make([]arrow.Array, 0, len(keys))
	for _, k := range keys {
		col, ok := table.Column(rec, k)
		if !ok {
			return WriteResult{}, fmt.Errorf("storage: key column %q not in record", k)
		}
		keyCols = append(keyCols, col)
	}

	var res WriteResult
	in := make(chan []any, batchSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(in)
	rows:
		for r := 0; r < int(rec.NumRows()); r++ {
			for _, kc := range keyCols {
				if kc.IsNull(r) {
					res.Skipped++
					continue rows
				}
			}
			row := make([]any, len(columns))
			for c := range row {
				row[c] = table.Value(rec.Column(c), r)
			}
			select {
			case in <- row:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		n, err := LoadBatches(gctx, log, columns, in, batchSize, func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
			res.Batches++
			return repo.CopyFrom(ctx, cols, rows)
		})
		res.Written = n
		return err
	})
	if err := g.Wait(); err != nil {
		return res, err
	}
	if res.Skipped > 0 {
		log.Warn("storage: rows with null key skipped", zap.Int64("skipped", res.Skipped), zap.Strings("keys", keys))
	}
	return res, nil
}
