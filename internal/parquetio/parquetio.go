// Package parquetio reads and writes stage files (raw, silver, gold) as
// parquet with the arrow schema embedded, so integer widths survive a round
// trip.
package parquetio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"churn/internal/table"
)

// DefaultRowGroup is the maximum row-group length written.
const DefaultRowGroup = 64 * 1024

// Write stores rec at path. The file is written next to path and renamed into
// place, so readers see either the previous file or the complete new one.
func Write(path string, rec arrow.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("parquetio: mkdir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("parquetio: create: %w", err)
	}
	tmp := f.Name()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithMaxRowGroupLength(DefaultRowGroup),
	)
	arrProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(table.Allocator),
	)
	w, err := pqarrow.NewFileWriter(rec.Schema(), f, props, arrProps)
	if err != nil {
		return fmt.Errorf("parquetio: writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return fmt.Errorf("parquetio: write %s: %w", path, err)
	}
	// Closing the writer closes f as well.
	if err := w.Close(); err != nil {
		return fmt.Errorf("parquetio: close %s: %w", path, err)
	}
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("parquetio: close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("parquetio: rename: %w", err)
	}
	ok = true
	return nil
}

// Read loads the whole file at path as one record. The caller owns it.
func Read(ctx context.Context, path string) (arrow.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parquetio: open %s: %w", path, err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return nil, fmt.Errorf("parquetio: read %s: %w", path, err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: DefaultRowGroup}, table.Allocator)
	if err != nil {
		return nil, fmt.Errorf("parquetio: reader %s: %w", path, err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("parquetio: read table %s: %w", path, err)
	}
	defer tbl.Release()
	return table.FromTable(tbl)
}

// ReadRaw loads path as a raw record: every column is rendered to text with
// table.Text, so a typed parquet export feeds the normalizer like a CSV would.
func ReadRaw(ctx context.Context, path string) (arrow.Record, error) {
	rec, err := Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	return AsRaw(rec), nil
}

// AsRaw renders every column of rec as nullable text.
func AsRaw(rec arrow.Record) arrow.Record {
	fields := make([]arrow.Field, rec.NumCols())
	for i := range fields {
		fields[i] = arrow.Field{Name: rec.ColumnName(i), Type: arrow.BinaryTypes.String, Nullable: true}
	}
	b := array.NewRecordBuilder(table.Allocator, arrow.NewSchema(fields, nil))
	defer b.Release()
	rows := int(rec.NumRows())
	for i, col := range rec.Columns() {
		sb := b.Field(i).(*array.StringBuilder)
		sb.Reserve(rows)
		for r := 0; r < rows; r++ {
			s, ok := table.Text(col, r)
			if !ok {
				sb.AppendNull()
				continue
			}
			sb.Append(s)
		}
	}
	return b.NewRecord()
}
