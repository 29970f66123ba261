// Package table holds the arrow helpers both execution paths and the parity
// checker share. Every function here is pure: inputs are never mutated and
// outputs own fresh buffers unless stated otherwise.
package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Allocator is used for every array built by this package.
var Allocator memory.Allocator = memory.NewGoAllocator()

// Raw builds an all-text record with the given column names. A nil cell is
// null; strings are kept verbatim and anything else is formatted with fmt.
func Raw(columns []string, rows ...[]any) arrow.Record {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(Allocator, schema)
	defer b.Release()
	for _, row := range rows {
		for i := range columns {
			sb := b.Field(i).(*array.StringBuilder)
			if i >= len(row) || row[i] == nil {
				sb.AppendNull()
				continue
			}
			switch v := row[i].(type) {
			case string:
				sb.Append(v)
			default:
				sb.Append(fmt.Sprint(v))
			}
		}
	}
	return b.NewRecord()
}

// Build creates a record of schema s from boxed rows. Each row must have one
// cell per field; cells are appended with AppendValue.
func Build(s *arrow.Schema, rows [][]any) (arrow.Record, error) {
	b := array.NewRecordBuilder(Allocator, s)
	defer b.Release()
	for r, row := range rows {
		if len(row) != s.NumFields() {
			return nil, fmt.Errorf("table: build: row %d has %d cells, want %d", r, len(row), s.NumFields())
		}
		for i, v := range row {
			if err := AppendValue(b.Field(i), v); err != nil {
				return nil, fmt.Errorf("table: build: row %d column %q: %w", r, s.Field(i).Name, err)
			}
		}
	}
	return b.NewRecord(), nil
}

// Column returns the column called name.
func Column(rec arrow.Record, name string) (arrow.Array, bool) {
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, false
	}
	return rec.Column(idx[0]), true
}

// Text reads cell i as text. The second result is false for null cells.
// Non-string columns are rendered the way a CSV writer would.
func Text(arr arrow.Array, i int) (string, bool) {
	if arr.IsNull(i) {
		return "", false
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i), true
	case *array.LargeString:
		return a.Value(i), true
	case *array.Binary:
		return string(a.Value(i)), true
	case *array.Int8:
		return strconv.FormatInt(int64(a.Value(i)), 10), true
	case *array.Int16:
		return strconv.FormatInt(int64(a.Value(i)), 10), true
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(i)), 10), true
	case *array.Int64:
		return strconv.FormatInt(a.Value(i), 10), true
	case *array.Float32:
		return strconv.FormatFloat(float64(a.Value(i)), 'f', -1, 32), true
	case *array.Float64:
		return strconv.FormatFloat(a.Value(i), 'f', -1, 64), true
	case *array.Boolean:
		return strconv.FormatBool(a.Value(i)), true
	default:
		return arr.ValueStr(i), true
	}
}

// RawText reads a raw input cell. Cells that are not valid UTF-8 or that
// contain a NUL byte read as null, so every engine sees the same value.
func RawText(arr arrow.Array, i int) (string, bool) {
	s, ok := Text(arr, i)
	if !ok || !utf8.ValidString(s) || strings.IndexByte(s, 0) >= 0 {
		return "", false
	}
	return s, true
}

// Value boxes cell i into a Go value: nil, string, bool, int8..int64 or
// float32/float64 depending on the column type.
func Value(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return a.Value(i)
	case *array.Int16:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	default:
		return arr.ValueStr(i)
	}
}

// AppendValue appends v to b, converting between integer and float widths as
// needed. nil appends a null.
func AppendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch bb := b.(type) {
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		bb.Append(s)
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return fmt.Errorf("cannot append %T to boolean", v)
		}
		bb.Append(x)
	case *array.Int8Builder:
		x, err := intOf(v, math.MinInt8, math.MaxInt8)
		if err != nil {
			return err
		}
		bb.Append(int8(x))
	case *array.Int16Builder:
		x, err := intOf(v, math.MinInt16, math.MaxInt16)
		if err != nil {
			return err
		}
		bb.Append(int16(x))
	case *array.Int32Builder:
		x, err := intOf(v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		bb.Append(int32(x))
	case *array.Int64Builder:
		x, err := intOf(v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return err
		}
		bb.Append(x)
	case *array.Float32Builder:
		x, err := floatOf(v)
		if err != nil {
			return err
		}
		bb.Append(float32(x))
	case *array.Float64Builder:
		x, err := floatOf(v)
		if err != nil {
			return err
		}
		bb.Append(x)
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

func intOf(v any, lo, hi int64) (int64, error) {
	var x int64
	switch n := v.(type) {
	case int:
		x = int64(n)
	case int8:
		x = int64(n)
	case int16:
		x = int64(n)
	case int32:
		x = int64(n)
	case int64:
		x = n
	case uint8:
		x = int64(n)
	case bool:
		if n {
			x = 1
		}
	default:
		return 0, fmt.Errorf("cannot append %T to integer column", v)
	}
	if x < lo || x > hi {
		return 0, fmt.Errorf("value %d out of range [%d, %d]", x, lo, hi)
	}
	return x, nil
}

func floatOf(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("cannot append %T to float column", v)
}

// Take returns a new record holding rows idx of rec, in that order.
func Take(rec arrow.Record, idx []int) (arrow.Record, error) {
	b := array.NewRecordBuilder(Allocator, rec.Schema())
	defer b.Release()
	for c := 0; c < int(rec.NumCols()); c++ {
		col := rec.Column(c)
		fb := b.Field(c)
		fb.Reserve(len(idx))
		for _, i := range idx {
			if err := AppendValue(fb, Value(col, i)); err != nil {
				return nil, fmt.Errorf("table: take: column %q: %w", rec.ColumnName(c), err)
			}
		}
	}
	return b.NewRecord(), nil
}

// Copy deep-copies rec into freshly allocated buffers.
func Copy(rec arrow.Record) (arrow.Record, error) {
	idx := make([]int, rec.NumRows())
	for i := range idx {
		idx[i] = i
	}
	return Take(rec, idx)
}

// Rows boxes every row of rec.
func Rows(rec arrow.Record) [][]any {
	out := make([][]any, rec.NumRows())
	for r := range out {
		row := make([]any, rec.NumCols())
		for c := range row {
			row[c] = Value(rec.Column(c), r)
		}
		out[r] = row
	}
	return out
}

// SortByKey stably sorts rec by the key column ascending with nulls last.
func SortByKey(rec arrow.Record, key string) (arrow.Record, error) {
	col, ok := Column(rec, key)
	if !ok {
		return nil, fmt.Errorf("table: sort: no column %q", key)
	}
	idx := make([]int, rec.NumRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool {
		return Compare(Value(col, idx[x]), Value(col, idx[y])) < 0
	})
	return Take(rec, idx)
}

// Compare orders two boxed cells ascending with nulls last. Integers and
// floats compare numerically across widths; strings compare bytewise.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			switch {
			case sa < sb:
				return -1
			case sa > sb:
				return 1
			}
			return 0
		}
	}
	fa, errA := floatOf(a)
	fb, errB := floatOf(b)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

// FromTable flattens a chunked table into a single record.
func FromTable(tbl arrow.Table) (arrow.Record, error) {
	cols := make([]arrow.Array, tbl.NumCols())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for i := range cols {
		chunks := tbl.Column(i).Data().Chunks()
		if len(chunks) == 0 {
			b := array.NewBuilder(Allocator, tbl.Schema().Field(i).Type)
			cols[i] = b.NewArray()
			b.Release()
			continue
		}
		arr, err := array.Concatenate(chunks, Allocator)
		if err != nil {
			return nil, fmt.Errorf("table: flatten column %q: %w", tbl.Schema().Field(i).Name, err)
		}
		cols[i] = arr
	}
	return array.NewRecord(tbl.Schema(), cols, tbl.NumRows()), nil
}
