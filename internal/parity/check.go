// Package parity compares the output of two execution paths.
//
// Check is the correctness oracle: column sets, row counts, column types and
// every cell must agree after both tables are stably sorted by the entity
// key. Nulls compare equal to nulls and to nothing else. Runner drives two
// transformer.Paths over independent copies of one raw input and checks
// their silver and gold tables.
package parity

import (
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"

	"churn/internal/table"
)

type options struct {
	strict bool
}

// Option configures Check.
type Option func(*options)

// WithStrictTypes demands identical arrow types instead of matching type
// families (integer, float, string, boolean).
func WithStrictTypes() Option {
	return func(o *options) { o.strict = true }
}

// Check returns nil when a and b hold the same table, or the first
// *SchemaMismatchError, *RowCountMismatchError, *TypeMismatchError or
// *ValueMismatchError found, in that order.
func Check(a, b arrow.Record, key string, opts ...Option) error {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	colsA := names(a.Schema())
	colsB := names(b.Schema())
	onlyA := missing(colsA, colsB)
	onlyB := missing(colsB, colsA)
	if len(onlyA) > 0 || len(onlyB) > 0 {
		return &SchemaMismatchError{OnlyInA: onlyA, OnlyInB: onlyB}
	}
	if !slices.Contains(colsA, key) {
		return fmt.Errorf("parity: key column %q is absent from both tables", key)
	}

	sa, err := table.SortByKey(a, key)
	if err != nil {
		return fmt.Errorf("parity: %w", err)
	}
	defer sa.Release()
	sb, err := table.SortByKey(b, key)
	if err != nil {
		return fmt.Errorf("parity: %w", err)
	}
	defer sb.Release()

	if sa.NumRows() != sb.NumRows() {
		return &RowCountMismatchError{A: sa.NumRows(), B: sb.NumRows()}
	}

	for _, name := range colsA {
		ca, _ := table.Column(sa, name)
		cb, _ := table.Column(sb, name)
		if !compatible(ca.DataType(), cb.DataType(), o.strict) {
			return &TypeMismatchError{Column: name, A: ca.DataType().String(), B: cb.DataType().String()}
		}
	}

	keys, _ := table.Column(sa, key)
	for _, name := range colsA {
		ca, _ := table.Column(sa, name)
		cb, _ := table.Column(sb, name)
		for r := 0; r < ca.Len(); r++ {
			va, vb := table.Value(ca, r), table.Value(cb, r)
			if !Equal(va, vb) {
				return &ValueMismatchError{Column: name, Row: r, Key: table.Value(keys, r), A: va, B: vb}
			}
		}
	}
	return nil
}

// Equal is null-safe cell equality across integer and float widths.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, fb := family(a), family(b)
	if fa != fb {
		return false
	}
	return table.Compare(a, b) == 0
}

// Family groups arrow types whose values compare directly.
type Family string

const (
	FamilyString  Family = "string"
	FamilyInteger Family = "integer"
	FamilyFloat   Family = "float"
	FamilyBoolean Family = "boolean"
)

// FamilyOf returns the family of t, or its type name when it has none.
func FamilyOf(t arrow.DataType) Family {
	switch t.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return FamilyString
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return FamilyInteger
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return FamilyFloat
	case arrow.BOOL:
		return FamilyBoolean
	}
	return Family(t.String())
}

func compatible(a, b arrow.DataType, strict bool) bool {
	if strict {
		return arrow.TypeEqual(a, b)
	}
	return FamilyOf(a) == FamilyOf(b)
}

func family(v any) Family {
	switch v.(type) {
	case string:
		return FamilyString
	case int8, int16, int32, int64, uint8:
		return FamilyInteger
	case float32, float64:
		return FamilyFloat
	case bool:
		return FamilyBoolean
	}
	return Family(fmt.Sprintf("%T", v))
}

func names(s *arrow.Schema) []string {
	out := make([]string, s.NumFields())
	for i, f := range s.Fields() {
		out[i] = f.Name
	}
	return out
}

// missing returns the names in a that are not in b, in a's order.
func missing(a, b []string) []string {
	var out []string
	for _, n := range a {
		if !slices.Contains(b, n) {
			out = append(out, n)
		}
	}
	return out
}
