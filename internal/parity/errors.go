package parity

import (
	"fmt"
	"strings"
)

// SchemaMismatchError reports columns present on only one side.
type SchemaMismatchError struct {
	OnlyInA []string
	OnlyInB []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("parity: column sets differ: only in a=[%s] only in b=[%s]",
		strings.Join(e.OnlyInA, ", "), strings.Join(e.OnlyInB, ", "))
}

// RowCountMismatchError reports differing row counts.
type RowCountMismatchError struct {
	A, B int64
}

func (e *RowCountMismatchError) Error() string {
	return fmt.Sprintf("parity: row counts differ: a=%d b=%d", e.A, e.B)
}

// TypeMismatchError reports a column whose types are incompatible.
type TypeMismatchError struct {
	Column string
	A, B   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("parity: column %q types differ: a=%s b=%s", e.Column, e.A, e.B)
}

// ValueMismatchError reports the first differing cell of the first column
// that differs. Row is the position after sorting by key.
type ValueMismatchError struct {
	Column string
	Row    int
	Key    any
	A, B   any
}

func (e *ValueMismatchError) Error() string {
	return fmt.Sprintf("parity: column %q differs at row %d (key=%s): a=%s b=%s",
		e.Column, e.Row, show(e.Key), show(e.A), show(e.B))
}

func show(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", x)
	}
	return fmt.Sprint(v)
}
