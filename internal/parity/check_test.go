package parity

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"churn/internal/table"
)

func rec(t *testing.T, fields []arrow.Field, rows ...[]any) arrow.Record {
	t.Helper()
	r, err := table.Build(arrow.NewSchema(fields, nil), rows)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

var (
	idField  = arrow.Field{Name: "id", Type: arrow.BinaryTypes.String, Nullable: true}
	n64Field = arrow.Field{Name: "n", Type: arrow.PrimitiveTypes.Int64, Nullable: true}
	n8Field  = arrow.Field{Name: "n", Type: arrow.PrimitiveTypes.Int8, Nullable: true}
	nStr     = arrow.Field{Name: "n", Type: arrow.BinaryTypes.String, Nullable: true}
)

/*
TestCheckOrderInsensitive compares the same rows in different orders; the
checker aligns on the key first.
*/
func TestCheckOrderInsensitive(t *testing.T) {
	a := rec(t, []arrow.Field{idField, n64Field}, []any{"b", int64(2)}, []any{"a", nil}, []any{nil, int64(9)})
	b := rec(t, []arrow.Field{n64Field, idField}, []any{nil, "a"}, []any{int64(9), nil}, []any{int64(2), "b"})
	require.NoError(t, Check(a, b, "id"))
}

func TestCheckSchemaMismatch(t *testing.T) {
	a := rec(t, []arrow.Field{idField, n64Field}, []any{"a", int64(1)})
	b := rec(t, []arrow.Field{idField, {Name: "m", Type: arrow.PrimitiveTypes.Int64}}, []any{"a", int64(1)})

	err := Check(a, b, "id")
	var se *SchemaMismatchError
	require.True(t, errors.As(err, &se))
	require.Equal(t, []string{"n"}, se.OnlyInA)
	require.Equal(t, []string{"m"}, se.OnlyInB)
}

func TestCheckRowCountMismatch(t *testing.T) {
	a := rec(t, []arrow.Field{idField}, []any{"a"}, []any{"b"})
	b := rec(t, []arrow.Field{idField}, []any{"a"})

	var rc *RowCountMismatchError
	require.ErrorAs(t, Check(a, b, "id"), &rc)
	require.EqualValues(t, 2, rc.A)
	require.EqualValues(t, 1, rc.B)
}

/*
TestCheckTypeFamilies accepts int8 against int64 by default and rejects it in
strict mode; a string against an integer is always rejected.
*/
func TestCheckTypeFamilies(t *testing.T) {
	wide := rec(t, []arrow.Field{idField, n64Field}, []any{"a", int64(1)})
	narrow := rec(t, []arrow.Field{idField, n8Field}, []any{"a", int64(1)})
	text := rec(t, []arrow.Field{idField, nStr}, []any{"a", "1"})

	require.NoError(t, Check(wide, narrow, "id"))

	var tm *TypeMismatchError
	require.ErrorAs(t, Check(wide, narrow, "id", WithStrictTypes()), &tm)
	require.Equal(t, "n", tm.Column)

	require.ErrorAs(t, Check(wide, text, "id"), &tm)
	require.Equal(t, "int64", tm.A)
	require.Equal(t, "utf8", tm.B)
}

/*
TestCheckNullSafety treats null = null as equal and null against a value as
a mismatch, reporting the key of the offending row.
*/
func TestCheckNullSafety(t *testing.T) {
	a := rec(t, []arrow.Field{idField, n64Field}, []any{"a", nil}, []any{"b", int64(3)})
	same := rec(t, []arrow.Field{idField, n64Field}, []any{"a", nil}, []any{"b", int64(3)})
	b := rec(t, []arrow.Field{idField, n64Field}, []any{"a", int64(0)}, []any{"b", int64(3)})

	require.NoError(t, Check(a, same, "id"))

	var vm *ValueMismatchError
	require.ErrorAs(t, Check(a, b, "id"), &vm)
	require.Equal(t, "n", vm.Column)
	require.Equal(t, "a", vm.Key)
	require.Equal(t, 0, vm.Row)
	require.Nil(t, vm.A)
	require.Equal(t, int64(0), vm.B)
	require.Contains(t, vm.Error(), `key="a"`)
}

func TestCheckFirstMismatchingColumn(t *testing.T) {
	f := []arrow.Field{idField, {Name: "x", Type: arrow.PrimitiveTypes.Float64}, n64Field}
	a := rec(t, f, []any{"a", 1.0, int64(1)}, []any{"b", 2.0, int64(2)})
	b := rec(t, f, []any{"a", 1.0, int64(5)}, []any{"b", 2.5, int64(2)})

	var vm *ValueMismatchError
	require.ErrorAs(t, Check(a, b, "id"), &vm)
	require.Equal(t, "x", vm.Column)
	require.Equal(t, "b", vm.Key)
}

func TestCheckMissingKey(t *testing.T) {
	a := rec(t, []arrow.Field{n64Field}, []any{int64(1)})
	require.Error(t, Check(a, a, "id"))
}

func TestEqual(t *testing.T) {
	require.True(t, Equal(nil, nil))
	require.False(t, Equal(nil, int64(0)))
	require.False(t, Equal("", nil))
	require.True(t, Equal(int8(3), int64(3)))
	require.False(t, Equal(int64(3), 3.0))
	require.True(t, Equal(true, true))
	require.False(t, Equal(true, false))
}
