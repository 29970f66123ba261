package table

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRawAndText(t *testing.T) {
	rec := Raw([]string{"id", "n"}, []any{"a", 5}, []any{nil, "x"})
	defer rec.Release()

	require.EqualValues(t, 2, rec.NumRows())
	s, ok := Text(rec.Column(1), 0)
	require.True(t, ok)
	require.Equal(t, "5", s)
	_, ok = Text(rec.Column(0), 1)
	require.False(t, ok)
}

func TestRawTextUnreadable(t *testing.T) {
	rec := Raw([]string{"v"}, []any{"ok"}, []any{"a\x00b"}, []any{"caf\xe9"}, []any{nil})
	defer rec.Release()

	s, ok := RawText(rec.Column(0), 0)
	require.True(t, ok)
	require.Equal(t, "ok", s)
	for r := 1; r < 4; r++ {
		_, ok := RawText(rec.Column(0), r)
		require.False(t, ok, "row %d", r)
	}
}

func TestTextNonString(t *testing.T) {
	b := array.NewFloat64Builder(Allocator)
	b.AppendValues([]float64{29.85, 1}, nil)
	arr := b.NewArray()
	defer arr.Release()

	s, _ := Text(arr, 0)
	require.Equal(t, "29.85", s)
	s, _ = Text(arr, 1)
	require.Equal(t, "1", s)
}

/*
TestSortByKeyStableNullsLast sorts on a key with duplicates and nulls; equal
keys must keep their input order and nulls must go last.
*/
func TestSortByKeyStableNullsLast(t *testing.T) {
	rec := Raw([]string{"id", "seq"},
		[]any{"b", "1"},
		[]any{nil, "2"},
		[]any{"a", "3"},
		[]any{"b", "4"},
		[]any{nil, "5"},
	)
	defer rec.Release()

	out, err := SortByKey(rec, "id")
	require.NoError(t, err)
	defer out.Release()

	want := [][]any{{"a", "3"}, {"b", "1"}, {"b", "4"}, {nil, "2"}, {nil, "5"}}
	if diff := cmp.Diff(want, Rows(out)); diff != "" {
		t.Fatalf("sorted rows mismatch (-want +got):\n%s", diff)
	}

	_, err = SortByKey(rec, "missing")
	require.Error(t, err)
}

func TestBuildAndCopy(t *testing.T) {
	s := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "code", Type: arrow.PrimitiveTypes.Int8, Nullable: true},
		{Name: "ratio", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
	rec, err := Build(s, [][]any{{"a", int64(3), 0.5}, {"b", nil, int64(2)}})
	require.NoError(t, err)
	defer rec.Release()

	cp, err := Copy(rec)
	require.NoError(t, err)
	defer cp.Release()

	want := [][]any{{"a", int8(3), 0.5}, {"b", nil, float64(2)}}
	require.Equal(t, want, Rows(cp))
	require.Equal(t, Fingerprint(rec), Fingerprint(cp))

	_, err = Build(s, [][]any{{"a", int64(300), 0.5}})
	require.Error(t, err)
	_, err = Build(s, [][]any{{"a"}})
	require.Error(t, err)
}

/*
TestFingerprintIgnoresIntegerWidth makes sure the hash depends on values, not
on the physical integer width.
*/
func TestFingerprintIgnoresIntegerWidth(t *testing.T) {
	narrow := arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Int8, Nullable: true}}, nil)
	wide := arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)
	a, err := Build(narrow, [][]any{{int64(1)}, {nil}})
	require.NoError(t, err)
	b, err := Build(wide, [][]any{{int64(1)}, {nil}})
	require.NoError(t, err)
	c, err := Build(wide, [][]any{{int64(2)}, {nil}})
	require.NoError(t, err)

	require.Equal(t, Fingerprint(a), Fingerprint(b))
	require.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestFromTable(t *testing.T) {
	r1 := Raw([]string{"id"}, []any{"a"})
	r2 := Raw([]string{"id"}, []any{"b"}, []any{nil})
	tbl := array.NewTableFromRecords(r1.Schema(), []arrow.Record{r1, r2})
	defer tbl.Release()

	rec, err := FromTable(tbl)
	require.NoError(t, err)
	defer rec.Release()
	require.Equal(t, [][]any{{"a"}, {"b"}, {nil}}, Rows(rec))
}

func TestCompare(t *testing.T) {
	require.Equal(t, 0, Compare(nil, nil))
	require.Equal(t, 1, Compare(nil, "a"))
	require.Equal(t, -1, Compare("a", nil))
	require.Equal(t, -1, Compare(int8(1), int64(2)))
	require.Equal(t, 0, Compare(int64(2), 2.0))
	require.Equal(t, 1, Compare("b", "a"))
}
