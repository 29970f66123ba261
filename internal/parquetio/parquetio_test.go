package parquetio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"churn/internal/table"
)

func goldLike(t *testing.T) arrow.Record {
	t.Helper()
	s := arrow.NewSchema([]arrow.Field{
		{Name: "customer_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "gender_id", Type: arrow.PrimitiveTypes.Int8, Nullable: true},
		{Name: "contract_term_months", Type: arrow.PrimitiveTypes.Int16, Nullable: true},
		{Name: "tenure", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "charges_ratio", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
	rec, err := table.Build(s, [][]any{
		{"a", int8(0), int16(12), int64(3), 2.5},
		{nil, nil, int16(1), nil, nil},
	})
	require.NoError(t, err)
	return rec
}

// TestWriteReadRoundTrip checks that the embedded schema restores narrow
// integer types and nulls.
func TestWriteReadRoundTrip(t *testing.T) {
	rec := goldLike(t)
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "stage", "gold.parquet")
	require.NoError(t, Write(path, rec))

	got, err := Read(context.Background(), path)
	require.NoError(t, err)
	defer got.Release()

	require.EqualValues(t, 2, got.NumRows())
	for i, f := range rec.Schema().Fields() {
		require.Equal(t, f.Name, got.ColumnName(i))
		require.True(t, arrow.TypeEqual(f.Type, got.Schema().Field(i).Type), f.Name)
	}
	require.Equal(t, table.Fingerprint(rec), table.Fingerprint(got))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silver.parquet")
	first := table.Raw([]string{"a"}, []any{"1"}, []any{"2"})
	defer first.Release()
	second := table.Raw([]string{"a"}, []any{"3"})
	defer second.Release()

	require.NoError(t, Write(path, first))
	require.NoError(t, Write(path, second))

	got, err := Read(context.Background(), path)
	require.NoError(t, err)
	defer got.Release()
	require.Equal(t, [][]any{{"3"}}, table.Rows(got))
}

func TestReadRawRendersText(t *testing.T) {
	rec := goldLike(t)
	defer rec.Release()
	path := filepath.Join(t.TempDir(), "raw.parquet")
	require.NoError(t, Write(path, rec))

	raw, err := ReadRaw(context.Background(), path)
	require.NoError(t, err)
	defer raw.Release()

	for _, f := range raw.Schema().Fields() {
		require.Equal(t, arrow.BinaryTypes.String, f.Type)
	}
	require.Equal(t, []any{"a", "0", "12", "3", "2.5"}, table.Rows(raw)[0])
	require.Equal(t, []any{nil, nil, "1", nil, nil}, table.Rows(raw)[1])
}

func TestReadMissing(t *testing.T) {
	_, err := Read(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
