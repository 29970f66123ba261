package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"churn/internal/table"
)

type recordingRepo struct {
	mu      sync.Mutex
	columns []string
	rows    [][]any
	fail    error
	execs   []string
}

func (r *recordingRepo) CopyFrom(_ context.Context, columns []string, rows [][]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}
	r.columns = columns
	for _, row := range rows {
		r.rows = append(r.rows, append([]any(nil), row...))
	}
	return int64(len(rows)), nil
}

func (r *recordingRepo) Exec(_ context.Context, sql string) error {
	r.execs = append(r.execs, sql)
	return nil
}

func (r *recordingRepo) Close() {}

func goldSample(t *testing.T) arrow.Record {
	t.Helper()
	s := arrow.NewSchema([]arrow.Field{
		{Name: "customer_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "tenure", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "gender_id", Type: arrow.PrimitiveTypes.Int8, Nullable: true},
	}, nil)
	rec, err := table.Build(s, [][]any{
		{"a", int64(1), int8(0)},
		{nil, int64(2), int8(1)},
		{"b", nil, nil},
		{"c", int64(4), int8(1)},
	})
	require.NoError(t, err)
	return rec
}

// TestWriteRecord_SkipsNullKeys verifies rows are written in schema order with
// native values and that rows lacking the key are counted, not written.
func TestWriteRecord_SkipsNullKeys(t *testing.T) {
	t.Parallel()

	rec := goldSample(t)
	defer rec.Release()
	repo := &recordingRepo{}

	res, err := WriteRecord(context.Background(), nil, repo, rec, []string{"customer_id"}, 2)
	require.NoError(t, err)
	require.Equal(t, WriteResult{Written: 3, Skipped: 1, Batches: 2}, res)
	require.Equal(t, []string{"customer_id", "tenure", "gender_id"}, repo.columns)
	require.Equal(t, [][]any{
		{"a", int64(1), int8(0)},
		{"b", nil, nil},
		{"c", int64(4), int8(1)},
	}, repo.rows)
}

func TestWriteRecord_NoKeysAppendsEverything(t *testing.T) {
	t.Parallel()

	rec := goldSample(t)
	defer rec.Release()
	repo := &recordingRepo{}

	res, err := WriteRecord(context.Background(), nil, repo, rec, nil, 10)
	require.NoError(t, err)
	require.EqualValues(t, 4, res.Written)
	require.Len(t, repo.rows, 4)
}

func TestWriteRecord_Errors(t *testing.T) {
	t.Parallel()

	rec := goldSample(t)
	defer rec.Release()

	_, err := WriteRecord(context.Background(), nil, &recordingRepo{}, rec, []string{"nope"}, 2)
	require.ErrorContains(t, err, `"nope"`)

	boom := errors.New("boom")
	_, err = WriteRecord(context.Background(), nil, &recordingRepo{fail: boom}, rec, nil, 1)
	require.ErrorIs(t, err, boom)
}

func TestEnsureTable_Dispatch(t *testing.T) {
	t.Parallel()

	var gotTable string
	var gotKeys []string
	RegisterDDL("ddl-fake", func(ctx context.Context, repo Repository, tbl string, s *arrow.Schema, keys []string) error {
		gotTable, gotKeys = tbl, keys
		return repo.Exec(ctx, "CREATE TABLE "+tbl)
	})

	rec := goldSample(t)
	defer rec.Release()
	repo := &recordingRepo{}
	require.NoError(t, EnsureTable(context.Background(), "ddl-fake", repo, "gold", rec.Schema(), []string{"customer_id"}))
	require.Equal(t, "gold", gotTable)
	require.Equal(t, []string{"customer_id"}, gotKeys)
	require.Equal(t, []string{"CREATE TABLE gold"}, repo.execs)

	err := EnsureTable(context.Background(), "missing", repo, "gold", rec.Schema(), nil)
	require.ErrorContains(t, err, "no DDL bootstrapper")
}
