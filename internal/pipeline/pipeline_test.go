package pipeline

import (
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"churn/internal/config"
	"churn/internal/featurestore"
	"churn/internal/parity"
	"churn/internal/parquetio"
	"churn/internal/schema"
	"churn/internal/storage"
	_ "churn/internal/storage/all"
	"churn/internal/table"
	"churn/internal/transformer"
)

const telcoCSV = "customerID,gender,SeniorCitizen,Partner,Dependents,tenure,PhoneService,MultipleLines,InternetService,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,StreamingTV,StreamingMovies,Contract,PaperlessBilling,PaymentMethod,MonthlyCharges,TotalCharges,Churn\n" +
	"7590-VHVEG,Female,0,Yes,No,1,No,No phone service,DSL,No,Yes,No,No,No,No,Month-to-month,Yes,Electronic check,29.85,29.85,No\n" +
	"5575-GNVDE,Male,0,No,No,34,Yes,No,DSL,Yes,No,Yes,No,No,No,One year,No,Mailed check,56.95,1889.5,No\n" +
	"3668-QPYBK,Male,0,No,No,2,Yes,No,DSL,Yes,Yes,No,No,No,No,Month-to-month,Yes,Mailed check,53.85,108.15,Yes\n" +
	"7590-vhveg,Female,0,Yes,No,2,No,No phone service,DSL,No,Yes,No,No,No,No,Month-to-month,Yes,Electronic check,29.85,59.7,No\n" +
	"bad,row\n"

// writeInput writes telcoCSV to dir/name, gzip-compressed for .gz names.
func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	if filepath.Ext(name) == ".gz" {
		zw := gzip.NewWriter(f)
		_, err = zw.Write([]byte(telcoCSV))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return path
	}
	_, err = f.WriteString(telcoCSV)
	require.NoError(t, err)
	return path
}

func baseConfig(input string) config.Pipeline {
	cfg := config.Default()
	cfg.Job = "test"
	cfg.Source.File.Path = input
	cfg.Engine.Kind = "vectorized"
	return cfg
}

func countRows(t *testing.T, dsn, tbl string) int {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+tbl+`"`).Scan(&n))
	return n
}

/*
TestRunEndToEnd drives a gzip CSV through the vectorized path into parquet
stage files, two SQLite tables and an in-memory feature store.
*/
func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(writeInput(t, dir, "telco.csv.gz"))
	cfg.Output.Dir = filepath.Join(dir, "out")
	dsn := filepath.Join(dir, "telco.db")
	cfg.Storage = config.Storage{Kind: "sqlite", DB: config.DBConfig{
		DSN:             dsn,
		SilverTable:     "telco_silver",
		GoldTable:       "telco_gold",
		KeyColumns:      []string{"customer_id"},
		AutoCreateTable: true,
	}}
	cfg.Runtime.BatchSize = 2
	fs := featurestore.NewMemory("customer_id")

	sum, err := Run(context.Background(), cfg, Deps{Store: fs})
	require.NoError(t, err)

	require.EqualValues(t, 4, sum.RawRows)
	require.EqualValues(t, 1, sum.ParseSkipped)
	require.EqualValues(t, 3, sum.SilverRows, "7590-vhveg is a duplicate")
	require.EqualValues(t, 3, sum.GoldRows)
	require.Nil(t, sum.Parity)

	require.Equal(t, []string{
		filepath.Join(cfg.Output.Dir, SilverFile),
		filepath.Join(cfg.Output.Dir, GoldFile),
	}, sum.Files)
	gold, err := parquetio.Read(context.Background(), sum.Files[1])
	require.NoError(t, err)
	defer gold.Release()
	require.EqualValues(t, 3, gold.NumRows())

	require.Len(t, sum.Stored, 2)
	for _, s := range sum.Stored {
		require.EqualValues(t, 3, s.Written, s.Table)
		require.EqualValues(t, 2, s.Batches, s.Table)
		require.Equal(t, 3, countRows(t, dsn, s.Table))
	}

	require.NotNil(t, sum.FeatureRun)
	require.Equal(t, featurestore.StatusPublished, sum.FeatureRun.Status)
	f, ok, err := fs.Get(context.Background(), "5575-gnvde")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "34", f["tenure"])
	require.Equal(t, "12", f["contract_term_months"])

	// A second run upserts instead of duplicating rows.
	_, err = Run(context.Background(), cfg, Deps{Store: fs})
	require.NoError(t, err)
	require.Equal(t, 3, countRows(t, dsn, "telco_gold"))
}

/*
TestRunParityGate checks both engines against each other before keeping the
DuckDB output.
*/
func TestRunParityGate(t *testing.T) {
	cfg := baseConfig(writeInput(t, t.TempDir(), "telco.csv"))
	cfg.Engine.Kind = "duckdb"
	cfg.Parity = config.Parity{Enabled: true, Stages: []string{"silver", "gold"}}

	sum, err := Run(context.Background(), cfg, Deps{})
	require.NoError(t, err)
	require.NotNil(t, sum.Parity)
	require.Len(t, sum.Parity.Stages, 2)
	require.Equal(t, sum.Parity.Stages[0].FingerprintA, sum.Parity.Stages[0].FingerprintB)
	require.EqualValues(t, 3, sum.GoldRows)
}

// dropFirst is a path that loses the first silver row.
type dropFirst struct{ transformer.Path }

func (d dropFirst) NormalizeAndDedupe(ctx context.Context, raw arrow.Record) (arrow.Record, error) {
	rec, err := d.Path.NormalizeAndDedupe(ctx, raw)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	idx := make([]int, 0, rec.NumRows())
	for i := 1; i < int(rec.NumRows()); i++ {
		idx = append(idx, i)
	}
	return table.Take(rec, idx)
}

func TestRunParityGateBlocks(t *testing.T) {
	orig := newVectorizedFn
	t.Cleanup(func() { newVectorizedFn = orig })
	newVectorizedFn = func(c *schema.Contract) (transformer.Path, error) {
		p, err := transformer.NewVectorized(c)
		return dropFirst{p}, err
	}

	dir := t.TempDir()
	cfg := baseConfig(writeInput(t, dir, "telco.csv"))
	cfg.Parity.Enabled = true
	cfg.Output.Dir = filepath.Join(dir, "out")

	_, err := Run(context.Background(), cfg, Deps{})
	require.ErrorContains(t, err, "parity gate")
	var rc *parity.RowCountMismatchError
	require.True(t, errors.As(err, &rc))

	_, statErr := os.Stat(cfg.Output.Dir)
	require.True(t, os.IsNotExist(statErr), "nothing is written after a failed gate")
}

func TestRunParquetInput(t *testing.T) {
	dir := t.TempDir()
	raw := table.Raw([]string{"customerID", "tenure", "Contract"},
		[]any{"A1", "3", "Two year"},
		[]any{"B2", nil, "One year"},
	)
	defer raw.Release()
	in := filepath.Join(dir, "raw.parquet")
	require.NoError(t, parquetio.Write(in, raw))

	sum, err := Run(context.Background(), baseConfig(in), Deps{})
	require.NoError(t, err)
	require.EqualValues(t, 2, sum.RawRows)
	require.EqualValues(t, 2, sum.GoldRows)
}

func TestRunHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bronze/telco.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(telcoCSV))
	}))
	defer srv.Close()

	cache := t.TempDir()
	cfg := baseConfig("")
	cfg.Source = config.Source{Kind: "http", HTTP: config.SourceHTTP{URL: srv.URL + "/bronze/telco.csv", CacheDir: cache}}

	sum, err := Run(context.Background(), cfg, Deps{})
	require.NoError(t, err)
	require.EqualValues(t, 4, sum.RawRows)
	require.EqualValues(t, 3, sum.GoldRows)
	require.FileExists(t, filepath.Join(cache, "telco.csv"))

	cfg.Source.HTTP.URL = srv.URL + "/bronze/missing.csv"
	_, err = Run(context.Background(), cfg, Deps{})
	require.ErrorContains(t, err, "download snapshot")
}

func TestRunReadErrors(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		cfg  config.Pipeline
		want string
	}{
		{"missing_file", baseConfig(filepath.Join(dir, "nope.csv")), "open"},
		{"gzip_parquet", baseConfig(filepath.Join(dir, "x.parquet.gz")), "gzip-compressed"},
		{"no_key_column", func() config.Pipeline {
			p := filepath.Join(dir, "nokey.csv")
			require.NoError(t, os.WriteFile(p, []byte("gender\nMale\n"), 0o644))
			return baseConfig(p)
		}(), "silver"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Run(context.Background(), tc.cfg, Deps{})
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestRunStorageError(t *testing.T) {
	orig := newRepositoryFn
	t.Cleanup(func() { newRepositoryFn = orig })
	boom := errors.New("connection refused")
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) { return nil, boom }

	cfg := baseConfig(writeInput(t, t.TempDir(), "telco.csv"))
	cfg.Storage = config.Storage{Kind: "postgres", DB: config.DBConfig{DSN: "x", GoldTable: "g"}}
	fs := featurestore.NewMemory("customer_id")

	sum, err := Run(context.Background(), cfg, Deps{Store: fs})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "store g")
	require.Nil(t, sum.FeatureRun, "the feature store is not published after a failed sink")
}

func TestRunConfiguredFeatureStore(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(writeInput(t, dir, "telco.csv"))
	cfg.FeatureStore = config.FeatureStore{Kind: "sqlite", DSN: filepath.Join(dir, "features.db"), EntityColumn: "customer_id"}

	sum, err := Run(context.Background(), cfg, Deps{})
	require.NoError(t, err)
	require.EqualValues(t, 3, sum.FeatureRun.Entities)

	s, err := featurestore.OpenSQLite(context.Background(), cfg.FeatureStore.DSN, "customer_id")
	require.NoError(t, err)
	defer s.Close()
	cur, err := s.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, sum.FeatureRun.ID, cur.ID)
}

func TestInitMetrics(t *testing.T) {
	cases := []struct {
		name    string
		m       config.Metrics
		wantErr string
	}{
		{name: "none", m: config.Metrics{Backend: "none"}},
		{name: "empty", m: config.Metrics{}},
		{name: "unknown", m: config.Metrics{Backend: "statsd"}, wantErr: "unknown backend"},
		{name: "pushgateway_without_url", m: config.Metrics{Backend: "pushgateway"}, wantErr: "gateway URL"},
		{name: "datadog_without_addr", m: config.Metrics{Backend: "datadog"}, wantErr: "Addr"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Metrics = tc.m
			flush, err := InitMetrics(cfg, nil)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			flush()
		})
	}
}
