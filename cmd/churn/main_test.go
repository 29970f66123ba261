package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"churn/internal/promotion"
)

const telcoCSV = "customerID,gender,SeniorCitizen,Partner,Dependents,tenure,PhoneService,MultipleLines,InternetService,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,StreamingTV,StreamingMovies,Contract,PaperlessBilling,PaymentMethod,MonthlyCharges,TotalCharges,Churn\n" +
	"7590-VHVEG,Female,0,Yes,No,1,No,No phone service,DSL,No,Yes,No,No,No,No,Month-to-month,Yes,Electronic check,29.85,29.85,No\n" +
	"5575-GNVDE,Male,0,No,No,34,Yes,No,DSL,Yes,No,Yes,No,No,No,One year,No,Mailed check,56.95,1889.5,No\n" +
	"3668-QPYBK,Male,0,No,No,2,Yes,No,DSL,Yes,Yes,No,No,No,No,Month-to-month,Yes,Mailed check,53.85,108.15,Yes\n"

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidateRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, filepath.Join(dir, "bad.yaml"), "job: x\nengine:\n  kind: spark\n")

	_, err := execute(t, "validate", "--config", cfg)
	require.ErrorContains(t, err, "configuration is invalid")
}

func TestRunThenLookup(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "telco.csv"), telcoCSV)
	features := filepath.Join(dir, "features.db")
	cfg := writeFile(t, filepath.Join(dir, "p.yaml"), `job: cli
source:
  kind: file
  file:
    path: `+input+`
engine:
  kind: vectorized
output:
  dir: `+filepath.Join(dir, "out")+`
feature_store:
  kind: sqlite
  dsn: `+features+`
`)

	out, err := execute(t, "validate", "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "configuration is valid")

	out, err = execute(t, "run", "--config", cfg)
	require.NoError(t, err)
	var sum map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	require.EqualValues(t, 3, sum["GoldRows"])
	require.FileExists(t, filepath.Join(dir, "out", "gold.parquet"))

	out, err = execute(t, "lookup", "--dsn", features, "--id", "7590-VHVEG")
	require.NoError(t, err)
	var got map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "1", got["7590-VHVEG"]["is_month_to_month"])
	require.Equal(t, "1", got["7590-VHVEG"]["tenure"])

	out, err = execute(t, "lookup", "--dsn", features, "--id", " 7590-vhveg ")
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "1", got[" 7590-vhveg "]["is_month_to_month"])

	_, err = execute(t, "lookup", "--dsn", features, "--id", "nobody")
	require.ErrorContains(t, err, "1 of 1 customers not found")

	_, err = execute(t, "lookup", "--dsn", features)
	require.Error(t, err)
}

func TestLookupComputesRawRecord(t *testing.T) {
	out, err := execute(t, "lookup",
		"--raw", "customerID=0000-NEW",
		"--raw", "Contract=Two year",
		"--raw", "tenure=30",
		"--raw", "MonthlyCharges=90.5",
		"--raw", "TotalCharges=2715",
		"--raw", "InternetService=Fiber optic",
	)
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "24", got["contract_term_months"])
	require.Equal(t, "1", got["long_tenure"])
	require.Equal(t, "1", got["has_fiber"])
	require.Equal(t, "1", got["high_monthly_charges"])
	require.Equal(t, "0", got["is_month_to_month"])
	require.NotContains(t, got, "customer_id")

	_, err = execute(t, "lookup", "--raw", "customerID=x", "--id", "y")
	require.ErrorContains(t, err, "cannot be combined")
}

func TestParityPasses(t *testing.T) {
	input := writeFile(t, filepath.Join(t.TempDir(), "telco.csv"), telcoCSV)

	out, err := execute(t, "parity", "--input", input, "--stage", "gold")
	require.NoError(t, err)
	var rep struct {
		A, B   string
		Stages []struct{ Stage string }
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, "duckdb", rep.A)
	require.Equal(t, "vectorized", rep.B)
	require.Len(t, rep.Stages, 1)
	require.Equal(t, "gold", rep.Stages[0].Stage)

	for stage, want := range map[string][]string{"silver": {"silver"}, "all": {"silver", "gold"}} {
		out, err = execute(t, "parity", "--input", input, "--stage", stage)
		require.NoError(t, err, stage)
		rep.Stages = nil
		require.NoError(t, json.Unmarshal([]byte(out), &rep))
		var got []string
		for _, s := range rep.Stages {
			got = append(got, s.Stage)
		}
		require.Equal(t, want, got, stage)
	}

	_, err = execute(t, "parity", "--input", input, "--stage", "bronze")
	require.ErrorContains(t, err, "--stage")
}

func TestPromoteRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "runs", "r1", promotion.MetricsFile),
		`{"primary_metric":"ap","artifact_version":1,"holdout":{"ap":0.6},"cv":{"metrics":{"ap":{"mean":0.6,"std":0.01}}}}`)

	_, err := execute(t, "promote", "--registry", dir)
	require.NoError(t, err)
	_, ok, err := promotion.ReadChampion(filepath.Join(dir, promotion.ChampionFile))
	require.NoError(t, err)
	require.False(t, ok, "pointer moves only with --write")

	_, err = execute(t, "promote", "--registry", dir, "--write")
	require.NoError(t, err)
	ref, ok, err := promotion.ReadChampion(filepath.Join(dir, promotion.ChampionFile))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "r1", ref.RunID)
}

func TestPromoteContender(t *testing.T) {
	dir := t.TempDir()
	pointer := filepath.Join(dir, promotion.ChampionFile)
	writeFile(t, filepath.Join(dir, "runs", "old", promotion.MetricsFile),
		`{"primary_metric":"ap","artifact_version":1,"holdout":{"ap":0.6}}`)
	require.NoError(t, promotion.WriteChampion(pointer, promotion.ChampionRef{RunID: "old", PathInRepo: "runs/old"}))
	contender := writeFile(t, filepath.Join(dir, "runs", "new", promotion.MetricsFile),
		`{"primary_metric":"ap","artifact_version":1,"holdout":{"ap":0.65}}`)

	out, err := execute(t, "promote", "--contender", contender, "--champion", pointer, "--write")
	require.NoError(t, err)
	var d promotion.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	require.True(t, d.Promote)

	ref, _, err := promotion.ReadChampion(pointer)
	require.NoError(t, err)
	require.Equal(t, promotion.ChampionRef{RunID: "new", PathInRepo: "runs/new"}, ref)

	_, err = execute(t, "promote")
	require.ErrorContains(t, err, "--registry or --contender")
}

func TestProbe(t *testing.T) {
	input := writeFile(t, filepath.Join(t.TempDir(), "telco.csv"), telcoCSV)

	out, err := execute(t, "probe", "--input", input)
	require.NoError(t, err)
	var rep struct {
		Rows    int64    `json:"rows"`
		Labeled bool     `json:"labeled"`
		Missing []string `json:"missing"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.EqualValues(t, 3, rep.Rows)
	require.True(t, rep.Labeled)
	require.Empty(t, rep.Missing)
}
