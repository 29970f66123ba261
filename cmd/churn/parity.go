package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"churn/internal/config"
	"churn/internal/metrics"
	"churn/internal/parity"
	"churn/internal/pipeline"
	"churn/internal/schema"
	"churn/internal/sqlengine"
	"churn/internal/transformer"
)

func (a *app) parityCmd() *cobra.Command {
	var (
		input  string
		stage  string
		strict bool
		dsn    string
		comma  string
	)
	cmd := &cobra.Command{
		Use:   "parity",
		Short: "Run the DuckDB and vectorized paths over one input and compare them",
		Long: `parity runs both transform paths over the same raw file and checks that the
chosen tables are identical: silver, gold, or both with --stage all (the
default). It exits with
status 1 on any mismatch and is meant to gate deployments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var gold, goldOnly bool
			switch stage {
			case "silver":
			case "gold":
				goldOnly = true
			case "all":
				gold = true
			default:
				return fmt.Errorf("--stage must be silver, gold or all, got %q", stage)
			}
			ctx := cmd.Context()
			p := config.Default()
			p.Job = "parity"
			p.Source.File.Path = input
			p.Parser.Comma = comma

			raw, _, err := pipeline.ReadRaw(ctx, p, a.logger)
			if err != nil {
				return err
			}
			defer raw.Release()

			c := schema.Telco()
			eng, err := sqlengine.Open(ctx, dsn, c, sqlengine.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer eng.Close()
			vec, err := transformer.NewVectorized(c)
			if err != nil {
				return err
			}

			r := &parity.Runner{A: eng, B: vec, Key: c.Key(), Gold: gold, SkipSilver: goldOnly, Strict: strict, Logger: a.logger}
			report, err := r.Run(ctx, raw)
			metrics.RecordParity(p.Job, err)
			if err != nil {
				return fmt.Errorf("parity failed: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "raw csv or parquet file")
	cmd.Flags().StringVar(&stage, "stage", "all", "tables to compare: silver, gold or all")
	cmd.Flags().BoolVar(&strict, "strict-types", false, "require identical arrow types, not just type families")
	cmd.Flags().StringVar(&dsn, "duckdb", "", "DuckDB database (default in-memory)")
	cmd.Flags().StringVar(&comma, "comma", ",", "csv delimiter")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
