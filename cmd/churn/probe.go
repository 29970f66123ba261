package main

import (
	"github.com/spf13/cobra"

	"churn/internal/config"
	"churn/internal/pipeline"
	"churn/internal/probe"
	"churn/internal/schema"
)

func (a *app) probeCmd() *cobra.Command {
	var input, comma string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Profile a raw snapshot against the telco contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := config.Default()
			p.Source.File.Path = input
			p.Parser.Comma = comma
			raw, skipped, err := pipeline.ReadRaw(cmd.Context(), p, a.logger)
			if err != nil {
				return err
			}
			defer raw.Release()

			rep, err := probe.Profile(cmd.Context(), raw, schema.Telco())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				*probe.Report
				ParseSkipped int `json:"parse_skipped"`
			}{rep, skipped})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "raw csv or parquet file")
	cmd.Flags().StringVar(&comma, "comma", ",", "csv delimiter")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
