package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"churn/internal/config"
	"churn/internal/pipeline"
)

func (a *app) runCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run raw → silver → gold → sinks for a pipeline file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadValid(cfgPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			flush, err := pipeline.InitMetrics(p, a.logger)
			if err != nil {
				return err
			}
			defer flush()

			sum, err := pipeline.Run(cmd.Context(), p, pipeline.Deps{Logger: a.logger})
			if err != nil {
				a.logger.Error("pipeline failed", zap.Error(err))
				return err
			}
			return writeJSON(cmd.OutOrStdout(), sum)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "configs/pipelines/telco.yaml", "pipeline config path")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Lint a pipeline file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadValid(cfgPath, cmd.ErrOrStderr()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "configs/pipelines/telco.yaml", "pipeline config path")
	return cmd
}

// loadValid loads path and prints every lint finding to w. Errors block.
func loadValid(path string, w io.Writer) (config.Pipeline, error) {
	p, err := config.Load(path)
	if err != nil {
		return p, err
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return p, fmt.Errorf("configuration is invalid: %s", path)
	}
	return p, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
