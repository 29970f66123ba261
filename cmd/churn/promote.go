package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"churn/internal/promotion"
)

func (a *app) promoteCmd() *cobra.Command {
	var (
		registry  string
		contender string
		champion  string
		epsilon   float64
		write     bool
	)
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Decide whether a trained model replaces the champion",
		Long: `promote compares a contender's holdout primary metric with the champion's.

With --registry it picks the best run under <registry>/runs and compares it with
<registry>/champion.json. With --contender it compares one metrics.json with the
champion pointer given by --champion. The pointer is moved only with --write.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if registry != "" {
				out, err := promotion.Promote(registry, epsilon, !write, a.logger)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}
			if contender == "" {
				return errors.New("give --registry or --contender")
			}
			d, err := decideFiles(contender, champion, epsilon, write, a.logger)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().StringVar(&registry, "registry", "", "model registry directory")
	cmd.Flags().StringVar(&contender, "contender", "", "contender metrics.json")
	cmd.Flags().StringVar(&champion, "champion", promotion.ChampionFile, "champion pointer file")
	cmd.Flags().Float64Var(&epsilon, "epsilon", promotion.DefaultEpsilon, "minimum holdout improvement")
	cmd.Flags().BoolVar(&write, "write", false, "move the champion pointer when the contender wins")
	cmd.MarkFlagsMutuallyExclusive("registry", "contender")
	return cmd
}

// decideFiles compares contenderPath with the champion named by pointerPath.
// Pointer paths are relative to the pointer's directory; the contender's run
// id is its parent directory name.
func decideFiles(contenderPath, pointerPath string, epsilon float64, write bool, log *zap.Logger) (promotion.Decision, error) {
	cm, err := promotion.LoadMetrics(contenderPath)
	if err != nil {
		return promotion.Decision{}, err
	}
	base := filepath.Dir(pointerPath)
	ref, ok, err := promotion.ReadChampion(pointerPath)
	if err != nil {
		return promotion.Decision{}, err
	}
	var champ *promotion.Metrics
	if ok {
		champ, err = promotion.LoadMetrics(filepath.Join(base, filepath.FromSlash(ref.PathInRepo), promotion.MetricsFile))
		if err != nil {
			return promotion.Decision{}, fmt.Errorf("champion metrics: %w", err)
		}
	}
	d, err := promotion.Decide(cm, champ, epsilon)
	if err != nil {
		return d, err
	}
	log.Info("promotion decision", zap.Bool("promote", d.Promote), zap.String("reason", d.Reason))
	if !d.Promote || !write {
		return d, nil
	}
	runDir := filepath.Dir(contenderPath)
	rel, err := filepath.Rel(base, runDir)
	if err != nil {
		return d, err
	}
	next := promotion.ChampionRef{RunID: filepath.Base(runDir), PathInRepo: filepath.ToSlash(rel)}
	if err := promotion.WriteChampion(pointerPath, next); err != nil {
		return d, err
	}
	return d, nil
}
