package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"churn/internal/datasource/file"
	"churn/internal/featurestore"
	"churn/internal/schema"
	"churn/internal/transformer"
	"churn/internal/transformer/builtin"
)

func (a *app) lookupCmd() *cobra.Command {
	var (
		dsn       string
		entityCol string
		ids       []string
		idsFile   string
		sample    int
		raw       map[string]string
	)
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Read customer features from the online store",
		Long: `Read customer features from the online store.

Ids are normalized like the stored key column, so "7590-VHVEG" finds the
customer stored as "7590-vhveg". With --raw, features are computed from one
raw record instead, without opening the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			contract := schema.Telco()
			if len(raw) > 0 {
				if len(ids) > 0 || idsFile != "" || sample > 0 {
					return errors.New("--raw cannot be combined with --id, --ids-file or --sample")
				}
				path, err := transformer.NewVectorized(contract)
				if err != nil {
					return err
				}
				svc := &featurestore.Service{Path: path, Logger: a.logger, EntityCol: entityCol}
				f, err := svc.Compute(ctx, raw)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), f)
			}
			if idsFile != "" {
				more, err := file.ReadList(idsFile)
				if err != nil {
					return err
				}
				ids = append(ids, more...)
			}
			if len(ids) == 0 && sample <= 0 {
				return errors.New("give --id, --ids-file or --sample")
			}

			store, err := featurestore.OpenSQLite(ctx, dsn, entityCol, featurestore.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer store.Close()

			if sample > 0 {
				picked, err := store.Sample(ctx, sample)
				if err != nil {
					return err
				}
				ids = append(ids, picked...)
			}

			norm, err := builtin.NewNormalize(contract)
			if err != nil {
				return err
			}
			svc := &featurestore.Service{Store: store, Keys: norm, Logger: a.logger, EntityCol: entityCol}
			out := make(map[string]featurestore.Features, len(ids))
			var missing int
			for _, id := range ids {
				f, err := svc.Lookup(ctx, id)
				if errors.Is(err, featurestore.ErrNotFound) {
					missing++
					fmt.Fprintf(cmd.ErrOrStderr(), "not found: %s\n", id)
					continue
				}
				if err != nil {
					return err
				}
				out[id] = f
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if missing > 0 {
				return fmt.Errorf("%d of %d customers not found", missing, len(ids))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "features.db", "sqlite feature store")
	cmd.Flags().StringVar(&entityCol, "entity-column", "customer_id", "gold entity column")
	cmd.Flags().StringSliceVar(&ids, "id", nil, "customer id (repeatable)")
	cmd.Flags().StringVar(&idsFile, "ids-file", "", "file with one customer id per line")
	cmd.Flags().IntVar(&sample, "sample", 0, "also look up this many random customers")
	cmd.Flags().StringToStringVar(&raw, "raw", nil, "compute features from one raw record, column=value (repeatable)")
	return cmd
}
