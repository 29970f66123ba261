package featurestore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"churn/internal/table"
	"churn/internal/transformer"
)

// ErrNotFound is returned by Lookup for an id absent from the current run.
var ErrNotFound = errors.New("featurestore: customer not found")

// KeyNormalizer maps a requested id onto the stored form of the entity key.
type KeyNormalizer interface {
	Key(id string) (string, bool)
}

// Service answers online feature requests: stored lookups and on-the-fly
// computation for customers that were never published.
type Service struct {
	Store  Store
	Path   transformer.Path
	Logger *zap.Logger
	// EntityCol names the id column of gold rows. Empty means customer_id.
	EntityCol string
	// Keys, when set, normalizes ids before Lookup reads the store.
	Keys KeyNormalizer
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Lookup returns the stored features of customerID.
func (s *Service) Lookup(ctx context.Context, customerID string) (Features, error) {
	id := customerID
	if s.Keys != nil {
		var ok bool
		if id, ok = s.Keys.Key(customerID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, customerID)
		}
	}
	f, ok, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, customerID)
	}
	return f, nil
}

// Compute runs one raw customer record (source or canonical column names,
// text values) through the silver and gold transforms. Empty values are
// treated as missing. The result is keyed like a stored row, without the
// entity column.
func (s *Service) Compute(ctx context.Context, raw map[string]string) (Features, error) {
	if s.Path == nil {
		return nil, errors.New("featurestore: service has no transform path")
	}
	cols := make([]string, 0, len(raw))
	for k := range raw {
		cols = append(cols, k)
	}
	slices.Sort(cols)
	row := make([]any, len(cols))
	for i, c := range cols {
		if v := raw[c]; v != "" {
			row[i] = v
		}
	}
	rec := table.Raw(cols, row)
	defer rec.Release()

	silver, err := s.Path.NormalizeAndDedupe(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("featurestore: normalize: %w", err)
	}
	defer silver.Release()
	gold, err := s.Path.DeriveFeatures(ctx, silver)
	if err != nil {
		return nil, fmt.Errorf("featurestore: derive: %w", err)
	}
	defer gold.Release()

	entityCol := s.EntityCol
	if entityCol == "" {
		entityCol = "customer_id"
	}
	var out Features
	err = entities(ctx, gold, entityCol, func(_ string, f Features) error {
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: no usable row in input", ErrNotFound)
	}
	s.logger().Debug("features computed", zap.String("path", s.Path.Name()), zap.Int("features", len(out)))
	return out, nil
}
