package transformer

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"churn/internal/schema"
	"churn/internal/transformer/builtin"
)

// Vectorized is the in-process columnar Path built from builtin transformers.
type Vectorized struct {
	silver Chain
	gold   Chain
}

var _ Path = (*Vectorized)(nil)

// NewVectorized compiles the silver chain (Normalize, DeDup) and the gold
// chain (Derive) for contract c.
func NewVectorized(c *schema.Contract) (*Vectorized, error) {
	norm, err := builtin.NewNormalize(c)
	if err != nil {
		return nil, fmt.Errorf("transformer: %w", err)
	}
	return &Vectorized{
		silver: Chain{norm, builtin.NewDeDup(c)},
		gold:   Chain{builtin.NewDerive(c)},
	}, nil
}

func (v *Vectorized) Name() string { return "vectorized" }

func (v *Vectorized) NormalizeAndDedupe(ctx context.Context, raw arrow.Record) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.silver.Apply(raw)
}

func (v *Vectorized) DeriveFeatures(ctx context.Context, silver arrow.Record) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.gold.Apply(silver)
}
