// Package transformer defines the columnar transform contract and the
// execution-path contract shared by the vectorized and relational engines.
package transformer

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// Transformer maps one record to a new record. Apply never mutates or
// releases its input; the caller owns the returned record.
type Transformer interface {
	Apply(rec arrow.Record) (arrow.Record, error)
}

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs each transformer in order, releasing intermediate records.
func (c Chain) Apply(in arrow.Record) (arrow.Record, error) {
	out, owned := in, false
	for _, t := range c {
		next, err := t.Apply(out)
		if owned {
			out.Release()
		}
		if err != nil {
			return nil, err
		}
		out, owned = next, true
	}
	if !owned {
		in.Retain()
	}
	return out, nil
}

// Path is one complete implementation of the silver and gold transforms.
// Two paths given the same raw input must produce identical tables.
type Path interface {
	// Name identifies the path in logs and parity reports.
	Name() string
	// NormalizeAndDedupe turns a raw record (original or canonical column
	// names, text values) into the canonical silver table.
	NormalizeAndDedupe(ctx context.Context, raw arrow.Record) (arrow.Record, error)
	// DeriveFeatures turns a silver table into the engineered gold table.
	DeriveFeatures(ctx context.Context, silver arrow.Record) (arrow.Record, error)
}
