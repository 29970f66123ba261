package builtin

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"churn/internal/features"
	"churn/internal/schema"
	"churn/internal/table"
)

// Derive computes the gold table by running features.Deriver over every
// silver row. The label column is emitted only when the silver table has it.
type Derive struct {
	contract *schema.Contract
	deriver  *features.Deriver
}

func NewDerive(c *schema.Contract) *Derive {
	return &Derive{contract: c, deriver: features.NewDeriver(c)}
}

func (d *Derive) Apply(silver arrow.Record) (arrow.Record, error) {
	if _, ok := table.Column(silver, d.contract.Key()); !ok {
		return nil, &schema.SchemaError{Column: d.contract.Key(), Reason: "identifier column is missing"}
	}
	labeled := d.contract.Labeled(silver.Schema())
	cols := d.contract.GoldColumns(labeled)

	b := array.NewRecordBuilder(table.Allocator, d.contract.GoldSchema(labeled))
	defer b.Release()
	for r := 0; r < int(silver.NumRows()); r++ {
		e := d.deriver.Derive(features.CanonicalAt(silver, r))
		for i, g := range cols {
			v, _ := e.Field(g.Name)
			if err := table.AppendValue(b.Field(i), v); err != nil {
				return nil, fmt.Errorf("derive: column %q: %w", g.Name, err)
			}
		}
	}
	return b.NewRecord(), nil
}
