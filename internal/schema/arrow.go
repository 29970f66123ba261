package schema

import "github.com/apache/arrow-go/v18/arrow"

// SilverFields returns the canonical fields in silver column order. The label
// field is dropped when labeled is false.
func (c *Contract) SilverFields(labeled bool) []Field {
	out := make([]Field, 0, len(c.fields))
	for _, f := range c.Fields() {
		if f.Label && !labeled {
			continue
		}
		out = append(out, f)
	}
	return out
}

// SilverSchema is the arrow schema of the canonical table. Every column is
// nullable; the key is nullable too because null-id rows pass through.
func (c *Contract) SilverSchema(labeled bool) *arrow.Schema {
	fields := c.SilverFields(labeled)
	out := make([]arrow.Field, len(fields))
	for i, f := range fields {
		out[i] = arrow.Field{Name: f.Name, Type: f.ArrowType(), Nullable: true}
	}
	return arrow.NewSchema(out, nil)
}

// GoldSchema is the arrow schema of the engineered table.
func (c *Contract) GoldSchema(labeled bool) *arrow.Schema {
	cols := c.GoldColumns(labeled)
	out := make([]arrow.Field, len(cols))
	for i, g := range cols {
		out[i] = arrow.Field{Name: g.Name, Type: g.Type, Nullable: true}
	}
	return arrow.NewSchema(out, nil)
}

// Labeled reports whether s carries the label column.
func (c *Contract) Labeled(s *arrow.Schema) bool {
	return s.HasField(c.label)
}
