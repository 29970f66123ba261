// Package schema is the single source of truth for the customer record layout:
// recognised raw columns and their canonical names, allowed categorical
// vocabularies, inclusive numeric ranges, and the engineered-feature layout.
//
// A Contract is immutable once built. Both execution paths (the DuckDB engine
// and the columnar transformers) receive the same *Contract at construction and
// validate against it, so the two can never disagree about what "valid" means.
package schema

import (
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
)

// Type is the logical type of a canonical field.
type Type string

const (
	TypeText     Type = "text"     // free text, no vocabulary (the entity key)
	TypeCategory Type = "category" // lowercased text restricted to Enum
	TypeInteger  Type = "integer"  // int64 restricted to [Min, Max]
	TypeFloat    Type = "float"    // float64 restricted to [Min, Max]
)

// Field describes one canonical silver column.
type Field struct {
	Name     string   `json:"name"`
	Source   string   `json:"source"`
	Type     Type     `json:"type"`
	Required bool     `json:"required,omitempty"`
	Label    bool     `json:"label,omitempty"`
	Enum     []string `json:"enum,omitempty"`
	Min      float64  `json:"min,omitempty"`
	Max      float64  `json:"max,omitempty"`
}

// Numeric reports whether the field is cast to a number.
func (f Field) Numeric() bool { return f.Type == TypeInteger || f.Type == TypeFloat }

// Allows reports whether the normalized value v is in the field's vocabulary.
// Text fields accept anything.
func (f Field) Allows(v string) bool {
	if f.Type != TypeCategory {
		return true
	}
	return slices.Contains(f.Enum, v)
}

// InRange reports whether v lies in the inclusive [Min, Max] range.
func (f Field) InRange(v float64) bool { return v >= f.Min && v <= f.Max }

// ArrowType is the silver column type for the field.
func (f Field) ArrowType() arrow.DataType {
	switch f.Type {
	case TypeInteger:
		return arrow.PrimitiveTypes.Int64
	case TypeFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// Code maps one normalized categorical value to its integer code.
type Code struct {
	Value string
	ID    int64
}

// Encoding is a lookup table from a categorical column to an integer feature.
// Values absent from Codes (including null) encode to null.
type Encoding struct {
	Feature string
	Column  string
	Codes   []Code
	Type    arrow.DataType
}

// Lookup returns the code for v.
func (e Encoding) Lookup(v string) (int64, bool) {
	for _, c := range e.Codes {
		if c.Value == v {
			return c.ID, true
		}
	}
	return 0, false
}

// FlagOp is the comparison a Flag applies.
type FlagOp string

const (
	OpEquals  FlagOp = "eq" // any of Columns equals Value
	OpLess    FlagOp = "lt" // Columns[0] < Threshold
	OpGreater FlagOp = "gt" // Columns[0] > Threshold
)

// Flag is a 0/1 indicator. Flags follow three-valued logic: a flag whose
// inputs are all null is null, and an OpEquals flag over several columns is 1
// as soon as one column matches, null if none matches and any is null.
type Flag struct {
	Name      string
	Columns   []string
	Op        FlagOp
	Value     string
	Threshold float64
}

// Ratio is Numerator / Denominator, null when either side is null or the
// denominator is zero.
type Ratio struct {
	Name        string
	Numerator   string
	Denominator string
}

// Bucket assigns Column to the index of the first bound it is below; values at
// or above the last bound get len(Bounds).
type Bucket struct {
	Name   string
	Column string
	Bounds []int64
}

// Index returns the bucket id for v.
func (b Bucket) Index(v int64) int64 {
	for i, bound := range b.Bounds {
		if v < bound {
			return int64(i)
		}
	}
	return int64(len(b.Bounds))
}

// GoldKind tells how a gold column is computed.
type GoldKind string

const (
	GoldPassthrough GoldKind = "passthrough"
	GoldEncoded     GoldKind = "encoded"
	GoldCount       GoldKind = "count"
	GoldFlag        GoldKind = "flag"
	GoldRatio       GoldKind = "ratio"
	GoldShare       GoldKind = "share" // count / number of counted columns
	GoldBucket      GoldKind = "bucket"
)

// GoldColumn is one engineered output column. Ref names the Encoding, Flag,
// Ratio, Bucket or count set (CountServices / CountAddons) that produces it;
// for passthrough columns it names the silver column.
type GoldColumn struct {
	Name string
	Kind GoldKind
	Ref  string
	Type arrow.DataType
}

// Count set names used as GoldColumn.Ref.
const (
	CountServices = "services"
	CountAddons   = "addons"
)

// Contract is the immutable registry shared by every transformation path.
type Contract struct {
	name           string
	key            string
	label          string
	whitespace     string
	integerPattern string
	floatPattern   string
	fields         []Field
	dedupOrder     []string
	encodings      []Encoding
	flags          []Flag
	ratios         []Ratio
	buckets        []Bucket
	services       []string
	addons         []string
	gold           []GoldColumn
}

// Name identifies the contract in logs.
func (c *Contract) Name() string { return c.name }

// Key is the canonical entity-key column.
func (c *Contract) Key() string { return c.key }

// Label is the canonical label column.
func (c *Contract) Label() string { return c.label }

// Whitespace is the cutset trimmed from both ends of every raw value.
func (c *Contract) Whitespace() string { return c.whitespace }

// IntegerPattern is the RE2 pattern (full match) a trimmed value must satisfy
// before it is cast to an integer.
func (c *Contract) IntegerPattern() string { return c.integerPattern }

// FloatPattern is the RE2 pattern (full match) a trimmed value must satisfy
// before it is cast to a float.
func (c *Contract) FloatPattern() string { return c.floatPattern }

// Fields returns the canonical fields in silver column order, label included.
func (c *Contract) Fields() []Field {
	out := make([]Field, len(c.fields))
	for i, f := range c.fields {
		f.Enum = slices.Clone(f.Enum)
		out[i] = f
	}
	return out
}

// Field returns the canonical field called name.
func (c *Contract) Field(name string) (Field, bool) {
	for _, f := range c.fields {
		if f.Name == name {
			f.Enum = slices.Clone(f.Enum)
			return f, true
		}
	}
	return Field{}, false
}

// DedupOrder lists the columns that rank duplicate rows, each descending with
// nulls last. The key ascending always comes first.
func (c *Contract) DedupOrder() []string { return slices.Clone(c.dedupOrder) }

// Encodings returns every lookup-table encoding.
func (c *Contract) Encodings() []Encoding {
	out := make([]Encoding, len(c.encodings))
	for i, e := range c.encodings {
		e.Codes = slices.Clone(e.Codes)
		out[i] = e
	}
	return out
}

// Encoding returns the encoding producing feature.
func (c *Contract) Encoding(feature string) (Encoding, bool) {
	for _, e := range c.encodings {
		if e.Feature == feature {
			e.Codes = slices.Clone(e.Codes)
			return e, true
		}
	}
	return Encoding{}, false
}

// Flag returns the flag called name.
func (c *Contract) Flag(name string) (Flag, bool) {
	for _, f := range c.flags {
		if f.Name == name {
			f.Columns = slices.Clone(f.Columns)
			return f, true
		}
	}
	return Flag{}, false
}

// Ratio returns the ratio called name.
func (c *Contract) Ratio(name string) (Ratio, bool) {
	for _, r := range c.ratios {
		if r.Name == name {
			return r, true
		}
	}
	return Ratio{}, false
}

// Bucket returns the bucketing called name.
func (c *Contract) Bucket(name string) (Bucket, bool) {
	for _, b := range c.buckets {
		if b.Name == name {
			b.Bounds = slices.Clone(b.Bounds)
			return b, true
		}
	}
	return Bucket{}, false
}

// CountColumns returns the columns counted by the count set ref.
func (c *Contract) CountColumns(ref string) []string {
	switch ref {
	case CountServices:
		return slices.Clone(c.services)
	case CountAddons:
		return slices.Clone(c.addons)
	}
	return nil
}

// GoldColumns returns the engineered layout. The label column is included
// only when labeled is true.
func (c *Contract) GoldColumns(labeled bool) []GoldColumn {
	out := make([]GoldColumn, 0, len(c.gold))
	for _, g := range c.gold {
		if !labeled && g.Name == c.label {
			continue
		}
		out = append(out, g)
	}
	return out
}
