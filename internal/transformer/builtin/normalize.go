// Package builtin contains the columnar transformers of the vectorized path.
//
// Normalize maps a raw, all-text record onto the canonical silver schema:
//
//   - every value is trimmed of the contract's whitespace cutset;
//   - text and categorical values are lowercased, and categorical values
//     outside the field's vocabulary become null;
//   - numeric values must fully match the contract's integer or float pattern
//     before they are parsed, and values outside the inclusive range become
//     null.
//
// Bad values are a data-quality signal, never an error; no row is dropped.
// The only error is a structural one (schema.SchemaError) from Resolve.
package builtin

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"churn/internal/schema"
	"churn/internal/table"
)

// Normalize is the silver normalization transformer.
type Normalize struct {
	contract *schema.Contract
	intRe    *regexp.Regexp
	floatRe  *regexp.Regexp
}

// NewNormalize compiles the contract's numeric patterns.
func NewNormalize(c *schema.Contract) (*Normalize, error) {
	intRe, err := regexp.Compile(`^(?:` + c.IntegerPattern() + `)$`)
	if err != nil {
		return nil, fmt.Errorf("normalize: integer pattern: %w", err)
	}
	floatRe, err := regexp.Compile(`^(?:` + c.FloatPattern() + `)$`)
	if err != nil {
		return nil, fmt.Errorf("normalize: float pattern: %w", err)
	}
	return &Normalize{contract: c, intRe: intRe, floatRe: floatRe}, nil
}

// colPlan is the per-column work compiled once per Apply.
type colPlan struct {
	field schema.Field
	src   arrow.Array // nil when the raw record lacks the column
}

func (n *Normalize) Apply(raw arrow.Record) (arrow.Record, error) {
	header := make([]string, raw.NumCols())
	for i := range header {
		header[i] = raw.ColumnName(i)
	}
	res, err := n.contract.Resolve(header)
	if err != nil {
		return nil, err
	}

	fields := n.contract.SilverFields(res.Labeled)
	plan := make([]colPlan, len(fields))
	for i, f := range fields {
		plan[i].field = f
		if pos, ok := res.Column(f.Name); ok {
			plan[i].src = raw.Column(pos)
		}
	}

	rows := int(raw.NumRows())
	b := array.NewRecordBuilder(table.Allocator, n.contract.SilverSchema(res.Labeled))
	defer b.Release()
	for i, p := range plan {
		fb := b.Field(i)
		fb.Reserve(rows)
		for r := 0; r < rows; r++ {
			if p.src == nil {
				fb.AppendNull()
				continue
			}
			s, ok := table.RawText(p.src, r)
			if !ok {
				fb.AppendNull()
				continue
			}
			if err := table.AppendValue(fb, n.Value(p.field, s)); err != nil {
				return nil, fmt.Errorf("normalize: column %q: %w", p.field.Name, err)
			}
		}
	}
	return b.NewRecord(), nil
}

// Key normalizes a raw entity id with the rule applied to the contract's key
// column, so lookups match stored ids. ok is false when the id would be null.
func (n *Normalize) Key(id string) (string, bool) {
	if !utf8.ValidString(id) || strings.IndexByte(id, 0) >= 0 {
		return "", false
	}
	f, found := n.contract.Field(n.contract.Key())
	if !found {
		return "", false
	}
	v, ok := n.Value(f, id).(string)
	return v, ok
}

// Value normalizes one non-null raw cell of field f; nil means the value is
// rejected.
func (n *Normalize) Value(f schema.Field, s string) any {
	s = strings.Trim(s, n.contract.Whitespace())
	switch f.Type {
	case schema.TypeInteger:
		if !n.intRe.MatchString(s) {
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || !f.InRange(float64(v)) {
			return nil
		}
		return v
	case schema.TypeFloat:
		if !n.floatRe.MatchString(s) {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || !f.InRange(v) {
			return nil
		}
		return v
	default:
		s = strings.ToLower(s)
		if !f.Allows(s) {
			return nil
		}
		return s
	}
}
