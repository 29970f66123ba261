// Package probe profiles a raw customer snapshot against the contract before
// a run: which headers resolve, how many cells are empty, and how many values
// the normalizer would reject.
package probe

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"churn/internal/schema"
	"churn/internal/table"
	"churn/internal/transformer/builtin"
)

// maxExamples caps the rejected values kept per column.
const maxExamples = 3

// Column profiles one raw column.
type Column struct {
	Header   string   `json:"header"`
	Field    string   `json:"field,omitempty"` // empty when no contract field matches
	Inferred string   `json:"inferred"`
	Nulls    int64    `json:"nulls"`
	Blank    int64    `json:"blank"`
	Rejected int64    `json:"rejected"`
	Distinct int      `json:"distinct"`
	Examples []string `json:"rejected_examples,omitempty"`
}

// Report is the profile of a raw record.
type Report struct {
	Contract string   `json:"contract"`
	Rows     int64    `json:"rows"`
	Labeled  bool     `json:"labeled"`
	Columns  []Column `json:"columns"`
	Missing  []string `json:"missing,omitempty"`
}

// Profile resolves raw's header against c and scans every column. A header
// without the identifier column is an error (schema.SchemaError).
func Profile(ctx context.Context, raw arrow.Record, c *schema.Contract) (*Report, error) {
	norm, err := builtin.NewNormalize(c)
	if err != nil {
		return nil, err
	}
	header := make([]string, raw.NumCols())
	for i := range header {
		header[i] = raw.ColumnName(i)
	}
	res, err := c.Resolve(header)
	if err != nil {
		return nil, err
	}
	byPos := make(map[int]string, len(res.Index))
	for name, pos := range res.Index {
		byPos[pos] = name
	}

	rep := &Report{Contract: c.Name(), Rows: raw.NumRows(), Labeled: res.Labeled}
	for pos, h := range header {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		col := Column{Header: h}
		var field *schema.Field
		if name, ok := byPos[pos]; ok {
			f, _ := c.Field(name)
			field = &f
			col.Field = name
		}
		scan(&col, raw.Column(pos), field, norm, c.Whitespace())
		rep.Columns = append(rep.Columns, col)
	}
	for _, f := range c.Fields() {
		if _, ok := res.Index[f.Name]; !ok {
			rep.Missing = append(rep.Missing, f.Name)
		}
	}
	return rep, nil
}

func scan(col *Column, arr arrow.Array, f *schema.Field, norm *builtin.Normalize, ws string) {
	seen := make(map[string]struct{})
	var values []string
	for r := 0; r < arr.Len(); r++ {
		s, ok := table.RawText(arr, r)
		if !ok {
			col.Nulls++
			continue
		}
		t := strings.Trim(s, ws)
		if t == "" {
			col.Blank++
			continue
		}
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			values = append(values, t)
		}
		if f != nil && norm.Value(*f, s) == nil {
			col.Rejected++
			if len(col.Examples) < maxExamples && !slices.Contains(col.Examples, t) {
				col.Examples = append(col.Examples, t)
			}
		}
	}
	col.Distinct = len(seen)
	col.Inferred = inferType(values)
}

// inferType guesses integer, boolean, real or text. Every value must satisfy
// the narrower type.
func inferType(values []string) string {
	switch {
	case len(values) == 0:
		return "text"
	case allMatch(values, isInt):
		return "integer"
	case allMatch(values, isBool):
		return "boolean"
	case allMatch(values, isFloat):
		return "real"
	}
	return "text"
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "t", "f", "yes", "no", "y", "n", "1", "0":
		return true
	}
	return false
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
