package schema

import (
	"strings"
)

// Resolution maps canonical fields to positions in a raw header.
type Resolution struct {
	// Index maps a canonical field name to its raw column position. Fields
	// missing from the header are absent from the map.
	Index map[string]int
	// Labeled is true when the header carries the label column.
	Labeled bool
	// Unknown lists raw columns that match no field; they are ignored.
	Unknown []string
}

// Column returns the raw position of the canonical field name.
func (r Resolution) Column(name string) (int, bool) {
	i, ok := r.Index[name]
	return i, ok
}

// Resolve matches a raw header against the contract. A header name matches a
// field when it equals the field's source or canonical name, ignoring case and
// surrounding whitespace. Missing non-key columns are tolerated.
func (c *Contract) Resolve(header []string) (Resolution, error) {
	res := Resolution{Index: make(map[string]int, len(c.fields))}
	for pos, raw := range header {
		name := strings.TrimSpace(raw)
		f, ok := c.match(name)
		if !ok {
			res.Unknown = append(res.Unknown, raw)
			continue
		}
		if prev, dup := res.Index[f.Name]; dup {
			return Resolution{}, &SchemaError{
				Column: f.Name,
				Reason: "mapped from both " + quote(header[prev]) + " and " + quote(raw),
			}
		}
		res.Index[f.Name] = pos
	}
	if _, ok := res.Index[c.key]; !ok {
		return Resolution{}, &SchemaError{Column: c.key, Reason: "identifier column is missing"}
	}
	_, res.Labeled = res.Index[c.label]
	return res, nil
}

func (c *Contract) match(name string) (Field, bool) {
	for _, f := range c.fields {
		if strings.EqualFold(name, f.Source) || strings.EqualFold(name, f.Name) {
			return f, true
		}
	}
	return Field{}, false
}

func quote(s string) string { return `"` + s + `"` }
