package ddl

import (
	"fmt"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// TypeMapper renders an arrow type in a backend's SQL dialect.
type TypeMapper func(arrow.DataType) (string, error)

// FromSchema derives a TableDef from an arrow schema. Every field becomes a
// column of the mapped type in schema order. Columns named in keys form the
// primary key and are NOT NULL; the rest follow the field's nullability.
func FromSchema(fqn string, s *arrow.Schema, keys []string, mapType TypeMapper) (TableDef, error) {
	if strings.TrimSpace(fqn) == "" {
		return TableDef{}, fmt.Errorf("ddl: table FQN must not be empty")
	}
	if s == nil || s.NumFields() == 0 {
		return TableDef{}, fmt.Errorf("ddl: schema has no fields")
	}
	for _, k := range keys {
		if !s.HasField(k) {
			return TableDef{}, fmt.Errorf("ddl: key column %q not in schema", k)
		}
	}

	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, 0, s.NumFields())}
	for _, f := range s.Fields() {
		typ, err := mapType(f.Type)
		if err != nil {
			return TableDef{}, fmt.Errorf("ddl: column %q: %w", f.Name, err)
		}
		pk := slices.Contains(keys, f.Name)
		def.Columns = append(def.Columns, ColumnDef{
			Name:       f.Name,
			SQLType:    typ,
			Nullable:   f.Nullable && !pk,
			PrimaryKey: pk,
		})
	}
	return def, nil
}
