// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// CREATE TABLE statements from it through a Dialect.
//
// Backends (internal/storage/postgres/ddl, internal/storage/sqlite/ddl) supply
// a Dialect and a type mapper; the column and key layout is derived once, from
// the arrow schema of the record being stored (see FromSchema).
package ddl

import (
	"fmt"
	"strings"
)

// Dialect carries the per-backend rendering rules.
type Dialect struct {
	// Name prefixes error messages, e.g. "sqlite ddl".
	Name string
	// Quote quotes one identifier segment. Nil emits identifiers verbatim.
	Quote func(string) string
	// IfNotExists renders CREATE TABLE IF NOT EXISTS.
	IfNotExists bool
}

// QuoteFQN quotes each dot-separated segment of name. Empty segments are
// dropped.
func (d Dialect) QuoteFQN(name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.quote(p))
	}
	return strings.Join(out, ".")
}

// QuoteIdent quotes a single identifier.
func (d Dialect) QuoteIdent(id string) string { return d.quote(id) }

func (d Dialect) quote(id string) string {
	if d.Quote == nil {
		return id
	}
	return d.Quote(id)
}

// CreateTable renders a CREATE TABLE statement:
//
//	CREATE TABLE [IF NOT EXISTS] <fqn> (
//	  <col> <type> [NOT NULL] [DEFAULT <expr>],
//	  ...,
//	  [PRIMARY KEY (<pk-cols>)]
//	);
//
// Names, types and defaults are trimmed. Primary-key columns are always NOT
// NULL and keep their column order in the constraint. Default is raw SQL.
func (d Dialect) CreateTable(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s: column with empty name in table %s", d.Name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s: column %s missing SQLType", d.Name, name)
		}

		var sb strings.Builder
		sb.WriteString(d.quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.quote(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	create := "CREATE TABLE "
	if d.IfNotExists {
		create += "IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n  %s\n);", create, d.QuoteFQN(fqn), strings.Join(cols, ",\n  ")), nil
}
