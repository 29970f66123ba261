// Package ddl provides SQLite-specific helpers for generating CREATE TABLE
// statements from the generic ddl.TableDef model.
//
// The builder here:
//   - Uses double-quoted identifiers: "table", "col".
//   - Emits CREATE TABLE IF NOT EXISTS.
//   - Renders PRIMARY KEY as a separate table constraint.
package ddl

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	gddl "churn/internal/ddl"
	"churn/internal/storage"
)

// Dialect renders SQLite DDL.
var Dialect = gddl.Dialect{Name: "sqlite ddl", Quote: quoteIdent, IfNotExists: true}

// BuildCreateTableSQL returns a SQLite CREATE TABLE statement for t. Dotted
// names (e.g. "main.events") have each segment quoted.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) { return Dialect.CreateTable(t) }

// MapType maps an arrow type into a SQLite column type. SQLite is dynamically
// typed, so this picks the canonical affinity:
//   - integers and booleans -> INTEGER
//   - floats                -> REAL
//   - strings               -> TEXT
//   - binary                -> BLOB
func MapType(dt arrow.DataType) (string, error) {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.BOOL:
		return "INTEGER", nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return "REAL", nil
	case arrow.STRING, arrow.LARGE_STRING:
		return "TEXT", nil
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "BLOB", nil
	}
	return "", fmt.Errorf("sqlite ddl: unsupported arrow type %s", dt)
}

// FromSchema derives a SQLite table definition from an arrow schema.
func FromSchema(table string, s *arrow.Schema, keys []string) (gddl.TableDef, error) {
	return gddl.FromSchema(table, s, keys, MapType)
}

// EnsureTable creates the table if it does not exist. It is idempotent.
func EnsureTable(ctx context.Context, repo storage.Repository, def gddl.TableDef) error {
	sql, err := BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, sql)
}

func quoteIdent(id string) string {
	out := make([]byte, 0, len(id)+2)
	out = append(out, '"')
	for i := 0; i < len(id); i++ {
		if id[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, id[i])
	}
	return string(append(out, '"'))
}
