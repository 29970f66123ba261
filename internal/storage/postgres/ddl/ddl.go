// Package ddl contains Postgres-specific helpers for generating DDL.
//
// It builds CREATE TABLE statements for a generic ddl.TableDef, using
// Postgres-style quoting (double-quoted identifiers, escaped quotes), and maps
// arrow types onto Postgres column types.
package ddl

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	gddl "churn/internal/ddl"
	"churn/internal/storage"
)

// Dialect renders Postgres DDL.
var Dialect = gddl.Dialect{Name: "postgres ddl", Quote: QuoteIdent, IfNotExists: true}

// BuildCreateTableSQL builds a deterministic Postgres CREATE TABLE statement
// for the given table definition.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) { return Dialect.CreateTable(t) }

// MapType maps an arrow type onto a Postgres column type. Postgres has no
// one-byte integer, so int8 widens to SMALLINT.
//
//	int8, int16, uint8 -> SMALLINT
//	int32, uint16      -> INTEGER
//	int64, uint32      -> BIGINT
//	float32            -> REAL
//	float64            -> DOUBLE PRECISION
//	bool               -> BOOLEAN
//	string             -> TEXT
//	binary             -> BYTEA
func MapType(dt arrow.DataType) (string, error) {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.UINT8:
		return "SMALLINT", nil
	case arrow.INT32, arrow.UINT16:
		return "INTEGER", nil
	case arrow.INT64, arrow.UINT32:
		return "BIGINT", nil
	case arrow.FLOAT32:
		return "REAL", nil
	case arrow.FLOAT64:
		return "DOUBLE PRECISION", nil
	case arrow.BOOL:
		return "BOOLEAN", nil
	case arrow.STRING, arrow.LARGE_STRING:
		return "TEXT", nil
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "BYTEA", nil
	}
	return "", fmt.Errorf("postgres ddl: unsupported arrow type %s", dt)
}

// FromSchema derives a Postgres table definition from an arrow schema.
func FromSchema(table string, s *arrow.Schema, keys []string) (gddl.TableDef, error) {
	return gddl.FromSchema(table, s, keys, MapType)
}

// EnsureTable creates the target Postgres table if it does not exist.
// It is idempotent and simply issues the CREATE TABLE IF NOT EXISTS via the
// repository's Exec method.
func EnsureTable(ctx context.Context, repo storage.Repository, def gddl.TableDef) error {
	sql, err := BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, sql)
}

// QuoteIdent quotes a single identifier segment for Postgres, e.g.:
//
//	QuoteIdent(`tenure`)     => `"tenure"`
//	QuoteIdent(`weird"name`) => `"weird""name"`
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
