// Package postgres implements a Postgres repository using pgx v5. Without key
// columns it COPYs straight into the target table; with key columns it COPYs
// into a transaction-scoped temporary table and upserts from there.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	pgddl "churn/internal/storage/postgres/ddl"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN        string   // connection string for pgxpool
	Table      string   // fully qualified target table name, e.g., "public.gold_features"
	Columns    []string // ordered columns for COPY and INSERT
	KeyColumns []string // conflict target columns
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// CopyFrom writes rows aligned to columns. It returns the number of rows
// copied.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(r.cfg.KeyColumns) == 0 {
		n, err := r.pool.CopyFrom(ctx, splitFQN(r.cfg.Table), columns, pgx.CopyFromRows(rows))
		if err != nil {
			return n, copyErr("copy", err)
		}
		return n, nil
	}
	return r.upsert(ctx, columns, rows)
}

func (r *Repository) upsert(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tmp := stagingName(r.cfg.Table)
	create := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgIdent(tmp), pgFQN(r.cfg.Table),
	)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("postgres: create temp: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, copyErr("copy into temp", err)
	}
	if _, err := tx.Exec(ctx, upsertSQL(r.cfg.Table, tmp, columns, r.cfg.KeyColumns)); err != nil {
		return 0, fmt.Errorf("postgres: upsert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return n, nil
}

// upsertSQL moves the staged rows into table, overwriting non-key columns of
// rows whose key already exists.
func upsertSQL(table, staging string, columns, keys []string) string {
	cols := strings.Join(mapIdent(columns), ", ")
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s)",
		pgFQN(table), cols, cols, pgIdent(staging), strings.Join(mapIdent(keys), ", "),
	)
	sets := updateColumns(columns, keys)
	if len(sets) == 0 {
		return stmt + " DO NOTHING"
	}
	return stmt + " DO UPDATE SET " + strings.Join(sets, ", ")
}

// updateColumns generates "col = EXCLUDED.col" for every non-key column.
func updateColumns(cols, keys []string) []string {
	var updates []string
	for _, col := range cols {
		if slices.Contains(keys, col) {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(col), pgIdent(col)))
	}
	return updates
}

// stagingName derives a temp-table name from the target, e.g.
// "public.gold" -> "tmp_public_gold".
func stagingName(table string) string {
	return "tmp_" + strings.ReplaceAll(table, ".", "_")
}

// copyErr surfaces the server-side detail of a COPY failure when there is one.
func copyErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("postgres: %s: %s (%s): %w", op, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return pgddl.QuoteIdent(id) }

// pgFQN quotes a possibly schema-qualified name like "public.gold" to
// "public"."gold". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string { return pgddl.Dialect.QuoteFQN(name) }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}
