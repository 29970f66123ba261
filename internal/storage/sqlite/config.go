package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:churn.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string

	// Table is the target table name for inserts, e.g. "gold_features".
	// Dotted values such as "main.gold" are quoted per segment.
	Table string

	// Columns is the ordered list of destination columns.
	Columns []string

	// KeyColumns turns inserts into upserts on these columns. They must form
	// a primary key or unique constraint on Table.
	KeyColumns []string
}
