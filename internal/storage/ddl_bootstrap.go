package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
)

// DDLBootstrapper is a backend-specific function that derives a table
// definition from an arrow schema and applies it via repo.Exec (typically
// CREATE TABLE IF NOT EXISTS). keys become the primary key.
type DDLBootstrapper func(ctx context.Context, repo Repository, table string, s *arrow.Schema, keys []string) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) a DDLBootstrapper for the given storage
// kind. It is typically called from backend packages' init() functions.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable locates the DDLBootstrapper for kind and invokes it. Callers do
// not need to know which backend they are using.
func EnsureTable(ctx context.Context, kind string, repo Repository, table string, s *arrow.Schema, keys []string) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, table, s, keys)
}
