// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories and DDL bootstrappers with the
// storage package. After importing it, these kinds are available:
//
//   - "postgres" (churn/internal/storage/postgres)
//   - "sqlite"   (churn/internal/storage/sqlite)
//
// Typical usage (in cmd/churn or a similar wiring layer):
//
//	import _ "churn/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Storage.Kind, ...})
//	defer repo.Close()
//	if cfg.Storage.DB.AutoCreateTable {
//	    err = storage.EnsureTable(ctx, cfg.Storage.Kind, repo, table, rec.Schema(), keys)
//	}
//	res, err := storage.WriteRecord(ctx, log, repo, rec, keys, batchSize)
//
// A binary that needs only a subset of backends can import those packages
// directly instead.
package all

import (
	_ "churn/internal/storage/postgres"
	_ "churn/internal/storage/sqlite"
)
