// Package file implements a local filesystem-backed data source.
package file

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"churn/internal/datasource"
)

// Snapshot formats recognised by extension.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Local is a filesystem data source that opens files from the local disk.
// Files ending in .gz are decompressed transparently.
type Local struct{ path string }

var _ datasource.Source = (*Local)(nil)

// NewLocal returns a new Local data source bound to the provided filesystem
// path. The returned value is safe for concurrent use by multiple goroutines
// as long as the underlying path location is valid for concurrent reads.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path is the configured path.
func (l *Local) Path() string { return l.path }

// Format guesses the snapshot format from the extension, ignoring a trailing
// .gz. Anything that is not .parquet is treated as CSV.
func (l *Local) Format() string {
	p := strings.TrimSuffix(strings.ToLower(l.path), ".gz")
	if filepath.Ext(p) == ".parquet" {
		return FormatParquet
	}
	return FormatCSV
}

// Open opens the configured path for reading and returns an io.ReadCloser.
//
// Behavior:
//   - If the context is already canceled or its deadline exceeded at the time
//     of the call, Open returns the context error immediately without touching
//     the filesystem.
//   - Any filesystem error is wrapped with the path for context, while still
//     permitting errors.Is/As checks by callers (e.g., errors.Is(err, os.ErrNotExist)).
//   - For .gz paths the returned reader yields decompressed bytes and closes
//     both the gzip stream and the file.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	if !strings.HasSuffix(strings.ToLower(l.path), ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: gzip: %w", l.path, err)
	}
	return &gzipFile{Reader: zr, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return zerr
}
