// Package datasource defines where raw customer snapshots come from.
package datasource

import (
	"context"
	"io"
)

// Source opens a raw snapshot for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
