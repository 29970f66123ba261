// Package featurestore serves engineered features for single customers.
//
// A gold table is published as a run. Every run gets a fresh id and moves
// WRITING -> PUBLISHED (or FAILED); the CURRENT pointer is flipped to a run
// only after all of its rows are stored, so a reader sees either the previous
// run or the complete new one, never a partial write.
package featurestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"

	"churn/internal/table"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusWriting   Status = "WRITING"
	StatusPublished Status = "PUBLISHED"
	StatusFailed    Status = "FAILED"
)

// Run describes one publication.
type Run struct {
	ID         string    `json:"run_id"`
	Status     Status    `json:"status"`
	EntityCol  string    `json:"entity_col"`
	Entities   int64     `json:"entities_written"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Features maps gold column names to their text rendering. The entity column
// and null values are never present.
type Features map[string]string

// Store publishes gold tables and serves the current run.
type Store interface {
	// Publish writes gold as a new run and makes it current.
	Publish(ctx context.Context, gold arrow.Record) (Run, error)
	// Get returns the current run's features for one customer.
	Get(ctx context.Context, customerID string) (Features, bool, error)
	// Current returns the run the CURRENT pointer names.
	Current(ctx context.Context) (Run, error)
	// Sample returns up to limit customer ids of the current run.
	Sample(ctx context.Context, limit int) ([]string, error)
	Close() error
}

// ErrNoCurrent is returned when nothing has been published yet.
var ErrNoCurrent = errors.New("featurestore: no current run")

// newRun starts a run record.
func newRun(entityCol string) Run {
	return Run{
		ID:        uuid.NewString(),
		Status:    StatusWriting,
		EntityCol: entityCol,
		StartedAt: time.Now().UTC(),
	}
}

// entities calls fn for every row of gold that has a non-null entity id and
// at least one non-null feature. Later rows for the same id overwrite earlier
// ones in every backend.
func entities(ctx context.Context, gold arrow.Record, entityCol string, fn func(id string, f Features) error) error {
	idx := gold.Schema().FieldIndices(entityCol)
	if len(idx) == 0 {
		return fmt.Errorf("featurestore: gold table must include entity column %q", entityCol)
	}
	key := gold.Column(idx[0])
	for r := 0; r < int(gold.NumRows()); r++ {
		if r%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		id, ok := table.Text(key, r)
		if !ok {
			continue
		}
		f := make(Features, gold.NumCols()-1)
		for c, col := range gold.Columns() {
			if c == idx[0] {
				continue
			}
			if v, ok := table.Text(col, r); ok {
				f[gold.ColumnName(c)] = v
			}
		}
		if len(f) == 0 {
			continue
		}
		if err := fn(id, f); err != nil {
			return err
		}
	}
	return nil
}
