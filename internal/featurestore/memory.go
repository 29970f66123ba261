package featurestore

import (
	"context"
	"maps"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// Memory is an in-process Store. Only the current run's rows are retained;
// run metadata is kept for every run.
type Memory struct {
	entityCol string

	mu      sync.RWMutex
	runs    map[string]Run
	current string
	rows    map[string]Features
}

// NewMemory returns an empty store keyed by entityCol.
func NewMemory(entityCol string) *Memory {
	return &Memory{entityCol: entityCol, runs: map[string]Run{}}
}

func (m *Memory) Publish(ctx context.Context, gold arrow.Record) (Run, error) {
	run := newRun(m.entityCol)
	m.putRun(run)

	rows := make(map[string]Features)
	err := entities(ctx, gold, m.entityCol, func(id string, f Features) error {
		rows[id] = f
		return nil
	})
	run.FinishedAt = time.Now().UTC()
	run.Entities = int64(len(rows))
	if err != nil {
		run.Status, run.Error = StatusFailed, err.Error()
		m.putRun(run)
		return run, err
	}

	run.Status = StatusPublished
	m.mu.Lock()
	m.runs[run.ID] = run
	m.current = run.ID
	m.rows = rows
	m.mu.Unlock()
	return run, nil
}

func (m *Memory) putRun(r Run) {
	m.mu.Lock()
	m.runs[r.ID] = r
	m.mu.Unlock()
}

func (m *Memory) Get(_ context.Context, customerID string) (Features, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == "" {
		return nil, false, ErrNoCurrent
	}
	f, ok := m.rows[customerID]
	if !ok {
		return nil, false, nil
	}
	return maps.Clone(f), true, nil
}

func (m *Memory) Current(context.Context) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == "" {
		return Run{}, ErrNoCurrent
	}
	return m.runs[m.current], nil
}

// Run returns the metadata of any run, published or not.
func (m *Memory) Run(id string) (Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	return r, ok
}

func (m *Memory) Sample(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == "" {
		return nil, ErrNoCurrent
	}
	ids := make([]string, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if limit >= 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *Memory) Close() error { return nil }
