// Package promotion decides whether a trained contender replaces the current
// champion model and maintains the champion pointer file.
package promotion

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
)

// MetricsFile is the name of the per-run metrics document.
const MetricsFile = "metrics.json"

// Metrics is the subset of a run's metrics.json the decision reads.
type Metrics struct {
	PrimaryMetric   string         `json:"primary_metric"`
	ArtifactVersion any            `json:"artifact_version,omitempty"`
	Holdout         map[string]any `json:"holdout,omitempty"`
	CV              struct {
		Metrics map[string]struct {
			Mean any `json:"mean"`
			Std  any `json:"std"`
		} `json:"metrics"`
	} `json:"cv"`
}

// Primary returns the primary metric name.
func (m *Metrics) Primary() (string, error) {
	if m == nil || m.PrimaryMetric == "" {
		return "", errors.New("metrics missing required field: primary_metric")
	}
	return m.PrimaryMetric, nil
}

// HoldoutValue returns the holdout score of metric pm.
func (m *Metrics) HoldoutValue(pm string) (float64, error) {
	v, ok := finite(m.Holdout[pm])
	if !ok {
		return 0, fmt.Errorf("metrics missing holdout primary value for %q", pm)
	}
	return v, nil
}

// Version returns artifact_version when it is an integral number.
func (m *Metrics) Version() (int64, bool) {
	if m == nil {
		return 0, false
	}
	f, ok := m.ArtifactVersion.(float64)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// finite accepts JSON numbers only; booleans and strings are not scores.
func finite(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// LoadMetrics reads a metrics.json document.
func LoadMetrics(path string) (*Metrics, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Metrics
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}

// Run is one training run found in the registry.
type Run struct {
	ID          string
	MetricsPath string
	Metrics     *Metrics
	// Err records why the run's metrics could not be loaded.
	Err string
}

// ListRuns returns every run under dir/runs, sorted by id. A run whose
// metrics cannot be read is returned with Err set.
func ListRuns(dir string) ([]Run, error) {
	entries, err := os.ReadDir(filepath.Join(dir, "runs"))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []Run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r := Run{ID: e.Name(), MetricsPath: filepath.Join(dir, "runs", e.Name(), MetricsFile)}
		m, err := LoadMetrics(r.MetricsPath)
		if err != nil {
			r.Err = err.Error()
		} else {
			r.Metrics = m
		}
		runs = append(runs, r)
	}
	slices.SortFunc(runs, func(a, b Run) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return runs, nil
}

// ErrNoCandidates is returned when no run passes the selection gates.
var ErrNoCandidates = errors.New("no candidates passed gates")

// BestContender ranks runs on the primary metric's CV mean, then lower CV
// std (missing std ranks last), then holdout score, then run id. Runs with a
// load error, no primary metric, or a missing CV mean or holdout score are
// skipped.
func BestContender(runs []Run) (Run, error) {
	type rank struct {
		mean, negStd, hold float64
		id                 string
	}
	less := func(a, b rank) bool {
		if a.mean != b.mean {
			return a.mean < b.mean
		}
		if a.negStd != b.negStd {
			return a.negStd < b.negStd
		}
		if a.hold != b.hold {
			return a.hold < b.hold
		}
		return a.id < b.id
	}

	var (
		best    Run
		bestKey rank
		found   bool
	)
	for _, r := range runs {
		if r.Err != "" || r.Metrics == nil {
			continue
		}
		pm, err := r.Metrics.Primary()
		if err != nil {
			continue
		}
		cv := r.Metrics.CV.Metrics[pm]
		mean, ok := finite(cv.Mean)
		if !ok {
			continue
		}
		hold, ok := finite(r.Metrics.Holdout[pm])
		if !ok {
			continue
		}
		std, ok := finite(cv.Std)
		if !ok {
			std = math.Inf(1)
		}
		key := rank{mean: mean, negStd: -std, hold: hold, id: r.ID}
		if !found || less(bestKey, key) {
			best, bestKey, found = r, key, true
		}
	}
	if !found {
		return Run{}, ErrNoCandidates
	}
	return best, nil
}
