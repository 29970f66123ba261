package promotion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ChampionFile is the pointer file name inside a registry.
const ChampionFile = "champion.json"

// ChampionRef points at the run currently serving as champion.
type ChampionRef struct {
	PathInRepo string `json:"path_in_repo"`
	RunID      string `json:"run_id"`
}

// ReadChampion loads the pointer at path. The bool is false when no champion
// has been written yet.
func ReadChampion(path string) (ChampionRef, bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ChampionRef{}, false, nil
	}
	if err != nil {
		return ChampionRef{}, false, err
	}
	var ref ChampionRef
	if err := json.Unmarshal(b, &ref); err != nil {
		return ChampionRef{}, false, fmt.Errorf("parse %s: %w", path, err)
	}
	if ref.RunID == "" || ref.PathInRepo == "" {
		return ChampionRef{}, false, fmt.Errorf("%s: run_id and path_in_repo are required", path)
	}
	return ref, true, nil
}

// WriteChampion replaces the pointer at path atomically.
func WriteChampion(path string, ref ChampionRef) error {
	b, err := json.MarshalIndent(ref, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".champion-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Outcome is what Promote did.
type Outcome struct {
	Contender Run
	Champion  *ChampionRef
	Decision  Decision
	// Written is true when the pointer was moved to Contender.
	Written bool
}

// Promote selects the best run under registry, compares it with the current
// champion and, unless dryRun, moves the pointer when the contender wins.
func Promote(registry string, epsilon float64, dryRun bool, log *zap.Logger) (Outcome, error) {
	if log == nil {
		log = zap.NewNop()
	}
	runs, err := ListRuns(registry)
	if err != nil {
		return Outcome{}, err
	}
	best, err := BestContender(runs)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Contender: best}

	pointer := filepath.Join(registry, ChampionFile)
	ref, ok, err := ReadChampion(pointer)
	if err != nil {
		return out, err
	}
	var champ *Metrics
	if ok {
		out.Champion = &ref
		champ, err = LoadMetrics(filepath.Join(registry, filepath.FromSlash(ref.PathInRepo), MetricsFile))
		if err != nil {
			return out, fmt.Errorf("champion metrics: %w", err)
		}
	}

	out.Decision, err = Decide(best.Metrics, champ, epsilon)
	if err != nil {
		return out, err
	}
	log.Info("promotion decision",
		zap.String("contender", best.ID),
		zap.Bool("promote", out.Decision.Promote),
		zap.String("reason", out.Decision.Reason),
	)
	if !out.Decision.Promote || dryRun {
		return out, nil
	}
	next := ChampionRef{RunID: best.ID, PathInRepo: "runs/" + best.ID}
	if err := WriteChampion(pointer, next); err != nil {
		return out, fmt.Errorf("write champion: %w", err)
	}
	out.Written = true
	return out, nil
}
