package parity

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"churn/internal/table"
	"churn/internal/transformer"
)

// Stage names a checked table.
type Stage string

const (
	StageSilver Stage = "silver"
	StageGold   Stage = "gold"
)

// Runner runs two paths over the same raw input and checks their outputs.
type Runner struct {
	A, B transformer.Path
	Key  string
	Gold bool // also derive and check the gold tables
	// SkipSilver checks gold only. Silver is still computed as gold's input.
	SkipSilver bool
	Strict     bool // exact arrow types instead of families
	Logger     *zap.Logger
}

// StageReport describes one checked stage.
type StageReport struct {
	Stage        Stage
	Rows         int64
	FingerprintA uint64
	FingerprintB uint64
	DurationA    time.Duration
	DurationB    time.Duration
}

// Report is the result of a passing run.
type Report struct {
	A, B   string
	Stages []StageReport
}

// pathResult holds what one path produced.
type pathResult struct {
	silver, gold         arrow.Record
	silverTook, goldTook time.Duration
}

func (p *pathResult) release() {
	if p.silver != nil {
		p.silver.Release()
	}
	if p.gold != nil {
		p.gold.Release()
	}
}

type stageCheck struct {
	stage        Stage
	a, b         arrow.Record
	tookA, tookB time.Duration
}

// Run executes both paths concurrently, each on its own deep copy of raw,
// and checks silver and, when Gold is set, gold. SkipSilver implies Gold. It
// returns the first path error or parity mismatch.
func (r *Runner) Run(ctx context.Context, raw arrow.Record) (*Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	inA, err := table.Copy(raw)
	if err != nil {
		return nil, fmt.Errorf("parity: copy input: %w", err)
	}
	defer inA.Release()
	inB, err := table.Copy(raw)
	if err != nil {
		return nil, fmt.Errorf("parity: copy input: %w", err)
	}
	defer inB.Release()

	var resA, resB pathResult
	defer resA.release()
	defer resB.release()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.runPath(gctx, r.A, inA, &resA) })
	g.Go(func() error { return r.runPath(gctx, r.B, inB, &resB) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{A: r.A.Name(), B: r.B.Name()}
	var checks []stageCheck
	if !r.SkipSilver {
		checks = append(checks, stageCheck{StageSilver, resA.silver, resB.silver, resA.silverTook, resB.silverTook})
	}
	if r.gold() {
		checks = append(checks, stageCheck{StageGold, resA.gold, resB.gold, resA.goldTook, resB.goldTook})
	}

	var opts []Option
	if r.Strict {
		opts = append(opts, WithStrictTypes())
	}
	for _, c := range checks {
		if err := Check(c.a, c.b, r.Key, opts...); err != nil {
			logger.Error("parity mismatch",
				zap.String("stage", string(c.stage)),
				zap.String("a", r.A.Name()),
				zap.String("b", r.B.Name()),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%s: %w", c.stage, err)
		}
		sr := StageReport{Stage: c.stage, Rows: c.a.NumRows(), DurationA: c.tookA, DurationB: c.tookB}
		if sr.FingerprintA, err = sortedFingerprint(c.a, r.Key); err != nil {
			return nil, err
		}
		if sr.FingerprintB, err = sortedFingerprint(c.b, r.Key); err != nil {
			return nil, err
		}
		report.Stages = append(report.Stages, sr)
		logger.Info("parity ok",
			zap.String("stage", string(c.stage)),
			zap.Int64("rows", sr.Rows),
			zap.Uint64("fingerprint", sr.FingerprintA),
			zap.Duration("took_a", sr.DurationA),
			zap.Duration("took_b", sr.DurationB),
		)
	}
	return report, nil
}

func (r *Runner) runPath(ctx context.Context, p transformer.Path, raw arrow.Record, res *pathResult) error {
	start := time.Now()
	silver, err := p.NormalizeAndDedupe(ctx, raw)
	if err != nil {
		return fmt.Errorf("%s: silver: %w", p.Name(), err)
	}
	res.silver, res.silverTook = silver, time.Since(start)
	if !r.gold() {
		return nil
	}
	start = time.Now()
	gold, err := p.DeriveFeatures(ctx, silver)
	if err != nil {
		return fmt.Errorf("%s: gold: %w", p.Name(), err)
	}
	res.gold, res.goldTook = gold, time.Since(start)
	return nil
}

func (r *Runner) gold() bool { return r.Gold || r.SkipSilver }

func sortedFingerprint(rec arrow.Record, key string) (uint64, error) {
	sorted, err := table.SortByKey(rec, key)
	if err != nil {
		return 0, fmt.Errorf("parity: fingerprint: %w", err)
	}
	defer sorted.Release()
	return table.Fingerprint(sorted), nil
}
