package promotion

import "fmt"

// DefaultEpsilon is the minimum holdout improvement that justifies replacing
// a champion.
const DefaultEpsilon = 1e-3

// Decision is the outcome of comparing a contender with the champion.
type Decision struct {
	Promote          bool     `json:"promote"`
	Reason           string   `json:"reason"`
	PrimaryMetric    string   `json:"primary_metric"`
	ContenderPrimary float64  `json:"contender_primary"`
	ChampionPrimary  *float64 `json:"champion_primary,omitempty"`
	Diff             *float64 `json:"diff,omitempty"`
}

// Decide compares contender against champion (nil when there is none).
//
// Without a champion the contender is promoted. A differing artifact version
// (a missing version counts as its own value) also promotes, since the scores
// are not comparable. Otherwise both runs must share a primary metric and the
// contender is promoted only when its holdout score exceeds the champion's by
// more than epsilon.
func Decide(contender, champion *Metrics, epsilon float64) (Decision, error) {
	pm, err := contender.Primary()
	if err != nil {
		return Decision{}, err
	}
	cVal, err := contender.HoldoutValue(pm)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{PrimaryMetric: pm, ContenderPrimary: cVal}

	if champion == nil {
		d.Promote, d.Reason = true, "no current champion (bootstrap)"
		return d, nil
	}

	cv, cok := contender.Version()
	hv, hok := champion.Version()
	if cok != hok || cv != hv {
		d.Promote = true
		d.Reason = fmt.Sprintf("artifact version change: champion=%s contender=%s", version(hv, hok), version(cv, cok))
		return d, nil
	}

	champPM, err := champion.Primary()
	if err != nil {
		return Decision{}, err
	}
	if champPM != pm {
		return Decision{}, fmt.Errorf("primary_metric mismatch: contender=%q champion=%q", pm, champPM)
	}
	hVal, err := champion.HoldoutValue(pm)
	if err != nil {
		return Decision{}, err
	}
	diff := cVal - hVal
	d.ChampionPrimary, d.Diff = &hVal, &diff
	if diff > epsilon {
		d.Promote = true
		d.Reason = fmt.Sprintf("contender improves holdout %s by %.6f (> %g)", pm, diff, epsilon)
		return d, nil
	}
	d.Reason = fmt.Sprintf("tie/close: contender did not beat champion by > %g (diff=%.6f)", epsilon, diff)
	return d, nil
}

func version(v int64, ok bool) string {
	if !ok {
		return "none"
	}
	return fmt.Sprint(v)
}
