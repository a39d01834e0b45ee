package loss

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/Centaurus99/Spearmint/internal/aggregate"
)

var (
	// ErrIncomplete means a baseline key has no candidate counterpart.
	ErrIncomplete = errors.New("candidate is missing a baseline key")
	// ErrNoSamples means a candidate key exists but no trial produced data for it.
	ErrNoSamples = errors.New("candidate metric has no samples")
	// ErrInvalidBaseline means the baseline cannot serve as a denominator.
	ErrInvalidBaseline = errors.New("invalid baseline")
)

// Result holds the component losses, as mean relative errors in percent.
type Result struct {
	TputLoss  float64 `json:"tput_loss"`
	DelayLoss float64 `json:"delay_loss"`
	Overall   float64 `json:"overall_median_score"`
}

// Compute compares candidate medians against the baseline over every
// baseline key. The overall loss is the unweighted mean of the throughput
// and delay losses.
func Compute(candidate, baseline aggregate.Table) (Result, error) {
	if len(baseline) == 0 {
		return Result{}, fmt.Errorf("%w: no keys", ErrInvalidBaseline)
	}

	var tputSum, delaySum float64
	for _, k := range baseline.Keys() {
		base := baseline[k]
		if !base.Defined() || base.Throughput == 0 || base.Delay == 0 {
			return Result{}, fmt.Errorf("%w: %s has tput=%v delay=%v", ErrInvalidBaseline, k, base.Throughput, base.Delay)
		}
		cand, ok := candidate[k]
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrIncomplete, k)
		}
		if !cand.Defined() {
			return Result{}, fmt.Errorf("%w: %s", ErrNoSamples, k)
		}
		tputSum += relDiff(base.Throughput, cand.Throughput)
		delaySum += relDiff(base.Delay, cand.Delay)
	}

	for k := range candidate {
		if _, ok := baseline[k]; !ok {
			logrus.Debugf("ignoring %s: not in baseline", k)
		}
	}

	n := float64(len(baseline))
	r := Result{
		TputLoss:  tputSum * 100 / n,
		DelayLoss: delaySum * 100 / n,
	}
	r.Overall = (r.TputLoss + r.DelayLoss) / 2
	return r, nil
}

func relDiff(base, x float64) float64 {
	return math.Abs(x-base) / base
}
