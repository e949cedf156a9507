package ndv

import (
	"gonum.org/v1/gonum/stat"

	"github.com/videxdb/statscore/pkg/sql/stats/profile"
)

// lsEstimate is a regression-based NDV estimator ("LS" method): it
// takes the (frequency j, cumulative distinct count) points built by
// partialCounts, fits an ordinary least-squares line with an intercept,
// and evaluates it at the full population size N, using gonum's
// least-squares primitives rather than hand-rolling the normal equations.
func lsEstimate(n int64, f profile.Profile) float64 {
	r := f.N()
	if r == 0 {
		return 0
	}

	xs, ys := partialCounts(f)
	if len(xs) < 2 {
		return float64(f.D())
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	predicted := alpha + beta*float64(n)

	d := float64(f.D())
	if predicted < d {
		return d
	}
	return predicted
}

// partialCounts reconstructs a coarse growth curve (cumulative sample size,
// cumulative distinct count) from the profile alone, since the profile
// doesn't retain per-row arrival order. Each distinct-value class
// contributes one point at the sample size where, under a uniform
// arrival-order assumption, that class would be "complete" (j occurrences
// seen): x = j, y = running total of f_j's counted so far.
func partialCounts(f profile.Profile) (xs, ys []float64) {
	var cum float64
	for j := 1; j < len(f); j++ {
		fj := float64(f.At(j))
		if fj == 0 {
			continue
		}
		cum += fj
		xs = append(xs, float64(j))
		ys = append(ys, cum)
	}
	return xs, ys
}
