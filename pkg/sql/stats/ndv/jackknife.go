package ndv

import (
	"math"

	"github.com/videxdb/statscore/pkg/sql/stats/profile"
)

// jackknifeEstimate: D_hat = d + (r-1)*f1/r.
func jackknifeEstimate(r int, f profile.Profile) float64 {
	d := float64(f.D())
	if r == 0 || d == 0 {
		return 0
	}
	f1 := float64(f.At(1))
	return d + float64(r-1)*f1/float64(r)
}

// smoothedJackknifeEstimate applies finite-population and weighted-bias
// corrections on top of the plain jackknife estimate.
func smoothedJackknifeEstimate(r int, n int64, f profile.Profile) float64 {
	d := float64(f.D())
	f1 := float64(f.At(1))
	if f1 == 0 || r == 0 {
		return d
	}

	d0 := d - f1/float64(r)
	correction := (float64(n) - float64(r) + 1) * f1 / (float64(r) * float64(n))
	if correction == 1 {
		return d
	}
	dHat0 := d0 / (1 - correction)

	var weightSum float64
	for i := 1; i <= int(d); i++ {
		weightSum += 1 / float64(i)
	}
	if d == 0 {
		return dHat0
	}
	bias := weightSum / d
	if bias == 1 {
		return dHat0
	}
	return dHat0 / (1 - bias)
}

// bootstrapEstimate: D_boot = d + sum_j f_j*(1 - j/r)^r.
func bootstrapEstimate(r int, f profile.Profile) float64 {
	d := float64(f.D())
	if r == 0 || int(d) == r {
		return d
	}
	result := d
	for j := 1; j < len(f); j++ {
		count := float64(f.At(j))
		if count == 0 {
			continue
		}
		result += count * math.Pow(1-float64(j)/float64(r), float64(r))
	}
	return result
}

// horvitzThompsonEstimate: D_HT = sum_i count_i / (1 - (1-1/N)^freq_i).
func horvitzThompsonEstimate(n int64, f profile.Profile) float64 {
	if n == 0 {
		return float64(f.D())
	}
	var estimate float64
	for j := 1; j < len(f); j++ {
		count := float64(f.At(j))
		if count == 0 {
			continue
		}
		inclusionProb := 1 - math.Pow(1-1/float64(n), float64(j))
		if inclusionProb <= 0 {
			continue
		}
		estimate += count / inclusionProb
	}
	return estimate
}

// goodmanEstimate is the Goodman estimator, using log-factorials to
// avoid overflow on the large factorial ratios the formula calls for.
func goodmanEstimate(r int, n int64, f profile.Profile) float64 {
	d := float64(f.D())
	if r == int(d) {
		return d
	}
	N := n
	if N == 0 {
		N = int64(2 * r)
	}

	sumGoodman := 0.0
	for i := 1; i < len(f); i++ {
		fi := float64(f.At(i))
		if fi == 0 {
			continue
		}
		logNum := logFactorial(N-int64(r)+int64(i)-1) + logFactorial(int64(r-i))
		logDenom := logFactorial(N-int64(r)-1) + logFactorial(int64(r))
		if math.IsInf(logNum, 0) || math.IsInf(logDenom, 0) {
			continue
		}
		term := math.Exp(logNum - logDenom) * fi
		sign := 1.0
		if (i+1)%2 != 0 {
			sign = -1.0
		}
		sumGoodman += sign * term
	}
	return d + sumGoodman
}

func logFactorial(n int64) float64 {
	if n < 0 {
		return math.Inf(1)
	}
	v, _ := math.Lgamma(float64(n) + 1)
	return v
}
