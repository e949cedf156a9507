// Package ndv estimates the number of distinct values a column would show
// over its full population, given only a profile built from a bounded
// sample. Every estimator here takes the sample size r, the population
// size N, and a profile.Profile and returns a float64; none of them
// issue queries or touch a Querier directly.
package ndv

import (
	"math"

	"github.com/cockroachdb/errors"

	"github.com/videxdb/statscore/pkg/sql/stats/profile"
)

// Method names an NDV estimation strategy, matching the ndv_method
// configuration option.
type Method string

const (
	MethodScale             Method = "scale"
	MethodErrorBound        Method = "error_bound"
	MethodGEE               Method = "GEE"
	MethodChao              Method = "Chao"
	MethodShlosser          Method = "shlosser"
	MethodChaoLee           Method = "ChaoLee"
	MethodLS                Method = "LS"
	MethodGoodman           Method = "Goodman"
	MethodJackknife         Method = "Jackknife"
	MethodSichel            Method = "Sichel"
	MethodMoM               Method = "MethodOfMoments"
	MethodMoMv2             Method = "MethodOfMomentsV2"
	MethodMoMv3             Method = "MethodOfMomentsV3"
	MethodBootstrap         Method = "Bootstrap"
	MethodHorvitzThompson   Method = "HorvitzThompson"
	MethodSmoothedJackknife Method = "SmoothedJackknife"
	MethodHLL               Method = "HLL"
	MethodBlockSplit        Method = "block_split"
	MethodAdaNDV            Method = "AdaNDV"
	MethodPLM4NDV           Method = "PLM4NDV"
)

// allMethods is every recognised ndv_method key, used by config.Validate to
// reject a typo'd method name up front rather than letting it degrade
// silently per-column.
var allMethods = map[Method]bool{
	MethodScale: true, MethodErrorBound: true, MethodGEE: true, MethodChao: true,
	MethodShlosser: true, MethodChaoLee: true, MethodLS: true, MethodGoodman: true,
	MethodJackknife: true, MethodSichel: true, MethodMoM: true, MethodMoMv2: true,
	MethodMoMv3: true, MethodBootstrap: true, MethodHorvitzThompson: true,
	MethodSmoothedJackknife: true, MethodHLL: true, MethodBlockSplit: true,
	MethodAdaNDV: true, MethodPLM4NDV: true,
}

// IsValidMethod reports whether method is a recognised ndv_method key.
func IsValidMethod(method string) bool {
	return allMethods[Method(method)]
}

// baseMethods is the fixed-order estimator panel AdaNDV ranks and weights
// over; the order is load-bearing — a model trained against this
// ordering must still line up feature-for-feature with whatever order
// is used here.
var baseMethods = []Method{
	MethodErrorBound, MethodGEE, MethodChao, MethodShlosser, MethodChaoLee,
	MethodJackknife, MethodSichel, MethodMoM, MethodBootstrap,
}

// Estimate dispatches to the named closed-form estimator. r is the sample
// size, n is the population size (the catalog's row-count estimate, or a
// bucket's scaled row count when called by the histogram builder), and f
// is the profile built from the sample.
func Estimate(method Method, r int, n int64, f profile.Profile) (float64, error) {
	switch method {
	case MethodScale:
		return scaleEstimate(r, n, f), nil
	case MethodErrorBound:
		return errorBoundEstimate(r, n, f), nil
	case MethodGEE:
		return geeEstimate(r, n, f), nil
	case MethodChao:
		return chaoEstimate(r, n, f), nil
	case MethodShlosser:
		return shlosserEstimate(r, n, f), nil
	case MethodChaoLee:
		return chaoLeeEstimate(r, n, f), nil
	case MethodLS:
		return lsEstimate(n, f), nil
	case MethodGoodman:
		return goodmanEstimate(r, n, f), nil
	case MethodJackknife:
		return jackknifeEstimate(r, f), nil
	case MethodSichel:
		return sichelEstimate(r, f), nil
	case MethodMoM:
		return methodOfMomentsEstimate(r, f), nil
	case MethodMoMv2:
		return methodOfMomentsV2Estimate(r, n, f), nil
	case MethodMoMv3:
		return methodOfMomentsV3Estimate(r, n, f), nil
	case MethodBootstrap:
		return bootstrapEstimate(r, f), nil
	case MethodHorvitzThompson:
		return horvitzThompsonEstimate(n, f), nil
	case MethodSmoothedJackknife:
		return smoothedJackknifeEstimate(r, n, f), nil
	case MethodHLL:
		return 0, errors.New("HLL estimation requires raw values, not a profile; use EstimateHLL")
	default:
		return 0, errors.Newf("unsupported NDV estimation method: %s", method)
	}
}

func scaleEstimate(r int, n int64, f profile.Profile) float64 {
	if r == 0 {
		return 0
	}
	factor := float64(n) / float64(r)
	return float64(f.D()) * factor
}

// errorBoundEstimate: e = sqrt(n/r)*max(f1,1) + sum_{j>=2} f_j.
func errorBoundEstimate(r int, n int64, f profile.Profile) float64 {
	if r == 0 {
		return 0
	}
	scaleFactor := math.Sqrt(float64(n) / float64(r))
	f1 := float64(f.At(1))
	estimated := float64(f.D()) - f1
	boost := f1
	if boost < 1 {
		boost = 1
	}
	estimated += scaleFactor * boost
	return estimated
}

// geeEstimate: e = sqrt(n/r)*f1 + sum_{j>=2} f_j.
func geeEstimate(r int, n int64, f profile.Profile) float64 {
	if r == 0 {
		return 0
	}
	scaleFactor := math.Sqrt(float64(n) / float64(r))
	f1 := float64(f.At(1))
	estimated := float64(f.D()) - f1
	estimated += scaleFactor * f1
	return estimated
}

// chaoEstimate: e = d + f1^2/f2, falling back to scale when f2 is
// unobserved (len(profile) <= 2 or f2 == 0).
func chaoEstimate(r int, n int64, f profile.Profile) float64 {
	d := float64(f.D())
	if len(f) <= 2 || f.At(2) == 0 {
		return scaleEstimate(r, n, f)
	}
	f1 := float64(f.At(1))
	return d + f1*f1/float64(f.At(2))
}

func shlosserEstimate(r int, n int64, f profile.Profile) float64 {
	d := float64(f.D())
	if n == 0 {
		return d
	}
	q := float64(r) / float64(n)
	var sum1, sum2 float64
	for j := 1; j < len(f); j++ {
		fj := float64(f.At(j))
		sum1 += fj * math.Pow(1-q, float64(j))
		sum2 += fj * math.Pow(1-q, float64(j-1)) * float64(j) * q
	}
	sum1 *= float64(f.At(1))
	if sum2 == 0 {
		return d
	}
	return d + sum1/sum2
}

func chaoLeeEstimate(r int, n int64, f profile.Profile) float64 {
	d := float64(f.D())
	f1 := float64(f.At(1))
	if n == 0 {
		return d
	}
	if int64(f1) == n {
		return scaleEstimate(r, n, f)
	}
	cHat := 1 - f1/float64(n)
	if cHat == 0 {
		return scaleEstimate(r, n, f)
	}

	var nonzero []float64
	for _, v := range f {
		if v != 0 {
			nonzero = append(nonzero, float64(v))
		}
	}
	var gamma2 float64
	if len(nonzero) > 1 {
		gamma2 = variance(nonzero) / float64(n) / float64(n)
	}
	return d/cHat + float64(r)*(1-cHat)*gamma2/cHat
}

// variance returns the population variance (divide by len, not len-1).
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return sumSq / float64(len(xs))
}
