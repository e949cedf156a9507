package ndv

import (
	"math"

	"github.com/videxdb/statscore/pkg/sql/stats/profile"
)

// methodOfMomentsEstimate solves d = D*(1 - exp(-r/D)) for D by
// root-finding.
func methodOfMomentsEstimate(r int, f profile.Profile) float64 {
	d := float64(f.D())
	if int(d) == r {
		return d
	}
	eq := func(D float64) float64 {
		return D*(1-math.Exp(-float64(r)/D)) - d
	}
	if root, ok := findRootTwoStarts(eq, math.Max(d, 1)); ok {
		return root
	}
	return d
}

// hGamma computes h(x) = exp(lgamma(N-x+1) + lgamma(N-n+1) - lgamma(N-x-n+1)
// - lgamma(N+1)) in log-space for numerical stability; shared by the v2
// and v3 method-of-moments estimators.
func hGamma(x float64, n int, N int64) float64 {
	nf := float64(n)
	Nf := float64(N)
	num1, _ := math.Lgamma(Nf - x + 1)
	num2, _ := math.Lgamma(Nf - nf + 1)
	den1, _ := math.Lgamma(Nf - x - nf + 1)
	den2, _ := math.Lgamma(Nf + 1)
	return math.Exp(num1 + num2 - den1 - den2)
}

func methodOfMomentsV2Estimate(r int, n int64, f profile.Profile) float64 {
	d := float64(f.D())
	if n == 0 {
		return d
	}
	eq := func(D float64) float64 {
		return D*(1-hGamma(float64(n)/D, r, n)) - d
	}
	if root, ok := findRootTwoStarts(eq, math.Max(d, 1)); ok {
		return root
	}
	return d
}

func methodOfMomentsV3Estimate(r int, n int64, f profile.Profile) float64 {
	d := float64(f.D())
	dV2 := methodOfMomentsV2Estimate(r, n, f)
	if dV2 == 0 {
		return d
	}
	nTilde := float64(n) / dV2

	meanFreq := 0.0
	for _, v := range f {
		meanFreq += float64(v)
	}
	meanFreq /= float64(len(f))
	var varFreq float64
	for _, v := range f {
		diff := float64(v) - meanFreq
		varFreq += diff * diff
	}
	varFreq /= float64(len(f))
	if meanFreq == 0 {
		return d
	}
	gammaHatSq := varFreq / (meanFreq * meanFreq)

	hVal := hGamma(nTilde, r, n)

	var gVal float64
	for k := 0; k < r; k++ {
		denom := float64(n) - nTilde - float64(r) + float64(k)
		if denom == 0 {
			continue
		}
		gVal += 1 / denom
	}

	correction := 0.5 * nTilde * nTilde * gammaHatSq * dV2 * hVal * (gVal - gVal*gVal)
	denominator := 1 - hVal + correction
	if denominator == 0 {
		return d
	}
	return d / denominator
}

// sichelEstimate solves the zero-truncated GIG-Poisson model: scan
// candidate starting points across (f1/r, 1) and keep the smallest
// estimate among the feasible roots.
func sichelEstimate(r int, f profile.Profile) float64 {
	d := float64(f.D())
	if r == 0 || d == 0 {
		return 0
	}
	f1 := float64(f.At(1))
	if f1 == 0 || r == int(d) {
		return d
	}

	a := (2*float64(r))/d - math.Log(float64(r)/f1)
	b := (2*f1)/d + math.Log(float64(r)/f1)

	eq := func(g float64) float64 {
		return (1+g)*math.Log(g) - a*g + b
	}

	lo := f1/float64(r) + 1e-5
	hi := 0.999999
	if lo >= hi {
		return d
	}

	var candidates []float64
	const steps = 20
	for i := 0; i < steps; i++ {
		g0 := lo + (hi-lo)*float64(i)/float64(steps-1)
		g, ok := findRoot(eq, g0)
		if !ok || !(f1/float64(r) < g && g < 1) {
			continue
		}
		bHat := g * math.Log(float64(r)*g/f1) / (1 - g)
		cHat := (1 - g*g) / (float64(r) * g * g)
		if bHat == 0 || cHat == 0 {
			continue
		}
		dSichel := 2 / (bHat * cHat)
		candidates = append(candidates, dSichel)
	}

	if len(candidates) == 0 {
		return d
	}
	min := candidates[0]
	for _, c := range candidates[1:] {
		if c < min {
			min = c
		}
	}
	return min
}
