package ndv

import "math"

// findRoot solves f(x) = 0 near x0 using a damped secant iteration, the
// scalar-equation case a quasi-Newton solver reduces to. ok is false if
// the iteration fails to converge or escapes to a non-finite value.
func findRoot(f func(float64) float64, x0 float64) (root float64, ok bool) {
	const (
		maxIter = 100
		tol     = 1e-6
	)
	x0 = math.Max(x0, 1e-6)
	x1 := x0 * 1.0001

	f0 := f(x0)
	f1 := f(x1)
	for i := 0; i < maxIter; i++ {
		if f1 == f0 {
			return 0, false
		}
		x2 := x1 - f1*(x1-x0)/(f1-f0)
		if math.IsNaN(x2) || math.IsInf(x2, 0) || x2 <= 0 {
			return 0, false
		}
		if math.Abs(x2-x1) < tol {
			return x2, true
		}
		x0, f0 = x1, f1
		x1 = x2
		f1 = f(x1)
	}
	return 0, false
}

// findRootTwoStarts runs findRoot from x0 and from a perturbed start,
// returning the smaller of the two converged roots, favoring the
// conservative (smaller) NDV estimate when the two starts disagree.
func findRootTwoStarts(f func(float64) float64, x0 float64) (float64, bool) {
	var roots []float64
	if r, ok := findRoot(f, x0); ok {
		roots = append(roots, r)
	}
	if r, ok := findRoot(f, x0*1.01); ok {
		roots = append(roots, r)
	}
	if len(roots) == 0 {
		return 0, false
	}
	min := roots[0]
	for _, r := range roots[1:] {
		if r < min {
			min = r
		}
	}
	return min, true
}
