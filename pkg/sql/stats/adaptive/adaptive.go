// Package adaptive implements the 2PHASE adaptive sampling controller: it
// decides, from an initial sample, how much more data (if any) is needed
// to bring the worst-case per-bucket count error under a target δ_req,
// and drives the Sampler for the shortfall.
package adaptive

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"
	mstats "github.com/montanaflynn/stats"

	"github.com/videxdb/statscore/pkg/sql/stats/histogram"
	"github.com/videxdb/statscore/pkg/util/log"
	"github.com/videxdb/statscore/pkg/util/metrics"
)

// State names a node of the controller's state machine.
type State string

const (
	StateInit     State = "INIT"
	StateSample   State = "SAMPLE"
	StateValidate State = "VALIDATE"
	StateExtend   State = "EXTEND"
	StateDone     State = "DONE"
)

// Params configures one controller run.
type Params struct {
	Lmax           int
	NumBuckets     int
	DeltaReq       float64
	MaxSampledRows int
	Method         histogram.DataType // not read by Run; histogram.Build receives HistParams
	HistParams     histogram.Params
}

// Extend draws up to `need` additional non-null values for the column,
// returning however many it managed: sampler shortfalls shrink ambition,
// they don't fail the caller.
type Extend func(ctx context.Context, need int) ([]string, error)

// Result is what Run hands back to the histogram builder and
// TableStats container.
type Result struct {
	RunID              string
	Values             []string
	FinalState         State
	IsSampleSuccess    bool
	UnsupportedReason  string
	RequiredSampleSize int
	FittedC            float64
}

// Run drives the INIT→SAMPLE→VALIDATE→(DONE|EXTEND→…) state machine
// starting from an initial sample. extend is called with
// the number of additional rows the controller wants; whatever it returns
// is appended and validated again. If it returns no rows (or an error),
// the controller stops and marks the result truncated rather than erroring.
func Run(ctx context.Context, initial []string, extend Extend, p Params) *Result {
	metrics.Register()
	runID := uuid.NewString()
	ctx = log.WithTag(ctx, "adaptive_run", runID)

	finish := func(r *Result) *Result {
		r.RunID = runID
		return r
	}

	values := append([]string{}, initial...)
	state := StateSample

	for {
		switch state {
		case StateSample:
			metrics.AdaptiveRounds.Inc()
			state = StateValidate

		case StateValidate:
			if len(values) < 2 || p.Lmax < 1 {
				return finish(&Result{Values: values, FinalState: StateDone, IsSampleSuccess: true})
			}

			c := fitCurve(values, p)
			required := int(math.Ceil(c / (p.DeltaReq * p.DeltaReq)))

			if required <= len(values) {
				return finish(&Result{
					Values: values, FinalState: StateDone, IsSampleSuccess: true,
					RequiredSampleSize: required, FittedC: c,
				})
			}

			if p.MaxSampledRows > 0 && len(values) >= p.MaxSampledRows {
				return finish(&Result{
					Values: values, FinalState: StateDone, IsSampleSuccess: true,
					UnsupportedReason:  "sample size capped before reaching the required CV error target",
					RequiredSampleSize: required, FittedC: c,
				})
			}

			need := required - len(values)
			if p.MaxSampledRows > 0 && len(values)+need > p.MaxSampledRows {
				need = p.MaxSampledRows - len(values)
			}
			if need <= 0 {
				return finish(&Result{
					Values: values, FinalState: StateDone, IsSampleSuccess: true,
					RequiredSampleSize: required, FittedC: c,
				})
			}

			more, err := extend(ctx, need)
			if err != nil || len(more) == 0 {
				if err != nil {
					log.Warningf(ctx, "adaptive extend failed: %v", err)
				}
				return finish(&Result{
					Values: values, FinalState: StateDone, IsSampleSuccess: true,
					UnsupportedReason:  "additional sampling requested by the adaptive controller yielded no rows",
					RequiredSampleSize: required, FittedC: c,
				})
			}
			values = append(values, more...)
			state = StateSample
		}
	}
}

// curvePoint is one (1/r, err) observation from Phase A.
type curvePoint struct {
	invR float64
	err  float64
}

// fitCurve runs Phase A (sort-and-validate, iterative bottom-up rather
// than recursive) and Phase B (least-squares curve fit err = c/r) and
// returns the fitted c.
func fitCurve(values []string, p Params) float64 {
	leaves := append([]string{}, values...)
	chunks := splitIntoLeaves(leaves, p.Lmax)
	for _, c := range chunks {
		sort.Strings(c)
	}

	var points []curvePoint
	for len(chunks) > 1 {
		var merged [][]string
		var levelErrs []float64
		var levelSize int

		for i := 0; i+1 < len(chunks); i += 2 {
			l, r := chunks[i], chunks[i+1]
			levelSize = len(l)

			histL := histogram.Build(l, p.HistParams)
			histR := histogram.Build(r, p.HistParams)

			errLR := validationError(histL, r)
			errRL := validationError(histR, l)
			levelErrs = append(levelErrs, errLR+errRL)

			combined := make([]string, 0, len(l)+len(r))
			combined = append(combined, l...)
			combined = append(combined, r...)
			sort.Strings(combined)
			merged = append(merged, combined)
		}
		if len(chunks)%2 == 1 {
			merged = append(merged, chunks[len(chunks)-1])
		}

		if len(levelErrs) > 0 && levelSize > 0 {
			meanErr, _ := mstats.Mean(mstats.Float64Data(levelErrs))
			points = append(points, curvePoint{invR: 1 / float64(levelSize), err: meanErr})
		}

		chunks = merged
	}

	return leastSquaresC(points)
}

// splitIntoLeaves divides values, in sample order, into up to 2^lmax
// contiguous, roughly equal leaf chunks.
func splitIntoLeaves(sorted []string, lmax int) [][]string {
	numLeaves := 1 << uint(lmax)
	if numLeaves > len(sorted) {
		numLeaves = len(sorted)
	}
	if numLeaves < 1 {
		numLeaves = 1
	}

	var chunks [][]string
	base := len(sorted) / numLeaves
	rem := len(sorted) % numLeaves
	idx := 0
	for i := 0; i < numLeaves; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		chunks = append(chunks, sorted[idx:idx+size])
		idx += size
	}
	return chunks
}

// validationError computes Σ_i (observed_i - expected_i)² / expected_i,
// where bucket i's expected share comes from trainHist (built on the
// training half) and observed_i counts how many of validateValues fall
// into bucket i's range (a variance-style cross-validation error).
func validationError(trainHist histogram.Histogram, validateValues []string) float64 {
	if len(trainHist.Buckets) == 0 || len(validateValues) == 0 {
		return 0
	}

	total := len(validateValues)
	observed := make([]int, len(trainHist.Buckets))
	for _, v := range validateValues {
		idx := classify(trainHist.Buckets, v)
		observed[idx]++
	}

	prevCum := 0.0
	var errSum float64
	for i, b := range trainHist.Buckets {
		share := b.CumFreq - prevCum
		prevCum = b.CumFreq
		expected := share * float64(total)
		if expected <= 0 {
			continue
		}
		diff := float64(observed[i]) - expected
		errSum += diff * diff / expected
	}
	return errSum
}

// classify returns the index of the bucket whose [MinValue, MaxValue]
// range contains v, clamping out-of-range values to the nearest edge
// bucket (the validation half may contain values outside the training
// half's observed range).
func classify(buckets []histogram.Bucket, v string) int {
	if v < buckets[0].MinValue {
		return 0
	}
	if v > buckets[len(buckets)-1].MaxValue {
		return len(buckets) - 1
	}
	lo, hi := 0, len(buckets)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if v > buckets[mid].MaxValue {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// leastSquaresC fits err = c/r by regressing err against x = 1/r through
// the origin: c = (Σ xy) / (Σ x²).
func leastSquaresC(points []curvePoint) float64 {
	var sumXY, sumXX float64
	for _, p := range points {
		sumXY += p.invR * p.err
		sumXX += p.invR * p.invR
	}
	if sumXX == 0 {
		return 0
	}
	return sumXY / sumXX
}
