package ndv

import (
	"strings"

	"github.com/videxdb/statscore/pkg/sql/stats/profile"
)

// EncodeTuple joins one row's per-column values into a single profile key.
// A NUL separator is used because it cannot appear in typical textual
// column data, avoiding accidental collisions between e.g. ("a,b") and
// ("a", "b") that a comma join would produce.
func EncodeTuple(cols []string) string {
	return strings.Join(cols, "\x00")
}

// EstimateMultiColumn estimates the joint NDV of several columns given
// their already-tuple-encoded sample rows. missingColumns lists columns
// the sample didn't cover; if every target column is missing this
// degrades to 1 (the conservative overestimate-cost default), otherwise
// it proceeds over the subset that is present.
func EstimateMultiColumn(method Method, r int, n int64, tupleRows []string, missingColumns, presentColumns int) (float64, error) {
	if presentColumns == 0 {
		return 1, nil
	}
	if method == MethodBlockSplit {
		return BlockSplitNDV(tupleRows, n), nil
	}
	f, _ := profile.BuildTuples(tupleRows)
	return Estimate(method, r, n, f)
}

// BlockSplitNDV is a block-collapsing estimator, kept as a distinct
// method because some callers pin to it for continuity with legacy
// estimates rather than the newer profile-based methods.
func BlockSplitNDV(tupleRows []string, n int64) float64 {
	const blockSize = 100
	blocks := splitIntoBlocks(tupleRows, blockSize)

	var collapsed []string
	for _, block := range blocks {
		collapsed = append(collapsed, collapseBlock(block)...)
	}

	groups := splitInto(collapsed, 10)
	sampleFraction := float64(len(tupleRows))
	if sampleFraction == 0 {
		return 0
	}
	sampleFraction = float64(n) / sampleFraction

	var ndvs []float64
	for _, g := range groups {
		ndvs = append(ndvs, estimateNDVWithSplit(g, sampleFraction))
	}
	if len(ndvs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range ndvs {
		sum += v
	}
	return sum / float64(len(ndvs))
}

func splitIntoBlocks(lst []string, blockSize int) [][]string {
	var blocks [][]string
	numBlocks := len(lst) / blockSize
	for i := 0; i < numBlocks; i++ {
		blocks = append(blocks, lst[i*blockSize:(i+1)*blockSize])
	}
	if rem := len(lst) % blockSize; rem > 0 {
		blocks = append(blocks, lst[len(lst)-rem:])
	}
	return blocks
}

func collapseBlock(block []string) []string {
	seen := make(map[string]struct{}, len(block))
	var out []string
	for _, v := range block {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func splitInto(lst []string, n int) [][]string {
	if n > len(lst) {
		return [][]string{lst}
	}
	groupSize := len(lst) / n
	remainder := len(lst) % n

	var result [][]string
	for i := 0; i < n; i++ {
		size := groupSize
		if i < remainder {
			size++
		}
		if size > len(lst) {
			size = len(lst)
		}
		result = append(result, lst[:size])
		lst = lst[size:]
	}
	return result
}

func splitHalf(data []string) ([]string, []string) {
	if len(data) <= 1 {
		return data, nil
	}
	half := len(data) / 2
	return data[:half], data[half:]
}

func estimateNDVWithSplit(collapsed []string, sampleFraction float64) float64 {
	left, _ := splitHalf(collapsed)

	ndvHalf := float64(len(distinctSet(left)))
	ndvTotal := float64(len(distinctSet(collapsed)))
	if ndvHalf == 0 {
		return ndvTotal
	}
	rate := ndvTotal / ndvHalf
	if rate < 1.1 {
		return ndvTotal
	}
	if sampleFraction == 0 {
		return ndvTotal
	}
	return (ndvTotal / sampleFraction) * (rate - 1)
}

func distinctSet(vs []string) map[string]struct{} {
	out := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		out[v] = struct{}{}
	}
	return out
}
