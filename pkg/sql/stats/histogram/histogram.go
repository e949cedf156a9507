// Package histogram builds equi-depth (and, for low-cardinality columns,
// singleton) histograms from a column's sample. It never touches a
// Querier: all it sees is a sample.Sample's values plus the population
// size N and the configured bucket count.
package histogram

import (
	"sort"

	"github.com/videxdb/statscore/pkg/sql/stats/ndv"
	"github.com/videxdb/statscore/pkg/sql/stats/profile"
)

// DataType is the coarse column type recorded with a histogram so that
// consumers can re-parse bucket bounds. Build does not reformat values by
// it.
type DataType string

const (
	TypeInt     DataType = "int"
	TypeFloat   DataType = "float"
	TypeDouble  DataType = "double"
	TypeDecimal DataType = "decimal"
	TypeDate    DataType = "date"
	TypeString  DataType = "string"
)

// ColumnDataType maps a catalog-reported SQL type name to the coarse
// DataType histogram bucketing cares about; unrecognized types default
// to string, the conservative choice of treating unknown types as
// opaque text.
func ColumnDataType(sqlType string) DataType {
	switch {
	case containsAny(sqlType, "int"):
		return TypeInt
	case sqlType == "float":
		return TypeFloat
	case sqlType == "double":
		return TypeDouble
	case sqlType == "decimal", sqlType == "numeric":
		return TypeDecimal
	case sqlType == "date", sqlType == "datetime", sqlType == "timestamp":
		return TypeDate
	default:
		return TypeString
	}
}

func containsAny(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Bucket is one equi-depth (or singleton) bucket of a column histogram.
// MinValue/MaxValue are sampled values exactly as passed to Build, compared
// and sorted as strings; they are not reformatted per the column's
// DataType. CumFreq is the cumulative fraction of the sample covered by
// this bucket and all buckets before it; NDV is the bucket's estimated
// distinct-value count (not its row count); Size is the number of sampled
// rows the bucket covers.
type Bucket struct {
	MinValue string  `json:"min_value"`
	MaxValue string  `json:"max_value"`
	CumFreq  float64 `json:"cum_freq"`
	NDV      int     `json:"ndv"`
	Size     int     `json:"size"`
}

// Histogram is one column's built histogram.
type Histogram struct {
	DataType DataType `json:"data_type"`
	Type     string   `json:"type"` // "singleton" or "equi-height"
	Buckets  []Bucket `json:"buckets"`
}

// Params bundles a Build call's configuration.
type Params struct {
	DataType   DataType
	NumBuckets int    // k
	Method     ndv.Method
	N          int64  // population size for scaling bucket NDV estimates
}

const overflowTolerance = 1.5

// Build constructs a column histogram from non-null sampled string
// values. When the observed distinct count is at or below NumBuckets,
// every distinct value gets its own singleton bucket;
// otherwise values are greedily packed into NumBuckets equi-depth buckets,
// each bucket's NDV separately estimated and clamped to the bucket's
// population-scaled row-count bound.
func Build(values []string, p Params) Histogram {
	k := p.NumBuckets
	if k < 1 {
		k = 1
	}

	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	dvList := make([]string, 0, len(counts))
	for v := range counts {
		dvList = append(dvList, v)
	}
	sort.Strings(dvList)

	if len(dvList) <= k {
		return Histogram{
			DataType: p.DataType,
			Type:     "singleton",
			Buckets:  singletonBuckets(dvList, counts, len(values)),
		}
	}

	return Histogram{
		DataType: p.DataType,
		Type:     "equi-height",
		Buckets:  equiDepthBuckets(dvList, counts, len(values), k, p),
	}
}

func singletonBuckets(dvList []string, counts map[string]int, columnSize int) []Bucket {
	var buckets []Bucket
	curr := 0
	for _, dv := range dvList {
		curr += counts[dv]
		buckets = append(buckets, Bucket{
			MinValue: dv,
			MaxValue: dv,
			CumFreq:  float64(curr) / float64(columnSize),
			NDV:      1,
			Size:     counts[dv],
		})
	}
	return buckets
}

func equiDepthBuckets(dvList []string, counts map[string]int, columnSize, k int, p Params) []Bucket {
	bucketNormSize := ceilDiv(columnSize, k)

	var buckets []Bucket
	cumFreq := 0.0
	dvIdx := 0
	sampledNDV := len(dvList)

	for i := 0; i < k && dvIdx < sampledNDV; i++ {
		b, next := fillBucket(dvList, counts, dvIdx, sampledNDV, bucketNormSize)
		dvIdx = next
		bucket, cf := finishBucket(b, columnSize, p, cumFreq)
		cumFreq = cf
		buckets = append(buckets, bucket)
	}

	if dvIdx < sampledNDV {
		b := pendingBucket{minValue: dvList[dvIdx], valCounts: make(map[string]int)}
		for dvIdx < sampledNDV {
			v := dvList[dvIdx]
			b.size += counts[v]
			b.valCounts[v] = counts[v]
			b.maxValue = v
			dvIdx++
		}
		bucket, cf := finishBucket(b, columnSize, p, cumFreq)
		cumFreq = cf
		buckets = append(buckets, bucket)
	}

	closeBoundaryGaps(buckets)
	return buckets
}

// closeBoundaryGaps rewrites each bucket's MaxValue to the next bucket's
// MinValue wherever they differ, so adjacent buckets share a boundary
// instead of leaving a gap between the last observed value of one bucket
// and the first of the next.
func closeBoundaryGaps(buckets []Bucket) {
	for i := 0; i < len(buckets)-1; i++ {
		if buckets[i].MaxValue != buckets[i+1].MinValue {
			buckets[i].MaxValue = buckets[i+1].MinValue
		}
	}
}

type pendingBucket struct {
	minValue, maxValue string
	size               int
	valCounts          map[string]int
}

// fillBucket greedily adds distinct values into a bucket until the next
// value would push it past 1.5x the target size, never rejecting the first value added regardless
// of its own count — the is_first guard exists so a single skewed (very
// frequent) value doesn't produce a zero-value bucket.
func fillBucket(dvList []string, counts map[string]int, start, sampledNDV, bucketNormSize int) (pendingBucket, int) {
	b := pendingBucket{minValue: dvList[start], valCounts: make(map[string]int)}
	idx := start
	isFirst := true
	for idx < sampledNDV {
		count := counts[dvList[idx]]
		if haveEnoughData(bucketNormSize, b.size+count, isFirst) {
			break
		}
		isFirst = false
		b.size += count
		b.valCounts[dvList[idx]] = count
		b.maxValue = dvList[idx]
		idx++
	}
	return b, idx
}

func haveEnoughData(bucketNormSize, curBucketSize int, isFirst bool) bool {
	if isFirst {
		return false
	}
	return float64(curBucketSize) > overflowTolerance*float64(bucketNormSize)
}

func finishBucket(b pendingBucket, columnSize int, p Params, cumFreqSoFar float64) (Bucket, float64) {
	cumFreq := cumFreqSoFar + float64(b.size)/float64(columnSize)

	// bucket_correspond_size is truncated toward zero, not rounded, since
	// downstream NDV clamping depends on this exact bound.
	bucketCorrespondSize := int(float64(b.size) / float64(columnSize) * float64(p.N))

	profileData := make(profile.Profile, b.size+1)
	for _, count := range b.valCounts {
		profileData[count]++
	}

	estNDV, err := ndv.Estimate(p.Method, b.size, int64(bucketCorrespondSize), profileData)
	if err != nil || estNDV < 0 {
		estNDV = float64(len(b.valCounts))
	}
	clamped := int(estNDV)
	if clamped > bucketCorrespondSize {
		clamped = bucketCorrespondSize
	}
	if clamped < 0 {
		clamped = 0
	}

	return Bucket{
		MinValue: b.minValue,
		MaxValue: b.maxValue,
		CumFreq:  cumFreq,
		NDV:      clamped,
		Size:     b.size,
	}, cumFreq
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}
