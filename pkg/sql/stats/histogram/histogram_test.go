package histogram

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videxdb/statscore/pkg/sql/stats/ndv"
)

func TestColumnDataTypeMapping(t *testing.T) {
	require.Equal(t, TypeInt, ColumnDataType("bigint"))
	require.Equal(t, TypeFloat, ColumnDataType("float"))
	require.Equal(t, TypeDouble, ColumnDataType("double"))
	require.Equal(t, TypeDecimal, ColumnDataType("decimal"))
	require.Equal(t, TypeDate, ColumnDataType("datetime"))
	require.Equal(t, TypeString, ColumnDataType("varchar"))
	require.Equal(t, TypeString, ColumnDataType("json"))
}

func TestSingletonBucketsWhenNDVBelowK(t *testing.T) {
	values := []string{"a", "b", "c"}
	h := Build(values, Params{DataType: TypeString, NumBuckets: 10, Method: ndv.MethodGEE, N: 30})
	require.Equal(t, "singleton", h.Type)
	require.Len(t, h.Buckets, 3)
	for _, b := range h.Buckets {
		require.Equal(t, b.MinValue, b.MaxValue)
		require.Equal(t, 1, b.NDV)
	}
	require.InDelta(t, 1.0, h.Buckets[len(h.Buckets)-1].CumFreq, 1e-9)
}

func TestEquiDepthBucketsAreContiguousAndMonotonic(t *testing.T) {
	var values []string
	for i := 0; i < 500; i++ {
		values = append(values, fmt.Sprintf("v%04d", i%100))
	}
	h := Build(values, Params{DataType: TypeString, NumBuckets: 10, Method: ndv.MethodGEE, N: 5000})
	require.Equal(t, "equi-height", h.Type)
	require.NotEmpty(t, h.Buckets)

	for i, b := range h.Buckets {
		require.LessOrEqual(t, b.MinValue, b.MaxValue)
		if i > 0 {
			require.Equal(t, h.Buckets[i-1].MaxValue, b.MinValue, "adjacent buckets must share a boundary")
			require.LessOrEqual(t, h.Buckets[i-1].CumFreq, b.CumFreq)
		}
	}
	last := h.Buckets[len(h.Buckets)-1]
	require.InDelta(t, 1.0, last.CumFreq, 1e-9)
}

func TestBucketNDVNeverExceedsCorrespondSize(t *testing.T) {
	var values []string
	for i := 0; i < 1000; i++ {
		values = append(values, fmt.Sprintf("v%d", i))
	}
	h := Build(values, Params{DataType: TypeString, NumBuckets: 5, Method: ndv.MethodGEE, N: 1000})
	for _, b := range h.Buckets {
		correspond := int(float64(b.Size) / 1000.0 * 1000.0)
		require.LessOrEqual(t, b.NDV, correspond)
	}
}

func TestSingleSkewedValueStillFormsABucket(t *testing.T) {
	values := []string{"skewed", "skewed", "skewed", "skewed", "skewed", "skewed", "skewed", "skewed", "b", "c", "d", "e", "f", "g", "h"}
	h := Build(values, Params{DataType: TypeString, NumBuckets: 3, Method: ndv.MethodGEE, N: 15})
	require.NotEmpty(t, h.Buckets)
	// "skewed" sorts after "b".."h", so it opens the last bucket.
	last := h.Buckets[len(h.Buckets)-1]
	require.Equal(t, "skewed", last.MinValue)
	require.GreaterOrEqual(t, last.Size, 8)
}
