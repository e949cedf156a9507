package adaptive

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videxdb/statscore/pkg/sql/stats/histogram"
	"github.com/videxdb/statscore/pkg/sql/stats/ndv"
)

func uniformValues(n int, distinct int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("v%04d", i%distinct)
	}
	return out
}

func baseParams() Params {
	return Params{
		Lmax:           3,
		NumBuckets:     8,
		DeltaReq:       0.2,
		MaxSampledRows: 20000,
		HistParams: histogram.Params{
			DataType:   histogram.TypeString,
			NumBuckets: 8,
			Method:     ndv.MethodGEE,
			N:          100000,
		},
	}
}

func TestRunTerminatesDoneOnUniformSample(t *testing.T) {
	initial := uniformValues(2000, 50)
	calls := 0
	extend := func(ctx context.Context, need int) ([]string, error) {
		calls++
		return uniformValues(need, 50), nil
	}
	res := Run(context.Background(), initial, extend, baseParams())
	require.Equal(t, StateDone, res.FinalState)
	require.True(t, res.IsSampleSuccess)
	require.GreaterOrEqual(t, len(res.Values), len(initial))
	require.NotEmpty(t, res.RunID)
}

func TestRunExtendsWhenInitialSampleTooSmall(t *testing.T) {
	initial := uniformValues(40, 50)
	extended := false
	extend := func(ctx context.Context, need int) ([]string, error) {
		extended = true
		return uniformValues(need, 50), nil
	}
	p := baseParams()
	p.DeltaReq = 0.01 // demand a tight error bound to force at least one extension
	res := Run(context.Background(), initial, extend, p)
	require.True(t, extended)
	require.GreaterOrEqual(t, len(res.Values), len(initial))
	require.Equal(t, StateDone, res.FinalState)
}

func TestRunStopsAtCapWithTruncationNote(t *testing.T) {
	initial := uniformValues(40, 1000)
	extend := func(ctx context.Context, need int) ([]string, error) {
		return uniformValues(need, 1000), nil
	}
	p := baseParams()
	p.DeltaReq = 0.0001
	p.MaxSampledRows = 100
	res := Run(context.Background(), initial, extend, p)
	require.Equal(t, StateDone, res.FinalState)
	require.True(t, res.IsSampleSuccess)
	require.NotEmpty(t, res.UnsupportedReason)
	require.LessOrEqual(t, len(res.Values), p.MaxSampledRows)
}

func TestRunStopsWhenExtendReturnsNothing(t *testing.T) {
	initial := uniformValues(40, 1000)
	extend := func(ctx context.Context, need int) ([]string, error) {
		return nil, nil
	}
	p := baseParams()
	p.DeltaReq = 0.0001
	res := Run(context.Background(), initial, extend, p)
	require.Equal(t, StateDone, res.FinalState)
	require.NotEmpty(t, res.UnsupportedReason)
}

func TestClassifyClampsOutOfRangeValues(t *testing.T) {
	h := histogram.Build(uniformValues(200, 20), histogram.Params{
		DataType: histogram.TypeString, NumBuckets: 5, Method: ndv.MethodGEE, N: 2000,
	})
	require.Equal(t, 0, classify(h.Buckets, "\x00before-everything"))
	require.Equal(t, len(h.Buckets)-1, classify(h.Buckets, "zzzzzzzz"))
}
