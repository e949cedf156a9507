package ndv

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videxdb/statscore/pkg/sql/stats/profile"
)

func buildProfile(t *testing.T, data []string) profile.Profile {
	t.Helper()
	f, _ := profile.Build(data)
	return f
}

func TestAllDistinctEstimatorsReturnSampleSize(t *testing.T) {
	data := []string{"a", "b", "c", "d", "e"}
	f := buildProfile(t, data)
	r := len(data)
	n := int64(5)

	for _, m := range []Method{MethodGEE, MethodErrorBound, MethodBootstrap} {
		got, err := Estimate(m, r, n, f)
		require.NoError(t, err, string(m))
		require.InDelta(t, float64(r), got, 1e-6, string(m))
	}

	// Jackknife adds (r-1)*f1/r on top of d even when every value is
	// distinct: 5 + 4*5/5 = 9.
	got, err := Estimate(MethodJackknife, r, n, f)
	require.NoError(t, err, string(MethodJackknife))
	require.InDelta(t, 9.0, got, 1e-6, string(MethodJackknife))
}

func TestChaoFallsBackToScaleWhenNoDoubletons(t *testing.T) {
	// f = [0, 4, 0, 0]: four singletons, nothing else observed.
	f := profile.Profile{0, 4, 0, 0}
	r := 4
	n := int64(40)

	chao, err := Estimate(MethodChao, r, n, f)
	require.NoError(t, err)
	scale, err := Estimate(MethodScale, r, n, f)
	require.NoError(t, err)
	require.InDelta(t, scale, chao, 1e-9)

	gee, err := Estimate(MethodGEE, r, n, f)
	require.NoError(t, err)
	want := float64(f.D()-f.At(1)) + math.Sqrt(float64(n)/float64(r))*float64(f.At(1))
	require.InDelta(t, want, gee, 1e-9)
}

func TestScaleEstimateMatchesFormula(t *testing.T) {
	f := buildProfile(t, []string{"a", "a", "b", "c"})
	r := 4
	n := int64(400)
	got, err := Estimate(MethodScale, r, n, f)
	require.NoError(t, err)
	require.InDelta(t, float64(f.D())*float64(n)/float64(r), got, 1e-9)
}

func TestUnsupportedMethodErrors(t *testing.T) {
	f := buildProfile(t, []string{"a"})
	_, err := Estimate(Method("not-a-method"), 1, 10, f)
	require.Error(t, err)
}

func TestEstimatorsStayWithinBoundsOnModerateData(t *testing.T) {
	data := []string{"a", "a", "b", "c", "c", "c", "d", "e", "f", "f"}
	f := buildProfile(t, data)
	r := len(data)
	n := int64(1000)

	methods := []Method{
		MethodScale, MethodErrorBound, MethodGEE, MethodChao, MethodShlosser,
		MethodChaoLee, MethodGoodman, MethodJackknife, MethodSichel,
		MethodMoM, MethodMoMv2, MethodMoMv3, MethodBootstrap,
		MethodHorvitzThompson, MethodSmoothedJackknife,
	}
	for _, m := range methods {
		got, err := Estimate(m, r, n, f)
		require.NoError(t, err, string(m))
		require.False(t, math.IsNaN(got), string(m))
		require.GreaterOrEqual(t, got, 0.0, string(m))
	}
}

func TestFindRootSolvesSimpleEquation(t *testing.T) {
	// x^2 - 4 = 0, root at x = 2.
	eq := func(x float64) float64 { return x*x - 4 }
	root, ok := findRoot(eq, 3)
	require.True(t, ok)
	require.InDelta(t, 2.0, root, 1e-3)
}

func TestEstimateHLLApproximatesDistinctCount(t *testing.T) {
	var values []string
	for i := 0; i < 5000; i++ {
		values = append(values, string(rune('a'+i%26))+string(rune('A'+(i/26)%26)))
	}
	got := EstimateHLL(values)
	require.InDelta(t, 676, float64(got), 676*0.1)
}

func TestEstimateMultiColumnDegradesWhenNoColumnsPresent(t *testing.T) {
	got, err := EstimateMultiColumn(MethodGEE, 10, 100, nil, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 1.0, got)
}

func TestEstimateAdaNDVFallsBackWithoutModelFile(t *testing.T) {
	f := buildProfile(t, []string{"a", "b", "c", "c"})
	got, err := EstimateAdaNDV(context.Background(), "/nonexistent/adandv.json", 4, 400, f)
	require.Error(t, err)
	gee, _ := Estimate(MethodGEE, 4, 400, f)
	require.InDelta(t, gee, got, 1e-9)
}
